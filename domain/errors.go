package domain

import "errors"

// Ledger rejections. The error text is the reason shown to the caller.
var (
	ErrInsufficientContribution = errors.New("minimum contribution not sent")
	ErrNothingToWithdraw        = errors.New("not a participant or no funds to withdraw")
	ErrUnauthorized             = errors.New("only the operator can call this")
	ErrInsufficientParticipants = errors.New("not enough participants")
	ErrIndexOutOfRange          = errors.New("participant index out of range")
	ErrAlreadyInitialized       = errors.New("ledger already initialized")
	ErrTransferFailed           = errors.New("transfer failed")

	ErrNotInitialized       = errors.New("ledger not initialized")
	ErrLedgerNotFound       = errors.New("ledger not found")
	ErrReentrantCall        = errors.New("reentrant call rejected")
	ErrAmountOverflow       = errors.New("amount overflows ledger balance")
	ErrInvalidThreshold     = errors.New("minimum threshold must be positive")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrUnsupportedOperation = errors.New("operation not supported by this ledger version")
	ErrIncompatibleLayout   = errors.New("storage layout is not an append-only extension")
	ErrInvalidUpgrade       = errors.New("invalid upgrade target version")
	ErrLedgerInconsistent   = errors.New("ledger balances are inconsistent")
)

// IsRejection reports whether err is a domain rejection rather than an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInsufficientContribution,
		ErrNothingToWithdraw,
		ErrUnauthorized,
		ErrInsufficientParticipants,
		ErrIndexOutOfRange,
		ErrAlreadyInitialized,
		ErrTransferFailed,
		ErrNotInitialized,
		ErrLedgerNotFound,
		ErrReentrantCall,
		ErrAmountOverflow,
		ErrInvalidThreshold,
		ErrInvalidAmount,
		ErrUnsupportedOperation,
		ErrIncompatibleLayout,
		ErrInvalidUpgrade,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
