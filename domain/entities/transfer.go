package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransferDirection is the direction funds moved relative to the ledger
type TransferDirection string

const (
	TransferDirectionIn  TransferDirection = "in"
	TransferDirectionOut TransferDirection = "out"
)

// TransferReason is the operation that moved the funds
type TransferReason string

const (
	TransferReasonDeposit TransferReason = "deposit"
	TransferReasonRefund  TransferReason = "refund"
	TransferReasonPrize   TransferReason = "prize"
)

// Transfer records value moving into or out of a ledger
type Transfer struct {
	ID            int64             `db:"id"`
	LedgerAddress common.Address    `db:"ledger_address"`
	Counterparty  common.Address    `db:"counterparty"`
	Amount        int64             `db:"amount"`
	Direction     TransferDirection `db:"direction"`
	Reason        TransferReason    `db:"reason"`
	DrawSequence  *int64            `db:"draw_sequence"` // Set for prize payouts
	CreatedAt     time.Time         `db:"created_at"`
}

// NewPayout builds an outbound transfer
func NewPayout(ledger, to common.Address, amount int64, reason TransferReason) *Transfer {
	return &Transfer{
		LedgerAddress: ledger,
		Counterparty:  to,
		Amount:        amount,
		Direction:     TransferDirectionOut,
		Reason:        reason,
	}
}
