package interfaces

import (
	"context"

	"rafflepool/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerService defines the operations of one ledger instance
type LedgerService interface {
	// Initialize runs the one-time setup, making caller the operator
	Initialize(ctx context.Context, caller common.Address, minimumThreshold int64) (*entities.Ledger, error)

	// Deposit credits amount to caller, appending caller to the roster on first deposit
	Deposit(ctx context.Context, caller common.Address, amount int64) (*entities.Participant, error)

	// Withdraw zeroes caller's stake and pays back the refund
	Withdraw(ctx context.Context, caller common.Address) (refund int64, err error)

	// PickWinners selects three distinct winners and pays out the pot
	PickWinners(ctx context.Context, caller common.Address) (*entities.Draw, error)

	// Upgrade moves the ledger to a newer storage layout
	Upgrade(ctx context.Context, caller common.Address, version int) (*entities.Ledger, error)

	// Price returns the entry price on ledgers that expose it
	Price(ctx context.Context) (int64, error)

	// Read accessors
	Ledger(ctx context.Context) (*entities.Ledger, error)
	ParticipantCount(ctx context.Context) (int64, error)
	ParticipantAt(ctx context.Context, index int64) (common.Address, error)
	CurrentContribution(ctx context.Context, identity common.Address) (int64, error)
	TotalContribution(ctx context.Context, identity common.Address) (int64, error)
	PoolBalance(ctx context.Context) (int64, error)
	Operator(ctx context.Context) (common.Address, error)

	// History
	Roster(ctx context.Context) ([]*entities.Participant, error)
	Draws(ctx context.Context, limit int) ([]*entities.Draw, error)
	Transfers(ctx context.Context, limit int) ([]*entities.Transfer, error)
	Events(ctx context.Context, afterID int64, limit int) ([]*entities.LedgerEvent, error)

	// Audit recomputes balances and reports any broken invariant
	Audit(ctx context.Context) (*entities.AuditReport, error)
}
