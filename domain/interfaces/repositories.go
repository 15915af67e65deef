package interfaces

import (
	"context"

	"rafflepool/domain/entities"
	"rafflepool/domain/events"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerRepository defines the interface for ledger data access
type LedgerRepository interface {
	// Create inserts a new ledger row
	Create(ctx context.Context, ledger *entities.Ledger) error

	// GetByAddress retrieves a ledger, returning nil if it does not exist
	GetByAddress(ctx context.Context, address common.Address) (*entities.Ledger, error)

	// GetByAddressForUpdate retrieves a ledger and locks it until the transaction ends
	GetByAddressForUpdate(ctx context.Context, address common.Address) (*entities.Ledger, error)

	// CountByDeployer returns how many ledgers a deployer has created
	CountByDeployer(ctx context.Context, deployer common.Address) (uint64, error)

	// Update persists every mutable ledger field
	Update(ctx context.Context, ledger *entities.Ledger) error

	// List returns all ledgers ordered by creation
	List(ctx context.Context) ([]*entities.Ledger, error)
}

// ParticipantRepository defines the interface for the contribution ledger of one ledger instance
type ParticipantRepository interface {
	// GetByIdentity retrieves a participant, returning nil if the identity never deposited
	GetByIdentity(ctx context.Context, identity common.Address) (*entities.Participant, error)

	// GetByRosterIndex retrieves the participant at a roster position, returning nil if out of range
	GetByRosterIndex(ctx context.Context, index int64) (*entities.Participant, error)

	// Create appends a participant to the roster
	Create(ctx context.Context, participant *entities.Participant) error

	// Update persists contribution amounts
	Update(ctx context.Context, participant *entities.Participant) error

	// ListRoster returns every participant in roster order
	ListRoster(ctx context.Context) ([]*entities.Participant, error)
}

// TransferRepository defines the interface for the transfer history of one ledger instance
type TransferRepository interface {
	// Record appends a transfer
	Record(ctx context.Context, transfer *entities.Transfer) error

	// List returns the most recent transfers, newest first
	List(ctx context.Context, limit int) ([]*entities.Transfer, error)

	// ListByCounterparty returns the most recent transfers with one identity, newest first
	ListByCounterparty(ctx context.Context, identity common.Address, limit int) ([]*entities.Transfer, error)
}

// DrawRepository defines the interface for draw outcomes of one ledger instance
type DrawRepository interface {
	// Create records a draw outcome
	Create(ctx context.Context, draw *entities.Draw) error

	// GetBySequence retrieves a draw, returning nil if it does not exist
	GetBySequence(ctx context.Context, sequence int64) (*entities.Draw, error)

	// List returns the most recent draws, newest first
	List(ctx context.Context, limit int) ([]*entities.Draw, error)
}

// EventLogRepository defines the interface for the append-only event log of one ledger instance
type EventLogRepository interface {
	// Append adds an event to the log and sets its ID
	Append(ctx context.Context, event *entities.LedgerEvent) error

	// ListAfter returns up to limit events with ID greater than afterID, oldest first
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*entities.LedgerEvent, error)
}

// PaymentSink moves value out of a ledger. Implementations may call back into the ledger.
type PaymentSink interface {
	Pay(ctx context.Context, transfer *entities.Transfer) error
}

// SeedSource provides the entropy a draw derives winner indices from
type SeedSource interface {
	Seed(ctx context.Context, ledger *entities.Ledger) (common.Hash, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher holds events until the surrounding transaction commits
type TransactionalEventPublisher interface {
	EventPublisher

	// Flush publishes all pending events
	Flush(ctx context.Context) error

	// Discard drops all pending events
	Discard()
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	LedgerRepository() LedgerRepository
	ParticipantRepository() ParticipantRepository
	TransferRepository() TransferRepository
	DrawRepository() DrawRepository
	EventLogRepository() EventLogRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// CreateForLedger creates a new UnitOfWork instance scoped to one ledger address
	CreateForLedger(address common.Address) UnitOfWork
}
