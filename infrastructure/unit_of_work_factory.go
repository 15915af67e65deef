package infrastructure

import (
	"rafflepool/database"
	"rafflepool/domain/interfaces"
	"rafflepool/repository"

	"github.com/ethereum/go-ethereum/common"
)

// UnitOfWorkFactoryWrapper gives every unit of work its own transactional publisher
type UnitOfWorkFactoryWrapper struct {
	repoFactory interface {
		CreateForLedgerWithPublisher(address common.Address, transactionalPublisher interfaces.TransactionalEventPublisher) interfaces.UnitOfWork
	}
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactoryWrapper creates a factory backed by PostgreSQL
func NewUnitOfWorkFactoryWrapper(db *database.DB, eventPublisher interfaces.EventPublisher) interfaces.UnitOfWorkFactory {
	return &UnitOfWorkFactoryWrapper{
		repoFactory:    repository.NewUnitOfWorkFactory(db),
		eventPublisher: eventPublisher,
	}
}

// CreateForLedger creates a new UnitOfWork scoped to a ledger address
func (w *UnitOfWorkFactoryWrapper) CreateForLedger(address common.Address) interfaces.UnitOfWork {
	return w.repoFactory.CreateForLedgerWithPublisher(address, NewNATSTransactionalPublisher(w.eventPublisher))
}
