package services

import (
	"context"
	"fmt"
	"time"

	"rafflepool/domain"
	"rafflepool/domain/entities"
	"rafflepool/domain/events"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// Upgrade moves the ledger to a newer storage layout. Existing fields keep their positions.
func (s *ledgerService) Upgrade(ctx context.Context, caller common.Address, version int) (*entities.Ledger, error) {
	ledger, err := s.lockLedger(ctx)
	if err != nil {
		return nil, err
	}
	if !ledger.IsOperator(caller) {
		return nil, domain.ErrUnauthorized
	}

	if err := entities.ValidateUpgradePath(ledger.SchemaVersion, version); err != nil {
		return nil, err
	}

	from := ledger.SchemaVersion
	now := time.Now().UTC()
	ledger.SchemaVersion = version
	ledger.UpgradedAt = &now

	if err := s.ledgerRepo.Update(ctx, ledger); err != nil {
		return nil, fmt.Errorf("failed to update ledger: %w", err)
	}

	if err := s.emit(ctx, events.LedgerUpgradedEvent{
		LedgerAddress: s.address,
		FromVersion:   from,
		ToVersion:     version,
	}); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"ledger": s.address.Hex(),
		"from":   from,
		"to":     version,
	}).Info("Ledger upgraded")

	return ledger, nil
}

// Price returns the entry price. Only ledgers on layout v2 or later expose it.
func (s *ledgerService) Price(ctx context.Context) (int64, error) {
	ledger, err := s.readLedger(ctx)
	if err != nil {
		return 0, err
	}
	if !ledger.SupportsPrice() {
		return 0, domain.ErrUnsupportedOperation
	}
	return ledger.MinimumThreshold, nil
}
