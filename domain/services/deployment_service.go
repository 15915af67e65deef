package services

import (
	"context"
	"fmt"

	"rafflepool/domain/entities"
	"rafflepool/domain/events"
	"rafflepool/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// DeploymentService creates new ledger instances
type DeploymentService struct {
	ledgerRepo     interfaces.LedgerRepository
	eventPublisher interfaces.EventPublisher
}

// NewDeploymentService creates a new deployment service
func NewDeploymentService(ledgerRepo interfaces.LedgerRepository, eventPublisher interfaces.EventPublisher) *DeploymentService {
	return &DeploymentService{
		ledgerRepo:     ledgerRepo,
		eventPublisher: eventPublisher,
	}
}

// Deploy creates an uninitialized ledger at the deployer's next address
func (s *DeploymentService) Deploy(ctx context.Context, deployer common.Address) (*entities.Ledger, error) {
	nonce, err := s.ledgerRepo.CountByDeployer(ctx, deployer)
	if err != nil {
		return nil, fmt.Errorf("failed to count deployments: %w", err)
	}

	ledger := &entities.Ledger{
		Address:       entities.DeriveLedgerAddress(deployer, nonce),
		Deployer:      deployer,
		DeployNonce:   nonce,
		SchemaVersion: entities.InitialSchemaVersion,
	}
	if err := s.ledgerRepo.Create(ctx, ledger); err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	if err := s.eventPublisher.Publish(events.LedgerDeployedEvent{
		LedgerAddress: ledger.Address,
		Deployer:      deployer,
		Nonce:         nonce,
	}); err != nil {
		log.WithError(err).Error("Failed to publish ledger deployed event")
	}

	log.WithFields(log.Fields{
		"ledger":   ledger.Address.Hex(),
		"deployer": deployer.Hex(),
		"nonce":    nonce,
	}).Info("Ledger deployed")

	return ledger, nil
}
