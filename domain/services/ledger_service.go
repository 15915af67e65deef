package services

import (
	"context"
	"encoding/json"
	"fmt"

	"rafflepool/domain"
	"rafflepool/domain/entities"
	"rafflepool/domain/events"
	"rafflepool/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ledgerService implements the contribution ledger, withdrawal handler and draw engine
// of a single ledger instance. Every method expects to run inside one unit of work.
type ledgerService struct {
	address         common.Address
	ledgerRepo      interfaces.LedgerRepository
	participantRepo interfaces.ParticipantRepository
	transferRepo    interfaces.TransferRepository
	drawRepo        interfaces.DrawRepository
	eventLogRepo    interfaces.EventLogRepository
	paymentSink     interfaces.PaymentSink
	seedSource      interfaces.SeedSource
	eventPublisher  interfaces.EventPublisher
}

// NewLedgerService creates a new ledger service for the ledger at address
func NewLedgerService(
	address common.Address,
	ledgerRepo interfaces.LedgerRepository,
	participantRepo interfaces.ParticipantRepository,
	transferRepo interfaces.TransferRepository,
	drawRepo interfaces.DrawRepository,
	eventLogRepo interfaces.EventLogRepository,
	paymentSink interfaces.PaymentSink,
	seedSource interfaces.SeedSource,
	eventPublisher interfaces.EventPublisher,
) interfaces.LedgerService {
	return &ledgerService{
		address:         address,
		ledgerRepo:      ledgerRepo,
		participantRepo: participantRepo,
		transferRepo:    transferRepo,
		drawRepo:        drawRepo,
		eventLogRepo:    eventLogRepo,
		paymentSink:     paymentSink,
		seedSource:      seedSource,
		eventPublisher:  eventPublisher,
	}
}

// Initialize runs the one-time setup
func (s *ledgerService) Initialize(ctx context.Context, caller common.Address, minimumThreshold int64) (*entities.Ledger, error) {
	ledger, err := s.ledgerRepo.GetByAddressForUpdate(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	if ledger == nil {
		return nil, domain.ErrLedgerNotFound
	}
	if ledger.Initialized {
		return nil, domain.ErrAlreadyInitialized
	}
	if minimumThreshold <= 0 {
		return nil, domain.ErrInvalidThreshold
	}

	ledger.Operator = caller
	ledger.MinimumThreshold = minimumThreshold
	ledger.Initialized = true
	if err := s.ledgerRepo.Update(ctx, ledger); err != nil {
		return nil, fmt.Errorf("failed to update ledger: %w", err)
	}

	if err := s.emit(ctx, events.LedgerInitializedEvent{
		LedgerAddress:    s.address,
		Operator:         caller,
		MinimumThreshold: minimumThreshold,
	}); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"ledger":           s.address.Hex(),
		"operator":         caller.Hex(),
		"minimumThreshold": minimumThreshold,
	}).Info("Ledger initialized")

	return ledger, nil
}

// Deposit credits amount to caller. The funds arrive with the call itself.
func (s *ledgerService) Deposit(ctx context.Context, caller common.Address, amount int64) (*entities.Participant, error) {
	ledger, err := s.lockLedger(ctx)
	if err != nil {
		return nil, err
	}

	if amount < ledger.MinimumThreshold {
		return nil, domain.ErrInsufficientContribution
	}

	participant, err := s.participantRepo.GetByIdentity(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	isNew := participant == nil
	if isNew {
		participant = &entities.Participant{
			LedgerAddress: s.address,
			Identity:      caller,
			RosterIndex:   ledger.ParticipantCount,
		}
	}

	if err := participant.Contribute(amount); err != nil {
		return nil, err
	}
	if err := ledger.Credit(amount); err != nil {
		return nil, err
	}

	if isNew {
		if err := s.participantRepo.Create(ctx, participant); err != nil {
			return nil, fmt.Errorf("failed to create participant: %w", err)
		}
		ledger.ParticipantCount++
	} else {
		if err := s.participantRepo.Update(ctx, participant); err != nil {
			return nil, fmt.Errorf("failed to update participant: %w", err)
		}
	}

	if err := s.ledgerRepo.Update(ctx, ledger); err != nil {
		return nil, fmt.Errorf("failed to update ledger: %w", err)
	}

	if err := s.transferRepo.Record(ctx, &entities.Transfer{
		LedgerAddress: s.address,
		Counterparty:  caller,
		Amount:        amount,
		Direction:     entities.TransferDirectionIn,
		Reason:        entities.TransferReasonDeposit,
	}); err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	if err := s.emit(ctx, events.DepositedEvent{
		LedgerAddress: s.address,
		Participant:   caller,
		Amount:        amount,
	}); err != nil {
		return nil, err
	}

	return participant, nil
}

// Withdraw zeroes the caller's stake before paying out the refund. The penalty stays in the pool.
func (s *ledgerService) Withdraw(ctx context.Context, caller common.Address) (int64, error) {
	ledger, err := s.lockLedger(ctx)
	if err != nil {
		return 0, err
	}

	participant, err := s.participantRepo.GetByIdentity(ctx, caller)
	if err != nil {
		return 0, fmt.Errorf("failed to get participant: %w", err)
	}
	if participant == nil || !participant.HasStake() {
		return 0, domain.ErrNothingToWithdraw
	}

	stake := participant.ClearStake()
	refund := entities.RefundFor(stake)
	if err := ledger.Debit(refund); err != nil {
		return 0, err
	}
	ledger.Unallocated += stake - refund

	if err := s.participantRepo.Update(ctx, participant); err != nil {
		return 0, fmt.Errorf("failed to update participant: %w", err)
	}
	if err := s.ledgerRepo.Update(ctx, ledger); err != nil {
		return 0, fmt.Errorf("failed to update ledger: %w", err)
	}

	if err := s.pay(ctx, entities.NewPayout(s.address, caller, refund, entities.TransferReasonRefund)); err != nil {
		return 0, err
	}

	if err := s.emit(ctx, events.WithdrawnEvent{
		LedgerAddress: s.address,
		Participant:   caller,
		Amount:        refund,
	}); err != nil {
		return 0, err
	}

	return refund, nil
}

// Ledger returns the ledger record, initialized or not
func (s *ledgerService) Ledger(ctx context.Context) (*entities.Ledger, error) {
	ledger, err := s.ledgerRepo.GetByAddress(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	if ledger == nil {
		return nil, domain.ErrLedgerNotFound
	}
	return ledger, nil
}

func (s *ledgerService) ParticipantCount(ctx context.Context) (int64, error) {
	ledger, err := s.readLedger(ctx)
	if err != nil {
		return 0, err
	}
	return ledger.ParticipantCount, nil
}

func (s *ledgerService) ParticipantAt(ctx context.Context, index int64) (common.Address, error) {
	ledger, err := s.readLedger(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if index < 0 || index >= ledger.ParticipantCount {
		return common.Address{}, domain.ErrIndexOutOfRange
	}

	participant, err := s.participantRepo.GetByRosterIndex(ctx, index)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get participant: %w", err)
	}
	if participant == nil {
		return common.Address{}, fmt.Errorf("%w: roster index %d missing", domain.ErrLedgerInconsistent, index)
	}
	return participant.Identity, nil
}

// CurrentContribution returns zero for identities that never deposited
func (s *ledgerService) CurrentContribution(ctx context.Context, identity common.Address) (int64, error) {
	participant, err := s.readParticipant(ctx, identity)
	if err != nil || participant == nil {
		return 0, err
	}
	return participant.CurrentContributed, nil
}

// TotalContribution returns zero for identities that never deposited
func (s *ledgerService) TotalContribution(ctx context.Context, identity common.Address) (int64, error) {
	participant, err := s.readParticipant(ctx, identity)
	if err != nil || participant == nil {
		return 0, err
	}
	return participant.TotalContributed, nil
}

func (s *ledgerService) PoolBalance(ctx context.Context) (int64, error) {
	ledger, err := s.readLedger(ctx)
	if err != nil {
		return 0, err
	}
	return ledger.PoolBalance, nil
}

func (s *ledgerService) Operator(ctx context.Context) (common.Address, error) {
	ledger, err := s.readLedger(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return ledger.Operator, nil
}

func (s *ledgerService) Roster(ctx context.Context) ([]*entities.Participant, error) {
	if _, err := s.readLedger(ctx); err != nil {
		return nil, err
	}
	roster, err := s.participantRepo.ListRoster(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}
	return roster, nil
}

func (s *ledgerService) Draws(ctx context.Context, limit int) ([]*entities.Draw, error) {
	if _, err := s.readLedger(ctx); err != nil {
		return nil, err
	}
	draws, err := s.drawRepo.List(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list draws: %w", err)
	}
	return draws, nil
}

func (s *ledgerService) Transfers(ctx context.Context, limit int) ([]*entities.Transfer, error) {
	if _, err := s.readLedger(ctx); err != nil {
		return nil, err
	}
	transfers, err := s.transferRepo.List(ctx, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}

// Events pages the event log. It is readable before initialization.
func (s *ledgerService) Events(ctx context.Context, afterID int64, limit int) ([]*entities.LedgerEvent, error) {
	if _, err := s.Ledger(ctx); err != nil {
		return nil, err
	}
	logged, err := s.eventLogRepo.ListAfter(ctx, afterID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return logged, nil
}

// Audit checks pool == sum(current) + unallocated and current <= total for every participant
func (s *ledgerService) Audit(ctx context.Context) (*entities.AuditReport, error) {
	ledger, err := s.readLedger(ctx)
	if err != nil {
		return nil, err
	}

	roster, err := s.participantRepo.ListRoster(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}

	report := &entities.AuditReport{
		LedgerAddress:    s.address,
		PoolBalance:      ledger.PoolBalance,
		Unallocated:      ledger.Unallocated,
		ParticipantCount: ledger.ParticipantCount,
	}

	if int64(len(roster)) != ledger.ParticipantCount {
		report.Violations = append(report.Violations,
			fmt.Sprintf("roster has %d entries, ledger counts %d", len(roster), ledger.ParticipantCount))
	}

	for i, p := range roster {
		if p.RosterIndex != int64(i) {
			report.Violations = append(report.Violations,
				fmt.Sprintf("%s has roster index %d at position %d", p.Identity.Hex(), p.RosterIndex, i))
		}
		if p.CurrentContributed < 0 || p.CurrentContributed > p.TotalContributed {
			report.Violations = append(report.Violations,
				fmt.Sprintf("%s current %d outside [0, total %d]", p.Identity.Hex(), p.CurrentContributed, p.TotalContributed))
		}
		report.SumCurrent += p.CurrentContributed
	}

	if ledger.Unallocated < 0 {
		report.Violations = append(report.Violations, fmt.Sprintf("unallocated is negative: %d", ledger.Unallocated))
	}
	if report.SumCurrent+ledger.Unallocated != ledger.PoolBalance {
		report.Violations = append(report.Violations,
			fmt.Sprintf("pool %d != current %d + unallocated %d", ledger.PoolBalance, report.SumCurrent, ledger.Unallocated))
	}

	if !report.Consistent() {
		return report, fmt.Errorf("%w: %d violations", domain.ErrLedgerInconsistent, len(report.Violations))
	}
	return report, nil
}

// lockLedger loads the initialized ledger and holds its lock until the unit of work ends
func (s *ledgerService) lockLedger(ctx context.Context) (*entities.Ledger, error) {
	ledger, err := s.ledgerRepo.GetByAddressForUpdate(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger: %w", err)
	}
	return requireInitialized(ledger)
}

func (s *ledgerService) readLedger(ctx context.Context) (*entities.Ledger, error) {
	ledger, err := s.ledgerRepo.GetByAddress(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return requireInitialized(ledger)
}

func (s *ledgerService) readParticipant(ctx context.Context, identity common.Address) (*entities.Participant, error) {
	if _, err := s.readLedger(ctx); err != nil {
		return nil, err
	}
	participant, err := s.participantRepo.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return participant, nil
}

func requireInitialized(ledger *entities.Ledger) (*entities.Ledger, error) {
	if ledger == nil {
		return nil, domain.ErrLedgerNotFound
	}
	if !ledger.Initialized {
		return nil, domain.ErrNotInitialized
	}
	return ledger, nil
}

// pay hands a payout to the sink. Any sink failure aborts the enclosing operation.
func (s *ledgerService) pay(ctx context.Context, transfer *entities.Transfer) error {
	if err := s.paymentSink.Pay(ctx, transfer); err != nil {
		log.WithFields(log.Fields{
			"ledger": s.address.Hex(),
			"to":     transfer.Counterparty.Hex(),
			"amount": transfer.Amount,
			"reason": transfer.Reason,
		}).WithError(err).Warn("Payout failed")
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	return nil
}

// emit appends the event to the ledger's public log and publishes it
func (s *ledgerService) emit(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.eventLogRepo.Append(ctx, &entities.LedgerEvent{
		LedgerAddress: s.address,
		EventType:     string(event.Type()),
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to publish ledger event")
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
