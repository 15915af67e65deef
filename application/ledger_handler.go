package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rafflepool/domain"
	"rafflepool/domain/entities"
	"rafflepool/domain/interfaces"
	"rafflepool/domain/services"
	"rafflepool/infrastructure/observability"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

// callKey marks a context as belonging to a ledger call in progress
type callKey struct{}

// LedgerHandler runs every public ledger operation as one atomic unit of work.
// A call made while another is still in progress on the same context chain is
// rejected with domain.ErrReentrantCall. Recipient sinks must pass on the context
// they are given.
type LedgerHandler struct {
	uowFactory interfaces.UnitOfWorkFactory
	seedSource interfaces.SeedSource
	recipient  interfaces.PaymentSink
	metrics    *observability.MetricsProvider
}

// Option configures a LedgerHandler
type Option func(*LedgerHandler)

// WithSeedSource replaces the default crypto/rand seed source
func WithSeedSource(seedSource interfaces.SeedSource) Option {
	return func(h *LedgerHandler) {
		h.seedSource = seedSource
	}
}

// WithRecipientSink delivers every payout to recipient before it is recorded
func WithRecipientSink(recipient interfaces.PaymentSink) Option {
	return func(h *LedgerHandler) {
		h.recipient = recipient
	}
}

// WithMetrics records operation outcomes, transfers and draws
func WithMetrics(metrics *observability.MetricsProvider) Option {
	return func(h *LedgerHandler) {
		h.metrics = metrics
	}
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(uowFactory interfaces.UnitOfWorkFactory, opts ...Option) *LedgerHandler {
	h := &LedgerHandler{
		uowFactory: uowFactory,
		seedSource: services.NewCryptoSeedSource(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// LedgerStatus is a consistent snapshot of a ledger read in one unit of work
type LedgerStatus struct {
	Ledger *entities.Ledger
	Price  *int64 // Nil on layouts without the price getter
}

// Deploy creates a new uninitialized ledger for deployer
func (h *LedgerHandler) Deploy(ctx context.Context, deployer common.Address) (*entities.Ledger, error) {
	var ledger *entities.Ledger
	err := h.inUnitOfWork(ctx, common.Address{}, "deploy", func(ctx context.Context, uow interfaces.UnitOfWork) error {
		var err error
		ledger, err = services.NewDeploymentService(uow.LedgerRepository(), uow.EventBus()).Deploy(ctx, deployer)
		return err
	})
	return ledger, err
}

// ListLedgers returns every deployed ledger
func (h *LedgerHandler) ListLedgers(ctx context.Context) ([]*entities.Ledger, error) {
	var ledgers []*entities.Ledger
	err := h.inUnitOfWork(ctx, common.Address{}, "list_ledgers", func(ctx context.Context, uow interfaces.UnitOfWork) error {
		var err error
		ledgers, err = uow.LedgerRepository().List(ctx)
		return err
	})
	return ledgers, err
}

// Initialize makes caller the operator of the ledger at address
func (h *LedgerHandler) Initialize(ctx context.Context, address, caller common.Address, minimumThreshold int64) (*entities.Ledger, error) {
	var ledger *entities.Ledger
	err := h.run(ctx, address, "initialize", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		ledger, err = svc.Initialize(ctx, caller, minimumThreshold)
		return err
	})
	return ledger, err
}

// Deposit credits amount to caller
func (h *LedgerHandler) Deposit(ctx context.Context, address, caller common.Address, amount int64) (*entities.Participant, error) {
	var participant *entities.Participant
	err := h.run(ctx, address, "deposit", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		participant, err = svc.Deposit(ctx, caller, amount)
		return err
	})
	if err == nil {
		h.metrics.RecordTransfer(string(entities.TransferReasonDeposit), amount)
	}
	return participant, err
}

// Withdraw refunds caller's stake less the retained penalty
func (h *LedgerHandler) Withdraw(ctx context.Context, address, caller common.Address) (int64, error) {
	var refund int64
	err := h.run(ctx, address, "withdraw", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		refund, err = svc.Withdraw(ctx, caller)
		return err
	})
	if err == nil {
		h.metrics.RecordTransfer(string(entities.TransferReasonRefund), refund)
	}
	return refund, err
}

// PickWinners runs a draw on behalf of caller
func (h *LedgerHandler) PickWinners(ctx context.Context, address, caller common.Address) (*entities.Draw, error) {
	var draw *entities.Draw
	err := h.run(ctx, address, "pick_winners", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		draw, err = svc.PickWinners(ctx, caller)
		return err
	})
	if err == nil {
		h.metrics.RecordDraw(draw.Pot)
		for _, amount := range draw.Amounts {
			h.metrics.RecordTransfer(string(entities.TransferReasonPrize), amount)
		}
	}
	return draw, err
}

// Upgrade moves the ledger to a newer storage layout
func (h *LedgerHandler) Upgrade(ctx context.Context, address, caller common.Address, version int) (*entities.Ledger, error) {
	var ledger *entities.Ledger
	err := h.run(ctx, address, "upgrade", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		ledger, err = svc.Upgrade(ctx, caller, version)
		return err
	})
	return ledger, err
}

// Price returns the entry price of a v2 ledger
func (h *LedgerHandler) Price(ctx context.Context, address common.Address) (int64, error) {
	var price int64
	err := h.run(ctx, address, "price", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		price, err = svc.Price(ctx)
		return err
	})
	return price, err
}

// Ledger returns the ledger record, initialized or not
func (h *LedgerHandler) Ledger(ctx context.Context, address common.Address) (*entities.Ledger, error) {
	var ledger *entities.Ledger
	err := h.run(ctx, address, "ledger", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		ledger, err = svc.Ledger(ctx)
		return err
	})
	return ledger, err
}

// Status reads the ledger and, where the layout has one, its price
func (h *LedgerHandler) Status(ctx context.Context, address common.Address) (*LedgerStatus, error) {
	status := &LedgerStatus{}
	err := h.run(ctx, address, "status", func(ctx context.Context, svc interfaces.LedgerService) error {
		ledger, err := svc.Ledger(ctx)
		if err != nil {
			return err
		}
		status.Ledger = ledger
		if !ledger.Initialized || !ledger.SupportsPrice() {
			return nil
		}
		price, err := svc.Price(ctx)
		if err != nil {
			return err
		}
		status.Price = &price
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// ParticipantCount returns the roster length
func (h *LedgerHandler) ParticipantCount(ctx context.Context, address common.Address) (int64, error) {
	var count int64
	err := h.run(ctx, address, "participant_count", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		count, err = svc.ParticipantCount(ctx)
		return err
	})
	return count, err
}

// ParticipantAt returns the identity at a roster index
func (h *LedgerHandler) ParticipantAt(ctx context.Context, address common.Address, index int64) (common.Address, error) {
	var identity common.Address
	err := h.run(ctx, address, "participant_at", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		identity, err = svc.ParticipantAt(ctx, index)
		return err
	})
	return identity, err
}

// Contributions returns the current and lifetime contribution of identity
func (h *LedgerHandler) Contributions(ctx context.Context, address, identity common.Address) (current, total int64, err error) {
	err = h.run(ctx, address, "contributions", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		if current, err = svc.CurrentContribution(ctx, identity); err != nil {
			return err
		}
		total, err = svc.TotalContribution(ctx, identity)
		return err
	})
	return current, total, err
}

// CurrentContribution returns identity's stake in the next draw
func (h *LedgerHandler) CurrentContribution(ctx context.Context, address, identity common.Address) (int64, error) {
	var amount int64
	err := h.run(ctx, address, "current_contribution", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		amount, err = svc.CurrentContribution(ctx, identity)
		return err
	})
	return amount, err
}

// TotalContribution returns everything identity has ever deposited
func (h *LedgerHandler) TotalContribution(ctx context.Context, address, identity common.Address) (int64, error) {
	var amount int64
	err := h.run(ctx, address, "total_contribution", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		amount, err = svc.TotalContribution(ctx, identity)
		return err
	})
	return amount, err
}

// PoolBalance returns the funds currently held
func (h *LedgerHandler) PoolBalance(ctx context.Context, address common.Address) (int64, error) {
	var balance int64
	err := h.run(ctx, address, "pool_balance", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		balance, err = svc.PoolBalance(ctx)
		return err
	})
	return balance, err
}

// Operator returns the ledger's operator
func (h *LedgerHandler) Operator(ctx context.Context, address common.Address) (common.Address, error) {
	var operator common.Address
	err := h.run(ctx, address, "operator", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		operator, err = svc.Operator(ctx)
		return err
	})
	return operator, err
}

// Roster returns every participant in roster order
func (h *LedgerHandler) Roster(ctx context.Context, address common.Address) ([]*entities.Participant, error) {
	var roster []*entities.Participant
	err := h.run(ctx, address, "roster", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		roster, err = svc.Roster(ctx)
		return err
	})
	return roster, err
}

// Draws returns the most recent draws, newest first
func (h *LedgerHandler) Draws(ctx context.Context, address common.Address, limit int) ([]*entities.Draw, error) {
	var draws []*entities.Draw
	err := h.run(ctx, address, "draws", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		draws, err = svc.Draws(ctx, limit)
		return err
	})
	return draws, err
}

// Transfers returns the most recent transfers, newest first
func (h *LedgerHandler) Transfers(ctx context.Context, address common.Address, limit int) ([]*entities.Transfer, error) {
	var transfers []*entities.Transfer
	err := h.run(ctx, address, "transfers", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		transfers, err = svc.Transfers(ctx, limit)
		return err
	})
	return transfers, err
}

// Events pages the ledger's event log
func (h *LedgerHandler) Events(ctx context.Context, address common.Address, afterID int64, limit int) ([]*entities.LedgerEvent, error) {
	var logged []*entities.LedgerEvent
	err := h.run(ctx, address, "events", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		logged, err = svc.Events(ctx, afterID, limit)
		return err
	})
	return logged, err
}

// Audit recomputes balances. The report is returned alongside ErrLedgerInconsistent.
func (h *LedgerHandler) Audit(ctx context.Context, address common.Address) (*entities.AuditReport, error) {
	var report *entities.AuditReport
	err := h.run(ctx, address, "audit", func(ctx context.Context, svc interfaces.LedgerService) error {
		var err error
		report, err = svc.Audit(ctx)
		return err
	})
	return report, err
}

// run executes fn against a ledger service bound to a fresh unit of work
func (h *LedgerHandler) run(ctx context.Context, address common.Address, operation string, fn func(context.Context, interfaces.LedgerService) error) error {
	return h.inUnitOfWork(ctx, address, operation, func(ctx context.Context, uow interfaces.UnitOfWork) error {
		svc := services.NewLedgerService(
			address,
			uow.LedgerRepository(),
			uow.ParticipantRepository(),
			uow.TransferRepository(),
			uow.DrawRepository(),
			uow.EventLogRepository(),
			services.NewRecordingSink(uow.TransferRepository(), h.recipient),
			h.seedSource,
			uow.EventBus(),
		)
		return fn(ctx, svc)
	})
}

// inUnitOfWork commits when fn succeeds and rolls back otherwise
func (h *LedgerHandler) inUnitOfWork(ctx context.Context, address common.Address, operation string, fn func(context.Context, interfaces.UnitOfWork) error) (err error) {
	start := time.Now()
	defer func() {
		h.observe(address, operation, time.Since(start), err)
	}()

	if outer, nested := ctx.Value(callKey{}).(string); nested {
		log.WithFields(log.Fields{
			"ledger":    address.Hex(),
			"operation": operation,
			"outerCall": outer,
		}).Warn("Rejected nested ledger call")
		return domain.ErrReentrantCall
	}
	ctx = context.WithValue(ctx, callKey{}, operation)

	uow := h.uowFactory.CreateForLedger(address)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			uow.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, uow); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			log.WithFields(log.Fields{
				"ledger":    address.Hex(),
				"operation": operation,
				"error":     rbErr,
			}).Error("Failed to roll back ledger call")
		}
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", operation, err)
	}
	return nil
}

// observe logs and records the outcome of one call
func (h *LedgerHandler) observe(address common.Address, operation string, duration time.Duration, err error) {
	fields := log.Fields{
		"ledger":    address.Hex(),
		"operation": operation,
		"duration":  duration,
	}

	switch {
	case err == nil:
		h.metrics.RecordLedgerOperation(operation, observability.OutcomeSuccess, duration)
		log.WithFields(fields).Debug("Ledger call committed")
	case domain.IsRejection(err):
		h.metrics.RecordLedgerOperation(operation, observability.OutcomeRejected, duration)
		fields["reason"] = err.Error()
		if errors.Is(err, domain.ErrTransferFailed) || errors.Is(err, domain.ErrReentrantCall) {
			log.WithFields(fields).Warn("Ledger call rejected")
		} else {
			log.WithFields(fields).Info("Ledger call rejected")
		}
	default:
		h.metrics.RecordLedgerOperation(operation, observability.OutcomeError, duration)
		log.WithFields(fields).WithError(err).Error("Ledger call failed")
	}
}
