package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"rafflepool/domain"
	"rafflepool/domain/entities"
	"rafflepool/domain/events"
	"rafflepool/domain/testhelpers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_Initialize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ledger    *entities.Ledger
		threshold int64
		setup     func(*serviceMocks)
		wantErr   error
	}{
		{
			name:      "sets operator and threshold",
			ledger:    &entities.Ledger{Address: testLedgerAddress, SchemaVersion: 1},
			threshold: 20,
			setup: func(m *serviceMocks) {
				m.ledgerRepo.On("Update", mock.Anything, mock.MatchedBy(func(l *entities.Ledger) bool {
					return l.Initialized && l.Operator == testOperator && l.MinimumThreshold == 20
				})).Return(nil)
				m.expectEmit(events.EventTypeLedgerInitialized)
			},
		},
		{
			name:      "second initialization is rejected",
			ledger:    initializedLedger(),
			threshold: 20,
			wantErr:   domain.ErrAlreadyInitialized,
		},
		{
			name:      "zero threshold is rejected",
			ledger:    &entities.Ledger{Address: testLedgerAddress, SchemaVersion: 1},
			threshold: 0,
			wantErr:   domain.ErrInvalidThreshold,
		},
		{
			name:      "unknown ledger",
			ledger:    nil,
			threshold: 20,
			wantErr:   domain.ErrLedgerNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newServiceMocks()
			if tt.ledger == nil {
				m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).Return(nil, nil)
			} else {
				m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).Return(tt.ledger, nil)
			}
			if tt.setup != nil {
				tt.setup(m)
			}

			ledger, err := m.service().Initialize(context.Background(), testOperator, tt.threshold)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, ledger)
				m.ledgerRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, testOperator, ledger.Operator)
			}
			m.assertExpectations(t)
		})
	}
}

func TestLedgerService_Deposit_BelowThresholdHasNoEffect(t *testing.T) {
	t.Parallel()

	m := newServiceMocks()
	ledger := initializedLedger(func(l *entities.Ledger) { l.PoolBalance = 50 })
	m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).Return(ledger, nil)

	_, err := m.service().Deposit(context.Background(), alice, 19)

	assert.ErrorIs(t, err, domain.ErrInsufficientContribution)
	assert.Equal(t, "minimum contribution not sent", err.Error())
	assert.Equal(t, int64(50), ledger.PoolBalance)
	m.participantRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.ledgerRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	m.transferRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestLedgerService_Deposit_FirstDepositAppendsToRoster(t *testing.T) {
	t.Parallel()

	m := newServiceMocks()
	ledger := initializedLedger(func(l *entities.Ledger) {
		l.PoolBalance = 42
		l.ParticipantCount = 2
	})
	m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).Return(ledger, nil)
	m.participantRepo.On("GetByIdentity", mock.Anything, alice).Return(nil, nil)
	m.participantRepo.On("Create", mock.Anything, mock.MatchedBy(func(p *entities.Participant) bool {
		return p.Identity == alice && p.RosterIndex == 2 && p.TotalContributed == 21 && p.CurrentContributed == 21
	})).Return(nil)
	m.ledgerRepo.On("Update", mock.Anything, mock.MatchedBy(func(l *entities.Ledger) bool {
		return l.PoolBalance == 63 && l.ParticipantCount == 3
	})).Return(nil)
	m.transferRepo.On("Record", mock.Anything, mock.MatchedBy(func(tr *entities.Transfer) bool {
		return tr.Direction == entities.TransferDirectionIn && tr.Amount == 21 && tr.Counterparty == alice
	})).Return(nil)
	m.expectEmit(events.EventTypeDeposited)

	participant, err := m.service().Deposit(context.Background(), alice, 21)

	require.NoError(t, err)
	assert.Equal(t, int64(2), participant.RosterIndex)
	m.assertExpectations(t)
}

func TestLedgerService_Deposit_RepeatDepositAccumulates(t *testing.T) {
	t.Parallel()

	m := newServiceMocks()
	ledger := initializedLedger(func(l *entities.Ledger) {
		l.PoolBalance = 9
		l.Unallocated = 9
		l.ParticipantCount = 1
	})
	existing := &entities.Participant{Identity: alice, TotalContributed: 90, CurrentContributed: 0}
	m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).Return(ledger, nil)
	m.participantRepo.On("GetByIdentity", mock.Anything, alice).Return(existing, nil)
	m.participantRepo.On("Update", mock.Anything, mock.MatchedBy(func(p *entities.Participant) bool {
		return p.TotalContributed == 120 && p.CurrentContributed == 30
	})).Return(nil)
	m.ledgerRepo.On("Update", mock.Anything, mock.MatchedBy(func(l *entities.Ledger) bool {
		return l.PoolBalance == 39 && l.ParticipantCount == 1
	})).Return(nil)
	m.transferRepo.On("Record", mock.Anything, mock.Anything).Return(nil)
	m.expectEmit(events.EventTypeDeposited)

	_, err := m.service().Deposit(context.Background(), alice, 30)

	require.NoError(t, err)
	m.participantRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestLedgerService_Deposit_Overflow(t *testing.T) {
	t.Parallel()

	m := newServiceMocks()
	ledger := initializedLedger(func(l *entities.Ledger) { l.PoolBalance = math.MaxInt64 - 10 })
	m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).Return(ledger, nil)
	m.participantRepo.On("GetByIdentity", mock.Anything, alice).Return(nil, nil)

	_, err := m.service().Deposit(context.Background(), alice, 20)

	assert.ErrorIs(t, err, domain.ErrAmountOverflow)
	m.ledgerRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestLedgerService_Deposit_NotInitialized(t *testing.T) {
	t.Parallel()

	m := newServiceMocks()
	m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).
		Return(&entities.Ledger{Address: testLedgerAddress}, nil)

	_, err := m.service().Deposit(context.Background(), alice, 100)

	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	m.assertExpectations(t)
}

func TestLedgerService_Withdraw_EffectsBeforeTransfer(t *testing.T) {
	t.Parallel()

	m := newServiceMocks()
	order := &callOrder{}
	ledger := initializedLedger(func(l *entities.Ledger) {
		l.PoolBalance = 200
		l.ParticipantCount = 1
	})
	participant := &entities.Participant{Identity: alice, TotalContributed: 200, CurrentContributed: 200}

	m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).Return(ledger, nil)
	m.participantRepo.On("GetByIdentity", mock.Anything, alice).Return(participant, nil)
	m.participantRepo.On("Update", mock.Anything, mock.MatchedBy(func(p *entities.Participant) bool {
		return p.CurrentContributed == 0 && p.TotalContributed == 200
	})).Run(order.record("participant")).Return(nil)
	m.ledgerRepo.On("Update", mock.Anything, mock.MatchedBy(func(l *entities.Ledger) bool {
		return l.PoolBalance == 20 && l.Unallocated == 20
	})).Run(order.record("ledger")).Return(nil)
	m.sink.On("Pay", mock.Anything, mock.MatchedBy(func(tr *entities.Transfer) bool {
		return tr.Counterparty == alice && tr.Amount == 180 && tr.Reason == entities.TransferReasonRefund
	})).Run(order.record("pay")).Return(nil)
	m.expectEmit(events.EventTypeWithdrawn)

	refund, err := m.service().Withdraw(context.Background(), alice)

	require.NoError(t, err)
	assert.Equal(t, int64(180), refund)
	assert.Equal(t, []string{"participant", "ledger", "pay"}, order.get())
	m.assertExpectations(t)
}

func TestLedgerService_Withdraw_NothingToWithdraw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		participant *entities.Participant
	}{
		{name: "never deposited", participant: nil},
		{name: "already withdrawn", participant: &entities.Participant{Identity: alice, TotalContributed: 50}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newServiceMocks()
			m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).Return(initializedLedger(), nil)
			if tt.participant == nil {
				m.participantRepo.On("GetByIdentity", mock.Anything, alice).Return(nil, nil)
			} else {
				m.participantRepo.On("GetByIdentity", mock.Anything, alice).Return(tt.participant, nil)
			}

			refund, err := m.service().Withdraw(context.Background(), alice)

			assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)
			assert.Zero(t, refund)
			m.sink.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything)
			m.assertExpectations(t)
		})
	}
}

func TestLedgerService_Withdraw_TransferFailure(t *testing.T) {
	t.Parallel()

	m := newServiceMocks()
	ledger := initializedLedger(func(l *entities.Ledger) { l.PoolBalance = 100 })
	m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).Return(ledger, nil)
	m.participantRepo.On("GetByIdentity", mock.Anything, alice).
		Return(&entities.Participant{Identity: alice, TotalContributed: 100, CurrentContributed: 100}, nil)
	m.participantRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	m.ledgerRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	m.sink.On("Pay", mock.Anything, mock.Anything).Return(errors.New("recipient rejected"))

	_, err := m.service().Withdraw(context.Background(), alice)

	assert.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Contains(t, err.Error(), "recipient rejected")
	m.eventLogRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestLedgerService_ParticipantAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		index   int64
		want    common.Address
		wantErr error
	}{
		{name: "first entry", index: 0, want: alice},
		{name: "index equal to count", index: 2, wantErr: domain.ErrIndexOutOfRange},
		{name: "negative index", index: -1, wantErr: domain.ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newServiceMocks()
			m.ledgerRepo.On("GetByAddress", mock.Anything, testLedgerAddress).
				Return(initializedLedger(func(l *entities.Ledger) { l.ParticipantCount = 2 }), nil)
			if tt.wantErr == nil {
				m.participantRepo.On("GetByRosterIndex", mock.Anything, tt.index).
					Return(&entities.Participant{Identity: tt.want, RosterIndex: tt.index}, nil)
			}

			got, err := m.service().ParticipantAt(context.Background(), tt.index)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			m.assertExpectations(t)
		})
	}
}

func TestLedgerService_ContributionsOfUnknownIdentityAreZero(t *testing.T) {
	t.Parallel()

	m := newServiceMocks()
	m.ledgerRepo.On("GetByAddress", mock.Anything, testLedgerAddress).Return(initializedLedger(), nil)
	m.participantRepo.On("GetByIdentity", mock.Anything, bob).Return(nil, nil)

	svc := m.service()
	current, err := svc.CurrentContribution(context.Background(), bob)
	require.NoError(t, err)
	assert.Zero(t, current)

	total, err := svc.TotalContribution(context.Background(), bob)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestLedgerService_Audit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ledger     *entities.Ledger
		roster     []*entities.Participant
		consistent bool
	}{
		{
			name: "balanced with penalty pending",
			ledger: initializedLedger(func(l *entities.Ledger) {
				l.PoolBalance = 41
				l.Unallocated = 20
				l.ParticipantCount = 2
			}),
			roster: []*entities.Participant{
				{Identity: alice, RosterIndex: 0, TotalContributed: 200, CurrentContributed: 0},
				{Identity: bob, RosterIndex: 1, TotalContributed: 21, CurrentContributed: 21},
			},
			consistent: true,
		},
		{
			name: "pool exceeds tracked funds",
			ledger: initializedLedger(func(l *entities.Ledger) {
				l.PoolBalance = 50
				l.ParticipantCount = 1
			}),
			roster: []*entities.Participant{
				{Identity: alice, RosterIndex: 0, TotalContributed: 21, CurrentContributed: 21},
			},
			consistent: false,
		},
		{
			name: "current above total",
			ledger: initializedLedger(func(l *entities.Ledger) {
				l.PoolBalance = 30
				l.ParticipantCount = 1
			}),
			roster: []*entities.Participant{
				{Identity: alice, RosterIndex: 0, TotalContributed: 21, CurrentContributed: 30},
			},
			consistent: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newServiceMocks()
			m.ledgerRepo.On("GetByAddress", mock.Anything, testLedgerAddress).Return(tt.ledger, nil)
			m.participantRepo.On("ListRoster", mock.Anything).Return(tt.roster, nil)

			report, err := m.service().Audit(context.Background())

			require.NotNil(t, report)
			assert.Equal(t, tt.consistent, report.Consistent())
			if tt.consistent {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, domain.ErrLedgerInconsistent)
			}
		})
	}
}

func TestLedgerService_Price(t *testing.T) {
	t.Parallel()

	m := newServiceMocks()
	m.ledgerRepo.On("GetByAddress", mock.Anything, testLedgerAddress).Return(initializedLedger(), nil).Once()
	_, err := m.service().Price(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)

	m.ledgerRepo.On("GetByAddress", mock.Anything, testLedgerAddress).
		Return(initializedLedger(func(l *entities.Ledger) { l.SchemaVersion = 2 }), nil).Once()
	price, err := m.service().Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(20), price)
}

func TestLedgerService_Upgrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		caller  common.Address
		current int
		target  int
		wantErr error
	}{
		{name: "operator upgrades v1 to v2", caller: testOperator, current: 1, target: 2},
		{name: "non-operator", caller: alice, current: 1, target: 2, wantErr: domain.ErrUnauthorized},
		{name: "same version", caller: testOperator, current: 2, target: 2, wantErr: domain.ErrInvalidUpgrade},
		{name: "unknown version", caller: testOperator, current: 1, target: 9, wantErr: domain.ErrInvalidUpgrade},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newServiceMocks()
			m.ledgerRepo.On("GetByAddressForUpdate", mock.Anything, testLedgerAddress).
				Return(initializedLedger(func(l *entities.Ledger) { l.SchemaVersion = tt.current }), nil)
			if tt.wantErr == nil {
				m.ledgerRepo.On("Update", mock.Anything, mock.MatchedBy(func(l *entities.Ledger) bool {
					return l.SchemaVersion == tt.target && l.UpgradedAt != nil
				})).Return(nil)
				m.expectEmit(events.EventTypeLedgerUpgraded)
			}

			ledger, err := m.service().Upgrade(context.Background(), tt.caller, tt.target)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.target, ledger.SchemaVersion)
				assert.True(t, ledger.SupportsPrice())
			}
			m.assertExpectations(t)
		})
	}
}

func TestDeploymentService_Deploy(t *testing.T) {
	t.Parallel()

	ledgerRepo := new(testhelpers.MockLedgerRepository)
	publisher := new(testhelpers.MockEventPublisher)

	ledgerRepo.On("CountByDeployer", mock.Anything, testOperator).Return(uint64(1), nil)
	ledgerRepo.On("Create", mock.Anything, mock.MatchedBy(func(l *entities.Ledger) bool {
		return !l.Initialized && l.DeployNonce == 1 && l.SchemaVersion == entities.InitialSchemaVersion
	})).Return(nil)
	publisher.On("Publish", mock.AnythingOfType("events.LedgerDeployedEvent")).Return(nil)

	ledger, err := NewDeploymentService(ledgerRepo, publisher).Deploy(context.Background(), testOperator)

	require.NoError(t, err)
	assert.Equal(t, entities.DeriveLedgerAddress(testOperator, 1), ledger.Address)
	ledgerRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}
