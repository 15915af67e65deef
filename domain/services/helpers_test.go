package services

import (
	"sync"

	"rafflepool/domain/entities"
	"rafflepool/domain/events"
	"rafflepool/domain/interfaces"
	"rafflepool/domain/testhelpers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

var (
	testLedgerAddress = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testOperator      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice             = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob               = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol             = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

// serviceMocks aggregates every port mock of the ledger service
type serviceMocks struct {
	ledgerRepo      *testhelpers.MockLedgerRepository
	participantRepo *testhelpers.MockParticipantRepository
	transferRepo    *testhelpers.MockTransferRepository
	drawRepo        *testhelpers.MockDrawRepository
	eventLogRepo    *testhelpers.MockEventLogRepository
	sink            *testhelpers.MockPaymentSink
	seeds           *testhelpers.MockSeedSource
	publisher       *testhelpers.MockEventPublisher
}

func newServiceMocks() *serviceMocks {
	return &serviceMocks{
		ledgerRepo:      new(testhelpers.MockLedgerRepository),
		participantRepo: new(testhelpers.MockParticipantRepository),
		transferRepo:    new(testhelpers.MockTransferRepository),
		drawRepo:        new(testhelpers.MockDrawRepository),
		eventLogRepo:    new(testhelpers.MockEventLogRepository),
		sink:            new(testhelpers.MockPaymentSink),
		seeds:           new(testhelpers.MockSeedSource),
		publisher:       new(testhelpers.MockEventPublisher),
	}
}

func (m *serviceMocks) service() interfaces.LedgerService {
	return NewLedgerService(
		testLedgerAddress,
		m.ledgerRepo,
		m.participantRepo,
		m.transferRepo,
		m.drawRepo,
		m.eventLogRepo,
		m.sink,
		m.seeds,
		m.publisher,
	)
}

func (m *serviceMocks) expectEmit(eventType events.EventType) {
	m.eventLogRepo.On("Append", mock.Anything, mock.MatchedBy(func(e *entities.LedgerEvent) bool {
		return e.EventType == string(eventType)
	})).Return(nil).Once()
	m.publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		return e.Type() == eventType
	})).Return(nil).Once()
}

func (m *serviceMocks) assertExpectations(t mock.TestingT) {
	m.ledgerRepo.AssertExpectations(t)
	m.participantRepo.AssertExpectations(t)
	m.transferRepo.AssertExpectations(t)
	m.drawRepo.AssertExpectations(t)
	m.eventLogRepo.AssertExpectations(t)
	m.sink.AssertExpectations(t)
	m.seeds.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func initializedLedger(opts ...func(*entities.Ledger)) *entities.Ledger {
	ledger := &entities.Ledger{
		Address:          testLedgerAddress,
		Operator:         testOperator,
		MinimumThreshold: 20,
		SchemaVersion:    1,
		Initialized:      true,
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

// callOrder records the order mocked calls happen in
type callOrder struct {
	mu    sync.Mutex
	calls []string
}

func (c *callOrder) record(name string) func(mock.Arguments) {
	return func(mock.Arguments) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.calls = append(c.calls, name)
	}
}

func (c *callOrder) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}
