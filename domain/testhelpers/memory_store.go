package testhelpers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rafflepool/domain/entities"
	"rafflepool/domain/events"
	"rafflepool/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
)

var errNotStarted = errors.New("unit of work not started - call Begin() first")

// MemoryStore is an in-memory implementation of UnitOfWorkFactory.
// A unit of work holds the store lock from Begin until Commit or Rollback,
// so units of work are serialized the way row locks serialize them in Postgres.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState

	publishedMu sync.Mutex
	published   []events.Event
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// CreateForLedger creates a new UnitOfWork scoped to one ledger address
func (s *MemoryStore) CreateForLedger(address common.Address) interfaces.UnitOfWork {
	return &memoryUnitOfWork{store: s, address: address}
}

// Published returns every event flushed by a committed unit of work
func (s *MemoryStore) Published() []events.Event {
	s.publishedMu.Lock()
	defer s.publishedMu.Unlock()
	return append([]events.Event(nil), s.published...)
}

// Participants returns a copy of every participant of a ledger in roster order
func (s *MemoryStore) Participants(ledger common.Address) []*entities.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.roster(ledger)
}

// Ledger returns a copy of a ledger, or nil
func (s *MemoryStore) Ledger(address common.Address) *entities.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.state.ledgers[address]; ok {
		cp := *l
		return &cp
	}
	return nil
}

type memoryState struct {
	ledgers        map[common.Address]*entities.Ledger
	participants   map[common.Address]map[common.Address]*entities.Participant
	transfers      []*entities.Transfer
	draws          []*entities.Draw
	events         []*entities.LedgerEvent
	nextTransferID int64
	nextEventID    int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		ledgers:      make(map[common.Address]*entities.Ledger),
		participants: make(map[common.Address]map[common.Address]*entities.Participant),
	}
}

func (st *memoryState) clone() *memoryState {
	cp := newMemoryState()
	for addr, l := range st.ledgers {
		ledger := *l
		cp.ledgers[addr] = &ledger
	}
	for addr, byIdentity := range st.participants {
		m := make(map[common.Address]*entities.Participant, len(byIdentity))
		for id, p := range byIdentity {
			participant := *p
			m[id] = &participant
		}
		cp.participants[addr] = m
	}
	// Committed history rows are never mutated, so sharing pointers is safe
	cp.transfers = append(cp.transfers, st.transfers...)
	cp.draws = append(cp.draws, st.draws...)
	cp.events = append(cp.events, st.events...)
	cp.nextTransferID = st.nextTransferID
	cp.nextEventID = st.nextEventID
	return cp
}

func (st *memoryState) roster(ledger common.Address) []*entities.Participant {
	roster := make([]*entities.Participant, 0, len(st.participants[ledger]))
	for _, p := range st.participants[ledger] {
		participant := *p
		roster = append(roster, &participant)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].RosterIndex < roster[j].RosterIndex })
	return roster
}

// memoryUnitOfWork works on a private copy of the store state
type memoryUnitOfWork struct {
	store   *MemoryStore
	address common.Address
	work    *memoryState
	pending []events.Event
}

func (u *memoryUnitOfWork) Begin(ctx context.Context) error {
	if u.work != nil {
		return errors.New("unit of work already started")
	}
	u.store.mu.Lock()
	u.work = u.store.state.clone()
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	if u.work == nil {
		return errNotStarted
	}
	u.store.state = u.work
	u.work = nil
	pending := u.pending
	u.pending = nil
	u.store.mu.Unlock()

	u.store.publishedMu.Lock()
	u.store.published = append(u.store.published, pending...)
	u.store.publishedMu.Unlock()
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	if u.work == nil {
		return nil
	}
	u.work = nil
	u.pending = nil
	u.store.mu.Unlock()
	return nil
}

func (u *memoryUnitOfWork) mustWork() *memoryState {
	if u.work == nil {
		panic(errNotStarted.Error())
	}
	return u.work
}

func (u *memoryUnitOfWork) LedgerRepository() interfaces.LedgerRepository {
	return &memoryLedgerRepository{state: u.mustWork()}
}

func (u *memoryUnitOfWork) ParticipantRepository() interfaces.ParticipantRepository {
	return &memoryParticipantRepository{state: u.mustWork(), ledger: u.address}
}

func (u *memoryUnitOfWork) TransferRepository() interfaces.TransferRepository {
	return &memoryTransferRepository{state: u.mustWork(), ledger: u.address}
}

func (u *memoryUnitOfWork) DrawRepository() interfaces.DrawRepository {
	return &memoryDrawRepository{state: u.mustWork(), ledger: u.address}
}

func (u *memoryUnitOfWork) EventLogRepository() interfaces.EventLogRepository {
	return &memoryEventLogRepository{state: u.mustWork(), ledger: u.address}
}

func (u *memoryUnitOfWork) EventBus() interfaces.EventPublisher {
	u.mustWork()
	return memoryEventBus{uow: u}
}

type memoryEventBus struct {
	uow *memoryUnitOfWork
}

func (b memoryEventBus) Publish(event events.Event) error {
	b.uow.pending = append(b.uow.pending, event)
	return nil
}

type memoryLedgerRepository struct {
	state *memoryState
}

func (r *memoryLedgerRepository) Create(_ context.Context, ledger *entities.Ledger) error {
	if _, exists := r.state.ledgers[ledger.Address]; exists {
		return fmt.Errorf("ledger %s already exists", ledger.Address.Hex())
	}
	now := time.Now().UTC()
	ledger.CreatedAt = now
	ledger.UpdatedAt = now
	cp := *ledger
	r.state.ledgers[ledger.Address] = &cp
	return nil
}

func (r *memoryLedgerRepository) GetByAddress(_ context.Context, address common.Address) (*entities.Ledger, error) {
	l, ok := r.state.ledgers[address]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *memoryLedgerRepository) GetByAddressForUpdate(ctx context.Context, address common.Address) (*entities.Ledger, error) {
	return r.GetByAddress(ctx, address)
}

func (r *memoryLedgerRepository) CountByDeployer(_ context.Context, deployer common.Address) (uint64, error) {
	var count uint64
	for _, l := range r.state.ledgers {
		if l.Deployer == deployer {
			count++
		}
	}
	return count, nil
}

func (r *memoryLedgerRepository) Update(_ context.Context, ledger *entities.Ledger) error {
	if _, ok := r.state.ledgers[ledger.Address]; !ok {
		return fmt.Errorf("no ledger found with address %s", ledger.Address.Hex())
	}
	ledger.UpdatedAt = time.Now().UTC()
	cp := *ledger
	r.state.ledgers[ledger.Address] = &cp
	return nil
}

func (r *memoryLedgerRepository) List(_ context.Context) ([]*entities.Ledger, error) {
	ledgers := make([]*entities.Ledger, 0, len(r.state.ledgers))
	for _, l := range r.state.ledgers {
		cp := *l
		ledgers = append(ledgers, &cp)
	}
	sort.Slice(ledgers, func(i, j int) bool {
		if ledgers[i].CreatedAt.Equal(ledgers[j].CreatedAt) {
			return ledgers[i].Address.Hex() < ledgers[j].Address.Hex()
		}
		return ledgers[i].CreatedAt.Before(ledgers[j].CreatedAt)
	})
	return ledgers, nil
}

type memoryParticipantRepository struct {
	state  *memoryState
	ledger common.Address
}

func (r *memoryParticipantRepository) GetByIdentity(_ context.Context, identity common.Address) (*entities.Participant, error) {
	p, ok := r.state.participants[r.ledger][identity]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *memoryParticipantRepository) GetByRosterIndex(_ context.Context, index int64) (*entities.Participant, error) {
	for _, p := range r.state.participants[r.ledger] {
		if p.RosterIndex == index {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryParticipantRepository) Create(_ context.Context, participant *entities.Participant) error {
	byIdentity, ok := r.state.participants[r.ledger]
	if !ok {
		byIdentity = make(map[common.Address]*entities.Participant)
		r.state.participants[r.ledger] = byIdentity
	}
	if _, exists := byIdentity[participant.Identity]; exists {
		return fmt.Errorf("participant %s already exists", participant.Identity.Hex())
	}
	if participant.RosterIndex != int64(len(byIdentity)) {
		return fmt.Errorf("roster index %d is not the next index %d", participant.RosterIndex, len(byIdentity))
	}
	now := time.Now().UTC()
	participant.LedgerAddress = r.ledger
	participant.CreatedAt = now
	participant.UpdatedAt = now
	cp := *participant
	byIdentity[participant.Identity] = &cp
	return nil
}

func (r *memoryParticipantRepository) Update(_ context.Context, participant *entities.Participant) error {
	existing, ok := r.state.participants[r.ledger][participant.Identity]
	if !ok {
		return fmt.Errorf("no participant found with identity %s", participant.Identity.Hex())
	}
	existing.TotalContributed = participant.TotalContributed
	existing.CurrentContributed = participant.CurrentContributed
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryParticipantRepository) ListRoster(_ context.Context) ([]*entities.Participant, error) {
	return r.state.roster(r.ledger), nil
}

type memoryTransferRepository struct {
	state  *memoryState
	ledger common.Address
}

func (r *memoryTransferRepository) Record(_ context.Context, transfer *entities.Transfer) error {
	r.state.nextTransferID++
	transfer.ID = r.state.nextTransferID
	transfer.LedgerAddress = r.ledger
	transfer.CreatedAt = time.Now().UTC()
	cp := *transfer
	r.state.transfers = append(r.state.transfers, &cp)
	return nil
}

func (r *memoryTransferRepository) List(ctx context.Context, limit int) ([]*entities.Transfer, error) {
	return r.list(func(*entities.Transfer) bool { return true }, limit), nil
}

func (r *memoryTransferRepository) ListByCounterparty(_ context.Context, identity common.Address, limit int) ([]*entities.Transfer, error) {
	return r.list(func(t *entities.Transfer) bool { return t.Counterparty == identity }, limit), nil
}

func (r *memoryTransferRepository) list(match func(*entities.Transfer) bool, limit int) []*entities.Transfer {
	var result []*entities.Transfer
	for i := len(r.state.transfers) - 1; i >= 0 && len(result) < limit; i-- {
		t := r.state.transfers[i]
		if t.LedgerAddress == r.ledger && match(t) {
			cp := *t
			result = append(result, &cp)
		}
	}
	return result
}

type memoryDrawRepository struct {
	state  *memoryState
	ledger common.Address
}

func (r *memoryDrawRepository) Create(_ context.Context, draw *entities.Draw) error {
	draw.LedgerAddress = r.ledger
	draw.CreatedAt = time.Now().UTC()
	cp := *draw
	r.state.draws = append(r.state.draws, &cp)
	return nil
}

func (r *memoryDrawRepository) GetBySequence(_ context.Context, sequence int64) (*entities.Draw, error) {
	for _, d := range r.state.draws {
		if d.LedgerAddress == r.ledger && d.Sequence == sequence {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryDrawRepository) List(_ context.Context, limit int) ([]*entities.Draw, error) {
	var result []*entities.Draw
	for i := len(r.state.draws) - 1; i >= 0 && len(result) < limit; i-- {
		if d := r.state.draws[i]; d.LedgerAddress == r.ledger {
			cp := *d
			result = append(result, &cp)
		}
	}
	return result, nil
}

type memoryEventLogRepository struct {
	state  *memoryState
	ledger common.Address
}

func (r *memoryEventLogRepository) Append(_ context.Context, event *entities.LedgerEvent) error {
	r.state.nextEventID++
	event.ID = r.state.nextEventID
	event.LedgerAddress = r.ledger
	event.CreatedAt = time.Now().UTC()
	cp := *event
	r.state.events = append(r.state.events, &cp)
	return nil
}

func (r *memoryEventLogRepository) ListAfter(_ context.Context, afterID int64, limit int) ([]*entities.LedgerEvent, error) {
	var result []*entities.LedgerEvent
	for _, e := range r.state.events {
		if len(result) >= limit {
			break
		}
		if e.LedgerAddress == r.ledger && e.ID > afterID {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}
