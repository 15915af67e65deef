package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeLedgerDeployed    EventType = "ledger_deployed"
	EventTypeLedgerInitialized EventType = "ledger_initialized"
	EventTypeDeposited         EventType = "deposited"
	EventTypeWithdrawn         EventType = "withdrawn"
	EventTypeWinnersPicked     EventType = "winners_picked"
	EventTypeLedgerUpgraded    EventType = "ledger_upgraded"
)

// AllEventTypes lists every ledger event type
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeLedgerDeployed,
		EventTypeLedgerInitialized,
		EventTypeDeposited,
		EventTypeWithdrawn,
		EventTypeWinnersPicked,
		EventTypeLedgerUpgraded,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Ledger() common.Address
}

// LedgerDeployedEvent is emitted when a new uninitialized ledger is created
type LedgerDeployedEvent struct {
	LedgerAddress common.Address `json:"ledger_address"`
	Deployer      common.Address `json:"deployer"`
	Nonce         uint64         `json:"nonce"`
}

func (e LedgerDeployedEvent) Type() EventType        { return EventTypeLedgerDeployed }
func (e LedgerDeployedEvent) Ledger() common.Address { return e.LedgerAddress }

// LedgerInitializedEvent is emitted by the one-time setup
type LedgerInitializedEvent struct {
	LedgerAddress    common.Address `json:"ledger_address"`
	Operator         common.Address `json:"operator"`
	MinimumThreshold int64          `json:"minimum_threshold"`
}

func (e LedgerInitializedEvent) Type() EventType        { return EventTypeLedgerInitialized }
func (e LedgerInitializedEvent) Ledger() common.Address { return e.LedgerAddress }

// DepositedEvent is emitted for every accepted deposit
type DepositedEvent struct {
	LedgerAddress common.Address `json:"ledger_address"`
	Participant   common.Address `json:"participant"`
	Amount        int64          `json:"amount"`
}

func (e DepositedEvent) Type() EventType        { return EventTypeDeposited }
func (e DepositedEvent) Ledger() common.Address { return e.LedgerAddress }

// WithdrawnEvent carries the refund actually paid, not the stake
type WithdrawnEvent struct {
	LedgerAddress common.Address `json:"ledger_address"`
	Participant   common.Address `json:"participant"`
	Amount        int64          `json:"amount"`
}

func (e WithdrawnEvent) Type() EventType        { return EventTypeWithdrawn }
func (e WithdrawnEvent) Ledger() common.Address { return e.LedgerAddress }

// WinnersPickedEvent lists winners and amounts in rank order
type WinnersPickedEvent struct {
	LedgerAddress common.Address    `json:"ledger_address"`
	Sequence      int64             `json:"sequence"`
	Seed          common.Hash       `json:"seed"`
	Winners       [3]common.Address `json:"winners"`
	Amounts       [3]int64          `json:"amounts"`
}

func (e WinnersPickedEvent) Type() EventType        { return EventTypeWinnersPicked }
func (e WinnersPickedEvent) Ledger() common.Address { return e.LedgerAddress }

// LedgerUpgradedEvent is emitted when the storage layout version moves forward
type LedgerUpgradedEvent struct {
	LedgerAddress common.Address `json:"ledger_address"`
	FromVersion   int            `json:"from_version"`
	ToVersion     int            `json:"to_version"`
}

func (e LedgerUpgradedEvent) Type() EventType        { return EventTypeLedgerUpgraded }
func (e LedgerUpgradedEvent) Ledger() common.Address { return e.LedgerAddress }

// EventEnvelope wraps a serialized event for transport
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// Decode rebuilds a typed event from its type name and JSON payload
func Decode(eventType EventType, payload []byte) (Event, error) {
	var event Event
	var err error

	switch eventType {
	case EventTypeLedgerDeployed:
		var e LedgerDeployedEvent
		err = json.Unmarshal(payload, &e)
		event = e
	case EventTypeLedgerInitialized:
		var e LedgerInitializedEvent
		err = json.Unmarshal(payload, &e)
		event = e
	case EventTypeDeposited:
		var e DepositedEvent
		err = json.Unmarshal(payload, &e)
		event = e
	case EventTypeWithdrawn:
		var e WithdrawnEvent
		err = json.Unmarshal(payload, &e)
		event = e
	case EventTypeWinnersPicked:
		var e WinnersPickedEvent
		err = json.Unmarshal(payload, &e)
		event = e
	case EventTypeLedgerUpgraded:
		var e LedgerUpgradedEvent
		err = json.Unmarshal(payload, &e)
		event = e
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", eventType, err)
	}
	return event, nil
}
