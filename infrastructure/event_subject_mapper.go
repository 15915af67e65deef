package infrastructure

import (
	"fmt"

	"rafflepool/domain/events"
)

// LedgerEventStream is the JetStream stream holding every ledger event subject
const LedgerEventStream = "ledger_events"

var eventSubjects = map[events.EventType]string{
	events.EventTypeLedgerDeployed:    "raffle.ledger.deployed",
	events.EventTypeLedgerInitialized: "raffle.ledger.initialized",
	events.EventTypeDeposited:         "raffle.pool.deposited",
	events.EventTypeWithdrawn:         "raffle.pool.withdrawn",
	events.EventTypeWinnersPicked:     "raffle.draw.winners_picked",
	events.EventTypeLedgerUpgraded:    "raffle.ledger.upgraded",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	return m.MapEventTypeToSubject(event.Type())
}

// MapEventTypeToSubject converts an event type to its NATS subject
func (m *EventSubjectMapper) MapEventTypeToSubject(eventType events.EventType) string {
	if subject, ok := eventSubjects[eventType]; ok {
		return subject
	}
	return fmt.Sprintf("raffle.unknown.%s", eventType)
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range eventSubjects {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"raffle.ledger.deployed",
		"raffle.ledger.initialized",
		"raffle.pool.deposited",
		"raffle.pool.withdrawn",
		"raffle.draw.winners_picked",
		"raffle.ledger.upgraded",
	}
}
