package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"rafflepool/domain/events"
	"rafflepool/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// EventHandler handles one decoded ledger event
type EventHandler func(ctx context.Context, envelope *events.EventEnvelope, event events.Event) error

// messageSubscriber is the NATS subscribe surface the event subscriber needs
type messageSubscriber interface {
	Subscribe(subject string, handler func([]byte) error) error
}

// NATSEventSubscriber subscribes to NATS subjects and decodes ledger events
type NATSEventSubscriber struct {
	natsClient    messageSubscriber
	subjectMapper *EventSubjectMapper
	metrics       *observability.MetricsProvider
	handlers      map[string]EventHandler
}

// NewNATSEventSubscriber creates a new NATS event subscriber
func NewNATSEventSubscriber(natsClient messageSubscriber, subjectMapper *EventSubjectMapper, metrics *observability.MetricsProvider) *NATSEventSubscriber {
	return &NATSEventSubscriber{
		natsClient:    natsClient,
		subjectMapper: subjectMapper,
		metrics:       metrics,
		handlers:      make(map[string]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (s *NATSEventSubscriber) Subscribe(eventType events.EventType, handler EventHandler) error {
	subject := s.subjectMapper.MapEventTypeToSubject(eventType)
	s.handlers[subject] = handler

	log.WithFields(log.Fields{
		"eventType": eventType,
		"subject":   subject,
	}).Info("Registering event handler for subject")

	return s.natsClient.Subscribe(subject, func(data []byte) error {
		return s.handleMessage(subject, data)
	})
}

// SubscribeAll registers one handler for every ledger event type
func (s *NATSEventSubscriber) SubscribeAll(handler EventHandler) error {
	for _, subject := range s.subjectMapper.GetAllSubjects() {
		if err := s.Subscribe(s.subjectMapper.MapSubjectToEventType(subject), handler); err != nil {
			return err
		}
	}
	return nil
}

// handleMessage decodes a NATS message and routes it to the subject's handler
func (s *NATSEventSubscriber) handleMessage(subject string, data []byte) error {
	var envelope events.EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		log.WithFields(log.Fields{
			"subject": subject,
			"error":   err,
		}).Error("Failed to unmarshal event envelope")
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	eventType := events.EventType(envelope.EventType)
	s.metrics.RecordNATSMessageReceived(envelope.EventType)

	event, err := events.Decode(eventType, envelope.Payload)
	if err != nil {
		log.WithFields(log.Fields{
			"subject":     subject,
			"eventType":   eventType,
			"eventId":     envelope.EventID,
			"error":       err,
			"payloadSize": len(envelope.Payload),
		}).Error("Failed to deserialize event payload")
		return fmt.Errorf("failed to deserialize event payload: %w", err)
	}

	handler, exists := s.handlers[subject]
	if !exists {
		log.WithFields(log.Fields{
			"subject":   subject,
			"eventType": eventType,
		}).Warn("No handler registered for subject")
		return fmt.Errorf("no handler registered for subject %s", subject)
	}

	if err := handler(context.Background(), &envelope, event); err != nil {
		log.WithFields(log.Fields{
			"subject":   subject,
			"eventType": eventType,
			"eventId":   envelope.EventID,
			"error":     err,
		}).Error("Event handler failed")
		return err
	}

	log.WithFields(log.Fields{
		"subject":   subject,
		"eventType": eventType,
		"eventId":   envelope.EventID,
	}).Debug("Successfully processed NATS event")

	return nil
}
