package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"rafflepool/domain/events"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	subject string
	data    []byte
}

type fakeNATS struct {
	published []publishedMessage
	handlers  map[string]func([]byte) error
	err       error
}

func newFakeNATS() *fakeNATS {
	return &fakeNATS{handlers: make(map[string]func([]byte) error)}
}

func (f *fakeNATS) Publish(ctx context.Context, subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMessage{subject: subject, data: data})
	// Loop back to subscribers like a JetStream consumer would
	if handler, ok := f.handlers[subject]; ok {
		return handler(data)
	}
	return nil
}

func (f *fakeNATS) Subscribe(subject string, handler func([]byte) error) error {
	f.handlers[subject] = handler
	return nil
}

func TestNATSEventPublisher_PublishesEnvelope(t *testing.T) {
	t.Parallel()

	client := newFakeNATS()
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper(), nil)

	event := events.WinnersPickedEvent{
		LedgerAddress: testLedger,
		Sequence:      1,
		Winners:       [3]common.Address{common.HexToAddress("0xb3"), common.HexToAddress("0xb1"), common.HexToAddress("0xb2")},
		Amounts:       [3]int64{48, 9, 6},
	}
	require.NoError(t, publisher.Publish(event))

	require.Len(t, client.published, 1)
	assert.Equal(t, "raffle.draw.winners_picked", client.published[0].subject)

	var envelope events.EventEnvelope
	require.NoError(t, json.Unmarshal(client.published[0].data, &envelope))
	assert.Equal(t, string(events.EventTypeWinnersPicked), envelope.EventType)
	assert.Equal(t, SourceService, envelope.SourceService)
	assert.NotEmpty(t, envelope.EventID)

	decoded, err := events.Decode(events.EventType(envelope.EventType), envelope.Payload)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}

func TestNATSEventPublisher_PublishErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "missing stream is tolerated", err: errors.New("nats: no response from stream"), wantErr: false},
		{name: "other errors propagate", err: errors.New("connection closed"), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newFakeNATS()
			client.err = tt.err
			publisher := NewNATSEventPublisher(client, NewEventSubjectMapper(), nil)

			err := publisher.Publish(events.DepositedEvent{LedgerAddress: testLedger, Amount: 1})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNATSEventSubscriber_RoutesDecodedEvents(t *testing.T) {
	t.Parallel()

	client := newFakeNATS()
	mapper := NewEventSubjectMapper()
	subscriber := NewNATSEventSubscriber(client, mapper, nil)
	publisher := NewNATSEventPublisher(client, mapper, nil)

	var received []events.Event
	require.NoError(t, subscriber.SubscribeAll(func(ctx context.Context, envelope *events.EventEnvelope, event events.Event) error {
		assert.Equal(t, SourceService, envelope.SourceService)
		received = append(received, event)
		return nil
	}))
	assert.Len(t, client.handlers, len(mapper.GetAllSubjects()))

	deposited := events.DepositedEvent{LedgerAddress: testLedger, Participant: common.HexToAddress("0xb1"), Amount: 10}
	upgraded := events.LedgerUpgradedEvent{LedgerAddress: testLedger, FromVersion: 1, ToVersion: 2}
	require.NoError(t, publisher.Publish(deposited))
	require.NoError(t, publisher.Publish(upgraded))

	assert.Equal(t, []events.Event{deposited, upgraded}, received)
}

func TestNATSEventSubscriber_RejectsGarbage(t *testing.T) {
	t.Parallel()

	subscriber := NewNATSEventSubscriber(newFakeNATS(), NewEventSubjectMapper(), nil)
	assert.Error(t, subscriber.handleMessage("raffle.pool.deposited", []byte("not json")))

	envelope, err := json.Marshal(events.EventEnvelope{EventType: "mystery", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Error(t, subscriber.handleMessage("raffle.pool.deposited", envelope))
}

func TestEventSubjectMapper_RoundTrip(t *testing.T) {
	t.Parallel()

	mapper := NewEventSubjectMapper()
	for _, subject := range mapper.GetAllSubjects() {
		eventType := mapper.MapSubjectToEventType(subject)
		assert.Equal(t, subject, mapper.MapEventTypeToSubject(eventType))
	}
	assert.Equal(t, "raffle.unknown.mystery", mapper.MapEventTypeToSubject("mystery"))
}
