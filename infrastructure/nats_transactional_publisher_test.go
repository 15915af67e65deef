package infrastructure

import (
	"context"
	"errors"
	"testing"

	"rafflepool/domain/events"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher records published events
type MockEventPublisher struct {
	PublishedEvents []events.Event
	PublishError    error
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, event)
	return nil
}

var testLedger = common.HexToAddress("0xcd234a471b72ba2f1ccf0a70fcaba648a5eecd8d")

func TestNATSTransactionalPublisher_FlushPublishesInOrder(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{}
	publisher := NewNATSTransactionalPublisher(mockPublisher)

	first := events.DepositedEvent{LedgerAddress: testLedger, Participant: common.HexToAddress("0xb1"), Amount: 10}
	second := events.WithdrawnEvent{LedgerAddress: testLedger, Participant: common.HexToAddress("0xb1"), Amount: 9}

	require.NoError(t, publisher.Publish(first))
	require.NoError(t, publisher.Publish(second))

	// Nothing leaves before flush
	assert.Empty(t, mockPublisher.PublishedEvents)
	assert.Equal(t, 2, publisher.PendingCount())

	require.NoError(t, publisher.Flush(context.Background()))
	assert.Equal(t, []events.Event{first, second}, mockPublisher.PublishedEvents)
	assert.Equal(t, 0, publisher.PendingCount())

	// A second flush publishes nothing new
	require.NoError(t, publisher.Flush(context.Background()))
	assert.Len(t, mockPublisher.PublishedEvents, 2)
}

func TestNATSTransactionalPublisher_Discard(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{}
	publisher := NewNATSTransactionalPublisher(mockPublisher)

	require.NoError(t, publisher.Publish(events.DepositedEvent{LedgerAddress: testLedger, Amount: 10}))
	publisher.Discard()

	require.NoError(t, publisher.Flush(context.Background()))
	assert.Empty(t, mockPublisher.PublishedEvents)
}

func TestNATSTransactionalPublisher_FlushIgnoresPublishErrors(t *testing.T) {
	t.Parallel()

	mockPublisher := &MockEventPublisher{PublishError: errors.New("nats down")}
	publisher := NewNATSTransactionalPublisher(mockPublisher)

	require.NoError(t, publisher.Publish(events.DepositedEvent{LedgerAddress: testLedger, Amount: 10}))
	assert.NoError(t, publisher.Flush(context.Background()))
	assert.Equal(t, 0, publisher.PendingCount())
}
