package repository

import (
	"context"
	"fmt"

	"rafflepool/domain/entities"

	"github.com/ethereum/go-ethereum/common"
)

// EventLogRepository implements the append-only event log for one ledger
type EventLogRepository struct {
	q             Queryable
	ledgerAddress common.Address
}

// newEventLogRepository creates an event log repository scoped to a ledger
func newEventLogRepository(tx Queryable, ledgerAddress common.Address) *EventLogRepository {
	return &EventLogRepository{
		q:             tx,
		ledgerAddress: ledgerAddress,
	}
}

// Append adds an event to the log
func (r *EventLogRepository) Append(ctx context.Context, event *entities.LedgerEvent) error {
	query := `
		INSERT INTO ledger_events (ledger_address, event_type, payload)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		addressBytes(r.ledgerAddress),
		event.EventType,
		[]byte(event.Payload),
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append %s event: %w", event.EventType, err)
	}

	event.LedgerAddress = r.ledgerAddress
	return nil
}

// ListAfter returns up to limit events with ID greater than afterID, oldest first
func (r *EventLogRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*entities.LedgerEvent, error) {
	query := `
		SELECT id, ledger_address, event_type, payload, created_at
		FROM ledger_events
		WHERE ledger_address = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, addressBytes(r.ledgerAddress), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events after %d: %w", afterID, err)
	}
	defer rows.Close()

	var logged []*entities.LedgerEvent
	for rows.Next() {
		var event entities.LedgerEvent
		var ledgerAddress, payload []byte

		if err := rows.Scan(&event.ID, &ledgerAddress, &event.EventType, &payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.LedgerAddress = common.BytesToAddress(ledgerAddress)
		event.Payload = payload
		logged = append(logged, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return logged, nil
}
