package repository

import (
	"context"
	"errors"
	"fmt"

	"rafflepool/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

const participantColumns = `ledger_address, identity, roster_index, total_contributed,
		       current_contributed, created_at, updated_at`

// ParticipantRepository implements contribution data access for one ledger
type ParticipantRepository struct {
	q             Queryable
	ledgerAddress common.Address
}

// newParticipantRepository creates a participant repository scoped to a ledger
func newParticipantRepository(tx Queryable, ledgerAddress common.Address) *ParticipantRepository {
	return &ParticipantRepository{
		q:             tx,
		ledgerAddress: ledgerAddress,
	}
}

// GetByIdentity retrieves a participant by identity
func (r *ParticipantRepository) GetByIdentity(ctx context.Context, identity common.Address) (*entities.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE ledger_address = $1 AND identity = $2
	`

	participant, err := scanParticipant(r.q.QueryRow(ctx, query, addressBytes(r.ledgerAddress), addressBytes(identity)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant %s: %w", identity.Hex(), err)
	}

	return participant, nil
}

// GetByRosterIndex retrieves the participant at a roster position
func (r *ParticipantRepository) GetByRosterIndex(ctx context.Context, index int64) (*entities.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE ledger_address = $1 AND roster_index = $2
	`

	participant, err := scanParticipant(r.q.QueryRow(ctx, query, addressBytes(r.ledgerAddress), index))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant at index %d: %w", index, err)
	}

	return participant, nil
}

// Create appends a participant to the roster
func (r *ParticipantRepository) Create(ctx context.Context, participant *entities.Participant) error {
	query := `
		INSERT INTO participants (ledger_address, identity, roster_index, total_contributed, current_contributed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		addressBytes(r.ledgerAddress),
		addressBytes(participant.Identity),
		participant.RosterIndex,
		participant.TotalContributed,
		participant.CurrentContributed,
	).Scan(&participant.CreatedAt, &participant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create participant %s: %w", participant.Identity.Hex(), err)
	}

	participant.LedgerAddress = r.ledgerAddress
	return nil
}

// Update persists contribution amounts
func (r *ParticipantRepository) Update(ctx context.Context, participant *entities.Participant) error {
	query := `
		UPDATE participants
		SET total_contributed = $3,
		    current_contributed = $4,
		    updated_at = NOW()
		WHERE ledger_address = $1 AND identity = $2
	`

	result, err := r.q.Exec(ctx, query,
		addressBytes(r.ledgerAddress),
		addressBytes(participant.Identity),
		participant.TotalContributed,
		participant.CurrentContributed,
	)
	if err != nil {
		return fmt.Errorf("failed to update participant %s: %w", participant.Identity.Hex(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("participant %s not found", participant.Identity.Hex())
	}

	return nil
}

// ListRoster returns every participant in roster order
func (r *ParticipantRepository) ListRoster(ctx context.Context) ([]*entities.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE ledger_address = $1
		ORDER BY roster_index ASC
	`

	rows, err := r.q.Query(ctx, query, addressBytes(r.ledgerAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to list roster: %w", err)
	}
	defer rows.Close()

	var participants []*entities.Participant
	for rows.Next() {
		participant, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, participant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roster: %w", err)
	}

	return participants, nil
}

func scanParticipant(row pgx.Row) (*entities.Participant, error) {
	var participant entities.Participant
	var ledgerAddress, identity []byte

	err := row.Scan(
		&ledgerAddress,
		&identity,
		&participant.RosterIndex,
		&participant.TotalContributed,
		&participant.CurrentContributed,
		&participant.CreatedAt,
		&participant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	participant.LedgerAddress = common.BytesToAddress(ledgerAddress)
	participant.Identity = common.BytesToAddress(identity)

	return &participant, nil
}
