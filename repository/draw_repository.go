package repository

import (
	"context"
	"errors"
	"fmt"

	"rafflepool/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// DrawRepository implements draw outcome data access for one ledger
type DrawRepository struct {
	q             Queryable
	ledgerAddress common.Address
}

// newDrawRepository creates a draw repository scoped to a ledger
func newDrawRepository(tx Queryable, ledgerAddress common.Address) *DrawRepository {
	return &DrawRepository{
		q:             tx,
		ledgerAddress: ledgerAddress,
	}
}

// Create records a draw outcome
func (r *DrawRepository) Create(ctx context.Context, draw *entities.Draw) error {
	query := `
		INSERT INTO draws (ledger_address, sequence, seed, pot, roster_size, winner_indices, winners, amounts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	winners := make([][]byte, 0, entities.WinnerCount)
	for _, winner := range draw.Winners {
		winners = append(winners, addressBytes(winner))
	}

	err := r.q.QueryRow(ctx, query,
		addressBytes(r.ledgerAddress),
		draw.Sequence,
		draw.Seed.Bytes(),
		draw.Pot,
		draw.RosterSize,
		draw.WinnerIndices[:],
		winners,
		draw.Amounts[:],
	).Scan(&draw.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create draw %d: %w", draw.Sequence, err)
	}

	draw.LedgerAddress = r.ledgerAddress
	return nil
}

// GetBySequence retrieves a draw by its sequence number
func (r *DrawRepository) GetBySequence(ctx context.Context, sequence int64) (*entities.Draw, error) {
	query := `
		SELECT ledger_address, sequence, seed, pot, roster_size, winner_indices, winners, amounts, created_at
		FROM draws
		WHERE ledger_address = $1 AND sequence = $2
	`

	draw, err := scanDraw(r.q.QueryRow(ctx, query, addressBytes(r.ledgerAddress), sequence))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw %d: %w", sequence, err)
	}

	return draw, nil
}

// List returns the most recent draws, newest first
func (r *DrawRepository) List(ctx context.Context, limit int) ([]*entities.Draw, error) {
	query := `
		SELECT ledger_address, sequence, seed, pot, roster_size, winner_indices, winners, amounts, created_at
		FROM draws
		WHERE ledger_address = $1
		ORDER BY sequence DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, addressBytes(r.ledgerAddress), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list draws: %w", err)
	}
	defer rows.Close()

	var draws []*entities.Draw
	for rows.Next() {
		draw, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		draws = append(draws, draw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating draws: %w", err)
	}

	return draws, nil
}

func scanDraw(row pgx.Row) (*entities.Draw, error) {
	var draw entities.Draw
	var ledgerAddress, seed []byte
	var indices, amounts []int64
	var winners [][]byte

	err := row.Scan(
		&ledgerAddress,
		&draw.Sequence,
		&seed,
		&draw.Pot,
		&draw.RosterSize,
		&indices,
		&winners,
		&amounts,
		&draw.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(indices) != entities.WinnerCount || len(winners) != entities.WinnerCount || len(amounts) != entities.WinnerCount {
		return nil, fmt.Errorf("draw %d has %d winners, expected %d", draw.Sequence, len(winners), entities.WinnerCount)
	}

	draw.LedgerAddress = common.BytesToAddress(ledgerAddress)
	draw.Seed = common.BytesToHash(seed)
	copy(draw.WinnerIndices[:], indices)
	copy(draw.Amounts[:], amounts)
	for i, winner := range winners {
		draw.Winners[i] = common.BytesToAddress(winner)
	}

	return &draw, nil
}
