package repository

import (
	"context"
	"fmt"

	"rafflepool/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// TransferRepository implements transfer history data access for one ledger
type TransferRepository struct {
	q             Queryable
	ledgerAddress common.Address
}

// newTransferRepository creates a transfer repository scoped to a ledger
func newTransferRepository(tx Queryable, ledgerAddress common.Address) *TransferRepository {
	return &TransferRepository{
		q:             tx,
		ledgerAddress: ledgerAddress,
	}
}

// Record appends a transfer
func (r *TransferRepository) Record(ctx context.Context, transfer *entities.Transfer) error {
	query := `
		INSERT INTO transfers (ledger_address, counterparty, amount, direction, reason, draw_sequence)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		addressBytes(r.ledgerAddress),
		addressBytes(transfer.Counterparty),
		transfer.Amount,
		string(transfer.Direction),
		string(transfer.Reason),
		transfer.DrawSequence,
	).Scan(&transfer.ID, &transfer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record %s transfer to %s: %w", transfer.Reason, transfer.Counterparty.Hex(), err)
	}

	transfer.LedgerAddress = r.ledgerAddress
	return nil
}

// List returns the most recent transfers, newest first
func (r *TransferRepository) List(ctx context.Context, limit int) ([]*entities.Transfer, error) {
	query := `
		SELECT id, ledger_address, counterparty, amount, direction, reason, draw_sequence, created_at
		FROM transfers
		WHERE ledger_address = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, addressBytes(r.ledgerAddress), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}

	return collectTransfers(rows)
}

// ListByCounterparty returns the most recent transfers with one identity, newest first
func (r *TransferRepository) ListByCounterparty(ctx context.Context, identity common.Address, limit int) ([]*entities.Transfer, error) {
	query := `
		SELECT id, ledger_address, counterparty, amount, direction, reason, draw_sequence, created_at
		FROM transfers
		WHERE ledger_address = $1 AND counterparty = $2
		ORDER BY id DESC
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, addressBytes(r.ledgerAddress), addressBytes(identity), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers for %s: %w", identity.Hex(), err)
	}

	return collectTransfers(rows)
}

func collectTransfers(rows pgx.Rows) ([]*entities.Transfer, error) {
	defer rows.Close()

	var transfers []*entities.Transfer
	for rows.Next() {
		var transfer entities.Transfer
		var ledgerAddress, counterparty []byte
		var direction, reason string

		err := rows.Scan(
			&transfer.ID,
			&ledgerAddress,
			&counterparty,
			&transfer.Amount,
			&direction,
			&reason,
			&transfer.DrawSequence,
			&transfer.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}

		transfer.LedgerAddress = common.BytesToAddress(ledgerAddress)
		transfer.Counterparty = common.BytesToAddress(counterparty)
		transfer.Direction = entities.TransferDirection(direction)
		transfer.Reason = entities.TransferReason(reason)
		transfers = append(transfers, &transfer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}

	return transfers, nil
}
