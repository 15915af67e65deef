package repository

import (
	"context"
	"errors"
	"fmt"

	"rafflepool/database"
	"rafflepool/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `address, deployer, deploy_nonce, operator, minimum_threshold, pool_balance,
		       unallocated, participant_count, draw_count, schema_version, initialized,
		       upgraded_at, created_at, updated_at`

// LedgerRepository implements ledger data access
type LedgerRepository struct {
	q Queryable
}

// NewLedgerRepository creates a ledger repository outside any transaction
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a ledger repository bound to a transaction
func newLedgerRepositoryWithTx(tx Queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// Create inserts a new ledger
func (r *LedgerRepository) Create(ctx context.Context, ledger *entities.Ledger) error {
	query := `
		INSERT INTO ledgers (address, deployer, deploy_nonce, operator, minimum_threshold,
		                     pool_balance, unallocated, participant_count, draw_count,
		                     schema_version, initialized)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		addressBytes(ledger.Address),
		addressBytes(ledger.Deployer),
		int64(ledger.DeployNonce),
		addressBytes(ledger.Operator),
		ledger.MinimumThreshold,
		ledger.PoolBalance,
		ledger.Unallocated,
		ledger.ParticipantCount,
		ledger.DrawCount,
		ledger.SchemaVersion,
		ledger.Initialized,
	).Scan(&ledger.CreatedAt, &ledger.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ledger %s: %w", ledger.Address.Hex(), err)
	}

	return nil
}

// GetByAddress retrieves a ledger by address
func (r *LedgerRepository) GetByAddress(ctx context.Context, address common.Address) (*entities.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE address = $1`

	ledger, err := scanLedger(r.q.QueryRow(ctx, query, addressBytes(address)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger %s: %w", address.Hex(), err)
	}

	return ledger, nil
}

// GetByAddressForUpdate retrieves a ledger with a row lock held until the transaction ends
func (r *LedgerRepository) GetByAddressForUpdate(ctx context.Context, address common.Address) (*entities.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE address = $1 FOR UPDATE`

	ledger, err := scanLedger(r.q.QueryRow(ctx, query, addressBytes(address)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger %s for update: %w", address.Hex(), err)
	}

	return ledger, nil
}

// CountByDeployer returns the number of ledgers a deployer has created
func (r *LedgerRepository) CountByDeployer(ctx context.Context, deployer common.Address) (uint64, error) {
	query := `SELECT COUNT(*) FROM ledgers WHERE deployer = $1`

	var count int64
	if err := r.q.QueryRow(ctx, query, addressBytes(deployer)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ledgers for deployer %s: %w", deployer.Hex(), err)
	}

	return uint64(count), nil
}

// Update persists the mutable ledger fields
func (r *LedgerRepository) Update(ctx context.Context, ledger *entities.Ledger) error {
	query := `
		UPDATE ledgers
		SET operator = $2,
		    minimum_threshold = $3,
		    pool_balance = $4,
		    unallocated = $5,
		    participant_count = $6,
		    draw_count = $7,
		    schema_version = $8,
		    initialized = $9,
		    upgraded_at = $10,
		    updated_at = NOW()
		WHERE address = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		addressBytes(ledger.Address),
		addressBytes(ledger.Operator),
		ledger.MinimumThreshold,
		ledger.PoolBalance,
		ledger.Unallocated,
		ledger.ParticipantCount,
		ledger.DrawCount,
		ledger.SchemaVersion,
		ledger.Initialized,
		ledger.UpgradedAt,
	).Scan(&ledger.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("ledger %s not found", ledger.Address.Hex())
	}
	if err != nil {
		return fmt.Errorf("failed to update ledger %s: %w", ledger.Address.Hex(), err)
	}

	return nil
}

// List returns every ledger, oldest first
func (r *LedgerRepository) List(ctx context.Context) ([]*entities.Ledger, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledgers ORDER BY created_at ASC, deploy_nonce ASC`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []*entities.Ledger
	for rows.Next() {
		ledger, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger: %w", err)
		}
		ledgers = append(ledgers, ledger)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledgers: %w", err)
	}

	return ledgers, nil
}

func scanLedger(row pgx.Row) (*entities.Ledger, error) {
	var ledger entities.Ledger
	var address, deployer, operator []byte
	var nonce int64

	err := row.Scan(
		&address,
		&deployer,
		&nonce,
		&operator,
		&ledger.MinimumThreshold,
		&ledger.PoolBalance,
		&ledger.Unallocated,
		&ledger.ParticipantCount,
		&ledger.DrawCount,
		&ledger.SchemaVersion,
		&ledger.Initialized,
		&ledger.UpgradedAt,
		&ledger.CreatedAt,
		&ledger.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ledger.Address = common.BytesToAddress(address)
	ledger.Deployer = common.BytesToAddress(deployer)
	ledger.Operator = common.BytesToAddress(operator)
	ledger.DeployNonce = uint64(nonce)

	return &ledger, nil
}
