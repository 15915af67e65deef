package entities

import (
	"math"
	"time"

	"rafflepool/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MinimumParticipants is the roster size required before a draw can run
	MinimumParticipants = 3

	// RefundRatePercent is the share of the current stake returned on withdrawal
	RefundRatePercent = 90

	// WinnerCount is the number of prize slots per draw
	WinnerCount = 3
)

// PrizeSplit holds the first, second and third place percentages of the pot
var PrizeSplit = [WinnerCount]int64{75, 15, 10}

// Ledger is one deployed raffle instance
type Ledger struct {
	Address          common.Address `db:"address"`
	Deployer         common.Address `db:"deployer"`
	DeployNonce      uint64         `db:"deploy_nonce"`
	Operator         common.Address `db:"operator"`
	MinimumThreshold int64          `db:"minimum_threshold"`
	PoolBalance      int64          `db:"pool_balance"`
	Unallocated      int64          `db:"unallocated"`       // Withdrawal penalties and dust not credited to any participant
	ParticipantCount int64          `db:"participant_count"` // Roster length
	DrawCount        int64          `db:"draw_count"`
	SchemaVersion    int            `db:"schema_version"`
	Initialized      bool           `db:"initialized"`
	UpgradedAt       *time.Time     `db:"upgraded_at"` // Appended in layout v2, NULL until the first upgrade
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// IsOperator returns true if caller is the ledger's operator
func (l *Ledger) IsOperator(caller common.Address) bool {
	return l.Initialized && l.Operator == caller
}

// SupportsPrice returns true if the ledger layout exposes the price getter
func (l *Ledger) SupportsPrice() bool {
	return l.SchemaVersion >= 2
}

// Credit adds amount to the pool balance
func (l *Ledger) Credit(amount int64) error {
	sum, err := AddAmounts(l.PoolBalance, amount)
	if err != nil {
		return err
	}
	l.PoolBalance = sum
	return nil
}

// Debit removes amount from the pool balance
func (l *Ledger) Debit(amount int64) error {
	if amount > l.PoolBalance {
		return domain.ErrLedgerInconsistent
	}
	l.PoolBalance -= amount
	return nil
}

// DeriveLedgerAddress returns the address a deployer's nonce-th ledger is created at
func DeriveLedgerAddress(deployer common.Address, nonce uint64) common.Address {
	return crypto.CreateAddress(deployer, nonce)
}

// AddAmounts adds two non-negative amounts, failing on overflow
func AddAmounts(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, domain.ErrAmountOverflow
	}
	return a + b, nil
}

// PercentOf returns floor(amount * pct / 100) without overflowing for non-negative amounts
func PercentOf(amount, pct int64) int64 {
	return (amount/100)*pct + (amount%100)*pct/100
}

// RefundFor returns the withdrawal refund for a current stake
func RefundFor(current int64) int64 {
	return PercentOf(current, RefundRatePercent)
}

// SplitPot divides pot by PrizeSplit in rank order. Truncation dust goes to first place.
func SplitPot(pot int64) [WinnerCount]int64 {
	var shares [WinnerCount]int64
	var paid int64
	for i, pct := range PrizeSplit {
		shares[i] = PercentOf(pot, pct)
		paid += shares[i]
	}
	shares[0] += pot - paid
	return shares
}
