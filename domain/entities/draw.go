package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Draw is the recorded outcome of one pickWinners call
type Draw struct {
	LedgerAddress common.Address              `db:"ledger_address"`
	Sequence      int64                       `db:"sequence"` // 1-based draw number on the ledger
	Seed          common.Hash                 `db:"seed"`
	Pot           int64                       `db:"pot"`
	RosterSize    int64                       `db:"roster_size"`
	WinnerIndices [WinnerCount]int64          `db:"winner_indices"`
	Winners       [WinnerCount]common.Address `db:"winners"`
	Amounts       [WinnerCount]int64          `db:"amounts"`
	CreatedAt     time.Time                   `db:"created_at"`
}

// TotalPaid returns the sum of all prize amounts
func (d *Draw) TotalPaid() int64 {
	var total int64
	for _, amount := range d.Amounts {
		total += amount
	}
	return total
}
