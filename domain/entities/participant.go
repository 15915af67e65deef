package entities

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Participant is an identity that has deposited into a ledger at least once
type Participant struct {
	LedgerAddress      common.Address `db:"ledger_address"`
	Identity           common.Address `db:"identity"`
	RosterIndex        int64          `db:"roster_index"`
	TotalContributed   int64          `db:"total_contributed"`   // Never decremented
	CurrentContributed int64          `db:"current_contributed"` // Zeroed on withdrawal or win
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

// HasStake returns true if the participant has funds at stake
func (p *Participant) HasStake() bool {
	return p.CurrentContributed > 0
}

// Contribute adds amount to both the lifetime and current contribution
func (p *Participant) Contribute(amount int64) error {
	total, err := AddAmounts(p.TotalContributed, amount)
	if err != nil {
		return err
	}
	current, err := AddAmounts(p.CurrentContributed, amount)
	if err != nil {
		return err
	}
	p.TotalContributed = total
	p.CurrentContributed = current
	return nil
}

// ClearStake zeroes the current contribution and returns what it was
func (p *Participant) ClearStake() int64 {
	stake := p.CurrentContributed
	p.CurrentContributed = 0
	return stake
}
