package entities

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerEvent is one entry of a ledger's append-only public event log
type LedgerEvent struct {
	ID            int64           `db:"id"`
	LedgerAddress common.Address  `db:"ledger_address"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	CreatedAt     time.Time       `db:"created_at"`
}

// AuditReport is the result of recomputing a ledger's balances
type AuditReport struct {
	LedgerAddress    common.Address `json:"ledger_address"`
	PoolBalance      int64          `json:"pool_balance"`
	SumCurrent       int64          `json:"sum_current"`
	Unallocated      int64          `json:"unallocated"`
	ParticipantCount int64          `json:"participant_count"`
	Violations       []string       `json:"violations,omitempty"`
}

// Consistent returns true if no violation was found
func (r *AuditReport) Consistent() bool {
	return len(r.Violations) == 0
}
