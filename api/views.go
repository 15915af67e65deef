package api

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"rafflepool/application"
	"rafflepool/domain"
	"rafflepool/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// CoinDecimals is the number of base units in one whole coin, as a power of ten
const CoinDecimals = 18

var (
	maxBaseUnits = decimal.New(math.MaxInt64, 0)
	minBaseUnits = decimal.New(math.MinInt64, 0)
)

// amountView renders a base-unit amount together with its whole-coin value
type amountView struct {
	Base  int64  `json:"base"`
	Coins string `json:"coins"`
}

func newAmountView(amount int64) amountView {
	return amountView{
		Base:  amount,
		Coins: decimal.New(amount, -CoinDecimals).String(),
	}
}

// amountRequest accepts either base units or a whole-coin decimal string
type amountRequest struct {
	Amount *int64 `json:"amount,omitempty"`
	Coins  string `json:"coins,omitempty"`
}

var errAmountRequired = errors.New("one of amount or coins is required")

func (req amountRequest) baseUnits() (int64, error) {
	switch {
	case req.Amount != nil && req.Coins != "":
		return 0, errors.New("amount and coins are mutually exclusive")
	case req.Amount != nil:
		return *req.Amount, nil
	case req.Coins != "":
		coins, err := decimal.NewFromString(req.Coins)
		if err != nil {
			return 0, errors.New("coins must be a decimal number")
		}
		base := coins.Shift(CoinDecimals)
		if !base.Equal(base.Truncate(0)) {
			return 0, errors.New("coins has more than 18 decimal places")
		}
		if base.GreaterThan(maxBaseUnits) || base.LessThan(minBaseUnits) {
			return 0, domain.ErrAmountOverflow
		}
		return base.IntPart(), nil
	default:
		return 0, errAmountRequired
	}
}

type ledgerView struct {
	Address          common.Address `json:"address"`
	Deployer         common.Address `json:"deployer"`
	DeployNonce      uint64         `json:"deploy_nonce"`
	Operator         common.Address `json:"operator"`
	Initialized      bool           `json:"initialized"`
	SchemaVersion    int            `json:"schema_version"`
	MinimumThreshold amountView     `json:"minimum_threshold"`
	PoolBalance      amountView     `json:"pool_balance"`
	Unallocated      amountView     `json:"unallocated"`
	ParticipantCount int64          `json:"participant_count"`
	DrawCount        int64          `json:"draw_count"`
	UpgradedAt       *time.Time     `json:"upgraded_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

func newLedgerView(l *entities.Ledger) ledgerView {
	return ledgerView{
		Address:          l.Address,
		Deployer:         l.Deployer,
		DeployNonce:      l.DeployNonce,
		Operator:         l.Operator,
		Initialized:      l.Initialized,
		SchemaVersion:    l.SchemaVersion,
		MinimumThreshold: newAmountView(l.MinimumThreshold),
		PoolBalance:      newAmountView(l.PoolBalance),
		Unallocated:      newAmountView(l.Unallocated),
		ParticipantCount: l.ParticipantCount,
		DrawCount:        l.DrawCount,
		UpgradedAt:       l.UpgradedAt,
		CreatedAt:        l.CreatedAt,
	}
}

type statusView struct {
	Ledger ledgerView  `json:"ledger"`
	Price  *amountView `json:"price,omitempty"`
}

func newStatusView(s *application.LedgerStatus) statusView {
	view := statusView{Ledger: newLedgerView(s.Ledger)}
	if s.Price != nil {
		price := newAmountView(*s.Price)
		view.Price = &price
	}
	return view
}

type participantView struct {
	Identity    common.Address `json:"identity"`
	RosterIndex int64          `json:"roster_index"`
	Current     amountView     `json:"current"`
	Total       amountView     `json:"total"`
}

func newParticipantView(p *entities.Participant) participantView {
	return participantView{
		Identity:    p.Identity,
		RosterIndex: p.RosterIndex,
		Current:     newAmountView(p.CurrentContributed),
		Total:       newAmountView(p.TotalContributed),
	}
}

type winnerView struct {
	Place       int            `json:"place"`
	RosterIndex int64          `json:"roster_index"`
	Identity    common.Address `json:"identity"`
	Prize       amountView     `json:"prize"`
}

type drawView struct {
	Sequence   int64        `json:"sequence"`
	Seed       common.Hash  `json:"seed"`
	Pot        amountView   `json:"pot"`
	RosterSize int64        `json:"roster_size"`
	Winners    []winnerView `json:"winners"`
	CreatedAt  time.Time    `json:"created_at"`
}

func newDrawView(d *entities.Draw) drawView {
	view := drawView{
		Sequence:   d.Sequence,
		Seed:       d.Seed,
		Pot:        newAmountView(d.Pot),
		RosterSize: d.RosterSize,
		Winners:    make([]winnerView, 0, entities.WinnerCount),
		CreatedAt:  d.CreatedAt,
	}
	for i := range d.Winners {
		view.Winners = append(view.Winners, winnerView{
			Place:       i + 1,
			RosterIndex: d.WinnerIndices[i],
			Identity:    d.Winners[i],
			Prize:       newAmountView(d.Amounts[i]),
		})
	}
	return view
}

type transferView struct {
	ID           int64          `json:"id"`
	Counterparty common.Address `json:"counterparty"`
	Amount       amountView     `json:"amount"`
	Direction    string         `json:"direction"`
	Reason       string         `json:"reason"`
	DrawSequence *int64         `json:"draw_sequence,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func newTransferView(t *entities.Transfer) transferView {
	return transferView{
		ID:           t.ID,
		Counterparty: t.Counterparty,
		Amount:       newAmountView(t.Amount),
		Direction:    string(t.Direction),
		Reason:       string(t.Reason),
		DrawSequence: t.DrawSequence,
		CreatedAt:    t.CreatedAt,
	}
}

type eventView struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func newEventView(e *entities.LedgerEvent) eventView {
	return eventView{
		ID:        e.ID,
		EventType: e.EventType,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}

type auditView struct {
	LedgerAddress    common.Address `json:"ledger_address"`
	Consistent       bool           `json:"consistent"`
	PoolBalance      amountView     `json:"pool_balance"`
	SumCurrent       amountView     `json:"sum_current"`
	Unallocated      amountView     `json:"unallocated"`
	ParticipantCount int64          `json:"participant_count"`
	Violations       []string       `json:"violations,omitempty"`
}

func newAuditView(r *entities.AuditReport) auditView {
	return auditView{
		LedgerAddress:    r.LedgerAddress,
		Consistent:       r.Consistent(),
		PoolBalance:      newAmountView(r.PoolBalance),
		SumCurrent:       newAmountView(r.SumCurrent),
		Unallocated:      newAmountView(r.Unallocated),
		ParticipantCount: r.ParticipantCount,
		Violations:       r.Violations,
	}
}
