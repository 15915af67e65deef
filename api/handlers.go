package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func (h *Handler) listLedgers(w http.ResponseWriter, r *http.Request) {
	ledgers, err := h.ledgers.ListLedgers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	views := make([]ledgerView, 0, len(ledgers))
	for _, l := range ledgers {
		views = append(views, newLedgerView(l))
	}
	writeSuccess(w, http.StatusOK, views)
}

func (h *Handler) deployLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.ledgers.Deploy(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/ledgers/"+ledger.Address.Hex())
	writeSuccess(w, http.StatusCreated, newLedgerView(ledger))
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	status, err := h.ledgers.Status(r.Context(), address)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newStatusView(status))
}

func (h *Handler) getPrice(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	price, err := h.ledgers.Price(r.Context(), address)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newAmountView(price))
}

func (h *Handler) getPoolBalance(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	balance, err := h.ledgers.PoolBalance(r.Context(), address)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newAmountView(balance))
}

func (h *Handler) getOperator(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	operator, err := h.ledgers.Operator(r.Context(), address)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]common.Address{"operator": operator})
}

func (h *Handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	roster, err := h.ledgers.Roster(r.Context(), address)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	views := make([]participantView, 0, len(roster))
	for _, p := range roster {
		views = append(views, newParticipantView(p))
	}
	writeSuccess(w, http.StatusOK, views)
}

func (h *Handler) getParticipantCount(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	count, err := h.ledgers.ParticipantCount(r.Context(), address)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *Handler) getParticipantAt(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	index, err := strconv.ParseInt(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "index must be an integer")
		return
	}
	identity, err := h.ledgers.ParticipantAt(r.Context(), address, index)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"index": index, "identity": identity})
}

func (h *Handler) getContributions(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	identity, ok := addressParam(w, r, "identity")
	if !ok {
		return
	}
	current, total, err := h.ledgers.Contributions(r.Context(), address, identity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"identity": identity,
		"current":  newAmountView(current),
		"total":    newAmountView(total),
	})
}

func (h *Handler) listDraws(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	limit, ok := pageSize(w, r)
	if !ok {
		return
	}
	draws, err := h.ledgers.Draws(r.Context(), address, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	views := make([]drawView, 0, len(draws))
	for _, d := range draws {
		views = append(views, newDrawView(d))
	}
	writeSuccess(w, http.StatusOK, views)
}

func (h *Handler) listTransfers(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	limit, ok := pageSize(w, r)
	if !ok {
		return
	}
	transfers, err := h.ledgers.Transfers(r.Context(), address, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	views := make([]transferView, 0, len(transfers))
	for _, t := range transfers {
		views = append(views, newTransferView(t))
	}
	writeSuccess(w, http.StatusOK, views)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	limit, ok := pageSize(w, r)
	if !ok {
		return
	}
	var afterID int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "after must be a non-negative integer")
			return
		}
		afterID = parsed
	}
	logged, err := h.ledgers.Events(r.Context(), address, afterID, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	views := make([]eventView, 0, len(logged))
	for _, e := range logged {
		views = append(views, newEventView(e))
	}
	writeSuccess(w, http.StatusOK, views)
}

func (h *Handler) getAudit(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	report, err := h.ledgers.Audit(r.Context(), address)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newAuditView(report))
}

type initializeRequest struct {
	MinimumThreshold amountRequest `json:"minimum_threshold"`
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	var req initializeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	threshold, err := req.MinimumThreshold.baseUnits()
	if err != nil {
		writeAmountError(w, r, err)
		return
	}
	ledger, err := h.ledgers.Initialize(r.Context(), address, callerFromContext(r.Context()), threshold)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newLedgerView(ledger))
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := req.baseUnits()
	if err != nil {
		writeAmountError(w, r, err)
		return
	}
	participant, err := h.ledgers.Deposit(r.Context(), address, callerFromContext(r.Context()), amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newParticipantView(participant))
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	refund, err := h.ledgers.Withdraw(r.Context(), address, callerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]amountView{"refund": newAmountView(refund)})
}

func (h *Handler) pickWinners(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	draw, err := h.ledgers.PickWinners(r.Context(), address, callerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newDrawView(draw))
}

type upgradeRequest struct {
	Version int `json:"version"`
}

func (h *Handler) upgrade(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r, "address")
	if !ok {
		return
	}
	var req upgradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ledger, err := h.ledgers.Upgrade(r.Context(), address, callerFromContext(r.Context()), req.Version)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, newLedgerView(ledger))
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	raw := chi.URLParam(r, name)
	if !common.IsHexAddress(raw) {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a 20-byte hex address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func pageSize(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageSize, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > maxPageSize {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and "+strconv.Itoa(maxPageSize))
		return 0, false
	}
	return limit, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return false
	}
	return true
}

// writeAmountError keeps domain sentinels mapped and reports parse failures as validation errors
func writeAmountError(w http.ResponseWriter, r *http.Request, err error) {
	status, _, _ := mapDomainError(err)
	if status != http.StatusInternalServerError {
		writeDomainError(w, r, err)
		return
	}
	writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}
