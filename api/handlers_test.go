package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"rafflepool/application"
	"rafflepool/domain"
	"rafflepool/domain/entities"
	"rafflepool/domain/services"
	"rafflepool/domain/testhelpers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deployer = common.HexToAddress("0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000b3")
)

type envelope struct {
	Status    string          `json:"status"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ledgers := application.NewLedgerHandler(
		testhelpers.NewMemoryStore(),
		application.WithSeedSource(services.NewFixedSeedSource(crypto.Keccak256Hash([]byte("api")))),
	)
	return &testServer{t: t, router: NewRouter(NewHandler(ledgers))}
}

// do sends a request, asserts the status code and decodes the envelope
func (s *testServer) do(method, path string, caller *common.Address, body any, wantStatus int) envelope {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set(CallerHeader, caller.Hex())
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(s.t, wantStatus, rec.Code, "body: %s", rec.Body.String())
	assert.NotEmpty(s.t, rec.Header().Get("X-Request-Id"))

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func (s *testServer) deployInitialized(threshold int64) common.Address {
	s.t.Helper()
	env := s.do(http.MethodPost, "/v1/ledgers", &deployer, nil, http.StatusCreated)
	var deployed ledgerView
	require.NoError(s.t, json.Unmarshal(env.Data, &deployed))

	s.do(http.MethodPost, ledgerPath(deployed.Address, "initialize"), &operator,
		map[string]any{"minimum_threshold": map[string]any{"amount": threshold}}, http.StatusOK)
	return deployed.Address
}

func ledgerPath(address common.Address, suffix string) string {
	if suffix == "" {
		return "/v1/ledgers/" + address.Hex()
	}
	return "/v1/ledgers/" + address.Hex() + "/" + suffix
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	env := s.do(http.MethodGet, "/healthz", nil, nil, http.StatusOK)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "ok", env.Message)
}

func TestRouter_DepositAndDrawFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	address := s.deployInitialized(20)
	assert.Equal(t, entities.DeriveLedgerAddress(deployer, 0), address)

	for _, identity := range []common.Address{alice, bob, carol} {
		identity := identity
		env := s.do(http.MethodPost, ledgerPath(address, "deposit"), &identity, map[string]any{"amount": 21}, http.StatusOK)
		participant := decodeData[participantView](t, env)
		assert.Equal(t, identity, participant.Identity)
		assert.Equal(t, int64(21), participant.Current.Base)
	}

	status := decodeData[statusView](t, s.do(http.MethodGet, ledgerPath(address, ""), nil, nil, http.StatusOK))
	assert.Equal(t, operator, status.Ledger.Operator)
	assert.Equal(t, int64(63), status.Ledger.PoolBalance.Base)
	assert.Equal(t, "0.000000000000000063", status.Ledger.PoolBalance.Coins)
	assert.Equal(t, int64(3), status.Ledger.ParticipantCount)
	assert.Nil(t, status.Price)

	at := decodeData[map[string]any](t, s.do(http.MethodGet, ledgerPath(address, "participants/1"), nil, nil, http.StatusOK))
	assert.Equal(t, bob, common.HexToAddress(at["identity"].(string)))

	count := decodeData[map[string]int64](t, s.do(http.MethodGet, ledgerPath(address, "participants/count"), nil, nil, http.StatusOK))
	assert.Equal(t, int64(3), count["count"])

	draw := decodeData[drawView](t, s.do(http.MethodPost, ledgerPath(address, "draw"), &operator, nil, http.StatusOK))
	assert.Equal(t, int64(1), draw.Sequence)
	assert.Equal(t, int64(63), draw.Pot.Base)
	require.Len(t, draw.Winners, entities.WinnerCount)
	assert.Equal(t, int64(48), draw.Winners[0].Prize.Base)
	assert.Equal(t, int64(9), draw.Winners[1].Prize.Base)
	assert.Equal(t, int64(6), draw.Winners[2].Prize.Base)

	pool := decodeData[amountView](t, s.do(http.MethodGet, ledgerPath(address, "pool"), nil, nil, http.StatusOK))
	assert.Equal(t, int64(0), pool.Base)
	assert.Equal(t, "0", pool.Coins)

	audit := decodeData[auditView](t, s.do(http.MethodGet, ledgerPath(address, "audit"), nil, nil, http.StatusOK))
	assert.True(t, audit.Consistent)

	transfers := decodeData[[]transferView](t, s.do(http.MethodGet, ledgerPath(address, "transfers"), nil, nil, http.StatusOK))
	assert.Len(t, transfers, 6)

	draws := decodeData[[]drawView](t, s.do(http.MethodGet, ledgerPath(address, "draws?limit=10"), nil, nil, http.StatusOK))
	require.Len(t, draws, 1)
	assert.Equal(t, draw.Seed, draws[0].Seed)

	logged := decodeData[[]eventView](t, s.do(http.MethodGet, ledgerPath(address, "events"), nil, nil, http.StatusOK))
	require.Len(t, logged, 5)
	assert.Equal(t, "ledger_initialized", logged[0].EventType)
	assert.Equal(t, "winners_picked", logged[4].EventType)

	paged := decodeData[[]eventView](t, s.do(http.MethodGet, ledgerPath(address, fmt.Sprintf("events?after=%d&limit=2", logged[0].ID)), nil, nil, http.StatusOK))
	require.Len(t, paged, 2)
	assert.Equal(t, "deposited", paged[0].EventType)
}

func TestRouter_WithdrawAndContributions(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	address := s.deployInitialized(10)

	s.do(http.MethodPost, ledgerPath(address, "deposit"), &alice, map[string]any{"coins": "0.00000000000000005"}, http.StatusOK)

	refund := decodeData[map[string]amountView](t, s.do(http.MethodPost, ledgerPath(address, "withdraw"), &alice, nil, http.StatusOK))
	assert.Equal(t, int64(45), refund["refund"].Base)

	contributions := decodeData[map[string]json.RawMessage](t,
		s.do(http.MethodGet, ledgerPath(address, "contributions/"+alice.Hex()), nil, nil, http.StatusOK))
	var current, total amountView
	require.NoError(t, json.Unmarshal(contributions["current"], &current))
	require.NoError(t, json.Unmarshal(contributions["total"], &total))
	assert.Equal(t, int64(0), current.Base)
	assert.Equal(t, int64(50), total.Base)

	roster := decodeData[[]participantView](t, s.do(http.MethodGet, ledgerPath(address, "participants"), nil, nil, http.StatusOK))
	require.Len(t, roster, 1)
	assert.Equal(t, alice, roster[0].Identity)
}

func TestRouter_UpgradeExposesPrice(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	address := s.deployInitialized(25)

	env := s.do(http.MethodGet, ledgerPath(address, "price"), nil, nil, http.StatusUnprocessableEntity)
	assert.Equal(t, domain.ErrUnsupportedOperation.Error(), env.Message)

	s.do(http.MethodPost, ledgerPath(address, "upgrade"), &alice, map[string]any{"version": 2}, http.StatusForbidden)

	upgraded := decodeData[ledgerView](t, s.do(http.MethodPost, ledgerPath(address, "upgrade"), &operator, map[string]any{"version": 2}, http.StatusOK))
	assert.Equal(t, 2, upgraded.SchemaVersion)
	assert.NotNil(t, upgraded.UpgradedAt)

	price := decodeData[amountView](t, s.do(http.MethodGet, ledgerPath(address, "price"), nil, nil, http.StatusOK))
	assert.Equal(t, int64(25), price.Base)

	status := decodeData[statusView](t, s.do(http.MethodGet, ledgerPath(address, ""), nil, nil, http.StatusOK))
	require.NotNil(t, status.Price)
	assert.Equal(t, int64(25), status.Price.Base)

	env = s.do(http.MethodPost, ledgerPath(address, "upgrade"), &operator, map[string]any{"version": 2}, http.StatusBadRequest)
	assert.Equal(t, "INVALID_UPGRADE", env.Code)
}

func TestRouter_Rejections(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	address := s.deployInitialized(20)
	s.do(http.MethodPost, ledgerPath(address, "deposit"), &alice, map[string]any{"amount": 20}, http.StatusOK)
	unknown := common.HexToAddress("0x00000000000000000000000000000000000000ff")

	tests := []struct {
		name        string
		method      string
		path        string
		caller      *common.Address
		body        any
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "deposit below threshold",
			method:      http.MethodPost,
			path:        ledgerPath(address, "deposit"),
			caller:      &bob,
			body:        map[string]any{"amount": 19},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INSUFFICIENT_CONTRIBUTION",
			wantMessage: "minimum contribution not sent",
		},
		{
			name:        "withdraw without stake",
			method:      http.MethodPost,
			path:        ledgerPath(address, "withdraw"),
			caller:      &bob,
			wantStatus:  http.StatusConflict,
			wantCode:    "NOTHING_TO_WITHDRAW",
			wantMessage: "not a participant or no funds to withdraw",
		},
		{
			name:        "draw by non-operator",
			method:      http.MethodPost,
			path:        ledgerPath(address, "draw"),
			caller:      &alice,
			wantStatus:  http.StatusForbidden,
			wantCode:    "FORBIDDEN",
			wantMessage: "only the operator can call this",
		},
		{
			name:        "draw with too few participants",
			method:      http.MethodPost,
			path:        ledgerPath(address, "draw"),
			caller:      &operator,
			wantStatus:  http.StatusConflict,
			wantCode:    "INSUFFICIENT_PARTICIPANTS",
			wantMessage: "not enough participants",
		},
		{
			name:        "participant index out of range",
			method:      http.MethodGet,
			path:        ledgerPath(address, "participants/5"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INDEX_OUT_OF_RANGE",
			wantMessage: "participant index out of range",
		},
		{
			name:        "second initialize",
			method:      http.MethodPost,
			path:        ledgerPath(address, "initialize"),
			caller:      &alice,
			body:        map[string]any{"minimum_threshold": map[string]any{"amount": 1}},
			wantStatus:  http.StatusConflict,
			wantCode:    "ALREADY_INITIALIZED",
			wantMessage: "ledger already initialized",
		},
		{
			name:        "unknown ledger",
			method:      http.MethodGet,
			path:        ledgerPath(unknown, ""),
			wantStatus:  http.StatusNotFound,
			wantCode:    "NOT_FOUND",
			wantMessage: "ledger not found",
		},
		{
			name:       "missing caller header",
			method:     http.MethodPost,
			path:       ledgerPath(address, "deposit"),
			body:       map[string]any{"amount": 30},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "malformed ledger address",
			method:     http.MethodGet,
			path:       "/v1/ledgers/not-an-address",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "coins with too many decimals",
			method:     http.MethodPost,
			path:       ledgerPath(address, "deposit"),
			caller:     &bob,
			body:       map[string]any{"coins": "0.0000000000000000001"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "amount and coins together",
			method:     http.MethodPost,
			path:       ledgerPath(address, "deposit"),
			caller:     &bob,
			body:       map[string]any{"amount": 30, "coins": "1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "limit out of range",
			method:     http.MethodGet,
			path:       ledgerPath(address, "transfers?limit=0"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := s.do(tt.method, tt.path, tt.caller, tt.body, tt.wantStatus)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.wantCode, env.Code)
			assert.NotEmpty(t, env.RequestID)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, env.Message)
			}
		})
	}

	// Rejections left the ledger untouched
	status := decodeData[statusView](t, s.do(http.MethodGet, ledgerPath(address, ""), nil, nil, http.StatusOK))
	assert.Equal(t, int64(20), status.Ledger.PoolBalance.Base)
	assert.Equal(t, int64(1), status.Ledger.ParticipantCount)
}

func TestMapDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"wrapped transfer failure keeps the reason", fmt.Errorf("%w: %v", domain.ErrTransferFailed, "sink closed"), http.StatusInternalServerError, "transfer failed"},
		{"reentrant call", domain.ErrReentrantCall, http.StatusConflict, "reentrant call rejected"},
		{"not initialized", domain.ErrNotInitialized, http.StatusConflict, "ledger not initialized"},
		{"incompatible layout", fmt.Errorf("upgrade to v3: %w", domain.ErrIncompatibleLayout), http.StatusUnprocessableEntity, domain.ErrIncompatibleLayout.Error()},
		{"overflow", domain.ErrAmountOverflow, http.StatusBadRequest, "amount overflows ledger balance"},
		{"infrastructure failure is hidden", fmt.Errorf("failed to begin transaction: connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, _, msg := mapDomainError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, msg)
		})
	}
}

func TestAmountRequest_BaseUnits(t *testing.T) {
	t.Parallel()
	one := int64(7)

	tests := []struct {
		name    string
		req     amountRequest
		want    int64
		wantErr error
	}{
		{"base units", amountRequest{Amount: &one}, 7, nil},
		{"whole coin", amountRequest{Coins: "1"}, 1_000_000_000_000_000_000, nil},
		{"fractional coin", amountRequest{Coins: "0.5"}, 500_000_000_000_000_000, nil},
		{"overflow", amountRequest{Coins: "10"}, 0, domain.ErrAmountOverflow},
		{"empty", amountRequest{}, 0, errAmountRequired},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.req.baseUnits()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
