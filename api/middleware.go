package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"rafflepool/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CallerHeader carries the identity the signing layer authorized for the request
const CallerHeader = "X-Caller-Address"

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyCaller    ctxKey = "caller"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(log.Fields{
					"request_id": requestIDFromContext(r.Context()),
					"path":       r.URL.Path,
					"panic":      rec,
				}).Error("Recovered from panic in HTTP handler")
				writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		log.WithFields(log.Fields{
			"request_id":  requestIDFromContext(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("HTTP request served")
	})
}

// callerMiddleware requires a well-formed caller identity on mutating routes
func callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(CallerHeader)
		if !common.IsHexAddress(raw) {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "missing or invalid "+CallerHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyCaller, common.HexToAddress(raw))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFromContext(ctx context.Context) common.Address {
	caller, _ := ctx.Value(ctxKeyCaller).(common.Address)
	return caller
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(ctxKeyRequestID)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrInsufficientContribution, http.StatusBadRequest, "INSUFFICIENT_CONTRIBUTION"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "VALIDATION_ERROR"},
	{domain.ErrInvalidThreshold, http.StatusBadRequest, "VALIDATION_ERROR"},
	{domain.ErrAmountOverflow, http.StatusBadRequest, "AMOUNT_OVERFLOW"},
	{domain.ErrIndexOutOfRange, http.StatusBadRequest, "INDEX_OUT_OF_RANGE"},
	{domain.ErrInvalidUpgrade, http.StatusBadRequest, "INVALID_UPGRADE"},
	{domain.ErrUnauthorized, http.StatusForbidden, "FORBIDDEN"},
	{domain.ErrLedgerNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrAlreadyInitialized, http.StatusConflict, "ALREADY_INITIALIZED"},
	{domain.ErrNotInitialized, http.StatusConflict, "NOT_INITIALIZED"},
	{domain.ErrNothingToWithdraw, http.StatusConflict, "NOTHING_TO_WITHDRAW"},
	{domain.ErrInsufficientParticipants, http.StatusConflict, "INSUFFICIENT_PARTICIPANTS"},
	{domain.ErrReentrantCall, http.StatusConflict, "REENTRANT_CALL"},
	{domain.ErrUnsupportedOperation, http.StatusUnprocessableEntity, "UNSUPPORTED_OPERATION"},
	{domain.ErrIncompatibleLayout, http.StatusUnprocessableEntity, "INCOMPATIBLE_LAYOUT"},
	{domain.ErrTransferFailed, http.StatusInternalServerError, "TRANSFER_FAILED"},
	{domain.ErrLedgerInconsistent, http.StatusInternalServerError, "LEDGER_INCONSISTENT"},
}

// mapDomainError returns the HTTP status, error code and the sentinel's reason.
// Anything unrecognized is reported as an internal error without detail.
func mapDomainError(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.target.Error()
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
}
