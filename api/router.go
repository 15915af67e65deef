package api

import (
	"net/http"

	"rafflepool/application"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	ledgers *application.LedgerHandler
}

func NewHandler(ledgers *application.LedgerHandler) *Handler {
	return &Handler{ledgers: ledgers}
}

// NewRouter exposes every ledger operation under /v1/ledgers. Mutating routes
// act on behalf of the identity in the X-Caller-Address header.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })

	r.Route("/v1/ledgers", func(r chi.Router) {
		r.Get("/", handler.listLedgers)
		r.With(callerMiddleware).Post("/", handler.deployLedger)

		r.Route("/{address}", func(r chi.Router) {
			r.Get("/", handler.getStatus)
			r.Get("/price", handler.getPrice)
			r.Get("/pool", handler.getPoolBalance)
			r.Get("/operator", handler.getOperator)
			r.Get("/participants", handler.listParticipants)
			r.Get("/participants/count", handler.getParticipantCount)
			r.Get("/participants/{index}", handler.getParticipantAt)
			r.Get("/contributions/{identity}", handler.getContributions)
			r.Get("/draws", handler.listDraws)
			r.Get("/transfers", handler.listTransfers)
			r.Get("/events", handler.listEvents)
			r.Get("/audit", handler.getAudit)

			r.Group(func(r chi.Router) {
				r.Use(callerMiddleware)
				r.Post("/initialize", handler.initialize)
				r.Post("/deposit", handler.deposit)
				r.Post("/withdraw", handler.withdraw)
				r.Post("/draw", handler.pickWinners)
				r.Post("/upgrade", handler.upgrade)
			})
		})
	})
	return r
}
