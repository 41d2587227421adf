// Package httptransport is the thin HTTP layer over the domain
// services. Handlers decode, delegate and encode; authorization and all
// business rules live behind the service boundary.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subsidyledger/internal/access"
	"subsidyledger/internal/control"
	"subsidyledger/internal/dispute"
	"subsidyledger/internal/funds"
	"subsidyledger/internal/ledger"
	"subsidyledger/internal/oracle"
	"subsidyledger/internal/platform/metrics"
	"subsidyledger/internal/platform/middleware"
	"subsidyledger/internal/sources"
	"subsidyledger/internal/transport/http/shared"
)

// Deps bundles everything the router needs. main wires it once.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Tokens   middleware.TokenParser
	Pool     *funds.Pool
	Ledger   *ledger.Service
	Disputes *dispute.Service
	Oracle   *oracle.Service
	Sources  *sources.Service
	Control  *control.Service
	Access   *access.Service
}

func NewRouter(d Deps) http.Handler {
	fundsH := &fundsHandler{pool: d.Pool}
	ledgerH := &ledgerHandler{ledger: d.Ledger, disputes: d.Disputes}
	oracleH := &oracleHandler{oracle: d.Oracle, sources: d.Sources}
	adminH := &adminHandler{control: d.Control, access: d.Access}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	if d.Metrics != nil {
		r.Use(middleware.Latency(d.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Tokens, d.Logger))

		r.Route("/funds", func(r chi.Router) {
			r.Post("/", fundsH.handleAddFunds)
			r.Get("/", fundsH.handlePoolStatus)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", ledgerH.handleRegisterProject)
			r.Get("/", ledgerH.handleListProjects)
			r.Get("/{projectID}", ledgerH.handleGetProject)
			r.Put("/{projectID}/status", ledgerH.handleUpdateProjectStatus)
			r.Post("/{projectID}/milestones", ledgerH.handleAddMilestone)
			r.Get("/{projectID}/milestones", ledgerH.handleProjectMilestones)
		})

		r.Route("/milestones/{milestoneID}", func(r chi.Router) {
			r.Get("/", ledgerH.handleGetMilestone)
			r.Post("/verify", ledgerH.handleVerifyMilestone)
			r.Post("/retry-payment", ledgerH.handleRetryPayment)
			r.Post("/disputes", ledgerH.handleRaiseDispute)
			r.Post("/disputes/resolve", ledgerH.handleResolveDispute)
			r.Get("/disputes", ledgerH.handleMilestoneDisputes)
		})

		r.Route("/oracle", func(r chi.Router) {
			r.Post("/data", oracleH.handleSubmitData)
			r.Get("/data/{dataID}", oracleH.handleGetDataPoint)
			r.Post("/data/{dataID}/verify", oracleH.handleVerifyData)
			r.Get("/sources/{sourceKey}/data", oracleH.handleQueryVerified)
			r.Get("/sources/{sourceKey}/aggregate", oracleH.handleAggregateVerified)
			r.Get("/sources/{sourceKey}/history", oracleH.handleSourceHistory)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Post("/", oracleH.handleAddSource)
			r.Get("/", oracleH.handleListSources)
			r.Get("/{sourceKey}", oracleH.handleGetSource)
			r.Delete("/{sourceKey}", oracleH.handleRemoveSource)
			r.Put("/{sourceKey}/reliability", oracleH.handleUpdateReliability)
			r.Put("/thresholds/{sourceType}", oracleH.handleUpdateTypeThreshold)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/pause", adminH.handlePause)
			r.Post("/unpause", adminH.handleUnpause)
			r.Get("/status", adminH.handleStatus)
			r.Post("/roles", adminH.handleGrantRole)
			r.Delete("/roles", adminH.handleRevokeRole)
			r.Get("/roles", adminH.handleListRoles)
		})
	})

	return r
}
