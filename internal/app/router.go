package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/farmledger/farmledger/internal/farm"
	"github.com/farmledger/farmledger/internal/inventory"
	"github.com/farmledger/farmledger/internal/ledger"
	"github.com/farmledger/farmledger/internal/observability"
	"github.com/farmledger/farmledger/internal/party"
	"github.com/farmledger/farmledger/internal/posting"
	"github.com/farmledger/farmledger/internal/production"
	"github.com/farmledger/farmledger/internal/reports"
	"github.com/farmledger/farmledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	PartyHandler      *party.Handler
	LedgerHandler     *ledger.Handler
	InventoryHandler  *inventory.Handler
	PostingHandler    *posting.Handler
	FarmHandler       *farm.Handler
	ProductionHandler *production.Handler
	ReportsHandler    *reports.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with the default middleware chain and
// every mounted domain.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.PartyHandler != nil {
		params.PartyHandler.MountRoutes(r)
	}
	if params.LedgerHandler != nil {
		params.LedgerHandler.MountRoutes(r)
	}
	if params.InventoryHandler != nil {
		params.InventoryHandler.MountRoutes(r)
	}
	if params.PostingHandler != nil {
		params.PostingHandler.MountRoutes(r)
	}
	if params.FarmHandler != nil {
		params.FarmHandler.MountRoutes(r)
	}
	if params.ProductionHandler != nil {
		params.ProductionHandler.MountRoutes(r)
	}
	if params.ReportsHandler != nil {
		params.ReportsHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
