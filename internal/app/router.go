package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agencydesk/agencydesk/internal/automation"
	"github.com/agencydesk/agencydesk/internal/clients"
	"github.com/agencydesk/agencydesk/internal/invoices"
	"github.com/agencydesk/agencydesk/internal/observability"
	"github.com/agencydesk/agencydesk/internal/recurring"
	reportinghttp "github.com/agencydesk/agencydesk/internal/reporting/http"
	"github.com/agencydesk/agencydesk/internal/transactions"
	"github.com/agencydesk/agencydesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	ClientHandler      *clients.Handler
	TransactionHandler *transactions.Handler
	InvoiceHandler     *invoices.Handler
	RecurringHandler   *recurring.Handler
	AutomationHandler  *automation.Handler
	ReportingHandler   *reportinghttp.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with AgencyDesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(OrgScope(params.Logger))

		api.Route("/clients", params.ClientHandler.MountRoutes)
		api.Route("/transactions", params.TransactionHandler.MountRoutes)
		api.Route("/invoices", params.InvoiceHandler.MountRoutes)
		api.Route("/recurring-expenses", params.RecurringHandler.MountRoutes)
		api.Route("/automation", params.AutomationHandler.MountRoutes)
		api.Route("/reports", params.ReportingHandler.MountRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
