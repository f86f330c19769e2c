package automation

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agencydesk/agencydesk/internal/platform/httpx"
	"github.com/agencydesk/agencydesk/internal/shared"
)

// Handler manages automation endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers automation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/generate-invoices", h.generate)
	r.Post("/overdue-scan", h.overdueScan)
	r.Post("/sync-clients", h.syncClients)
	r.Get("/projection", h.projection)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GenerateSmartMonthlyInvoices(r.Context(), shared.OrgFromContext(r.Context()))
	if err != nil {
		h.logger.Error("generate invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) overdueScan(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.UpdateOverdueInvoices(r.Context(), shared.OrgFromContext(r.Context()))
	if err != nil {
		h.logger.Error("overdue scan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": count})
}

func (h *Handler) syncClients(w http.ResponseWriter, r *http.Request) {
	synced, err := h.service.SyncClientFinancialData(r.Context(), shared.OrgFromContext(r.Context()))
	if err != nil {
		h.logger.Error("sync clients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"clients": synced})
}

func (h *Handler) projection(w http.ResponseWriter, r *http.Request) {
	months, _ := strconv.Atoi(r.URL.Query().Get("months"))
	proj, err := h.service.CalculateProjection(r.Context(), shared.OrgFromContext(r.Context()), months)
	if err != nil {
		h.logger.Error("projection", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, proj)
}
