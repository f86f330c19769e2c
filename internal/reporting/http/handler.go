package reportinghttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agencydesk/agencydesk/internal/platform/httpx"
	"github.com/agencydesk/agencydesk/internal/reporting"
	"github.com/agencydesk/agencydesk/internal/reporting/export"
	"github.com/agencydesk/agencydesk/internal/shared"
)

// Handler exposes the read-model report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *reporting.Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *reporting.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reporting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/dashboard/export", h.dashboardCSV)
	r.Get("/overdue/export", h.overdueCSV)
	r.Get("/audit", h.audit)
	r.Get("/audit/export", h.auditCSV)
	r.Get("/global-summary", h.globalSummary)
	r.Get("/global-summary/export", h.globalSummaryCSV)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context(), shared.OrgFromContext(r.Context()), periodFromQuery(r))
	if err != nil {
		h.logger.Error("build dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard)
}

func (h *Handler) dashboardCSV(w http.ResponseWriter, r *http.Request) {
	period := periodFromQuery(r)
	dashboard, err := h.service.Dashboard(r.Context(), shared.OrgFromContext(r.Context()), period)
	if err != nil {
		h.logger.Error("export dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=dashboard_%s.csv", dashboard.PeriodFrom.Format("2006_01")))
	if err := export.WriteDashboardCSV(w, dashboard); err != nil {
		h.logger.Error("write dashboard csv", slog.Any("error", err))
	}
}

func (h *Handler) overdueCSV(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context(), shared.OrgFromContext(r.Context()), periodFromQuery(r))
	if err != nil {
		h.logger.Error("export overdue list", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=overdue_invoices.csv")
	if err := export.WriteOverdueCSV(w, dashboard.Overdue); err != nil {
		h.logger.Error("write overdue csv", slog.Any("error", err))
	}
}

func (h *Handler) audit(w http.ResponseWriter, r *http.Request) {
	months, err := monthsFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.AuditFinancial(r.Context(), shared.OrgFromContext(r.Context()), yearFromQuery(r), months)
	if err != nil {
		h.logger.Error("financial audit", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) auditCSV(w http.ResponseWriter, r *http.Request) {
	months, err := monthsFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.AuditFinancial(r.Context(), shared.OrgFromContext(r.Context()), yearFromQuery(r), months)
	if err != nil {
		h.logger.Error("export financial audit", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit_%d.csv", report.Year))
	if err := export.WriteAuditCSV(w, report); err != nil {
		h.logger.Error("write audit csv", slog.Any("error", err))
	}
}

func (h *Handler) globalSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GlobalSummary(r.Context(), shared.OrgFromContext(r.Context()), yearFromQuery(r))
	if err != nil {
		h.logger.Error("global summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) globalSummaryCSV(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GlobalSummary(r.Context(), shared.OrgFromContext(r.Context()), yearFromQuery(r))
	if err != nil {
		h.logger.Error("export global summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=summary_%d.csv", summary.Year))
	if err := export.WriteMonthlySeriesCSV(w, summary.Year, summary.Series); err != nil {
		h.logger.Error("write summary csv", slog.Any("error", err))
	}
}

// periodFromQuery reads ?period=YYYY-MM; the zero window means the
// current month.
func periodFromQuery(r *http.Request) shared.Window {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return shared.Window{}
	}
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return shared.Window{}
	}
	return shared.MonthWindow(t.Year(), t.Month(), time.UTC)
}

func yearFromQuery(r *http.Request) int {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0
	}
	return year
}

// monthsFromQuery reads ?months=1,2,3; empty means every month up to the
// current one.
func monthsFromQuery(r *http.Request) ([]time.Month, error) {
	raw := r.URL.Query().Get("months")
	if raw == "" {
		return nil, nil
	}
	var months []time.Month
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("reporting: months value %q: %w", part, shared.ErrValidation)
		}
		months = append(months, time.Month(n))
	}
	return months, nil
}
