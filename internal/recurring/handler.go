package recurring

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agencydesk/agencydesk/internal/platform/httpx"
	"github.com/agencydesk/agencydesk/internal/shared"
)

// Handler manages recurring-expense endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers recurring-expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/materialize/monthly", h.materializeMonthly)
	r.Post("/materialize/annual", h.materializeAnnually)
	r.Get("/{id}", h.getByID)
	r.Put("/{id}", h.update)
	r.Post("/{id}/materialize", h.materializeSingle)
	r.Delete("/{id}", h.softDelete)
}

type expensePayload struct {
	Name       string  `json:"name" validate:"required"`
	Category   string  `json:"category"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	Cycle      string  `json:"cycle" validate:"required,oneof=MONTHLY ANNUAL"`
	DayOfMonth int     `json:"dayOfMonth" validate:"min=1,max=31"`
	Active     bool    `json:"active"`
}

func (p expensePayload) toInput() ExpenseInput {
	return ExpenseInput{
		Name:       p.Name,
		Category:   p.Category,
		Amount:     p.Amount,
		Cycle:      Cycle(p.Cycle),
		DayOfMonth: p.DayOfMonth,
		Active:     p.Active,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload expensePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	exp, err := h.service.Create(r.Context(), shared.OrgFromContext(r.Context()), payload.toInput())
	if err != nil {
		h.logger.Error("create recurring expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, exp)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var payload expensePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	exp, err := h.service.Update(r.Context(), shared.OrgFromContext(r.Context()), id, payload.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, exp)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	exp, err := h.service.GetByID(r.Context(), shared.OrgFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, exp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Cycle: Cycle(q.Get("cycle"))}
	if v := q.Get("active"); v != "" {
		active := v == "true"
		filter.Active = &active
	}
	filter.IncludeDeleted = q.Get("includeDeleted") == "true"
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("perPage"))

	items, page, err := h.service.List(r.Context(), shared.OrgFromContext(r.Context()), filter)
	if err != nil {
		h.logger.Error("list recurring expenses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) materializeMonthly(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.MaterializeMonthly(r.Context(), shared.OrgFromContext(r.Context()))
	if err != nil {
		h.logger.Error("materialize monthly", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) materializeAnnually(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.MaterializeAnnually(r.Context(), shared.OrgFromContext(r.Context()))
	if err != nil {
		h.logger.Error("materialize annual", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) materializeSingle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	report, err := h.service.MaterializeSingle(r.Context(), shared.OrgFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.SoftDelete(r.Context(), shared.OrgFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}
