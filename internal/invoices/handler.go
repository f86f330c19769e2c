package invoices

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agencydesk/agencydesk/internal/platform/httpx"
	"github.com/agencydesk/agencydesk/internal/shared"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/overdue-scan", h.markOverdue)
	r.Get("/{id}", h.getByID)
	r.Post("/{id}/approve-payment", h.approvePayment)
	r.Post("/{id}/cancel", h.cancel)
	r.Delete("/{id}", h.softDelete)
	r.Post("/{id}/restore", h.restore)
}

type itemPayload struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitAmount  float64 `json:"unitAmount" validate:"gte=0"`
}

type createPayload struct {
	ClientID  int64         `json:"clientId" validate:"required"`
	IssueDate *time.Time    `json:"issueDate"`
	DueDate   time.Time     `json:"dueDate" validate:"required"`
	Discount  float64       `json:"discount" validate:"gte=0"`
	Tax       float64       `json:"tax" validate:"gte=0"`
	Notes     string        `json:"notes"`
	Items     []itemPayload `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	req := CreateRequest{
		ClientID: payload.ClientID,
		DueDate:  payload.DueDate,
		Discount: payload.Discount,
		Tax:      payload.Tax,
		Notes:    payload.Notes,
	}
	if payload.IssueDate != nil {
		req.IssueDate = *payload.IssueDate
	}
	for _, item := range payload.Items {
		req.Items = append(req.Items, ItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitAmount,
		})
	}
	inv, err := h.service.Create(r.Context(), shared.OrgFromContext(r.Context()), req)
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	filter.ClientID, _ = strconv.ParseInt(q.Get("clientId"), 10, 64)
	if v := q.Get("dueFrom"); v != "" {
		filter.DueFrom, _ = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("dueTo"); v != "" {
		filter.DueTo, _ = time.Parse(time.RFC3339, v)
	}
	filter.IncludeDeleted = q.Get("includeDeleted") == "true"
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("perPage"))

	items, page, err := h.service.List(r.Context(), shared.OrgFromContext(r.Context()), filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	inv, err := h.service.GetByID(r.Context(), shared.OrgFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

type approvePayload struct {
	PaidAt *time.Time `json:"paidAt"`
}

func (h *Handler) approvePayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var payload approvePayload
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
	}
	result, err := h.service.ApprovePayment(r.Context(), shared.OrgFromContext(r.Context()), id, payload.PaidAt)
	if err != nil {
		h.logger.Error("approve payment", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type cancelPayload struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var payload cancelPayload
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
	}
	inv, err := h.service.Cancel(r.Context(), shared.OrgFromContext(r.Context()), id, payload.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) markOverdue(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.MarkOverdue(r.Context(), shared.OrgFromContext(r.Context()))
	if err != nil {
		h.logger.Error("overdue scan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": count})
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

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Restore(r.Context(), shared.OrgFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}
