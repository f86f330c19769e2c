package transactions

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

// Handler manages ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/summary", h.summary)
	r.Get("/{id}", h.getByID)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.softDelete)
	r.Post("/{id}/restore", h.restore)
}

type createPayload struct {
	Type        string         `json:"type" validate:"required,oneof=INCOME EXPENSE"`
	Subtype     string         `json:"subtype" validate:"required"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Amount      float64        `json:"amount" validate:"gt=0"`
	Status      string         `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED"`
	Date        *time.Time     `json:"date"`
	ClientID    *int64         `json:"clientId"`
	InvoiceID   *int64         `json:"invoiceId"`
	CostItemID  *int64         `json:"costItemId"`
	Metadata    map[string]any `json:"metadata"`
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
	input := CreateInput{
		Type:        Type(payload.Type),
		Subtype:     Subtype(payload.Subtype),
		Category:    payload.Category,
		Description: payload.Description,
		Amount:      payload.Amount,
		Status:      Status(payload.Status),
		ClientID:    payload.ClientID,
		InvoiceID:   payload.InvoiceID,
		CostItemID:  payload.CostItemID,
		Metadata:    payload.Metadata,
	}
	if payload.Date != nil {
		input.Date = *payload.Date
	}
	tx, err := h.service.Create(r.Context(), shared.OrgFromContext(r.Context()), input)
	if err != nil {
		h.logger.Error("create transaction", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Type:    Type(q.Get("type")),
		Subtype: Subtype(q.Get("subtype")),
		Status:  Status(q.Get("status")),
	}
	filter.ClientID, _ = strconv.ParseInt(q.Get("clientId"), 10, 64)
	if v := q.Get("dateFrom"); v != "" {
		filter.DateFrom, _ = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("dateTo"); v != "" {
		filter.DateTo, _ = time.Parse(time.RFC3339, v)
	}
	filter.IncludeDeleted = q.Get("includeDeleted") == "true"
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("perPage"))

	items, page, err := h.service.List(r.Context(), shared.OrgFromContext(r.Context()), filter)
	if err != nil {
		h.logger.Error("list transactions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var window shared.Window
	if v := q.Get("dateFrom"); v != "" {
		window.From, _ = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("dateTo"); v != "" {
		window.To, _ = time.Parse(time.RFC3339, v)
	}
	summary, err := h.service.Summary(r.Context(), shared.OrgFromContext(r.Context()), window)
	if err != nil {
		h.logger.Error("transaction summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	tx, err := h.service.GetByID(r.Context(), shared.OrgFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

type updatePayload struct {
	Category    *string        `json:"category"`
	Description *string        `json:"description"`
	Status      *string        `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED CANCELLED"`
	Date        *time.Time     `json:"date"`
	Metadata    map[string]any `json:"metadata"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var payload updatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := UpdateInput{
		Category:    payload.Category,
		Description: payload.Description,
		Date:        payload.Date,
		Metadata:    payload.Metadata,
	}
	if payload.Status != nil {
		status := Status(*payload.Status)
		input.Status = &status
	}
	tx, err := h.service.Update(r.Context(), shared.OrgFromContext(r.Context()), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
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
