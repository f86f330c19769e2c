package clients

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

// Handler manages client endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.getByID)
	r.Put("/{id}", h.update)
	r.Post("/{id}/close", h.close)
	r.Post("/{id}/reopen", h.reopen)
	r.Delete("/{id}", h.softDelete)
	r.Post("/{id}/restore", h.restore)
}

type clientPayload struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	PlanName string `json:"planName"`

	ContractValue float64    `json:"contractValue" validate:"gte=0"`
	ContractStart *time.Time `json:"contractStart"`
	ContractEnd   *time.Time `json:"contractEnd"`
	PaymentDay    int        `json:"paymentDay" validate:"min=1,max=31"`

	IsInstallment          bool    `json:"isInstallment"`
	InstallmentCount       int     `json:"installmentCount" validate:"gte=0"`
	InstallmentValue       float64 `json:"installmentValue" validate:"gte=0"`
	InstallmentPaymentDays []int   `json:"installmentPaymentDays" validate:"dive,min=1,max=31"`
}

func (p clientPayload) toInput() ClientInput {
	return ClientInput{
		Name:                   p.Name,
		Email:                  p.Email,
		PlanName:               p.PlanName,
		ContractValue:          p.ContractValue,
		ContractStart:          p.ContractStart,
		ContractEnd:            p.ContractEnd,
		PaymentDay:             p.PaymentDay,
		IsInstallment:          p.IsInstallment,
		InstallmentCount:       p.InstallmentCount,
		InstallmentValue:       p.InstallmentValue,
		InstallmentPaymentDays: p.InstallmentPaymentDays,
	}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload clientPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	client, err := h.service.Create(r.Context(), shared.OrgFromContext(r.Context()), payload.toInput())
	if err != nil {
		h.logger.Error("create client", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var payload clientPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	client, err := h.service.Update(r.Context(), shared.OrgFromContext(r.Context()), id, payload.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	client, err := h.service.GetByID(r.Context(), shared.OrgFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Search:        q.Get("search"),
		PaymentStatus: PaymentStatus(q.Get("paymentStatus")),
	}
	if v := q.Get("closed"); v != "" {
		closed := v == "true"
		filter.Closed = &closed
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("perPage"))

	items, page, err := h.service.List(r.Context(), shared.OrgFromContext(r.Context()), filter)
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, fn func(orgID string, id int64) error) {
	id, err := idParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := fn(shared.OrgFromContext(r.Context()), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(orgID string, id int64) error { return h.service.Close(r.Context(), orgID, id) })
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(orgID string, id int64) error { return h.service.Reopen(r.Context(), orgID, id) })
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(orgID string, id int64) error { return h.service.SoftDelete(r.Context(), orgID, id) })
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, func(orgID string, id int64) error { return h.service.Restore(r.Context(), orgID, id) })
}
