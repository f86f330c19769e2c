package invoices

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/agencydesk/agencydesk/internal/shared"
	_ "github.com/agencydesk/agencydesk/testing"
)

func newTestRouter(repo *memoryInvoiceRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(repo))

	r := chi.NewRouter()
	r.Route("/invoices", handler.MountRoutes)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(shared.ContextWithOrg(context.Background(), "org-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateEndpoint(t *testing.T) {
	router := newTestRouter(newMemoryInvoiceRepo())

	rec := doRequest(t, router, http.MethodPost, "/invoices", `{
		"clientId": 4,
		"dueDate": "2026-07-10T00:00:00Z",
		"items": [{"description": "Retainer", "quantity": 1, "unitAmount": 1200}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var inv Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	require.Equal(t, 1200.0, inv.Total)
	require.NotEmpty(t, inv.Number)
}

func TestCreateEndpointRejectsEmptyItems(t *testing.T) {
	router := newTestRouter(newMemoryInvoiceRepo())

	rec := doRequest(t, router, http.MethodPost, "/invoices", `{
		"clientId": 4,
		"dueDate": "2026-07-10T00:00:00Z",
		"items": []
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprovePaymentEndpoint(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	router := newTestRouter(repo)

	svc := NewService(repo)
	inv, err := svc.Create(context.Background(), "org-1", CreateRequest{
		ClientID: 4,
		DueDate:  time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		Items:    []ItemInput{{Description: "Retainer", Quantity: 1, UnitAmount: 1200}},
	})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/invoices/1/approve-payment", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result PaymentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, StatusPaid, result.Invoice.Status)
	require.Equal(t, inv.DueDate, *result.Invoice.PaidAt)

	rec = doRequest(t, router, http.MethodPost, "/invoices/1/approve-payment", `{}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetMissingInvoiceReturns404(t *testing.T) {
	router := newTestRouter(newMemoryInvoiceRepo())

	rec := doRequest(t, router, http.MethodGet, "/invoices/99", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
