package invoices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agencydesk/agencydesk/internal/shared"
)

type memoryInvoiceRepo struct {
	invoices  map[int64]*Invoice
	ledger    []LedgerEntry
	nextID    int64
	nextTxID  int64
	sequence  int
	conflicts int
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{invoices: make(map[int64]*Invoice)}
}

func (r *memoryInvoiceRepo) NextNumber(ctx context.Context, orgID string, year int) (string, error) {
	r.sequence++
	return fmt.Sprintf("%d-%04d", year, r.sequence), nil
}

func (r *memoryInvoiceRepo) Create(ctx context.Context, orgID string, row CreateRow) (*Invoice, error) {
	if r.conflicts > 0 {
		r.conflicts--
		return nil, ErrDuplicateNumber
	}
	r.nextID++
	inv := &Invoice{
		ID:            r.nextID,
		OrgID:         orgID,
		ClientID:      row.ClientID,
		Number:        row.Number,
		Status:        StatusOpen,
		IssueDate:     row.IssueDate,
		DueDate:       row.DueDate,
		Subtotal:      row.Subtotal,
		Discount:      row.Discount,
		Tax:           row.Tax,
		Total:         row.Total,
		Notes:         row.Notes,
		InstallmentNo: row.InstallmentNo,
		Items:         row.Items,
	}
	r.invoices[inv.ID] = inv
	return inv, nil
}

func (r *memoryInvoiceRepo) GetByID(ctx context.Context, orgID string, id int64, includeDeleted bool) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (r *memoryInvoiceRepo) List(ctx context.Context, orgID string, filter ListFilter) ([]Invoice, int, error) {
	out := make([]Invoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (r *memoryInvoiceRepo) MarkPaid(ctx context.Context, orgID string, id int64, paidAt time.Time, entry LedgerEntry) (*Invoice, int64, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, 0, shared.ErrNotFound
	}
	if inv.Status != StatusOpen && inv.Status != StatusOverdue {
		return nil, 0, fmt.Errorf("%w: invoice not payable", shared.ErrInvalidTransition)
	}
	inv.Status = StatusPaid
	inv.PaidAt = &paidAt
	r.ledger = append(r.ledger, entry)
	r.nextTxID++
	return inv, r.nextTxID, nil
}

func (r *memoryInvoiceRepo) Cancel(ctx context.Context, orgID string, id int64, notes string, at time.Time) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	inv.Status = StatusCancelled
	inv.CancelledAt = &at
	inv.Notes = notes
	return inv, nil
}

func (r *memoryInvoiceRepo) MarkOverdue(ctx context.Context, orgID string, now time.Time) (int, error) {
	n := 0
	for _, inv := range r.invoices {
		if inv.Status == StatusOpen && inv.DueDate.Before(now) {
			inv.Status = StatusOverdue
			n++
		}
	}
	return n, nil
}

func (r *memoryInvoiceRepo) SoftDelete(ctx context.Context, orgID string, id int64) error { return nil }
func (r *memoryInvoiceRepo) Restore(ctx context.Context, orgID string, id int64) error    { return nil }

func (r *memoryInvoiceRepo) SumOutstanding(ctx context.Context, orgID string, w shared.Window) (float64, error) {
	var sum float64
	for _, inv := range r.invoices {
		if (inv.Status == StatusOpen || inv.Status == StatusOverdue) && w.Contains(inv.DueDate) {
			sum += inv.Total
		}
	}
	return sum, nil
}

func (r *memoryInvoiceRepo) CountInstallments(ctx context.Context, orgID string, clientID int64) (int, error) {
	n := 0
	for _, inv := range r.invoices {
		if inv.ClientID == clientID && inv.InstallmentNo != nil && inv.Status != StatusCancelled {
			n++
		}
	}
	return n, nil
}

func (r *memoryInvoiceRepo) ExistsDueInWindow(ctx context.Context, orgID string, clientID int64, w shared.Window) (bool, error) {
	for _, inv := range r.invoices {
		if inv.ClientID == clientID && inv.Status != StatusCancelled && w.Contains(inv.DueDate) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryInvoiceRepo) ExistsDueOn(ctx context.Context, orgID string, clientID int64, due time.Time) (bool, error) {
	for _, inv := range r.invoices {
		if inv.ClientID == clientID && inv.Status != StatusCancelled &&
			inv.DueDate.Year() == due.Year() && inv.DueDate.YearDay() == due.YearDay() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryInvoiceRepo) StatusCounts(ctx context.Context, orgID string, clientID int64) (open, overdue int, err error) {
	for _, inv := range r.invoices {
		if inv.ClientID != clientID {
			continue
		}
		switch inv.Status {
		case StatusOpen:
			open++
		case StatusOverdue:
			overdue++
		}
	}
	return open, overdue, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateDerivesTotals(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo).WithClock(fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))

	inv, err := svc.Create(context.Background(), "org-1", CreateRequest{
		ClientID: 7,
		DueDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Discount: 50,
		Tax:      20,
		Items: []ItemInput{
			{Description: "Retainer", Quantity: 1, UnitAmount: 1200},
			{Description: "Extra hours", Quantity: 2.5, UnitAmount: 80},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "2026-0001", inv.Number)
	require.Equal(t, StatusOpen, inv.Status)
	require.Equal(t, 1400.0, inv.Subtotal)
	require.Equal(t, 1370.0, inv.Total)
	require.Equal(t, 200.0, inv.Items[1].Total)
	require.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), inv.IssueDate)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryInvoiceRepo())
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"missing client", CreateRequest{DueDate: due, Items: []ItemInput{{Quantity: 1, UnitAmount: 10}}}},
		{"no items", CreateRequest{ClientID: 1, DueDate: due}},
		{"zero quantity", CreateRequest{ClientID: 1, DueDate: due, Items: []ItemInput{{Quantity: 0, UnitAmount: 10}}}},
		{"negative unit amount", CreateRequest{ClientID: 1, DueDate: due, Items: []ItemInput{{Quantity: 1, UnitAmount: -1}}}},
		{"negative discount", CreateRequest{ClientID: 1, DueDate: due, Discount: -1, Items: []ItemInput{{Quantity: 1, UnitAmount: 10}}}},
		{"missing due date", CreateRequest{ClientID: 1, Items: []ItemInput{{Quantity: 1, UnitAmount: 10}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "org-1", tc.req)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestCreateRetriesNumberConflicts(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	repo.conflicts = 2
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), "org-1", CreateRequest{
		ClientID: 1,
		DueDate:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Items:    []ItemInput{{Description: "Plan", Quantity: 1, UnitAmount: 100}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, repo.sequence)
	require.Equal(t, inv.Number, fmt.Sprintf("%d-0003", inv.IssueDate.Year()))
}

func TestCreateGivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	repo.conflicts = 5
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "org-1", CreateRequest{
		ClientID: 1,
		DueDate:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Items:    []ItemInput{{Quantity: 1, UnitAmount: 100}},
	})
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestApprovePaymentDefaultsToDueDate(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo)
	due := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	inv, err := svc.Create(context.Background(), "org-1", CreateRequest{
		ClientID: 3,
		DueDate:  due,
		Items:    []ItemInput{{Description: "Plan", Quantity: 1, UnitAmount: 500}},
	})
	require.NoError(t, err)

	result, err := svc.ApprovePayment(context.Background(), "org-1", inv.ID, nil)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, result.Invoice.Status)
	require.Equal(t, due, *result.Invoice.PaidAt)
	require.Equal(t, 0, result.DaysLate)

	require.Len(t, repo.ledger, 1)
	require.Equal(t, 500.0, repo.ledger[0].Amount)
	require.Equal(t, inv.ClientID, repo.ledger[0].ClientID)
	require.Equal(t, inv.Number, repo.ledger[0].Metadata["invoiceNumber"])
}

func TestApprovePaymentRecordsDaysLate(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo)
	due := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	inv, err := svc.Create(context.Background(), "org-1", CreateRequest{
		ClientID: 3,
		DueDate:  due,
		Items:    []ItemInput{{Quantity: 1, UnitAmount: 500}},
	})
	require.NoError(t, err)

	paidAt := due.AddDate(0, 0, 9)
	result, err := svc.ApprovePayment(context.Background(), "org-1", inv.ID, &paidAt)
	require.NoError(t, err)
	require.Equal(t, 9, result.DaysLate)
	require.Equal(t, 9, repo.ledger[0].Metadata["daysLate"])
}

func TestApprovePaymentRejectsTerminalStates(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), "org-1", CreateRequest{
		ClientID: 3,
		DueDate:  time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		Items:    []ItemInput{{Quantity: 1, UnitAmount: 500}},
	})
	require.NoError(t, err)

	_, err = svc.ApprovePayment(context.Background(), "org-1", inv.ID, nil)
	require.NoError(t, err)

	_, err = svc.ApprovePayment(context.Background(), "org-1", inv.ID, nil)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Len(t, repo.ledger, 1)
}

func TestCancelAppendsReason(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	svc := NewService(repo)

	inv, err := svc.Create(context.Background(), "org-1", CreateRequest{
		ClientID: 3,
		DueDate:  time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		Notes:    "March retainer",
		Items:    []ItemInput{{Quantity: 1, UnitAmount: 500}},
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), "org-1", inv.ID, "client paused contract")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.Equal(t, "March retainer\n[cancelled] client paused contract", cancelled.Notes)

	_, err = svc.Cancel(context.Background(), "org-1", inv.ID, "again")
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestCalculateTotalsRoundsPerLine(t *testing.T) {
	totals := CalculateTotals([]ItemInput{
		{Quantity: 2, UnitAmount: 24.995},
		{Quantity: 1, UnitAmount: 10},
	}, 5, 2.5)
	require.Equal(t, 49.99, totals.Lines[0])
	require.Equal(t, 59.99, totals.Subtotal)
	require.Equal(t, 57.49, totals.Total)
}

func TestMarkOverdueSecondRunIsNoOp(t *testing.T) {
	repo := newMemoryInvoiceRepo()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(repo).WithClock(fixedClock(now))

	for _, due := range []time.Time{
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
	} {
		_, err := svc.Create(context.Background(), "org-1", CreateRequest{
			ClientID:  1,
			IssueDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			DueDate:   due,
			Items:     []ItemInput{{Description: "Retainer", Quantity: 1, UnitAmount: 500}},
		})
		require.NoError(t, err)
	}

	flipped, err := svc.MarkOverdue(context.Background(), "org-1")
	require.NoError(t, err)
	require.Equal(t, 2, flipped)

	again, err := svc.MarkOverdue(context.Background(), "org-1")
	require.NoError(t, err)
	require.Equal(t, 0, again)
}
