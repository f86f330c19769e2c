package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agencydesk/agencydesk/internal/shared"
)

type memoryLedgerRepo struct {
	entries map[int64]*Transaction
	nextID  int64
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{entries: make(map[int64]*Transaction)}
}

func (r *memoryLedgerRepo) Create(ctx context.Context, orgID string, input CreateInput) (*Transaction, error) {
	r.nextID++
	tx := &Transaction{
		ID:                 r.nextID,
		OrgID:              orgID,
		Type:               input.Type,
		Subtype:            input.Subtype,
		Category:           input.Category,
		Description:        input.Description,
		Amount:             input.Amount,
		Status:             input.Status,
		Date:               input.Date,
		ClientID:           input.ClientID,
		InvoiceID:          input.InvoiceID,
		RecurringExpenseID: input.RecurringExpenseID,
		Metadata:           input.Metadata,
	}
	r.entries[tx.ID] = tx
	return tx, nil
}

func (r *memoryLedgerRepo) GetByID(ctx context.Context, orgID string, id int64) (*Transaction, error) {
	tx, ok := r.entries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return tx, nil
}

func (r *memoryLedgerRepo) List(ctx context.Context, orgID string, filter ListFilter) ([]Transaction, int, error) {
	out := make([]Transaction, 0, len(r.entries))
	for _, tx := range r.entries {
		out = append(out, *tx)
	}
	return out, len(out), nil
}

func (r *memoryLedgerRepo) Update(ctx context.Context, orgID string, id int64, input UpdateInput) (*Transaction, error) {
	tx, ok := r.entries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if input.Status != nil {
		tx.Status = *input.Status
	}
	if input.Category != nil {
		tx.Category = *input.Category
	}
	if input.Description != nil {
		tx.Description = *input.Description
	}
	if input.Date != nil {
		tx.Date = *input.Date
	}
	return tx, nil
}

func (r *memoryLedgerRepo) SoftDelete(ctx context.Context, orgID string, id int64) error { return nil }
func (r *memoryLedgerRepo) Restore(ctx context.Context, orgID string, id int64) error    { return nil }

func (r *memoryLedgerRepo) ConfirmedTotals(ctx context.Context, orgID string, w shared.Window) (float64, float64, error) {
	var income, expense float64
	for _, tx := range r.entries {
		if tx.Status != StatusConfirmed || !w.Contains(tx.Date) {
			continue
		}
		switch tx.Type {
		case TypeIncome:
			income += tx.Amount
		case TypeExpense:
			expense += tx.Amount
		}
	}
	return income, expense, nil
}

func (r *memoryLedgerRepo) BreakdownByCategory(ctx context.Context, orgID string, w shared.Window) ([]CategoryBucket, error) {
	return nil, nil
}

func (r *memoryLedgerRepo) BreakdownBySubtype(ctx context.Context, orgID string, w shared.Window) ([]SubtypeBucket, error) {
	return nil, nil
}

func (r *memoryLedgerRepo) ExistsForRecurringExpense(ctx context.Context, orgID string, expenseID int64, w shared.Window) (bool, error) {
	for _, tx := range r.entries {
		if tx.RecurringExpenseID != nil && *tx.RecurringExpenseID == expenseID &&
			tx.Status != StatusCancelled && w.Contains(tx.Date) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryLedgerRepo) ConfirmedIncomeInWindow(ctx context.Context, orgID string, w shared.Window) (float64, error) {
	income, _, err := r.ConfirmedTotals(ctx, orgID, w)
	return income, err
}

type stubInvoiceReader struct {
	outstanding float64
}

func (s stubInvoiceReader) SumOutstanding(ctx context.Context, orgID string, w shared.Window) (float64, error) {
	return s.outstanding, nil
}

var testNow = time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)

func newTestLedger(repo *memoryLedgerRepo, outstanding float64) *Service {
	return NewService(repo, stubInvoiceReader{outstanding: outstanding}).
		WithClock(func() time.Time { return testNow })
}

func TestCreateDefaultsStatusAndDate(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestLedger(repo, 0)

	tx, err := svc.Create(context.Background(), "org-1", CreateInput{
		Type:    TypeIncome,
		Subtype: SubtypeOtherIncome,
		Amount:  150.456,
	})
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, tx.Status)
	require.Equal(t, testNow, tx.Date)
	require.Equal(t, 150.46, tx.Amount)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := newTestLedger(newMemoryLedgerRepo(), 0)

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"zero amount", CreateInput{Type: TypeIncome, Subtype: SubtypeOtherIncome}},
		{"negative amount", CreateInput{Type: TypeIncome, Subtype: SubtypeOtherIncome, Amount: -5}},
		{"future date", CreateInput{Type: TypeIncome, Subtype: SubtypeOtherIncome, Amount: 5, Date: testNow.AddDate(0, 0, 1)}},
		{"income with expense subtype", CreateInput{Type: TypeIncome, Subtype: SubtypeFixedExpense, Amount: 5}},
		{"expense with income subtype", CreateInput{Type: TypeExpense, Subtype: SubtypeInvoicePayment, Amount: 5}},
		{"unknown type", CreateInput{Type: Type("TRANSFER"), Subtype: SubtypeOtherIncome, Amount: 5}},
		{"unknown status", CreateInput{Type: TypeExpense, Subtype: SubtypeOtherExpense, Amount: 5, Status: Status("DRAFT")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "org-1", tc.input)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestUpdateRejectsFutureDate(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestLedger(repo, 0)

	tx, err := svc.Create(context.Background(), "org-1", CreateInput{
		Type: TypeExpense, Subtype: SubtypeOtherExpense, Amount: 10,
	})
	require.NoError(t, err)

	future := testNow.AddDate(0, 1, 0)
	_, err = svc.Update(context.Background(), "org-1", tx.ID, UpdateInput{Date: &future})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSummaryMarginAndPendingIncome(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := newTestLedger(repo, 750)

	seed := []CreateInput{
		{Type: TypeIncome, Subtype: SubtypeInvoicePayment, Amount: 3000, Date: testNow},
		{Type: TypeIncome, Subtype: SubtypeOtherIncome, Amount: 1000, Date: testNow},
		{Type: TypeExpense, Subtype: SubtypeFixedExpense, Amount: 1500, Date: testNow},
		{Type: TypeExpense, Subtype: SubtypeInternalCost, Amount: 500, Date: testNow, Status: StatusPending},
		{Type: TypeIncome, Subtype: SubtypeOtherIncome, Amount: 9999, Date: testNow.AddDate(0, -2, 0)},
	}
	for _, input := range seed {
		_, err := svc.Create(context.Background(), "org-1", input)
		require.NoError(t, err)
	}

	summary, err := svc.Summary(context.Background(), "org-1", shared.CurrentMonthWindow(testNow))
	require.NoError(t, err)
	require.Equal(t, 4000.0, summary.TotalIncome)
	require.Equal(t, 1500.0, summary.TotalExpense)
	require.Equal(t, 2500.0, summary.NetProfit)
	require.Equal(t, 62.5, summary.ProfitMargin)
	require.Equal(t, 750.0, summary.PendingIncome)
}

func TestSummaryZeroIncomeHasZeroMargin(t *testing.T) {
	svc := newTestLedger(newMemoryLedgerRepo(), 0)

	summary, err := svc.Summary(context.Background(), "org-1", shared.CurrentMonthWindow(testNow))
	require.NoError(t, err)
	require.Equal(t, 0.0, summary.ProfitMargin)
}
