package recurring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agencydesk/agencydesk/internal/shared"
	"github.com/agencydesk/agencydesk/internal/transactions"
)

type memoryExpenseRepo struct {
	expenses map[int64]*Expense
	nextID   int64
}

func newMemoryExpenseRepo() *memoryExpenseRepo {
	return &memoryExpenseRepo{expenses: make(map[int64]*Expense)}
}

func (r *memoryExpenseRepo) Create(ctx context.Context, orgID string, input ExpenseInput) (*Expense, error) {
	r.nextID++
	exp := &Expense{
		ID:         r.nextID,
		OrgID:      orgID,
		Name:       input.Name,
		Category:   input.Category,
		Amount:     input.Amount,
		Cycle:      input.Cycle,
		DayOfMonth: input.DayOfMonth,
		Active:     input.Active,
	}
	r.expenses[exp.ID] = exp
	return exp, nil
}

func (r *memoryExpenseRepo) Update(ctx context.Context, orgID string, id int64, input ExpenseInput) (*Expense, error) {
	exp, ok := r.expenses[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	exp.Name = input.Name
	exp.Amount = input.Amount
	exp.Cycle = input.Cycle
	exp.DayOfMonth = input.DayOfMonth
	exp.Active = input.Active
	return exp, nil
}

func (r *memoryExpenseRepo) GetByID(ctx context.Context, orgID string, id int64) (*Expense, error) {
	exp, ok := r.expenses[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return exp, nil
}

func (r *memoryExpenseRepo) List(ctx context.Context, orgID string, filter ListFilter) ([]Expense, int, error) {
	out := make([]Expense, 0, len(r.expenses))
	for _, exp := range r.expenses {
		out = append(out, *exp)
	}
	return out, len(out), nil
}

func (r *memoryExpenseRepo) ListActive(ctx context.Context, orgID string, cycle Cycle) ([]Expense, error) {
	var out []Expense
	for _, exp := range r.expenses {
		if exp.Active && exp.Cycle == cycle {
			out = append(out, *exp)
		}
	}
	return out, nil
}

func (r *memoryExpenseRepo) SoftDelete(ctx context.Context, orgID string, id int64) error { return nil }

// fakeLedger records materialized entries and answers the dedup lookup
// from them, the way the real ledger does via recurring_expense_id.
type fakeLedger struct {
	entries []transactions.CreateInput
	nextID  int64
	failFor int64
}

func (l *fakeLedger) ExistsForRecurringExpense(ctx context.Context, orgID string, expenseID int64, w shared.Window) (bool, error) {
	for _, e := range l.entries {
		if e.RecurringExpenseID != nil && *e.RecurringExpenseID == expenseID && w.Contains(e.Date) {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) Create(ctx context.Context, orgID string, input transactions.CreateInput) (*transactions.Transaction, error) {
	if input.RecurringExpenseID != nil && *input.RecurringExpenseID == l.failFor {
		return nil, errors.New("insert failed")
	}
	l.entries = append(l.entries, input)
	l.nextID++
	return &transactions.Transaction{ID: l.nextID, Amount: input.Amount, Date: input.Date}, nil
}

func newTestService(repo *memoryExpenseRepo, ledger *fakeLedger, now time.Time) *Service {
	return NewService(repo, ledger).WithClock(func() time.Time { return now })
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryExpenseRepo(), &fakeLedger{})

	cases := []struct {
		name  string
		input ExpenseInput
	}{
		{"blank name", ExpenseInput{Name: "  ", Amount: 10, Cycle: CycleMonthly, DayOfMonth: 1}},
		{"zero amount", ExpenseInput{Name: "Rent", Cycle: CycleMonthly, DayOfMonth: 1}},
		{"day too low", ExpenseInput{Name: "Rent", Amount: 10, Cycle: CycleMonthly, DayOfMonth: 0}},
		{"day too high", ExpenseInput{Name: "Rent", Amount: 10, Cycle: CycleMonthly, DayOfMonth: 32}},
		{"unknown cycle", ExpenseInput{Name: "Rent", Amount: 10, Cycle: Cycle("WEEKLY"), DayOfMonth: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "org-1", tc.input)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestMaterializeMonthlyIsIdempotent(t *testing.T) {
	repo := newMemoryExpenseRepo()
	ledger := &fakeLedger{}
	now := time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC)
	svc := newTestService(repo, ledger, now)

	_, err := svc.Create(context.Background(), "org-1", ExpenseInput{
		Name: "Office rent", Category: "facilities", Amount: 2000,
		Cycle: CycleMonthly, DayOfMonth: 5, Active: true,
	})
	require.NoError(t, err)

	report, err := svc.MaterializeMonthly(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC), report.Created[0].Date)

	entry := ledger.entries[0]
	require.Equal(t, transactions.TypeExpense, entry.Type)
	require.Equal(t, transactions.SubtypeFixedExpense, entry.Subtype)
	require.Equal(t, transactions.StatusConfirmed, entry.Status)
	require.Equal(t, "Fixed expense: Office rent", entry.Description)

	second, err := svc.MaterializeMonthly(context.Background(), "org-1")
	require.NoError(t, err)
	require.Empty(t, second.Created)
	require.Len(t, second.Skipped, 1)
	require.Len(t, ledger.entries, 1)
}

func TestMaterializeClampsDayToMonthLength(t *testing.T) {
	repo := newMemoryExpenseRepo()
	ledger := &fakeLedger{}
	now := time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)
	svc := newTestService(repo, ledger, now)

	_, err := svc.Create(context.Background(), "org-1", ExpenseInput{
		Name: "Hosting", Amount: 90, Cycle: CycleMonthly, DayOfMonth: 31, Active: true,
	})
	require.NoError(t, err)

	report, err := svc.MaterializeMonthly(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	require.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), report.Created[0].Date)
}

func TestMaterializeNeverPostsFutureDates(t *testing.T) {
	repo := newMemoryExpenseRepo()
	ledger := &fakeLedger{}
	now := time.Date(2026, 6, 3, 8, 0, 0, 0, time.UTC)
	svc := newTestService(repo, ledger, now)

	_, err := svc.Create(context.Background(), "org-1", ExpenseInput{
		Name: "Payroll software", Amount: 120, Cycle: CycleMonthly, DayOfMonth: 25, Active: true,
	})
	require.NoError(t, err)

	report, err := svc.MaterializeMonthly(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	require.Equal(t, now, report.Created[0].Date)
}

func TestMaterializeContinuesAfterFailure(t *testing.T) {
	repo := newMemoryExpenseRepo()
	ledger := &fakeLedger{}
	now := time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC)
	svc := newTestService(repo, ledger, now)

	first, err := svc.Create(context.Background(), "org-1", ExpenseInput{
		Name: "Rent", Amount: 2000, Cycle: CycleMonthly, DayOfMonth: 1, Active: true,
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "org-1", ExpenseInput{
		Name: "Insurance", Amount: 300, Cycle: CycleMonthly, DayOfMonth: 1, Active: true,
	})
	require.NoError(t, err)
	ledger.failFor = first.ID

	report, err := svc.MaterializeMonthly(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	require.Len(t, report.Failed, 1)
	require.Equal(t, first.ID, report.Failed[0].ExpenseID)
}

func TestMaterializeSingleRejectsInactive(t *testing.T) {
	repo := newMemoryExpenseRepo()
	ledger := &fakeLedger{}
	svc := newTestService(repo, ledger, time.Date(2026, 6, 20, 9, 0, 0, 0, time.UTC))

	exp, err := svc.Create(context.Background(), "org-1", ExpenseInput{
		Name: "Old tool", Amount: 15, Cycle: CycleMonthly, DayOfMonth: 1, Active: false,
	})
	require.NoError(t, err)

	_, err = svc.MaterializeSingle(context.Background(), "org-1", exp.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, ledger.entries)
}

func TestMaterializeAnnualDedupsAcrossYear(t *testing.T) {
	repo := newMemoryExpenseRepo()
	ledger := &fakeLedger{}
	svc := newTestService(repo, ledger, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	exp, err := svc.Create(context.Background(), "org-1", ExpenseInput{
		Name: "Domain renewal", Amount: 45, Cycle: CycleAnnual, DayOfMonth: 1, Active: true,
	})
	require.NoError(t, err)

	report, err := svc.MaterializeAnnually(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)

	later := newTestService(repo, ledger, time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC))
	second, err := later.MaterializeAnnually(context.Background(), "org-1")
	require.NoError(t, err)
	require.Empty(t, second.Created)
	require.Len(t, second.Skipped, 1)
	require.Equal(t, exp.ID, second.Skipped[0].ExpenseID)
}
