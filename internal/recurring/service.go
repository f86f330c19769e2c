package recurring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agencydesk/agencydesk/internal/shared"
	"github.com/agencydesk/agencydesk/internal/transactions"
)

// RepositoryPort defines data access methods for expense templates.
type RepositoryPort interface {
	Create(ctx context.Context, orgID string, input ExpenseInput) (*Expense, error)
	Update(ctx context.Context, orgID string, id int64, input ExpenseInput) (*Expense, error)
	GetByID(ctx context.Context, orgID string, id int64) (*Expense, error)
	List(ctx context.Context, orgID string, filter ListFilter) ([]Expense, int, error)
	ListActive(ctx context.Context, orgID string, cycle Cycle) ([]Expense, error)
	SoftDelete(ctx context.Context, orgID string, id int64) error
}

// LedgerPort is the slice of the transactions module materialization needs:
// the dedup lookup and the expense insert.
type LedgerPort interface {
	ExistsForRecurringExpense(ctx context.Context, orgID string, expenseID int64, w shared.Window) (bool, error)
	Create(ctx context.Context, orgID string, input transactions.CreateInput) (*transactions.Transaction, error)
}

// Service handles recurring-expense templates and their materialization.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	clock  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, ledger LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledger, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func validate(input ExpenseInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: expense name is required", shared.ErrValidation)
	}
	if input.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if input.DayOfMonth < 1 || input.DayOfMonth > 31 {
		return fmt.Errorf("%w: day of month must be between 1 and 31", shared.ErrValidation)
	}
	if input.Cycle != CycleMonthly && input.Cycle != CycleAnnual {
		return fmt.Errorf("%w: unknown cycle %q", shared.ErrValidation, input.Cycle)
	}
	return nil
}

// Create registers a template.
func (s *Service) Create(ctx context.Context, orgID string, input ExpenseInput) (*Expense, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, orgID, input)
}

// Update mutates a template.
func (s *Service) Update(ctx context.Context, orgID string, id int64, input ExpenseInput) (*Expense, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, orgID, id, input)
}

// GetByID returns one template.
func (s *Service) GetByID(ctx context.Context, orgID string, id int64) (*Expense, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

// List returns templates matching the filter.
func (s *Service) List(ctx context.Context, orgID string, filter ListFilter) ([]Expense, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// SoftDelete hides a template from default reads.
func (s *Service) SoftDelete(ctx context.Context, orgID string, id int64) error {
	return s.repo.SoftDelete(ctx, orgID, id)
}

// dedupWindow is the period inside which at most one materialized entry may
// exist: the current month for monthly templates, the current year for
// annual ones.
func (s *Service) dedupWindow(cycle Cycle, now time.Time) shared.Window {
	if cycle == CycleAnnual {
		return shared.YearWindow(now.Year(), now.Location())
	}
	return shared.MonthWindow(now.Year(), now.Month(), now.Location())
}

// entryDate anchors the ledger entry on the template's day-of-month,
// clamped to the month length and never later than today.
func (s *Service) entryDate(exp *Expense, now time.Time) time.Time {
	date := shared.DateForDay(now.Year(), now.Month(), exp.DayOfMonth, now.Location())
	if date.After(now) {
		return now
	}
	return date
}

func (s *Service) materializeOne(ctx context.Context, orgID string, exp *Expense, runID string, now time.Time, report *MaterializeReport) {
	window := s.dedupWindow(exp.Cycle, now)
	exists, err := s.ledger.ExistsForRecurringExpense(ctx, orgID, exp.ID, window)
	if err != nil {
		report.Failed = append(report.Failed, FailedItem{ExpenseID: exp.ID, Name: exp.Name, Error: err.Error()})
		return
	}
	if exists {
		report.Skipped = append(report.Skipped, SkippedItem{
			ExpenseID: exp.ID,
			Name:      exp.Name,
			Reason:    "already materialized this period",
		})
		return
	}

	date := s.entryDate(exp, now)
	expenseID := exp.ID
	tx, err := s.ledger.Create(ctx, orgID, transactions.CreateInput{
		Type:               transactions.TypeExpense,
		Subtype:            transactions.SubtypeFixedExpense,
		Category:           exp.Category,
		Description:        fmt.Sprintf("Fixed expense: %s", exp.Name),
		Amount:             exp.Amount,
		Status:             transactions.StatusConfirmed,
		Date:               date,
		RecurringExpenseID: &expenseID,
		Metadata: map[string]any{
			"recurringExpenseId": exp.ID,
			"materializeRunId":   runID,
		},
	})
	if err != nil {
		report.Failed = append(report.Failed, FailedItem{ExpenseID: exp.ID, Name: exp.Name, Error: err.Error()})
		return
	}
	report.Created = append(report.Created, MaterializedItem{
		ExpenseID:     exp.ID,
		Name:          exp.Name,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Date:          tx.Date,
	})
}

func (s *Service) materialize(ctx context.Context, orgID string, cycle Cycle) (*MaterializeReport, error) {
	expenses, err := s.repo.ListActive(ctx, orgID, cycle)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	report := &MaterializeReport{RunID: uuid.NewString(), Cycle: cycle}
	for i := range expenses {
		s.materializeOne(ctx, orgID, &expenses[i], report.RunID, now, report)
	}
	return report, nil
}

// MaterializeMonthly converts every active monthly template without an
// entry this month into a CONFIRMED fixed-expense transaction.
func (s *Service) MaterializeMonthly(ctx context.Context, orgID string) (*MaterializeReport, error) {
	return s.materialize(ctx, orgID, CycleMonthly)
}

// MaterializeAnnually does the same for annual templates, once per year.
func (s *Service) MaterializeAnnually(ctx context.Context, orgID string) (*MaterializeReport, error) {
	return s.materialize(ctx, orgID, CycleAnnual)
}

// MaterializeSingle retries one template, for manual recovery after a
// failed batch entry.
func (s *Service) MaterializeSingle(ctx context.Context, orgID string, id int64) (*MaterializeReport, error) {
	exp, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !exp.Active {
		return nil, fmt.Errorf("%w: expense %s is inactive", shared.ErrValidation, exp.Name)
	}
	report := &MaterializeReport{RunID: uuid.NewString(), Cycle: exp.Cycle}
	s.materializeOne(ctx, orgID, exp, report.RunID, s.clock(), report)
	return report, nil
}
