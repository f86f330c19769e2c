package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/agencydesk/agencydesk/internal/shared"
)

// RepositoryPort defines data access methods for the ledger.
type RepositoryPort interface {
	Create(ctx context.Context, orgID string, input CreateInput) (*Transaction, error)
	GetByID(ctx context.Context, orgID string, id int64) (*Transaction, error)
	List(ctx context.Context, orgID string, filter ListFilter) ([]Transaction, int, error)
	Update(ctx context.Context, orgID string, id int64, input UpdateInput) (*Transaction, error)
	SoftDelete(ctx context.Context, orgID string, id int64) error
	Restore(ctx context.Context, orgID string, id int64) error

	ConfirmedTotals(ctx context.Context, orgID string, w shared.Window) (income, expense float64, err error)
	BreakdownByCategory(ctx context.Context, orgID string, w shared.Window) ([]CategoryBucket, error)
	BreakdownBySubtype(ctx context.Context, orgID string, w shared.Window) ([]SubtypeBucket, error)
	ExistsForRecurringExpense(ctx context.Context, orgID string, expenseID int64, w shared.Window) (bool, error)
	ConfirmedIncomeInWindow(ctx context.Context, orgID string, w shared.Window) (float64, error)
}

// InvoiceReader is the slice of the invoice module the summary needs:
// outstanding (non-PAID) invoice totals inside a period window.
type InvoiceReader interface {
	SumOutstanding(ctx context.Context, orgID string, w shared.Window) (float64, error)
}

// Service handles ledger business logic.
type Service struct {
	repo     RepositoryPort
	invoices InvoiceReader
	clock    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, invoices InvoiceReader) *Service {
	return &Service{repo: repo, invoices: invoices, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func validTypes(t Type, sub Subtype) bool {
	switch t {
	case TypeIncome:
		return sub == SubtypeInvoicePayment || sub == SubtypeOtherIncome
	case TypeExpense:
		return sub == SubtypeFixedExpense || sub == SubtypeInternalCost || sub == SubtypeOtherExpense
	}
	return false
}

// Create validates and records a ledger entry. Status defaults to CONFIRMED
// and date to now; future-dated entries are rejected.
func (s *Service) Create(ctx context.Context, orgID string, input CreateInput) (*Transaction, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	now := s.clock()
	if input.Date.IsZero() {
		input.Date = now
	}
	if input.Date.After(now) {
		return nil, fmt.Errorf("%w: transaction date must not be in the future", shared.ErrValidation)
	}
	if !validTypes(input.Type, input.Subtype) {
		return nil, fmt.Errorf("%w: subtype %s does not belong to type %s", shared.ErrValidation, input.Subtype, input.Type)
	}
	if input.Status == "" {
		input.Status = StatusConfirmed
	}
	switch input.Status {
	case StatusPending, StatusConfirmed, StatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, input.Status)
	}
	input.Amount = shared.RoundCents(input.Amount)
	return s.repo.Create(ctx, orgID, input)
}

// GetByID returns one ledger entry.
func (s *Service) GetByID(ctx context.Context, orgID string, id int64) (*Transaction, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

// List returns ledger entries matching the filter.
func (s *Service) List(ctx context.Context, orgID string, filter ListFilter) ([]Transaction, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Update mutates descriptive fields and status of an entry.
func (s *Service) Update(ctx context.Context, orgID string, id int64, input UpdateInput) (*Transaction, error) {
	if input.Date != nil && input.Date.After(s.clock()) {
		return nil, fmt.Errorf("%w: transaction date must not be in the future", shared.ErrValidation)
	}
	if input.Status != nil {
		switch *input.Status {
		case StatusPending, StatusConfirmed, StatusCancelled:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, *input.Status)
		}
	}
	return s.repo.Update(ctx, orgID, id, input)
}

// SoftDelete hides an entry from default reads; the row is retained.
func (s *Service) SoftDelete(ctx context.Context, orgID string, id int64) error {
	return s.repo.SoftDelete(ctx, orgID, id)
}

// Restore reverts a soft delete.
func (s *Service) Restore(ctx context.Context, orgID string, id int64) error {
	return s.repo.Restore(ctx, orgID, id)
}

// ExistsForRecurringExpense reports whether the template already has a
// non-cancelled entry inside the window.
func (s *Service) ExistsForRecurringExpense(ctx context.Context, orgID string, expenseID int64, w shared.Window) (bool, error) {
	return s.repo.ExistsForRecurringExpense(ctx, orgID, expenseID, w)
}

// ConfirmedIncomeInWindow sums confirmed income inside the window.
func (s *Service) ConfirmedIncomeInWindow(ctx context.Context, orgID string, w shared.Window) (float64, error) {
	return s.repo.ConfirmedIncomeInWindow(ctx, orgID, w)
}

// Summary aggregates CONFIRMED entries in the window into income, expense,
// net profit, margin, pending invoice income and grouped breakdowns.
func (s *Service) Summary(ctx context.Context, orgID string, w shared.Window) (*Summary, error) {
	income, expense, err := s.repo.ConfirmedTotals(ctx, orgID, w)
	if err != nil {
		return nil, err
	}
	byCategory, err := s.repo.BreakdownByCategory(ctx, orgID, w)
	if err != nil {
		return nil, err
	}
	bySubtype, err := s.repo.BreakdownBySubtype(ctx, orgID, w)
	if err != nil {
		return nil, err
	}
	pending, err := s.invoices.SumOutstanding(ctx, orgID, w)
	if err != nil {
		return nil, err
	}

	net := income - expense
	margin := 0.0
	if income != 0 {
		margin = net / income * 100
	}
	return &Summary{
		TotalIncome:   income,
		TotalExpense:  expense,
		NetProfit:     net,
		ProfitMargin:  margin,
		PendingIncome: pending,
		ByCategory:    byCategory,
		BySubtype:     bySubtype,
	}, nil
}
