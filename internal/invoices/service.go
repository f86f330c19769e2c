package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agencydesk/agencydesk/internal/shared"
)

// ErrDuplicateNumber is returned by the repository when the per-org unique
// constraint on invoice numbers rejects an insert. The service retries with
// a fresh sequence instead of locking.
var ErrDuplicateNumber = errors.New("invoices: duplicate invoice number")

// numberRetries bounds the retry loop on numbering conflicts.
const numberRetries = 3

// CreateRow is the persisted form of an invoice, with derived totals and
// an assigned number.
type CreateRow struct {
	ClientID      int64
	Number        string
	IssueDate     time.Time
	DueDate       time.Time
	Subtotal      float64
	Discount      float64
	Tax           float64
	Total         float64
	Notes         string
	InstallmentNo *int
	Items         []Item
}

// LedgerEntry is the INCOME/INVOICE_PAYMENT row created on approval. The
// repository applies the invoice flip and this insert in one transaction.
type LedgerEntry struct {
	ClientID    int64
	Description string
	Amount      float64
	Date        time.Time
	Metadata    map[string]any
}

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	NextNumber(ctx context.Context, orgID string, year int) (string, error)
	Create(ctx context.Context, orgID string, row CreateRow) (*Invoice, error)
	GetByID(ctx context.Context, orgID string, id int64, includeDeleted bool) (*Invoice, error)
	List(ctx context.Context, orgID string, filter ListFilter) ([]Invoice, int, error)
	MarkPaid(ctx context.Context, orgID string, id int64, paidAt time.Time, entry LedgerEntry) (*Invoice, int64, error)
	Cancel(ctx context.Context, orgID string, id int64, notes string, at time.Time) (*Invoice, error)
	MarkOverdue(ctx context.Context, orgID string, now time.Time) (int, error)
	SoftDelete(ctx context.Context, orgID string, id int64) error
	Restore(ctx context.Context, orgID string, id int64) error

	SumOutstanding(ctx context.Context, orgID string, w shared.Window) (float64, error)
	CountInstallments(ctx context.Context, orgID string, clientID int64) (int, error)
	ExistsDueInWindow(ctx context.Context, orgID string, clientID int64, w shared.Window) (bool, error)
	ExistsDueOn(ctx context.Context, orgID string, clientID int64, due time.Time) (bool, error)
	StatusCounts(ctx context.Context, orgID string, clientID int64) (open, overdue int, err error)
}

// Service handles invoice lifecycle logic.
type Service struct {
	repo  RepositoryPort
	clock func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Create validates the request, derives totals and persists the invoice
// with its items atomically. Numbering conflicts are retried with the next
// free sequence.
func (s *Service) Create(ctx context.Context, orgID string, req CreateRequest) (*Invoice, error) {
	if req.ClientID == 0 {
		return nil, fmt.Errorf("%w: client is required", shared.ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: invoice needs at least one item", shared.ErrValidation)
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", shared.ErrValidation, i+1)
		}
		if item.UnitAmount < 0 {
			return nil, fmt.Errorf("%w: item %d unit amount must not be negative", shared.ErrValidation, i+1)
		}
	}
	if req.Discount < 0 || req.Tax < 0 {
		return nil, fmt.Errorf("%w: discount and tax must not be negative", shared.ErrValidation)
	}
	if req.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", shared.ErrValidation)
	}
	issue := req.IssueDate
	if issue.IsZero() {
		issue = s.clock()
	}

	totals := CalculateTotals(req.Items, req.Discount, req.Tax)
	items := make([]Item, len(req.Items))
	for i, item := range req.Items {
		items[i] = Item{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitAmount:  item.UnitAmount,
			Total:       totals.Lines[i],
		}
	}

	row := CreateRow{
		ClientID:      req.ClientID,
		IssueDate:     issue,
		DueDate:       req.DueDate,
		Subtotal:      totals.Subtotal,
		Discount:      req.Discount,
		Tax:           req.Tax,
		Total:         totals.Total,
		Notes:         req.Notes,
		InstallmentNo: req.InstallmentNo,
		Items:         items,
	}

	var lastErr error
	for attempt := 0; attempt < numberRetries; attempt++ {
		number, err := s.repo.NextNumber(ctx, orgID, issue.Year())
		if err != nil {
			return nil, err
		}
		row.Number = number
		inv, err := s.repo.Create(ctx, orgID, row)
		if err == nil {
			return inv, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// GetByID returns one invoice with its items.
func (s *Service) GetByID(ctx context.Context, orgID string, id int64) (*Invoice, error) {
	return s.repo.GetByID(ctx, orgID, id, false)
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, orgID string, filter ListFilter) ([]Invoice, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// PaymentResult reports a completed payment approval.
type PaymentResult struct {
	Invoice       *Invoice `json:"invoice"`
	TransactionID int64    `json:"transactionId"`
	DaysLate      int      `json:"daysLate"`
}

// ApprovePayment transitions an OPEN or OVERDUE invoice to PAID and creates
// exactly one linked INCOME ledger entry for the invoice total. When no
// payment date is given it defaults to the invoice due date, so revenue
// lands in the period it was billed for even when recorded late.
func (s *Service) ApprovePayment(ctx context.Context, orgID string, id int64, paidAt *time.Time) (*PaymentResult, error) {
	inv, err := s.repo.GetByID(ctx, orgID, id, false)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case StatusPaid:
		return nil, fmt.Errorf("%w: invoice %s is already paid", shared.ErrInvalidTransition, inv.Number)
	case StatusCancelled:
		return nil, fmt.Errorf("%w: invoice %s is cancelled", shared.ErrInvalidTransition, inv.Number)
	}

	when := inv.DueDate
	if paidAt != nil {
		when = *paidAt
	}
	daysLate := 0
	if d := int(when.Sub(inv.DueDate).Hours() / 24); d > 0 {
		daysLate = d
	}

	entry := LedgerEntry{
		ClientID:    inv.ClientID,
		Description: fmt.Sprintf("Payment for invoice %s", inv.Number),
		Amount:      inv.Total,
		Date:        when,
		Metadata: map[string]any{
			"invoiceNumber": inv.Number,
			"daysLate":      daysLate,
		},
	}

	updated, txID, err := s.repo.MarkPaid(ctx, orgID, id, when, entry)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Invoice: updated, TransactionID: txID, DaysLate: daysLate}, nil
}

// Cancel transitions an OPEN or OVERDUE invoice to CANCELLED, stamping
// cancelledAt and appending the reason to the notes.
func (s *Service) Cancel(ctx context.Context, orgID string, id int64, reason string) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, orgID, id, false)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case StatusPaid:
		return nil, fmt.Errorf("%w: paid invoice %s cannot be cancelled", shared.ErrInvalidTransition, inv.Number)
	case StatusCancelled:
		return nil, fmt.Errorf("%w: invoice %s is already cancelled", shared.ErrInvalidTransition, inv.Number)
	}

	notes := inv.Notes
	if reason != "" {
		if notes != "" {
			notes += "\n"
		}
		notes += "[cancelled] " + reason
	}
	return s.repo.Cancel(ctx, orgID, id, notes, s.clock())
}

// MarkOverdue flips every OPEN invoice whose due date has passed to
// OVERDUE and returns the number of rows affected. Re-running is a no-op
// for rows already flipped.
func (s *Service) MarkOverdue(ctx context.Context, orgID string) (int, error) {
	return s.repo.MarkOverdue(ctx, orgID, s.clock())
}

// SoftDelete hides an invoice from default reads.
func (s *Service) SoftDelete(ctx context.Context, orgID string, id int64) error {
	return s.repo.SoftDelete(ctx, orgID, id)
}

// Restore reverts a soft delete.
func (s *Service) Restore(ctx context.Context, orgID string, id int64) error {
	return s.repo.Restore(ctx, orgID, id)
}

// SumOutstanding exposes outstanding invoice totals for summary consumers.
func (s *Service) SumOutstanding(ctx context.Context, orgID string, w shared.Window) (float64, error) {
	return s.repo.SumOutstanding(ctx, orgID, w)
}

// CountInstallments counts installment invoices generated for a client.
func (s *Service) CountInstallments(ctx context.Context, orgID string, clientID int64) (int, error) {
	return s.repo.CountInstallments(ctx, orgID, clientID)
}

// ExistsDueInWindow reports whether the client already has an invoice due
// inside the window.
func (s *Service) ExistsDueInWindow(ctx context.Context, orgID string, clientID int64, w shared.Window) (bool, error) {
	return s.repo.ExistsDueInWindow(ctx, orgID, clientID, w)
}

// ExistsDueOn reports whether the client already has an invoice due on the
// given date.
func (s *Service) ExistsDueOn(ctx context.Context, orgID string, clientID int64, due time.Time) (bool, error) {
	return s.repo.ExistsDueOn(ctx, orgID, clientID, due)
}

// StatusCounts returns how many open and overdue invoices a client has.
func (s *Service) StatusCounts(ctx context.Context, orgID string, clientID int64) (open, overdue int, err error) {
	return s.repo.StatusCounts(ctx, orgID, clientID)
}
