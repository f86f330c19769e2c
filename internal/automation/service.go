package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agencydesk/agencydesk/internal/clients"
	"github.com/agencydesk/agencydesk/internal/invoices"
	"github.com/agencydesk/agencydesk/internal/shared"
)

// installmentsPerRun caps how many upcoming installment invoices one run
// creates per client, so a fresh client is not billed the whole plan at
// once.
const installmentsPerRun = 2

// ClientDirectory is the slice of the clients module the automation needs.
type ClientDirectory interface {
	ListBillable(ctx context.Context, orgID string) ([]clients.Client, error)
	SetPaymentStatus(ctx context.Context, orgID string, id int64, status clients.PaymentStatus) error
}

// InvoiceBook is the slice of the invoices module the automation needs.
type InvoiceBook interface {
	Create(ctx context.Context, orgID string, req invoices.CreateRequest) (*invoices.Invoice, error)
	MarkOverdue(ctx context.Context, orgID string) (int, error)
	CountInstallments(ctx context.Context, orgID string, clientID int64) (int, error)
	ExistsDueInWindow(ctx context.Context, orgID string, clientID int64, w shared.Window) (bool, error)
	ExistsDueOn(ctx context.Context, orgID string, clientID int64, due time.Time) (bool, error)
	StatusCounts(ctx context.Context, orgID string, clientID int64) (open, overdue int, err error)
}

// LedgerReader exposes confirmed income per window, for projections.
type LedgerReader interface {
	ConfirmedIncomeInWindow(ctx context.Context, orgID string, w shared.Window) (float64, error)
}

// Service drives contract-based invoice generation and derived client
// financial state.
type Service struct {
	logger   *slog.Logger
	clients  ClientDirectory
	invoices InvoiceBook
	ledger   LedgerReader
	clock    func() time.Time
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, dir ClientDirectory, book InvoiceBook, ledger LedgerReader) *Service {
	return &Service{logger: logger, clients: dir, invoices: book, ledger: ledger, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// GenerateSmartMonthlyInvoices walks every billable client of the
// organization and generates the invoices its contract terms call for.
// Each client is isolated: one client's failure lands in the errors bucket
// and the batch keeps going.
func (s *Service) GenerateSmartMonthlyInvoices(ctx context.Context, orgID string) (*RunReport, error) {
	billable, err := s.clients.ListBillable(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	report := &RunReport{RunID: uuid.NewString()}

	for i := range billable {
		c := &billable[i]
		report.Summary.ClientsVisited++
		if blocked := s.contractBlock(c, now); blocked != nil {
			report.Blocked = append(report.Blocked, *blocked)
			continue
		}
		var genErr error
		if c.IsInstallment {
			genErr = s.generateInstallments(ctx, orgID, c, now, report)
		} else {
			genErr = s.generateMonthly(ctx, orgID, c, now, report)
		}
		if genErr != nil {
			s.logger.Error("invoice generation failed",
				slog.Int64("client_id", c.ID), slog.Any("error", genErr))
			report.Errors = append(report.Errors, ClientError{
				ClientID: c.ID, ClientName: c.Name, Error: genErr.Error(),
			})
		}
	}

	for _, g := range report.Success {
		report.Summary.InvoicesCreated++
		report.Summary.TotalAmount += g.Amount
	}
	report.Summary.TotalAmount = shared.RoundCents(report.Summary.TotalAmount)
	report.Summary.BlockedCount = len(report.Blocked)
	report.Summary.ErrorCount = len(report.Errors)
	return report, nil
}

func (s *Service) contractBlock(c *clients.Client, now time.Time) *BlockedClient {
	if c.ContractStart != nil && now.Before(*c.ContractStart) {
		return &BlockedClient{
			ClientID: c.ID, ClientName: c.Name, Reason: BlockContractNotStarted,
			Detail: fmt.Sprintf("contract starts %s", c.ContractStart.Format("2006-01-02")),
		}
	}
	if c.ContractEnd != nil && now.After(*c.ContractEnd) {
		return &BlockedClient{
			ClientID: c.ID, ClientName: c.Name, Reason: BlockContractEnded,
			Detail: fmt.Sprintf("contract ended %s", c.ContractEnd.Format("2006-01-02")),
		}
	}
	return nil
}

func (s *Service) generateMonthly(ctx context.Context, orgID string, c *clients.Client, now time.Time, report *RunReport) error {
	due := MonthlyDueDate(c.PaymentDay, now)
	window := shared.MonthWindow(due.Year(), due.Month(), due.Location())

	exists, err := s.invoices.ExistsDueInWindow(ctx, orgID, c.ID, window)
	if err != nil {
		return err
	}
	if exists {
		report.Blocked = append(report.Blocked, BlockedClient{
			ClientID: c.ID, ClientName: c.Name, Reason: BlockMonthlyAlreadyGenerated,
			Detail: fmt.Sprintf("invoice already due in %s", due.Format("2006-01")),
		})
		return nil
	}

	inv, err := s.invoices.Create(ctx, orgID, invoices.CreateRequest{
		ClientID:  c.ID,
		IssueDate: now,
		DueDate:   due,
		Notes:     fmt.Sprintf("Generated for %s", due.Format("January 2006")),
		Items: []invoices.ItemInput{{
			Description: monthlyItemDescription(c, due),
			Quantity:    1,
			UnitAmount:  c.ContractValue,
		}},
	})
	if err != nil {
		return err
	}
	report.Success = append(report.Success, GeneratedInvoice{
		ClientID: c.ID, ClientName: c.Name,
		InvoiceID: inv.ID, Number: inv.Number, DueDate: inv.DueDate, Amount: inv.Total,
	})
	return nil
}

func monthlyItemDescription(c *clients.Client, due time.Time) string {
	plan := c.PlanName
	if plan == "" {
		plan = "Monthly retainer"
	}
	return fmt.Sprintf("%s - %s", plan, due.Format("January 2006"))
}

func (s *Service) generateInstallments(ctx context.Context, orgID string, c *clients.Client, now time.Time, report *RunReport) error {
	existing, err := s.invoices.CountInstallments(ctx, orgID, c.ID)
	if err != nil {
		return err
	}
	if existing >= c.InstallmentCount {
		report.Blocked = append(report.Blocked, BlockedClient{
			ClientID: c.ID, ClientName: c.Name, Reason: BlockAllInstallmentsGenerated,
			Detail: fmt.Sprintf("all %d installments generated", c.InstallmentCount),
		})
		return nil
	}

	plan := BuildInstallmentPlan(c, now)
	created := 0
	for _, p := range plan[existing:] {
		if created >= installmentsPerRun {
			break
		}
		collision, err := s.invoices.ExistsDueOn(ctx, orgID, c.ID, p.DueDate)
		if err != nil {
			return err
		}
		if collision {
			continue
		}
		number := p.Number
		inv, err := s.invoices.Create(ctx, orgID, invoices.CreateRequest{
			ClientID:      c.ID,
			IssueDate:     now,
			DueDate:       p.DueDate,
			InstallmentNo: &number,
			Notes:         fmt.Sprintf("Installment %d of %d", p.Number, c.InstallmentCount),
			Items: []invoices.ItemInput{{
				Description: fmt.Sprintf("Installment %d/%d - %s", p.Number, c.InstallmentCount, installmentPlanName(c)),
				Quantity:    1,
				UnitAmount:  p.Amount,
			}},
		})
		if err != nil {
			return err
		}
		report.Success = append(report.Success, GeneratedInvoice{
			ClientID: c.ID, ClientName: c.Name,
			InvoiceID: inv.ID, Number: inv.Number, DueDate: inv.DueDate, Amount: inv.Total,
			InstallmentNo: &number,
		})
		created++
	}
	return nil
}

func installmentPlanName(c *clients.Client) string {
	if c.PlanName != "" {
		return c.PlanName
	}
	return "contract"
}

// UpdateOverdueInvoices delegates the overdue scan to the invoice module.
func (s *Service) UpdateOverdueInvoices(ctx context.Context, orgID string) (int, error) {
	return s.invoices.MarkOverdue(ctx, orgID)
}

// SyncClientFinancialData derives every billable client's payment status
// from its open/overdue invoice set, precedence OVERDUE > PENDING > PAID.
func (s *Service) SyncClientFinancialData(ctx context.Context, orgID string) ([]ClientSync, error) {
	billable, err := s.clients.ListBillable(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var out []ClientSync
	for i := range billable {
		c := &billable[i]
		open, overdue, err := s.invoices.StatusCounts(ctx, orgID, c.ID)
		if err != nil {
			return nil, err
		}
		status := clients.PaymentStatusPaid
		switch {
		case overdue > 0:
			status = clients.PaymentStatusOverdue
		case open > 0:
			status = clients.PaymentStatusPending
		}
		if status != c.PaymentStatus {
			if err := s.clients.SetPaymentStatus(ctx, orgID, c.ID, status); err != nil {
				return nil, err
			}
		}
		out = append(out, ClientSync{ClientID: c.ID, Status: status})
	}
	return out, nil
}

// CalculateProjection builds an N-month forward revenue projection from
// active contract terms, with confirmed income per target month alongside
// for cross-checking.
func (s *Service) CalculateProjection(ctx context.Context, orgID string, months int) (*Projection, error) {
	if months <= 0 {
		months = 3
	}
	billable, err := s.clients.ListBillable(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := s.clock()

	proj := &Projection{}
	for m := 0; m < months; m++ {
		window := shared.MonthWindow(now.Year(), now.Month()+time.Month(m), now.Location())

		var expected float64
		for i := range billable {
			c := &billable[i]
			if !c.ContractActiveAt(window.From) {
				continue
			}
			if c.IsInstallment {
				for _, p := range BuildInstallmentPlan(c, now) {
					if window.Contains(p.DueDate) {
						expected += p.Amount
					}
				}
			} else {
				expected += c.ContractValue
			}
		}

		confirmed, err := s.ledger.ConfirmedIncomeInWindow(ctx, orgID, window)
		if err != nil {
			return nil, err
		}
		proj.Months = append(proj.Months, ProjectionMonth{
			Year:      window.From.Year(),
			Month:     window.From.Month(),
			Expected:  shared.RoundCents(expected),
			Confirmed: confirmed,
		})
		proj.TotalExpected += expected
		proj.TotalConfirmed += confirmed
	}
	proj.TotalExpected = shared.RoundCents(proj.TotalExpected)
	proj.TotalConfirmed = shared.RoundCents(proj.TotalConfirmed)
	return proj, nil
}
