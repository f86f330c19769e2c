package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agencydesk/agencydesk/internal/shared"
	"github.com/agencydesk/agencydesk/internal/transactions"
)

const (
	overdueListLimit = 10
	topClientsLimit  = 5
	recentFeedLimit  = 15
)

// Repository is the aggregation surface the service reads from.
type Repository interface {
	InvoiceStatusSummary(ctx context.Context, orgID string, w shared.Window) (InvoiceSummary, error)
	OverdueList(ctx context.Context, orgID string, now time.Time, limit int) ([]OverdueInvoice, error)
	TopClientsByRevenue(ctx context.Context, orgID string, w shared.Window, limit int) ([]ClientTotal, error)
	TopClientsByOverdue(ctx context.Context, orgID string, limit int) ([]ClientTotal, error)
	RecentActivity(ctx context.Context, orgID string, limit int) ([]ActivityEntry, error)
	OpenInvoiceTotal(ctx context.Context, orgID string, w shared.Window) (float64, error)
	ConfirmedExpenseSplit(ctx context.Context, orgID string, w shared.Window) (nonFixed, fixed float64, err error)
	MonthlySeries(ctx context.Context, orgID string, year int) ([]MonthTotals, error)
	LifetimeTotals(ctx context.Context, orgID string) (income, expense float64, err error)
	FutureDatedInWindow(ctx context.Context, orgID string, w shared.Window) ([]AnomalyTransaction, error)
	NegativeAmountsInWindow(ctx context.Context, orgID string, w shared.Window) ([]AnomalyTransaction, error)
}

// SummaryPort supplies the ledger summary the dashboard embeds.
type SummaryPort interface {
	Summary(ctx context.Context, orgID string, w shared.Window) (*transactions.Summary, error)
}

// Service composes the read-model reports. Expensive builds go through
// the cache and are deduplicated with singleflight so concurrent cache
// misses trigger one database pass.
type Service struct {
	repo              Repository
	ledger            SummaryPort
	cache             *Cache
	logger            *slog.Logger
	monthlyFixedTotal float64
	clock             func() time.Time
	group             singleflight.Group
}

// NewService constructs the reporting service. monthlyFixedTotal is the
// configured fixed-expense budget used by projections and audits.
func NewService(repo Repository, ledger SummaryPort, cache *Cache, logger *slog.Logger, monthlyFixedTotal float64) *Service {
	return &Service{
		repo:              repo,
		ledger:            ledger,
		cache:             cache,
		logger:            logger,
		monthlyFixedTotal: monthlyFixedTotal,
		clock:             time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// InvalidateCache bumps the cache version. Batch jobs call this after
// mutating runs.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Dashboard builds the dashboard for the month containing the window
// start. A zero window defaults to the current month.
func (s *Service) Dashboard(ctx context.Context, orgID string, w shared.Window) (*Dashboard, error) {
	if w.From.IsZero() {
		w = shared.CurrentMonthWindow(s.clock())
	}

	key, err := s.cache.BuildKey(ctx, "reporting", "dashboard", orgID, w.From.Format("2006-01"))
	if err != nil {
		return nil, fmt.Errorf("reporting: dashboard cache key: %w", err)
	}

	var out Dashboard
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		v, err, _ := s.group.Do(key, func() (interface{}, error) {
			return s.buildDashboard(ctx, orgID, w)
		})
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) buildDashboard(ctx context.Context, orgID string, w shared.Window) (*Dashboard, error) {
	summary, err := s.ledger.Summary(ctx, orgID, w)
	if err != nil {
		return nil, fmt.Errorf("reporting: dashboard summary: %w", err)
	}
	invoices, err := s.repo.InvoiceStatusSummary(ctx, orgID, w)
	if err != nil {
		return nil, err
	}
	overdue, err := s.repo.OverdueList(ctx, orgID, s.clock(), overdueListLimit)
	if err != nil {
		return nil, err
	}
	topRevenue, err := s.repo.TopClientsByRevenue(ctx, orgID, w, topClientsLimit)
	if err != nil {
		return nil, err
	}
	topOverdue, err := s.repo.TopClientsByOverdue(ctx, orgID, topClientsLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentActivity(ctx, orgID, recentFeedLimit)
	if err != nil {
		return nil, err
	}
	projection, err := s.buildProjection(ctx, orgID, w)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		PeriodFrom: w.From,
		PeriodTo:   w.To,
		Summary:    summary,
		Invoices:   invoices,
		Overdue:    overdue,
		TopRevenue: topRevenue,
		TopOverdue: topOverdue,
		Recent:     recent,
		Projection: projection,
	}, nil
}

// buildProjection estimates the period's net outcome: open receivables
// minus spent non-fixed expense minus the remainder of the fixed budget
// not yet materialized.
func (s *Service) buildProjection(ctx context.Context, orgID string, w shared.Window) (DashboardProjection, error) {
	open, err := s.repo.OpenInvoiceTotal(ctx, orgID, w)
	if err != nil {
		return DashboardProjection{}, err
	}
	nonFixed, fixed, err := s.repo.ConfirmedExpenseSplit(ctx, orgID, w)
	if err != nil {
		return DashboardProjection{}, err
	}

	pendingFixed := s.monthlyFixedTotal - fixed
	if pendingFixed < 0 {
		pendingFixed = 0
	}
	return DashboardProjection{
		OpenInvoices:       shared.RoundCents(open),
		NonFixedExpense:    shared.RoundCents(nonFixed),
		MaterializedFixed:  shared.RoundCents(fixed),
		MonthlyFixedTotal:  s.monthlyFixedTotal,
		PendingFixed:       shared.RoundCents(pendingFixed),
		ProjectedNetProfit: shared.RoundCents(open - nonFixed - pendingFixed),
	}, nil
}

// AuditFinancial flags per-month inconsistencies for the given year.
// Empty months means January through the current month. Nothing is
// mutated.
func (s *Service) AuditFinancial(ctx context.Context, orgID string, year int, months []time.Month) (*AuditReport, error) {
	now := s.clock()
	if year <= 0 {
		year = now.Year()
	}

	lastMonth := time.December
	if year == now.Year() {
		lastMonth = now.Month()
	}
	if year > now.Year() {
		return nil, fmt.Errorf("reporting: audit year %d: %w", year, shared.ErrValidation)
	}

	selected, err := auditMonths(months, lastMonth)
	if err != nil {
		return nil, err
	}

	report := &AuditReport{Year: year}
	for _, month := range selected {
		w := shared.MonthWindow(year, month, time.UTC)

		futureDated, err := s.repo.FutureDatedInWindow(ctx, orgID, w)
		if err != nil {
			return nil, err
		}
		negative, err := s.repo.NegativeAmountsInWindow(ctx, orgID, w)
		if err != nil {
			return nil, err
		}
		_, fixed, err := s.repo.ConfirmedExpenseSplit(ctx, orgID, w)
		if err != nil {
			return nil, err
		}

		m := AuditMonth{
			Year:              year,
			Month:             month,
			FutureDated:       futureDated,
			NegativeAmounts:   negative,
			FixedExpenseTotal: shared.RoundCents(fixed),
			FixedBudget:       s.monthlyFixedTotal,
			OverBudget:        s.monthlyFixedTotal > 0 && fixed > s.monthlyFixedTotal,
		}
		m.Clean = len(m.FutureDated) == 0 && len(m.NegativeAmounts) == 0 && !m.OverBudget
		if !m.Clean {
			s.logger.Warn("financial audit found anomalies",
				slog.String("org_id", orgID),
				slog.Int("year", year),
				slog.Int("month", int(month)),
				slog.Int("future_dated", len(m.FutureDated)),
				slog.Int("negative_amounts", len(m.NegativeAmounts)),
				slog.Bool("over_budget", m.OverBudget))
		}
		report.Months = append(report.Months, m)
	}
	return report, nil
}

// auditMonths resolves the month selection: the full range up to lastMonth
// when empty, otherwise the requested months deduplicated and sorted,
// capped at lastMonth.
func auditMonths(months []time.Month, lastMonth time.Month) ([]time.Month, error) {
	if len(months) == 0 {
		out := make([]time.Month, 0, int(lastMonth))
		for m := time.January; m <= lastMonth; m++ {
			out = append(out, m)
		}
		return out, nil
	}

	seen := map[time.Month]bool{}
	for _, m := range months {
		if m < time.January || m > time.December {
			return nil, fmt.Errorf("reporting: audit month %d: %w", int(m), shared.ErrValidation)
		}
		seen[m] = true
	}
	out := make([]time.Month, 0, len(seen))
	for m := time.January; m <= lastMonth; m++ {
		if seen[m] {
			out = append(out, m)
		}
	}
	return out, nil
}

// GlobalSummary returns lifetime totals plus the monthly trend for the
// requested year.
func (s *Service) GlobalSummary(ctx context.Context, orgID string, year int) (*GlobalSummary, error) {
	if year <= 0 {
		year = s.clock().Year()
	}

	key, err := s.cache.BuildKey(ctx, "reporting", "global", orgID, fmt.Sprintf("%d", year))
	if err != nil {
		return nil, fmt.Errorf("reporting: global cache key: %w", err)
	}

	var out GlobalSummary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		v, err, _ := s.group.Do(key, func() (interface{}, error) {
			return s.buildGlobalSummary(ctx, orgID, year)
		})
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) buildGlobalSummary(ctx context.Context, orgID string, year int) (*GlobalSummary, error) {
	income, expense, err := s.repo.LifetimeTotals(ctx, orgID)
	if err != nil {
		return nil, err
	}
	series, err := s.repo.MonthlySeries(ctx, orgID, year)
	if err != nil {
		return nil, err
	}

	// Fill the gaps so consumers always see twelve points.
	filled := make([]MonthTotals, 12)
	for i := range filled {
		filled[i] = MonthTotals{Month: time.Month(i + 1)}
	}
	for _, m := range series {
		filled[int(m.Month)-1] = m
	}

	return &GlobalSummary{
		TotalIncome:  shared.RoundCents(income),
		TotalExpense: shared.RoundCents(expense),
		NetProfit:    shared.RoundCents(income - expense),
		Year:         year,
		Series:       filled,
	}, nil
}
