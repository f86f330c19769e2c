package reporting

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agencydesk/agencydesk/internal/shared"
	"github.com/agencydesk/agencydesk/internal/transactions"
)

type fakeReportRepo struct {
	open        float64
	nonFixed    float64
	fixed       float64
	futureDated map[time.Month][]AnomalyTransaction
	negative    map[time.Month][]AnomalyTransaction
	fixedByMo   map[time.Month]float64
	series      []MonthTotals
	lifeIncome  float64
	lifeExpense float64
	builds      int
}

func (r *fakeReportRepo) InvoiceStatusSummary(ctx context.Context, orgID string, w shared.Window) (InvoiceSummary, error) {
	r.builds++
	return InvoiceSummary{OpenCount: 2, OpenTotal: r.open}, nil
}

func (r *fakeReportRepo) OverdueList(ctx context.Context, orgID string, now time.Time, limit int) ([]OverdueInvoice, error) {
	return []OverdueInvoice{{InvoiceID: 9, Number: "2026-0009", ClientName: "Acme", DaysOverdue: 12, Total: 500}}, nil
}

func (r *fakeReportRepo) TopClientsByRevenue(ctx context.Context, orgID string, w shared.Window, limit int) ([]ClientTotal, error) {
	return nil, nil
}

func (r *fakeReportRepo) TopClientsByOverdue(ctx context.Context, orgID string, limit int) ([]ClientTotal, error) {
	return nil, nil
}

func (r *fakeReportRepo) RecentActivity(ctx context.Context, orgID string, limit int) ([]ActivityEntry, error) {
	return nil, nil
}

func (r *fakeReportRepo) OpenInvoiceTotal(ctx context.Context, orgID string, w shared.Window) (float64, error) {
	return r.open, nil
}

func (r *fakeReportRepo) ConfirmedExpenseSplit(ctx context.Context, orgID string, w shared.Window) (float64, float64, error) {
	if r.fixedByMo != nil {
		return r.nonFixed, r.fixedByMo[w.From.Month()], nil
	}
	return r.nonFixed, r.fixed, nil
}

func (r *fakeReportRepo) MonthlySeries(ctx context.Context, orgID string, year int) ([]MonthTotals, error) {
	return r.series, nil
}

func (r *fakeReportRepo) LifetimeTotals(ctx context.Context, orgID string) (float64, float64, error) {
	return r.lifeIncome, r.lifeExpense, nil
}

func (r *fakeReportRepo) FutureDatedInWindow(ctx context.Context, orgID string, w shared.Window) ([]AnomalyTransaction, error) {
	return r.futureDated[w.From.Month()], nil
}

func (r *fakeReportRepo) NegativeAmountsInWindow(ctx context.Context, orgID string, w shared.Window) ([]AnomalyTransaction, error) {
	return r.negative[w.From.Month()], nil
}

type fakeSummary struct {
	summary transactions.Summary
}

func (f *fakeSummary) Summary(ctx context.Context, orgID string, w shared.Window) (*transactions.Summary, error) {
	out := f.summary
	return &out, nil
}

func newReportingService(repo *fakeReportRepo, fixedBudget float64, now time.Time) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, &fakeSummary{summary: transactions.Summary{TotalIncome: 5000}}, NewCache(nil, 0), logger, fixedBudget)
	return svc.WithClock(func() time.Time { return now })
}

func TestDashboardProjection(t *testing.T) {
	repo := &fakeReportRepo{open: 4000, nonFixed: 600, fixed: 1000}
	now := time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)
	svc := newReportingService(repo, 2500, now)

	dashboard, err := svc.Dashboard(context.Background(), "org-1", shared.Window{})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), dashboard.PeriodFrom)
	require.Equal(t, 5000.0, dashboard.Summary.TotalIncome)
	require.Len(t, dashboard.Overdue, 1)

	proj := dashboard.Projection
	require.Equal(t, 4000.0, proj.OpenInvoices)
	require.Equal(t, 1000.0, proj.MaterializedFixed)
	require.Equal(t, 1500.0, proj.PendingFixed)
	require.Equal(t, 1900.0, proj.ProjectedNetProfit)
}

func TestDashboardProjectionClampsPendingFixed(t *testing.T) {
	repo := &fakeReportRepo{open: 1000, nonFixed: 100, fixed: 3000}
	svc := newReportingService(repo, 2500, time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC))

	dashboard, err := svc.Dashboard(context.Background(), "org-1", shared.Window{})
	require.NoError(t, err)
	require.Equal(t, 0.0, dashboard.Projection.PendingFixed)
	require.Equal(t, 900.0, dashboard.Projection.ProjectedNetProfit)
}

func TestAuditFinancial(t *testing.T) {
	repo := &fakeReportRepo{
		futureDated: map[time.Month][]AnomalyTransaction{
			time.February: {{TransactionID: 4, Flag: "FUTURE_DATED"}},
		},
		negative: map[time.Month][]AnomalyTransaction{
			time.March: {{TransactionID: 7, Flag: "NEGATIVE_AMOUNT"}},
		},
		fixedByMo: map[time.Month]float64{
			time.January:  2000,
			time.February: 2000,
			time.March:    2000,
			time.April:    3200,
		},
	}
	now := time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)
	svc := newReportingService(repo, 2500, now)

	report, err := svc.AuditFinancial(context.Background(), "org-1", 0, nil)
	require.NoError(t, err)
	require.Equal(t, 2026, report.Year)
	require.Len(t, report.Months, 4)

	require.True(t, report.Months[0].Clean)
	require.False(t, report.Months[1].Clean)
	require.Len(t, report.Months[1].FutureDated, 1)
	require.False(t, report.Months[2].Clean)
	require.False(t, report.Months[3].Clean)
	require.True(t, report.Months[3].OverBudget)
}

func TestAuditScopesToRequestedMonths(t *testing.T) {
	repo := &fakeReportRepo{
		negative: map[time.Month][]AnomalyTransaction{
			time.March: {{TransactionID: 7, Flag: "NEGATIVE_AMOUNT"}},
		},
		fixedByMo: map[time.Month]float64{
			time.January: 2000,
			time.March:   2000,
		},
	}
	now := time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)
	svc := newReportingService(repo, 2500, now)

	report, err := svc.AuditFinancial(context.Background(), "org-1", 0, []time.Month{time.March, time.January, time.March, time.December})
	require.NoError(t, err)
	require.Len(t, report.Months, 2)
	require.Equal(t, time.January, report.Months[0].Month)
	require.Equal(t, time.March, report.Months[1].Month)
	require.False(t, report.Months[1].Clean)
}

func TestAuditRejectsOutOfRangeMonth(t *testing.T) {
	svc := newReportingService(&fakeReportRepo{}, 0, time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC))

	_, err := svc.AuditFinancial(context.Background(), "org-1", 0, []time.Month{13})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAuditRejectsFutureYear(t *testing.T) {
	svc := newReportingService(&fakeReportRepo{}, 0, time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC))

	_, err := svc.AuditFinancial(context.Background(), "org-1", 2030, nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAuditCoversFullPastYear(t *testing.T) {
	svc := newReportingService(&fakeReportRepo{}, 0, time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC))

	report, err := svc.AuditFinancial(context.Background(), "org-1", 2025, nil)
	require.NoError(t, err)
	require.Len(t, report.Months, 12)
}

func TestGlobalSummaryFillsSeries(t *testing.T) {
	repo := &fakeReportRepo{
		lifeIncome:  120000,
		lifeExpense: 45000,
		series: []MonthTotals{
			{Month: time.March, Income: 9000, Expense: 3000},
			{Month: time.July, Income: 11000, Expense: 3500},
		},
	}
	svc := newReportingService(repo, 0, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))

	summary, err := svc.GlobalSummary(context.Background(), "org-1", 0)
	require.NoError(t, err)
	require.Equal(t, 2026, summary.Year)
	require.Equal(t, 75000.0, summary.NetProfit)
	require.Len(t, summary.Series, 12)
	require.Equal(t, 9000.0, summary.Series[2].Income)
	require.Equal(t, 0.0, summary.Series[0].Income)
	require.Equal(t, time.January, summary.Series[0].Month)
	require.Equal(t, 11000.0, summary.Series[6].Income)
}
