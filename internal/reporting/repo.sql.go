package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencydesk/agencydesk/internal/shared"
)

// SQLRepository runs the reporting aggregation queries against PostgreSQL.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewSQLRepository constructs the repository.
func NewSQLRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// InvoiceStatusSummary groups invoice counts and totals by status, scoped
// to invoices due inside the window.
func (r *SQLRepository) InvoiceStatusSummary(ctx context.Context, orgID string, w shared.Window) (InvoiceSummary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'OPEN'),
			COALESCE(SUM(total) FILTER (WHERE status = 'OPEN'), 0),
			COUNT(*) FILTER (WHERE status = 'OVERDUE'),
			COALESCE(SUM(total) FILTER (WHERE status = 'OVERDUE'), 0),
			COUNT(*) FILTER (WHERE status = 'PAID'),
			COALESCE(SUM(total) FILTER (WHERE status = 'PAID'), 0),
			COUNT(*) FILTER (WHERE status = 'CANCELLED')
		FROM invoices
		WHERE org_id = $1 AND deleted_at IS NULL AND due_date >= $2 AND due_date < $3`

	var s InvoiceSummary
	err := r.pool.QueryRow(ctx, query, orgID, w.From, w.To).Scan(
		&s.OpenCount, &s.OpenTotal,
		&s.OverdueCount, &s.OverdueTotal,
		&s.PaidCount, &s.PaidTotal,
		&s.CancelledCount,
	)
	if err != nil {
		return InvoiceSummary{}, fmt.Errorf("reporting: invoice summary: %w", err)
	}
	return s, nil
}

// OverdueList returns the oldest overdue invoices with client names.
func (r *SQLRepository) OverdueList(ctx context.Context, orgID string, now time.Time, limit int) ([]OverdueInvoice, error) {
	query := `
		SELECT i.id, i.number, i.client_id, c.name, i.due_date, i.total,
		       GREATEST(0, EXTRACT(DAY FROM $2::timestamptz - i.due_date))::int
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.org_id = $1 AND i.deleted_at IS NULL AND i.status = 'OVERDUE'
		ORDER BY i.due_date ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, orgID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("reporting: overdue list: %w", err)
	}
	defer rows.Close()

	var out []OverdueInvoice
	for rows.Next() {
		var o OverdueInvoice
		if err := rows.Scan(&o.InvoiceID, &o.Number, &o.ClientID, &o.ClientName, &o.DueDate, &o.Total, &o.DaysOverdue); err != nil {
			return nil, fmt.Errorf("reporting: overdue scan: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// TopClientsByRevenue ranks clients by confirmed income inside the window.
func (r *SQLRepository) TopClientsByRevenue(ctx context.Context, orgID string, w shared.Window, limit int) ([]ClientTotal, error) {
	query := `
		SELECT t.client_id, c.name, COALESCE(SUM(t.amount), 0)
		FROM transactions t
		JOIN clients c ON c.id = t.client_id
		WHERE t.org_id = $1 AND t.deleted_at IS NULL AND t.status = 'CONFIRMED'
		  AND t.type = 'INCOME' AND t.client_id IS NOT NULL
		  AND t.date >= $2 AND t.date < $3
		GROUP BY t.client_id, c.name
		ORDER BY 3 DESC
		LIMIT $4`
	return r.clientTotals(ctx, query, orgID, w.From, w.To, limit)
}

// TopClientsByOverdue ranks clients by outstanding overdue invoice totals.
func (r *SQLRepository) TopClientsByOverdue(ctx context.Context, orgID string, limit int) ([]ClientTotal, error) {
	query := `
		SELECT i.client_id, c.name, COALESCE(SUM(i.total), 0)
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE i.org_id = $1 AND i.deleted_at IS NULL AND i.status = 'OVERDUE'
		GROUP BY i.client_id, c.name
		ORDER BY 3 DESC
		LIMIT $2`
	return r.clientTotals(ctx, query, orgID, limit)
}

func (r *SQLRepository) clientTotals(ctx context.Context, query string, args ...any) ([]ClientTotal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reporting: client totals: %w", err)
	}
	defer rows.Close()

	var out []ClientTotal
	for rows.Next() {
		var c ClientTotal
		if err := rows.Scan(&c.ClientID, &c.Name, &c.Total); err != nil {
			return nil, fmt.Errorf("reporting: client totals scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecentActivity merges the latest ledger entries and invoices into one
// feed ordered by recency.
func (r *SQLRepository) RecentActivity(ctx context.Context, orgID string, limit int) ([]ActivityEntry, error) {
	query := `
		SELECT kind, id, description, amount, date FROM (
			SELECT 'transaction' AS kind, id, description, amount, date, created_at
			FROM transactions
			WHERE org_id = $1 AND deleted_at IS NULL
			UNION ALL
			SELECT 'invoice' AS kind, id, 'Invoice ' || number, total, issue_date, created_at
			FROM invoices
			WHERE org_id = $1 AND deleted_at IS NULL
		) activity
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("reporting: recent activity: %w", err)
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var a ActivityEntry
		if err := rows.Scan(&a.Kind, &a.ID, &a.Description, &a.Amount, &a.Date); err != nil {
			return nil, fmt.Errorf("reporting: activity scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// OpenInvoiceTotal sums OPEN and OVERDUE invoice totals due in the window.
func (r *SQLRepository) OpenInvoiceTotal(ctx context.Context, orgID string, w shared.Window) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0) FROM invoices
		WHERE org_id = $1 AND deleted_at IS NULL AND status IN ('OPEN', 'OVERDUE')
		  AND due_date >= $2 AND due_date < $3`,
		orgID, w.From, w.To).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("reporting: open invoice total: %w", err)
	}
	return total, nil
}

// ConfirmedExpenseSplit sums confirmed expenses inside the window, split
// into the fixed-expense subtype and everything else.
func (r *SQLRepository) ConfirmedExpenseSplit(ctx context.Context, orgID string, w shared.Window) (nonFixed, fixed float64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE subtype <> 'FIXED_EXPENSE'), 0),
			COALESCE(SUM(amount) FILTER (WHERE subtype = 'FIXED_EXPENSE'), 0)
		FROM transactions
		WHERE org_id = $1 AND deleted_at IS NULL AND status = 'CONFIRMED'
		  AND type = 'EXPENSE' AND date >= $2 AND date < $3`,
		orgID, w.From, w.To).Scan(&nonFixed, &fixed)
	if err != nil {
		return 0, 0, fmt.Errorf("reporting: expense split: %w", err)
	}
	return nonFixed, fixed, nil
}

// MonthlySeries returns confirmed income/expense per month of the year.
// Months without movement are filled with zeros by the service.
func (r *SQLRepository) MonthlySeries(ctx context.Context, orgID string, year int) ([]MonthTotals, error) {
	w := shared.YearWindow(year, time.UTC)
	query := `
		SELECT EXTRACT(MONTH FROM date)::int,
			COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE'), 0)
		FROM transactions
		WHERE org_id = $1 AND deleted_at IS NULL AND status = 'CONFIRMED'
		  AND date >= $2 AND date < $3
		GROUP BY 1
		ORDER BY 1`

	rows, err := r.pool.Query(ctx, query, orgID, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("reporting: monthly series: %w", err)
	}
	defer rows.Close()

	var out []MonthTotals
	for rows.Next() {
		var month int
		var m MonthTotals
		if err := rows.Scan(&month, &m.Income, &m.Expense); err != nil {
			return nil, fmt.Errorf("reporting: series scan: %w", err)
		}
		m.Month = time.Month(month)
		out = append(out, m)
	}
	return out, rows.Err()
}

// LifetimeTotals sums all confirmed income and expense for the org.
func (r *SQLRepository) LifetimeTotals(ctx context.Context, orgID string) (income, expense float64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE'), 0)
		FROM transactions
		WHERE org_id = $1 AND deleted_at IS NULL AND status = 'CONFIRMED'`,
		orgID).Scan(&income, &expense)
	if err != nil {
		return 0, 0, fmt.Errorf("reporting: lifetime totals: %w", err)
	}
	return income, expense, nil
}

// FutureDatedInWindow flags ledger rows recorded during the window but
// dated past its end.
func (r *SQLRepository) FutureDatedInWindow(ctx context.Context, orgID string, w shared.Window) ([]AnomalyTransaction, error) {
	return r.anomalies(ctx, `
		SELECT id, description, amount, date FROM transactions
		WHERE org_id = $1 AND deleted_at IS NULL
		  AND created_at >= $2 AND created_at < $3 AND date >= $3
		ORDER BY date ASC`, "FUTURE_DATED", orgID, w.From, w.To)
}

// NegativeAmountsInWindow flags rows that slipped past the positive-amount
// validation, e.g. through legacy imports.
func (r *SQLRepository) NegativeAmountsInWindow(ctx context.Context, orgID string, w shared.Window) ([]AnomalyTransaction, error) {
	return r.anomalies(ctx, `
		SELECT id, description, amount, date FROM transactions
		WHERE org_id = $1 AND deleted_at IS NULL
		  AND amount <= 0 AND date >= $2 AND date < $3
		ORDER BY date ASC`, "NEGATIVE_AMOUNT", orgID, w.From, w.To)
}

func (r *SQLRepository) anomalies(ctx context.Context, query, flag string, args ...any) ([]AnomalyTransaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reporting: anomalies: %w", err)
	}
	defer rows.Close()

	var out []AnomalyTransaction
	for rows.Next() {
		var a AnomalyTransaction
		if err := rows.Scan(&a.TransactionID, &a.Description, &a.Amount, &a.Date); err != nil {
			return nil, fmt.Errorf("reporting: anomaly scan: %w", err)
		}
		a.Flag = flag
		out = append(out, a)
	}
	return out, rows.Err()
}
