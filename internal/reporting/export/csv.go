package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/agencydesk/agencydesk/internal/reporting"
)

// WriteDashboardCSV serialises the dashboard headline figures to CSV.
func WriteDashboardCSV(w io.Writer, dashboard *reporting.Dashboard) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"Period From", dashboard.PeriodFrom.Format("2006-01-02")},
		{"Period To", dashboard.PeriodTo.Format("2006-01-02")},
		{"Total Income", formatMoney(dashboard.Summary.TotalIncome)},
		{"Total Expense", formatMoney(dashboard.Summary.TotalExpense)},
		{"Net Profit", formatMoney(dashboard.Summary.NetProfit)},
		{"Profit Margin", fmt.Sprintf("%.1f%%", dashboard.Summary.ProfitMargin)},
		{"Pending Income", formatMoney(dashboard.Summary.PendingIncome)},
		{"Open Invoices", formatMoney(dashboard.Invoices.OpenTotal)},
		{"Overdue Invoices", formatMoney(dashboard.Invoices.OverdueTotal)},
		{"Paid Invoices", formatMoney(dashboard.Invoices.PaidTotal)},
		{"Projected Net Profit", formatMoney(dashboard.Projection.ProjectedNetProfit)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteOverdueCSV emits the overdue invoice list as CSV.
func WriteOverdueCSV(w io.Writer, rows []reporting.OverdueInvoice) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Number", "Client", "Due Date", "Days Overdue", "Total"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.Number,
			row.ClientName,
			row.DueDate.Format("2006-01-02"),
			fmt.Sprintf("%d", row.DaysOverdue),
			formatMoney(row.Total),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteMonthlySeriesCSV emits the monthly income/expense trend as CSV.
func WriteMonthlySeriesCSV(w io.Writer, year int, series []reporting.MonthTotals) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Period", "Income", "Expense", "Net"}); err != nil {
		return err
	}
	for _, point := range series {
		if err := writer.Write([]string{
			fmt.Sprintf("%d-%02d", year, int(point.Month)),
			formatMoney(point.Income),
			formatMoney(point.Expense),
			formatMoney(point.Income - point.Expense),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAuditCSV emits the per-month audit results as CSV.
func WriteAuditCSV(w io.Writer, report *reporting.AuditReport) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Period", "Future Dated", "Negative Amounts", "Fixed Expense Total", "Fixed Budget", "Over Budget", "Clean"}); err != nil {
		return err
	}
	for _, month := range report.Months {
		if err := writer.Write([]string{
			fmt.Sprintf("%d-%02d", month.Year, int(month.Month)),
			fmt.Sprintf("%d", len(month.FutureDated)),
			fmt.Sprintf("%d", len(month.NegativeAmounts)),
			formatMoney(month.FixedExpenseTotal),
			formatMoney(month.FixedBudget),
			fmt.Sprintf("%t", month.OverBudget),
			fmt.Sprintf("%t", month.Clean),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
