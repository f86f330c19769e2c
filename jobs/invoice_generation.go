package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/agencydesk/agencydesk/internal/automation"
	jobmetrics "github.com/agencydesk/agencydesk/internal/jobs"
)

// InvoiceGenerationJob runs the contract-driven monthly invoice
// generation for every org in scope.
type InvoiceGenerationJob struct {
	Automation *automation.Service
	Orgs       OrgLister
	Reports    CacheInvalidator
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// Handle executes one generation run per org. A failing org aborts the
// task so Asynq retries it; per-client failures are already isolated
// inside the run report.
func (j *InvoiceGenerationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Automation == nil {
		return errors.New("invoice generation: handler not configured")
	}
	payload, err := decodeOrgPayload(t)
	if err != nil {
		return err
	}
	orgs, err := resolveOrgs(ctx, payload, j.Orgs)
	if err != nil {
		return err
	}

	logger := j.logger()
	tracker := j.metrics().Track(TaskInvoiceGenerate)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	created := 0
	for _, org := range orgs {
		report, err := j.Automation.GenerateSmartMonthlyInvoices(ctx, org)
		if err != nil {
			logger.Error("generation run failed", slog.String("org_id", org), slog.Any("error", err))
			resultErr = err
			return resultErr
		}
		j.metrics().AddInvoicesCreated(org, report.Summary.InvoicesCreated)
		logger.Info("generation run finished",
			slog.String("org_id", org),
			slog.String("run_id", report.RunID),
			slog.Int("clients_visited", report.Summary.ClientsVisited),
			slog.Int("invoices_created", report.Summary.InvoicesCreated),
			slog.Int("blocked", report.Summary.BlockedCount),
			slog.Int("errors", report.Summary.ErrorCount),
		)
		created += report.Summary.InvoicesCreated
	}

	if created > 0 {
		invalidateReports(ctx, j.Reports, logger)
	}
	logger.Info("completed invoice generation",
		slog.Int("orgs", len(orgs)),
		slog.Int("invoices_created", created),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *InvoiceGenerationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *InvoiceGenerationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInvoiceGenerate))
	}
	return slog.Default().With(slog.String("job", TaskInvoiceGenerate))
}
