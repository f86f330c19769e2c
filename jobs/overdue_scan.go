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

// CacheInvalidator lets jobs drop cached reports after mutating runs.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// OverdueScanJob flips open invoices past their due date to OVERDUE and
// refreshes client payment statuses afterwards.
type OverdueScanJob struct {
	Automation *automation.Service
	Orgs       OrgLister
	Reports    CacheInvalidator
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// Handle executes the overdue scan across the payload's org scope.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Automation == nil {
		return errors.New("overdue scan: handler not configured")
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
	tracker := j.metrics().Track(TaskInvoiceOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	flipped := 0
	for _, org := range orgs {
		n, err := j.Automation.UpdateOverdueInvoices(ctx, org)
		if err != nil {
			logger.Error("overdue scan failed", slog.String("org_id", org), slog.Any("error", err))
			resultErr = err
			return resultErr
		}
		if n > 0 {
			if _, err := j.Automation.SyncClientFinancialData(ctx, org); err != nil {
				logger.Error("client sync after scan failed", slog.String("org_id", org), slog.Any("error", err))
				resultErr = err
				return resultErr
			}
		}
		flipped += n
	}

	if flipped > 0 {
		invalidateReports(ctx, j.Reports, logger)
	}
	logger.Info("completed overdue scan",
		slog.Int("orgs", len(orgs)),
		slog.Int("flipped", flipped),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInvoiceOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskInvoiceOverdueScan))
}

func invalidateReports(ctx context.Context, reports CacheInvalidator, logger *slog.Logger) {
	if reports == nil {
		return
	}
	if err := reports.InvalidateCache(ctx); err != nil {
		logger.Warn("report cache invalidation failed", slog.Any("error", err))
	}
}
