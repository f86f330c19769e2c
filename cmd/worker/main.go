package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/agencydesk/agencydesk/internal/app"
	"github.com/agencydesk/agencydesk/internal/automation"
	"github.com/agencydesk/agencydesk/internal/clients"
	"github.com/agencydesk/agencydesk/internal/invoices"
	"github.com/agencydesk/agencydesk/internal/platform/cache"
	"github.com/agencydesk/agencydesk/internal/platform/db"
	"github.com/agencydesk/agencydesk/internal/recurring"
	"github.com/agencydesk/agencydesk/internal/reporting"
	"github.com/agencydesk/agencydesk/internal/transactions"
	"github.com/agencydesk/agencydesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	clientService := clients.NewService(clients.NewRepository(pool))
	invoiceService := invoices.NewService(invoices.NewRepository(pool))
	txService := transactions.NewService(transactions.NewRepository(pool), invoiceService)
	recurringService := recurring.NewService(recurring.NewRepository(pool), txService)
	automationService := automation.NewService(logger, clientService, invoiceService, txService)

	reportingCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportingService := reporting.NewService(reporting.NewSQLRepository(pool), txService, reportingCache, logger, cfg.MonthlyFixedTotal)

	orgs := &jobs.PoolOrgLister{Pool: pool}

	overdueJob := &jobs.OverdueScanJob{Automation: automationService, Orgs: orgs, Reports: reportingService, Logger: logger}
	generateJob := &jobs.InvoiceGenerationJob{Automation: automationService, Orgs: orgs, Reports: reportingService, Logger: logger}
	syncJob := &jobs.ClientSyncJob{Automation: automationService, Orgs: orgs, Logger: logger}
	monthlyExpenseJob := &jobs.ExpenseMaterializeJob{Recurring: recurringService, Orgs: orgs, Reports: reportingService, Logger: logger, Cycle: recurring.CycleMonthly}
	annualExpenseJob := &jobs.ExpenseMaterializeJob{Recurring: recurringService, Orgs: orgs, Reports: reportingService, Logger: logger, Cycle: recurring.CycleAnnual}

	overdueTask, err := jobs.NewOrgTask(jobs.TaskInvoiceOverdueScan, jobs.OrgPayload{})
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}
	generateTask, err := jobs.NewOrgTask(jobs.TaskInvoiceGenerate, jobs.OrgPayload{})
	if err != nil {
		logger.Error("build generate task", slog.Any("error", err))
		os.Exit(1)
	}
	syncTask, err := jobs.NewOrgTask(jobs.TaskClientSync, jobs.OrgPayload{})
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}
	monthlyExpenseTask, err := jobs.NewOrgTask(jobs.TaskExpenseMaterializeMonthly, jobs.OrgPayload{})
	if err != nil {
		logger.Error("build monthly expense task", slog.Any("error", err))
		os.Exit(1)
	}
	annualExpenseTask, err := jobs.NewOrgTask(jobs.TaskExpenseMaterializeAnnual, jobs.OrgPayload{})
	if err != nil {
		logger.Error("build annual expense task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceOverdueScan, Handler: overdueJob.Handle},
			{Type: jobs.TaskInvoiceGenerate, Handler: generateJob.Handle},
			{Type: jobs.TaskClientSync, Handler: syncJob.Handle},
			{Type: jobs.TaskExpenseMaterializeMonthly, Handler: monthlyExpenseJob.Handle},
			{Type: jobs.TaskExpenseMaterializeAnnual, Handler: annualExpenseJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 1 * *", Task: generateTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 1 1 * *", Task: monthlyExpenseTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 1 1 *", Task: annualExpenseTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
