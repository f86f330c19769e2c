package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/agencydesk/agencydesk/cmd/agencydesk/cli"
	"github.com/agencydesk/agencydesk/internal/app"
	"github.com/agencydesk/agencydesk/internal/automation"
	"github.com/agencydesk/agencydesk/internal/clients"
	"github.com/agencydesk/agencydesk/internal/invoices"
	"github.com/agencydesk/agencydesk/internal/observability"
	"github.com/agencydesk/agencydesk/internal/platform/cache"
	"github.com/agencydesk/agencydesk/internal/platform/db"
	"github.com/agencydesk/agencydesk/internal/recurring"
	"github.com/agencydesk/agencydesk/internal/reporting"
	reportinghttp "github.com/agencydesk/agencydesk/internal/reporting/http"
	"github.com/agencydesk/agencydesk/internal/transactions"
	"github.com/agencydesk/agencydesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	clientRepo := clients.NewRepository(pool)
	clientService := clients.NewService(clientRepo)
	clientHandler := clients.NewHandler(logger, clientService)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo)
	invoiceHandler := invoices.NewHandler(logger, invoiceService)

	txRepo := transactions.NewRepository(pool)
	txService := transactions.NewService(txRepo, invoiceService)
	txHandler := transactions.NewHandler(logger, txService)

	recurringRepo := recurring.NewRepository(pool)
	recurringService := recurring.NewService(recurringRepo, txService)
	recurringHandler := recurring.NewHandler(logger, recurringService)

	automationService := automation.NewService(logger, clientService, invoiceService, txService)
	automationHandler := automation.NewHandler(logger, automationService)

	reportingRepo := reporting.NewSQLRepository(pool)
	reportingCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportingService := reporting.NewService(reportingRepo, txService, reportingCache, logger, cfg.MonthlyFixedTotal)
	reportingHandler := reportinghttp.NewHandler(logger, reportingService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ClientHandler:      clientHandler,
		TransactionHandler: txHandler,
		InvoiceHandler:     invoiceHandler,
		RecurringHandler:   recurringHandler,
		AutomationHandler:  automationHandler,
		ReportingHandler:   reportingHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles the `agencydesk jobs` subcommands: trigger,
// stats and scheduled.
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	if len(args) == 0 {
		return fmt.Errorf("usage: agencydesk jobs trigger <task> [org] | agencydesk jobs stats | agencydesk jobs scheduled")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: agencydesk jobs trigger <task> [org]")
		}
		orgID := ""
		if len(args) > 2 {
			orgID = args[2]
		}
		info, err := jobsCLI.Trigger(ctx, args[1], orgID)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	case "scheduled":
		tasks, err := jobsCLI.ListScheduled(ctx, 20)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			fmt.Printf("id=%s type=%s next=%s\n", task.ID, task.Type, task.NextProcessAt.Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("jobs: unknown subcommand %s", args[0])
	}
}
