package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/inkledger-backend/internal/appointments"
	"github.com/angelmondragon/inkledger-backend/internal/bills"
	"github.com/angelmondragon/inkledger-backend/internal/cron"
	"github.com/angelmondragon/inkledger-backend/internal/reporting"
	"github.com/angelmondragon/inkledger-backend/internal/splitrules"
	"github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/bigquery"
	"github.com/angelmondragon/inkledger-backend/pkg/config"
	"github.com/angelmondragon/inkledger-backend/pkg/db"
	"github.com/angelmondragon/inkledger-backend/pkg/instance"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
	"github.com/angelmondragon/inkledger-backend/pkg/metrics"
	"github.com/angelmondragon/inkledger-backend/pkg/migrate"
	"github.com/angelmondragon/inkledger-backend/pkg/outbox"
	"github.com/angelmondragon/inkledger-backend/pkg/redis"
)

const lockKeyFormat = "ink:cron-worker:lock:%s"

func main() {
	runJob := flag.String("run", "", "run one job now and exit (rebuild-bills|recompute-allocations|export-bill-report|outbox-retention)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap bigquery", err)
		os.Exit(1)
	}
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing bigquery", err)
		}
	}()

	batchMetrics := metrics.NewBatchJobMetrics(prometheus.DefaultRegisterer)
	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)

	billService, err := newBillService(cfg, logg, dbClient, billingMetrics, batchMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create bill service", err)
		os.Exit(1)
	}

	exporter, err := reporting.NewExporter(bqClient, bqClient.BillsTable(), billService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create report exporter", err)
		os.Exit(1)
	}
	exporter.WithPageSize(cfg.Billing.ExportPageSize)

	rebuildJob, err := cron.NewRebuildBillsJob(cron.BillBatchJobParams{Logger: logg, Bills: billService})
	requireJob(logg, err)
	recomputeJob, err := cron.NewRecomputeAllocationsJob(cron.BillBatchJobParams{Logger: logg, Bills: billService})
	requireJob(logg, err)
	exportJob, err := cron.NewReportExportJob(cron.ReportExportJobParams{Logger: logg, Exporter: exporter})
	requireJob(logg, err)
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		DLQ:         outbox.NewDLQRepository(dbClient.DB()),
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	requireJob(logg, err)

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), instance.ID(), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(rebuildJob, exportJob, retentionJob),
		Manual:   cron.NewRegistry(recomputeJob),
		Lock:     lock,
		Metrics:  batchMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})

	if name := strings.TrimSpace(*runJob); name != "" {
		ctx = logg.WithField(ctx, "job", name)
		logg.Info(ctx, "running job once")
		if err := service.RunOnce(ctx, name); err != nil {
			logg.Error(ctx, "job failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "job finished")
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func newBillService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, billingMetrics *metrics.BillingMetrics, batchMetrics *metrics.BatchJobMetrics) (bills.Service, error) {
	ledger, err := wallet.NewLedger(wallet.NewRepository(dbClient.DB()), cfg.Billing.WalletMatchWindow, logg, billingMetrics)
	if err != nil {
		return nil, err
	}
	rules, err := splitrules.NewService(splitrules.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		return nil, err
	}
	reader, err := appointments.NewReader(appointments.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return nil, err
	}
	return bills.NewService(bills.ServiceParams{
		Repository:      bills.NewRepository(dbClient.DB()),
		Tx:              dbClient,
		Outbox:          outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		SplitRules:      rules,
		Wallet:          ledger,
		Appointments:    reader,
		Logger:          logg,
		Metrics:         billingMetrics,
		BatchMetrics:    batchMetrics,
		DefaultCurrency: cfg.Billing.DefaultCurrency,
	})
}

func requireJob(logg *logger.Logger, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create job", err)
	os.Exit(1)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
