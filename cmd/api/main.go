package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/inkledger-backend/api/routes"
	"github.com/angelmondragon/inkledger-backend/internal/appointments"
	"github.com/angelmondragon/inkledger-backend/internal/bills"
	"github.com/angelmondragon/inkledger-backend/internal/splitrules"
	"github.com/angelmondragon/inkledger-backend/internal/wallet"
	"github.com/angelmondragon/inkledger-backend/pkg/config"
	"github.com/angelmondragon/inkledger-backend/pkg/db"
	"github.com/angelmondragon/inkledger-backend/pkg/instance"
	"github.com/angelmondragon/inkledger-backend/pkg/logger"
	"github.com/angelmondragon/inkledger-backend/pkg/metrics"
	"github.com/angelmondragon/inkledger-backend/pkg/migrate"
	"github.com/angelmondragon/inkledger-backend/pkg/outbox"
	"github.com/angelmondragon/inkledger-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	billingMetrics := metrics.NewBillingMetrics(registry)
	batchMetrics := metrics.NewBatchJobMetrics(registry)

	ledger, err := wallet.NewLedger(wallet.NewRepository(dbClient.DB()), cfg.Billing.WalletMatchWindow, logg, billingMetrics)
	requireResource(logg, "wallet ledger", err)

	ruleService, err := splitrules.NewService(splitrules.NewRepository(dbClient.DB()), dbClient, logg)
	requireResource(logg, "split rule service", err)

	appointmentReader, err := appointments.NewReader(appointments.NewRepository(dbClient.DB()), logg)
	requireResource(logg, "appointment reader", err)

	billService, err := bills.NewService(bills.ServiceParams{
		Repository:      bills.NewRepository(dbClient.DB()),
		Tx:              dbClient,
		Outbox:          outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		SplitRules:      ruleService,
		Wallet:          ledger,
		Appointments:    appointmentReader,
		Logger:          logg,
		Metrics:         billingMetrics,
		BatchMetrics:    batchMetrics,
		DefaultCurrency: cfg.Billing.DefaultCurrency,
	})
	requireResource(logg, "bill service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			nil,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			billService,
			ledger,
			ruleService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(context.Background(), "resource", name), "failed to initialize resource", err)
	os.Exit(1)
}
