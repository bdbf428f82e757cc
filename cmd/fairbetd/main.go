package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fairbet/config"
	"fairbet/native/ledger"
	"fairbet/native/round"
	"fairbet/native/seeds"
	"fairbet/observability/logging"
	"fairbet/observability/metrics"
	"fairbet/observability/otel"
	"fairbet/rpc"
	"fairbet/storage/gamestore"
)

func main() {
	configFile := flag.String("config", "./fairbet.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("FAIRBET_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup(logging.Options{Service: "fairbetd", Env: env})
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Options{
		Service: "fairbetd",
		Env:     env,
		Level:   cfg.LogLevel,
		Path:    cfg.LogPath,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := otel.Init(ctx, otel.Config{
			Environment: env,
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    true,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", "err", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	var store *gamestore.Store
	switch cfg.Database.Driver {
	case "postgres":
		store, err = gamestore.OpenPostgres(cfg.Database.DSN)
	default:
		store, err = gamestore.OpenSQLite(cfg.Database.DSN)
	}
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.Database.Driver, "err", err)
		os.Exit(1)
	}

	seedEngine := seeds.NewEngine(store)

	ledgerEngine := ledger.NewEngine(store)
	ledgerEngine.SetLogger(logger.With("component", "ledger"))

	roundEngine := round.NewEngine(store, ledgerEngine, round.Config{
		HouseEdgeBps:    cfg.Game.HouseEdgeBps,
		MaxMultiplier:   cfg.Game.MaxMultiplier,
		WaitingDuration: time.Duration(cfg.Game.WaitingDurationMs) * time.Millisecond,
		TickInterval:    time.Duration(cfg.Game.TickIntervalMs) * time.Millisecond,
		GrowthRate:      cfg.Game.GrowthRate,
		MinStake:        cfg.Game.MinStake,
		MaxStake:        cfg.Game.MaxStake,
	})
	roundEngine.SetLogger(logger.With("component", "round"))
	roundEngine.SetMetrics(metrics.Casino())

	scheduler := round.NewScheduler(roundEngine)
	scheduler.SetLogger(logger.With("component", "scheduler"))
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler exited", "err", err)
			stop()
		}
	}()

	server := rpc.NewServer(seedEngine, ledgerEngine, roundEngine, rpc.Options{
		VerifyRate:  cfg.Verify.RatePerSecond,
		VerifyBurst: cfg.Verify.Burst,
		Healthy: func(ctx context.Context) error {
			db, err := store.DB().DB()
			if err != nil {
				return err
			}
			return db.PingContext(ctx)
		},
	})
	server.SetLogger(logger.With("component", "rpc"))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(cfg.RPCAddress) }()
	logger.Info("fairbetd listening", "addr", cfg.RPCAddress, "driver", cfg.Database.Driver)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("rpc server failed", "err", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("rpc shutdown failed", "err", err)
	}
	<-schedulerDone
	logger.Info("fairbetd stopped")
}
