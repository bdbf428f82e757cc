package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fairbet/native/ledger"
	"fairbet/observability/logging"
	"fairbet/services/provider-gateway/config"
	"fairbet/services/provider-gateway/server"
	"fairbet/storage/gamestore"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.Setup(logging.Options{
		Service: "provider-gateway",
		Env:     os.Getenv("FAIRBET_ENV"),
		Level:   cfg.LogLevel,
	})

	var store *gamestore.Store
	switch cfg.DatabaseDriver {
	case "postgres":
		store, err = gamestore.OpenPostgres(cfg.DatabaseURL)
	default:
		store, err = gamestore.OpenSQLite(cfg.DatabaseURL)
	}
	if err != nil {
		log.Fatalf("database error: %v", err)
	}

	engine := ledger.NewEngine(store)
	engine.SetLogger(logger)

	srv := server.New(engine, server.Options{SharedSecret: cfg.SharedSecret})
	srv.SetLogger(logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("provider gateway listening", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
