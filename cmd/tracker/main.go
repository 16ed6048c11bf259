package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"tracker/internal/auth"
	"tracker/internal/config"
	"tracker/internal/logging"
	"tracker/internal/server"
	"tracker/internal/storage/sqlite"
	"tracker/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	addrFlag := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbFlag := flag.String("db", cfg.DBPath, "Path to sqlite database file")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("task tracker starting", slog.String("db", *dbFlag))
	if cfg.GeneratedSecret {
		logger.Warn("TRACKER_DEV set without TRACKER_SESSION_SECRET; sessions will not survive a restart")
	}

	store, err := sqlite.Open(*dbFlag, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	authSvc, err := auth.NewService(store, auth.Options{
		Secret:     []byte(cfg.SessionSecret),
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("unable to start auth service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := server.New(server.Options{
		Store:        store,
		Auth:         authSvc,
		Tasks:        tasks.NewService(store, logger),
		Logger:       logger,
		CookieSecure: cfg.CookieSecure,
		AuthRate:     rate.Limit(float64(cfg.AuthRatePerMin) / 60.0),
		AuthBurst:    cfg.AuthRateBurst,

		TrustedProxies: cfg.TrustedProxies,
	})

	httpServer := &http.Server{
		Addr:              *addrFlag,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
