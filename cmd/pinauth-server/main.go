// Command pinauth-server serves PIN login for shared-device employee
// terminals.
//
// Configuration is read from ./config.yaml or /etc/pinauth/config.yaml and
// PINAUTH_* environment variables (a .env file is loaded first). The session
// signing key is required:
//
//	PINAUTH_SESSION_SIGNING_KEY=$(openssl rand -base64 32) pinauth-server
//
// Endpoints:
//
//	POST /pin/login          {"principal_id":"...","pin":"..."}
//	POST /pin/second-factor  {"challenge":"...","code":"..."}
//	POST /pin/logout
//	GET  /app/{route}        restricted-session route check
//	GET  /metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/pinauth/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pinauth-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig(".", "/etc/pinauth")
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Environment, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown cleanup failed", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      a.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pinauth-server listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
