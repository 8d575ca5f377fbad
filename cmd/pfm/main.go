package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pfm/internal/cli"
	apphttp "pfm/internal/http"
	pfmlog "pfm/internal/log"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(os.Stdout)

	ctx := pfmlog.WithLogger(context.Background(), logger)
	ledger, err := cli.NewLedger(ctx, cfg)
	if err != nil {
		logger.Fail(ctx, "Failed to initialize ledger", err, pfmlog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, ledger, logger)
	if err != nil {
		logger.Fail(ctx, "Failed to initialize HTTP server", err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Fail(ctx, "Server shutdown error", err)
		}
		if err := ledger.Close(); err != nil {
			logger.Fail(ctx, "Ledger close error", err)
		}
	})

	if cfg.AdviceAPIKey == "" {
		logger.Warn("ADVICE_API_KEY not set, recommendations will show a diagnostic")
	}
	logger.Info("Starting pfm server",
		"port", cfg.Port,
		pfmlog.FieldBackend, cfg.DataBackend,
		"events", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fail(ctx, "Server error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
