package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pfm/internal/amqp"
	"pfm/internal/cli"
	pfmlog "pfm/internal/log"
	"pfm/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(os.Stdout)
	logger = logger.WithComponent(pfmlog.ComponentWorker)
	ctx := pfmlog.WithLogger(context.Background(), logger)

	if cfg.MirrorBackend == "" {
		logger.Error("MIRROR_BACKEND is required for pfm-worker")
		os.Exit(1)
	}

	primary, err := cli.OpenPrimaryStore(ctx, cfg)
	if err != nil {
		logger.Fail(ctx, "Failed to open primary store", err, pfmlog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer closeIfCloser(primary)

	mirror, err := cli.OpenStore(ctx, cfg, cfg.MirrorBackend, cfg.MirrorFile)
	if err != nil {
		logger.Fail(ctx, "Failed to open mirror store", err, pfmlog.FieldBackend, cfg.MirrorBackend)
		os.Exit(1)
	}
	defer closeIfCloser(mirror)

	mw := worker.NewMirrorWorker(primary, mirror, cfg.SyncInterval)

	var consumer *amqp.Client
	if cfg.AMQPEnabled() {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The consumer reconnects on its own; start with the loop only.
			logger.Warn("AMQP unavailable at startup", pfmlog.FieldError, err)
			consumer = nil
		}
	} else {
		logger.Info("AMQP disabled, running reconcile loop only")
	}

	runCtx, done := cli.GracefulShutdown(logger, 15*time.Second, func(context.Context) {
		if consumer != nil {
			_ = consumer.Close()
		}
	})

	logger.Info("Starting pfm-worker",
		"primary", cfg.DataBackend,
		"mirror", cfg.MirrorBackend,
		"interval", cfg.SyncInterval)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return mw.Run(gctx)
	})
	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeTransactionAdded(gctx, mw.HandleAdded)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fail(ctx, "Worker stopped with error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	lastRun, copied := mw.Status()
	logger.Info("pfm-worker stopped", "last_run", lastRun, pfmlog.FieldCount, copied)
}

func closeIfCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
