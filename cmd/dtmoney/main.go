package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"dtmoney/internal/amqp"
	"dtmoney/internal/cache"
	"dtmoney/internal/cli"
	apphttp "dtmoney/internal/http"
	applog "dtmoney/internal/log"
	"dtmoney/internal/session"
	"dtmoney/internal/store"
	"dtmoney/internal/worker"
)

func main() {
	os.Exit(serve())
}

// serve runs the server until a shutdown signal and returns the exit code.
// Every cleanup is deferred here so it runs before the process exits.
func serve() int {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}
	}()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.InstanceID)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			return 1
		}
		defer amqpClient.Close()
		logger.Info("AMQP enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue, "instance_id", cfg.InstanceID)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	sessionOpts := []session.Option{session.WithStoreOptions(store.WithFetchTimeout(cfg.FetchTimeout))}
	if amqpClient != nil {
		sessionOpts = append(sessionOpts, session.WithPublisher(amqpClient))
	}
	sessions := session.NewManager(be.Source, cfg.MaxSessions, cfg.SessionTTL, sessionOpts...)
	defer sessions.Close()

	caches := cache.NewManager()
	caches.Register("search_results", be.Cache.Results())
	caches.Register("sessions", sessions.Sessions())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, sessions, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready: func(ctx context.Context) error {
			_, err := be.Source.Search(ctx, "")
			return err
		},
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting dtmoney server", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if amqpClient != nil {
		refresher := worker.NewRefreshWorker(cfg.InstanceID, be.Cache, sessions)
		g.Go(func() error {
			err := amqpClient.ConsumeTransactionCreated(gctx, refresher.HandleTransactionCreated)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		return cli.ShutdownWithTimeout(logger, 30*time.Second, srv.Shutdown)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		return 1
	}
	logger.Info("Server stopped gracefully")
	return 0
}
