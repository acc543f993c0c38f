package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"umid/internal/audit"
	"umid/internal/biometric/capture"
	"umid/internal/biometric/handler"
	biometrics "umid/internal/biometric/metrics"
	"umid/internal/biometric/service"
	"umid/internal/biometric/store"
	"umid/internal/maintenance"
	"umid/internal/platform/config"
	"umid/internal/platform/httpserver"
	"umid/internal/platform/logger"
	"umid/internal/platform/postgres"
	platformredis "umid/internal/platform/redis"
	"umid/internal/registry"
	"umid/internal/scanner"
	"umid/internal/server"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "umid: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	adapter, conn := scanner.Connect(scanner.Config{
		Port:           cfg.Scanner.Port,
		Baud:           cfg.Scanner.Baud,
		CaptureTimeout: cfg.Scanner.CaptureTimeout(),
		DemoSeed:       cfg.Scanner.DemoSeed,
	})
	defer adapter.Close()
	log.Info("scanner initialized", "state", conn.State, "port", conn.Port, "reason", conn.Reason)

	fingerprints, faces, closeStores, err := buildStores(cfg.Store)
	if err != nil {
		return fmt.Errorf("init template store: %w", err)
	}
	defer closeStores()

	ids, err := buildRegistry(cfg.Registry)
	if err != nil {
		return fmt.Errorf("init identity registry: %w", err)
	}

	auditStore := audit.NewInMemory()
	publisher := audit.NewPublisher(auditStore)

	var sink *audit.KafkaSink
	inbox := make(chan audit.Event, 256)
	if len(cfg.Audit.KafkaBrokers) > 0 {
		sink, err = audit.NewKafkaSink(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		if err != nil {
			return fmt.Errorf("init audit sink: %w", err)
		}
		defer sink.Close()
		publisher = publisher.WithInbox(inbox)
	}

	svc := service.New(
		fingerprints,
		faces,
		adapter,
		capture.DemoDetector{},
		ids,
		cfg.Matching,
		service.WithLogger(log),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(biometrics.New()),
	)

	router := server.NewRouter(cfg, handler.New(svc, log), log)
	srv := httpserver.New(cfg.Addr, router)

	cleanup := maintenance.NewScheduler(svc, log)
	if err := cleanup.Start(cfg.Cleanup.Interval()); err != nil {
		return fmt.Errorf("start cleanup scheduler: %w", err)
	}
	defer cleanup.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting umid biometric service", "addr", cfg.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if sink != nil {
		worker := audit.NewWorker(sink, inbox, log)
		g.Go(func() error {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStores selects the persistence backend. The returned closer releases
// backend connections on shutdown.
func buildStores(cfg config.Store) (service.TemplateStore, service.FaceStore, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryTemplateStore(), store.NewMemoryFaceStore(), noop, nil
	case "file":
		fs, err := store.OpenFile(cfg.FilePath)
		if err != nil {
			return nil, nil, noop, err
		}
		return fs.Fingerprints(), fs.Faces(), noop, nil
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, noop, err
		}
		return store.NewPostgresTemplateStore(db), store.NewPostgresFaceStore(db),
			func() { _ = db.Close() }, nil
	case "redis":
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return nil, nil, noop, err
		}
		return store.NewRedisTemplateStore(client.Client), store.NewRedisFaceStore(client.Client),
			func() { _ = client.Close() }, nil
	default:
		return nil, nil, noop, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func buildRegistry(cfg config.Registry) (registry.IdentityRegistry, error) {
	if cfg.SeedFile == "" {
		return registry.AllowAll{}, nil
	}
	return registry.LoadSeedFile(cfg.SeedFile)
}
