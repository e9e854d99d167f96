// Package main wires together the news ingestion service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/huanews/newsingest/internal/api"
	"github.com/huanews/newsingest/internal/clock/system"
	"github.com/huanews/newsingest/internal/config"
	"github.com/huanews/newsingest/internal/dedup"
	"github.com/huanews/newsingest/internal/enrich"
	"github.com/huanews/newsingest/internal/feed"
	"github.com/huanews/newsingest/internal/fetch"
	"github.com/huanews/newsingest/internal/ingest"
	"github.com/huanews/newsingest/internal/logging"
	"github.com/huanews/newsingest/internal/notify"
	"github.com/huanews/newsingest/internal/scheduler"
	memorystorage "github.com/huanews/newsingest/internal/storage/memory"
	pgstorage "github.com/huanews/newsingest/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	notifier, closeNotifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		logger.Fatal("notifier init failed", zap.Error(err))
	}
	defer closeNotifier()

	clk := system.New()
	fetcher := fetch.New(fetch.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		Retries:      cfg.Fetch.Retries,
		DomainQPS:    cfg.Fetch.DomainQPS,
		RobotsTTL:    cfg.RobotsCacheTTL(),
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	}, clk, logger.Named("fetch"))

	orch, err := ingest.NewOrchestrator(ingest.OrchestratorParams{
		Store:      store,
		Fetcher:    fetcher,
		Normalizer: feed.NewNormalizer(logger.Named("feed")),
		Prints:     dedup.NewEngine(cfg.Dedup.SimhashHammingThreshold),
		Enricher:   enrich.New(),
		Notifier:   notifier,
		Clock:      clk,
		Logger:     logger.Named("ingest"),
	}, ingest.OrchestratorConfig{
		NearDuplicateCheck: cfg.Dedup.NearDuplicateCheck,
		FingerprintWindow:  cfg.Dedup.FingerprintWindow,
		EnrichEnabled:      cfg.Enrich.Enabled,
		SummaryMaxChars:    cfg.Enrich.SummaryMaxChars,
		KeywordsTopK:       cfg.Enrich.KeywordTopK,
		EnrichTimeout:      cfg.EnrichTimeout(),
	})
	if err != nil {
		logger.Fatal("orchestrator init failed", zap.Error(err))
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(orch, cfg.SchedulerInterval(), logger.Named("scheduler"))
		sched.Start(ctx)
		defer sched.Wait()
	}

	apiServer := api.NewServer(orch, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (ingest.Store, func(), error) {
	switch cfg.DB.Provider {
	case "postgres":
		store, err := pgstorage.New(ctx, pgstorage.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
		}, logger.Named("postgres"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "memory":
		return memorystorage.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown db provider %q", cfg.DB.Provider)
	}
}

func buildNotifier(ctx context.Context, cfg config.Config) (ingest.Notifier, func(), error) {
	switch cfg.Notifier.Provider {
	case "webhook":
		return notify.NewWebhook(cfg.Notifier.WebhookURL, 5*time.Second), func() {}, nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Notifier.PubSub.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		topic := client.Topic(cfg.Notifier.PubSub.Topic)
		closer := func() {
			topic.Stop()
			_ = client.Close()
		}
		return notify.NewPubSub(topic), closer, nil
	case "noop", "":
		return notify.NewNoop(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown notifier provider %q", cfg.Notifier.Provider)
	}
}
