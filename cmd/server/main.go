package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hoanghai1803/dokhae/internal/ai"
	"github.com/hoanghai1803/dokhae/internal/api"
	"github.com/hoanghai1803/dokhae/internal/cache"
	"github.com/hoanghai1803/dokhae/internal/config"
	"github.com/hoanghai1803/dokhae/internal/fetch"
	"github.com/hoanghai1803/dokhae/internal/pipeline"
	"github.com/hoanghai1803/dokhae/internal/scheduler"
	"github.com/hoanghai1803/dokhae/internal/storage"
	"github.com/hoanghai1803/dokhae/internal/youtube"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	dataDir := flag.String("data-dir", "", "path to data directory (overrides server.data_dir)")
	flag.Parse()

	// Load configuration (auto-creates default if missing).
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Server.DataDir = *dataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		return err
	}

	// Open database with WAL mode and pragmas.
	db, err := storage.OpenDatabase(filepath.Join(cfg.Server.DataDir, "dokhae.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	// Run schema migrations.
	if err := storage.RunMigrations(db); err != nil {
		return err
	}
	store := storage.NewStore(db)

	if cfg.AI.APIKey == "" {
		return errors.New("ai.api_key is required: translation and enrichment need a provider")
	}
	provider, err := ai.NewProvider(ai.ProviderConfig{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
	})
	if err != nil {
		return err
	}
	slog.Info("AI provider configured", "provider", cfg.AI.Provider, "model", cfg.AI.Model)

	deps := pipeline.Deps{
		Extractor: fetch.NewFetcher(fetch.Options{
			Timeout:   time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
			RateLimit: time.Duration(cfg.Fetch.RateLimitSeconds) * time.Second,
			MaxWords:  cfg.Fetch.MaxWords,
		}),
		Translator: provider,
		Enricher:   provider,
		Recorder:   store,
	}

	if cfg.YouTube.APIKey != "" {
		yt, err := youtube.NewClient(ctx, youtube.Config{
			APIKey:              cfg.YouTube.APIKey,
			TranscriptLanguages: cfg.YouTube.TranscriptLanguages,
		})
		if err != nil {
			return err
		}
		deps.Platform = yt
	} else {
		slog.Warn("no YouTube API key configured, video references will be unavailable")
	}

	if cfg.Transcription.Enabled {
		tr, err := ai.NewTranscriber(ai.ProviderConfig{
			Provider: cfg.Transcription.Provider,
			APIKey:   cfg.Transcription.APIKey,
			Model:    cfg.Transcription.Model,
		})
		if err != nil {
			return err
		}
		deps.Transcriber = tr
		slog.Info("transcription fallback enabled", "provider", cfg.Transcription.Provider, "model", cfg.Transcription.Model)
	}

	if cfg.Cache.Persist {
		deps.Backend = store.AnalysisCache()
	}

	p, err := pipeline.New(pipeline.Config{
		TTL:     cfg.Cache.TTL(),
		Timeout: time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.Pipeline.MaxAttempts,
			CallTimeout: time.Duration(cfg.Pipeline.CallTimeoutSeconds) * time.Second,
		},
		TranslateBatchSize:    cfg.Pipeline.TranslateBatchSize,
		TranslateConcurrency:  cfg.Pipeline.TranslateConcurrency,
		DefaultTargetLanguage: cfg.Pipeline.DefaultTargetLanguage,
		MinLanguageConfidence: cfg.Pipeline.MinLanguageConfidence,
	}, deps)
	if err != nil {
		return err
	}

	sched, err := housekeeping(cfg, p, store)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	router := api.NewRouter(p, store, sched, cfg.Cache.Persist)
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", "http://"+srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// housekeeping registers the cache sweep and run log pruning jobs.
func housekeeping(cfg *config.Config, p *pipeline.Pipeline, store *storage.Store) (*scheduler.Scheduler, error) {
	sched := scheduler.New()

	err := sched.AddJob("cache-sweep", cfg.Cache.SweepSchedule, time.Minute, func(ctx context.Context) error {
		n, err := p.Sweep(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			slog.Info("swept expired analyses", "removed", n, "stats", statsAttr(p.Stats()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	retention := time.Duration(cfg.Cache.RunRetentionDays) * 24 * time.Hour
	err = sched.AddJob("prune-runs", "@daily", time.Minute, func(ctx context.Context) error {
		n, err := store.PruneRuns(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			slog.Info("pruned analysis runs", "removed", n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sched, nil
}

func statsAttr(s cache.Stats) slog.Value {
	return slog.GroupValue(
		slog.Int("entries", s.Entries),
		slog.Int64("hits", s.Hits),
		slog.Int64("misses", s.Misses),
	)
}
