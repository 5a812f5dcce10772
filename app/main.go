package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/replybot/app/api"
	"github.com/lysyi3m/replybot/app/audit"
	"github.com/lysyi3m/replybot/app/cfg"
	"github.com/lysyi3m/replybot/app/database"
	"github.com/lysyi3m/replybot/app/monitoring"
	"github.com/lysyi3m/replybot/app/reply"
	"github.com/lysyi3m/replybot/app/settings"
	"github.com/lysyi3m/replybot/app/social"
	"github.com/lysyi3m/replybot/app/tasks"
	"github.com/lysyi3m/replybot/app/triage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg.LoadEnv(".env")

	config, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if config == nil {
		// Help was shown
		return
	}

	setupLogger(config.Debug)

	if err := run(config); err != nil {
		slog.Error("ReplyBot stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(config *cfg.Cfg) error {
	slog.Info("Starting ReplyBot", "version", config.Version, "port", config.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	slog.Info("Reply ledger ready", "path", config.DBPath)

	replyRepo := database.NewReplyRepository(db)

	loaded, err := settings.Load(config.SettingsFile)
	if err != nil {
		return err
	}
	stores, err := loaded.Stores()
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	slog.Info("Settings loaded",
		"presets", stores.Presets.Len(),
		"blacklisted_users", stores.Blacklist.Len(),
		"persona_names", len(loaded.PersonaNames))

	var provider reply.Provider
	if config.GeminiAPIKey != "" {
		gemini, err := reply.NewGeminiProvider(ctx, config.GeminiAPIKey, config.GeminiModel)
		if err != nil {
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		provider = gemini
	} else {
		slog.Warn("GEMINI_API_KEY not set, every comment will be suppressed")
	}

	limiter := rate.NewLimiter(rate.Every(config.AIRequestInterval), config.AIRequestBurst)
	classifier := reply.NewClassifier(provider, stores.Instructions, limiter, loaded.PersonaNames,
		reply.WithProviderTimeout(config.HTTPTimeout))

	platform := social.NewClient(&http.Client{Timeout: config.HTTPTimeout},
		config.GraphAPIURL, config.GraphAPIVersion, config.UserAgent)

	sink := audit.NewTee(audit.NewSheetsSink(nil), audit.NewLedgerSink(replyRepo))
	metrics := monitoring.NewMetrics(config.Version)

	runner := triage.NewRunner(platform, stores.Presets, classifier, stores.Blacklist, sink, config.PostCutoff,
		triage.WithCallTimeout(config.HTTPTimeout),
		triage.WithMetrics(metrics))

	scheduler := tasks.NewScheduler(runner,
		tasks.WithLocation(config.ScheduleTimezone),
		tasks.WithCooldown(config.DailyCooldown),
		tasks.WithMetrics(metrics))

	handler := api.NewHandler(stores, scheduler, replyRepo, config.ScheduleTimezone, config.Version)

	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      api.NewServer(handler, config.APIAccessKey, metrics),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		slog.Info("HTTP server stopped")
		return nil
	})

	err = g.Wait()

	scheduler.Stop()
	slog.Info("ReplyBot shutdown complete")

	return err
}
