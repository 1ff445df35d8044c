// cmd/study-tracker/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/smith3v/study-tracker/pkg/api"
	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/battle"
	"github.com/smith3v/study-tracker/pkg/bot/handlers"
	"github.com/smith3v/study-tracker/pkg/config"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/jobs"
	"github.com/smith3v/study-tracker/pkg/logger"
	"github.com/smith3v/study-tracker/pkg/scoring"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flags := pflag.NewFlagSet("study-tracker", pflag.ExitOnError)
	configPath := flags.String("config", "config.json", "path to the JSON or YAML config file")
	issueToken := flags.String("issue-token", "", "print a signed API token for this subject and exit")
	flags.String("http.addr", config.AppConfig.HTTP.Addr, "HTTP listen address")
	flags.String("logging.level", "", "log level (debug, info, warn, error)")
	flags.Bool("telegram.enabled", config.AppConfig.Telegram.Enabled, "run the Telegram bot when a token is configured")
	_ = flags.Parse(os.Args[1:])

	if err := config.Load(*configPath, flags); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.AppConfig
	if err := logger.Configure(logger.Options{
		Level: cfg.Logging.Level,
		File:  cfg.Logging.File,
	}); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}

	if subject := strings.TrimSpace(*issueToken); subject != "" {
		token, err := auth.CreateToken(cfg.Auth, subject, "", time.Now())
		if err != nil {
			logger.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg); err != nil {
		logger.Error("study tracker stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	if err := db.InitDB(cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	policy, err := scoring.ParseSameDayPolicy(cfg.Scoring.SameDayReward)
	if err != nil {
		return err
	}
	scoring.ResetDefaultEngine(policy)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	restored, err := battle.DefaultManager.RestoreAll(ctx)
	if err != nil {
		logger.Error("failed to restore battles", "error", err)
	} else if restored > 0 {
		logger.Info("restored battles", "count", restored)
	}

	tracker := handlers.NewActivityTracker()
	b, err := newBot(cfg, tracker)
	if err != nil {
		return err
	}

	scheduler := jobs.New(jobs.Options{
		Bot:              b,
		Tracker:          tracker,
		RemindersEnabled: cfg.Reminders.Enabled,
	})
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start jobs: %w", err)
	}

	handler, err := api.NewServer(nil, nil).Handler(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up the API: %w", err)
	}
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	if b != nil {
		go func() {
			logger.Info("Starting bot...")
			b.Start(ctx)
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			cancel()
			scheduler.Stop()
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	logger.Info("shutting down")
	scheduler.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// newBot returns nil when the bot is disabled or has no token.
func newBot(cfg config.Config, tracker *handlers.ActivityTracker) (*bot.Bot, error) {
	if !cfg.Telegram.Enabled || strings.TrimSpace(cfg.Telegram.Token) == "" {
		logger.Info("Telegram bot disabled")
		return nil, nil
	}
	b, err := bot.New(cfg.Telegram.Token, handlers.Options(tracker)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	handlers.Register(b)
	return b, nil
}
