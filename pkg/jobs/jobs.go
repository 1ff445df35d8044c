// Package jobs runs the periodic maintenance work: reminders, sweeping idle
// practice runs and battles, flushing activity and purging expired state.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/go-telegram/bot"
	"github.com/smith3v/study-tracker/pkg/battle"
	"github.com/smith3v/study-tracker/pkg/bot/handlers"
	"github.com/smith3v/study-tracker/pkg/bot/practice"
	"github.com/smith3v/study-tracker/pkg/bot/reminders"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/logger"
)

const (
	ReminderInterval = time.Minute
	FlushInterval    = time.Minute
	CleanupInterval  = time.Hour
)

type Options struct {
	// Bot is optional. Without it no reminders are sent and timed out
	// battles are scored silently.
	Bot *bot.Bot
	// Tracker collects Telegram activity between flushes.
	Tracker *handlers.ActivityTracker
	// RemindersEnabled turns the reminder job on when Bot is set.
	RemindersEnabled bool
}

type Scheduler struct {
	scheduler *gocron.Scheduler
	opts      Options
	now       func() time.Time
}

func New(opts Options) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	s.WaitForScheduleAll()
	return &Scheduler{
		scheduler: s,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start registers every job and runs them in the background until ctx is
// done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.opts.Bot != nil && s.opts.RemindersEnabled {
		if _, err := s.scheduler.Every(ReminderInterval).Do(s.sendReminders, ctx); err != nil {
			return err
		}
	}
	if _, err := s.scheduler.Every(battle.SweeperInterval).Do(s.sweepBattles, ctx); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(practice.SessionSweeperInterval).Do(s.sweepPractice, ctx); err != nil {
		return err
	}
	if s.opts.Tracker != nil {
		if _, err := s.scheduler.Every(FlushInterval).Do(s.flushActivity, ctx); err != nil {
			return err
		}
	}
	if _, err := s.scheduler.Every(CleanupInterval).Do(s.cleanupSessions, ctx); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logger.Info("background jobs started", "jobs", len(s.scheduler.Jobs()))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) Stop() {
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
	if s.opts.Tracker != nil {
		if err := s.opts.Tracker.Flush(context.Background(), s.now()); err != nil {
			logger.Error("failed to flush activity on shutdown", "error", err)
		}
	}
}

func (s *Scheduler) sendReminders(ctx context.Context) {
	sent := reminders.Process(ctx, s.opts.Bot, s.now())
	if sent > 0 {
		logger.Info("reminders sent", "count", sent)
	}
}

func (s *Scheduler) sweepBattles(ctx context.Context) {
	var sender battle.MessageSender
	if s.opts.Bot != nil {
		sender = handlers.ChatSender{Bot: s.opts.Bot}
	}
	if outcomes := battle.DefaultManager.SweepInactive(ctx, sender); len(outcomes) > 0 {
		logger.Info("timed out battles", "count", len(outcomes))
	}
}

func (s *Scheduler) sweepPractice(ctx context.Context) {
	if ended := practice.DefaultManager.SweepInactive(ctx); ended > 0 {
		logger.Info("ended idle practice runs", "count", ended)
	}
}

func (s *Scheduler) flushActivity(ctx context.Context) {
	if err := s.opts.Tracker.Flush(ctx, s.now()); err != nil {
		logger.Error("failed to flush activity", "error", err)
	}
}

// cleanupSessions scores idle practice runs before their rows are purged.
func (s *Scheduler) cleanupSessions(ctx context.Context) {
	s.sweepPractice(ctx)
	deleted, err := db.CleanupExpiredSessions(s.now())
	if err != nil {
		logger.Error("failed to clean up expired sessions", "error", err)
		return
	}
	if deleted > 0 {
		logger.Info("removed expired sessions", "count", deleted)
	}
}
