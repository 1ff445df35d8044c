package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/bot/reminders"
)

// ActivityTracker collects Telegram users that talked to the bot so their
// missed reminder counters can be reset in one batch.
type ActivityTracker struct {
	mu      sync.Mutex
	pending map[int64]struct{}
}

func NewActivityTracker() *ActivityTracker {
	return &ActivityTracker{pending: make(map[int64]struct{})}
}

func (t *ActivityTracker) Touch(userID int64) {
	if t == nil || userID == 0 {
		return
	}
	t.mu.Lock()
	if t.pending == nil {
		t.pending = make(map[int64]struct{})
	}
	t.pending[userID] = struct{}{}
	t.mu.Unlock()
}

// Flush marks the pending users as engaged at now. Users stay pending when
// the update fails.
func (t *ActivityTracker) Flush(ctx context.Context, now time.Time) error {
	if t == nil {
		return nil
	}

	ids := t.snapshot()
	if len(ids) == 0 {
		return nil
	}
	if err := reminders.MarkEngaged(ctx, now, ids...); err != nil {
		return err
	}

	t.clear(ids)
	return nil
}

func (t *ActivityTracker) snapshot() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	return ids
}

func (t *ActivityTracker) clear(ids []int64) {
	t.mu.Lock()
	for _, id := range ids {
		delete(t.pending, id)
	}
	t.mu.Unlock()
}

func ActivityMiddleware(tracker *ActivityTracker) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update != nil {
				if update.Message != nil && update.Message.From != nil {
					tracker.Touch(update.Message.From.ID)
				}
				if update.CallbackQuery != nil && update.CallbackQuery.From.ID != 0 {
					tracker.Touch(update.CallbackQuery.From.ID)
				}
			}
			next(ctx, b, update)
		}
	}
}
