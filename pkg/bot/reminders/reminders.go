package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/logger"
	"github.com/smith3v/study-tracker/pkg/review"
)

const (
	slotMorningHour   = 8
	slotAfternoonHour = 13
	slotEveningHour   = 20

	// MaxMissed consecutive ignored reminders pause the user's reminders.
	MaxMissed = 3
)

// Slot names accepted by SetSlot.
const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
)

// Process sends the reminders due at now and returns how many went out.
func Process(ctx context.Context, b *bot.Bot, now time.Time) int {
	if db.DB == nil {
		return 0
	}
	var settings []db.ReminderSettings
	if err := db.DB.WithContext(ctx).
		Where("chat_id <> 0 AND reminders_paused = ?", false).
		Find(&settings).Error; err != nil {
		logger.Error("failed to fetch users for reminders", "error", err)
		return 0
	}

	sent := 0
	for _, entry := range settings {
		ok, err := handleUserReminder(ctx, b, entry, now)
		if err != nil {
			logger.Error("failed to send reminder", "user_id", entry.UserID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent
}

func handleUserReminder(ctx context.Context, b *bot.Bot, settings db.ReminderSettings, now time.Time) (bool, error) {
	if settings.RemindersPaused || settings.ChatID == 0 {
		return false, nil
	}
	if _, ok := latestDueSlot(now, settings); !ok {
		return false, nil
	}

	missed := computeMissedCount(settings)
	if missed >= MaxMissed {
		settings.RemindersPaused = true
		settings.MissedReminders = missed
		if err := db.DB.WithContext(ctx).Save(&settings).Error; err != nil {
			return false, fmt.Errorf("pause reminders: %w", err)
		}
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: settings.ChatID,
			Text:   "Paused reminders due to inactivity. Send /reminders resume to turn them back on.",
		}); err != nil {
			logger.Error("failed to send pause notice", "user_id", settings.UserID, "error", err)
		}
		logger.Info("reminders paused", "user_id", settings.UserID, "missed", missed)
		return false, nil
	}

	due, err := review.CountDue(ctx, settings.UserID, now)
	if err != nil {
		return false, err
	}
	if due == 0 {
		return false, nil
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: settings.ChatID,
		Text:   FormatReminder(due),
	}); err != nil {
		return false, err
	}

	settings.LastReminderSentAt = &now
	settings.MissedReminders = missed
	if err := db.DB.WithContext(ctx).Save(&settings).Error; err != nil {
		return true, fmt.Errorf("update reminder state: %w", err)
	}
	return true, nil
}

func FormatReminder(due int64) string {
	if due == 1 {
		return "You have 1 card due. Send /review to practice."
	}
	return fmt.Sprintf("You have %d cards due. Send /review to practice.", due)
}

// latestDueSlot returns the most recent enabled slot that has passed in the
// user's local day and has not been served yet.
func latestDueSlot(now time.Time, settings db.ReminderSettings) (time.Time, bool) {
	offset := time.Duration(settings.TimezoneOffsetHours) * time.Hour
	localNow := now.Add(offset)
	year, month, day := localNow.Date()

	var latest time.Time
	consider := func(enabled bool, hour int) {
		if !enabled {
			return
		}
		localSlot := time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
		slotUTC := localSlot.Add(-offset)
		if now.Before(slotUTC) {
			return
		}
		if settings.LastReminderSentAt != nil && !settings.LastReminderSentAt.Before(slotUTC) {
			return
		}
		if latest.IsZero() || slotUTC.After(latest) {
			latest = slotUTC
		}
	}

	consider(settings.ReminderMorning, slotMorningHour)
	consider(settings.ReminderAfternoon, slotAfternoonHour)
	consider(settings.ReminderEvening, slotEveningHour)

	if latest.IsZero() {
		return time.Time{}, false
	}
	return latest, true
}

// computeMissedCount counts the previous reminder as missed unless the user
// engaged with the bot after it was sent.
func computeMissedCount(settings db.ReminderSettings) int {
	missed := settings.MissedReminders
	if settings.LastReminderSentAt == nil {
		return missed
	}
	if settings.LastEngagedAt == nil || settings.LastEngagedAt.Before(*settings.LastReminderSentAt) {
		return missed + 1
	}
	return 0
}
