package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smith3v/study-tracker/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MinTimezoneOffset = -12
	MaxTimezoneOffset = 14
)

var ErrUnknownSlot = errors.New("unknown reminder slot")

// Register links userID to the Telegram chat reminders are sent to. New
// users get the evening slot.
func Register(ctx context.Context, userID uint, telegramUserID, chatID int64) (db.ReminderSettings, error) {
	const op = "reminders.Register"
	if err := db.Ready(op); err != nil {
		return db.ReminderSettings{}, err
	}
	settings := db.ReminderSettings{
		UserID:          userID,
		TelegramUserID:  telegramUserID,
		ChatID:          chatID,
		ReminderEvening: true,
	}
	err := db.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"telegram_user_id", "chat_id"}),
	}).Create(&settings).Error
	if err != nil {
		return db.ReminderSettings{}, db.Wrap(op, err)
	}
	return Load(ctx, userID)
}

func Load(ctx context.Context, userID uint) (db.ReminderSettings, error) {
	const op = "reminders.Load"
	if err := db.Ready(op); err != nil {
		return db.ReminderSettings{}, err
	}
	var settings db.ReminderSettings
	if err := db.DB.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error; err != nil {
		return db.ReminderSettings{}, db.Wrap(op, err)
	}
	return settings, nil
}

// SetSlot enables or disables one reminder slot.
func SetSlot(ctx context.Context, userID uint, slot string, enabled bool) (db.ReminderSettings, error) {
	const op = "reminders.SetSlot"
	column, ok := slotColumn(slot)
	if !ok {
		return db.ReminderSettings{}, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	return update(ctx, op, userID, map[string]interface{}{column: enabled})
}

// Resume lifts a pause caused by ignored reminders.
func Resume(ctx context.Context, userID uint, now time.Time) (db.ReminderSettings, error) {
	return update(ctx, "reminders.Resume", userID, map[string]interface{}{
		"reminders_paused": false,
		"missed_reminders": 0,
		"last_engaged_at":  now,
	})
}

// SetTimezone stores the user's UTC offset, clamped to the valid range.
func SetTimezone(ctx context.Context, userID uint, offsetHours int) (db.ReminderSettings, error) {
	if offsetHours < MinTimezoneOffset {
		offsetHours = MinTimezoneOffset
	}
	if offsetHours > MaxTimezoneOffset {
		offsetHours = MaxTimezoneOffset
	}
	return update(ctx, "reminders.SetTimezone", userID, map[string]interface{}{"timezone_offset_hours": offsetHours})
}

// MarkEngaged records bot activity of Telegram users, which resets their
// missed reminder counters.
func MarkEngaged(ctx context.Context, now time.Time, telegramUserIDs ...int64) error {
	if len(telegramUserIDs) == 0 || db.DB == nil {
		return nil
	}
	return db.DB.WithContext(ctx).Model(&db.ReminderSettings{}).
		Where("telegram_user_id IN ?", telegramUserIDs).
		Updates(map[string]interface{}{
			"last_engaged_at":  now,
			"missed_reminders": 0,
			"reminders_paused": false,
		}).Error
}

func update(ctx context.Context, op string, userID uint, values map[string]interface{}) (db.ReminderSettings, error) {
	if err := db.Ready(op); err != nil {
		return db.ReminderSettings{}, err
	}
	result := db.DB.WithContext(ctx).Model(&db.ReminderSettings{}).Where("user_id = ?", userID).Updates(values)
	if result.Error != nil {
		return db.ReminderSettings{}, db.Wrap(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return db.ReminderSettings{}, db.Wrap(op, gorm.ErrRecordNotFound)
	}
	return Load(ctx, userID)
}

func slotColumn(slot string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(slot)) {
	case SlotMorning:
		return "reminder_morning", true
	case SlotAfternoon:
		return "reminder_afternoon", true
	case SlotEvening:
		return "reminder_evening", true
	default:
		return "", false
	}
}
