package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/bot/reminders"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/logger"
	"github.com/smith3v/study-tracker/pkg/ui"
)

var ErrInvalidAction = errors.New("invalid settings action")

// HandleReminders opens the reminder settings. "/reminders <slot> on|off"
// and "/reminders resume" change settings directly.
func HandleReminders(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleReminders")
		return
	}
	chatID := update.Message.Chat.ID

	_, user, err := resolveTelegramUser(ctx, update.Message.From)
	if err != nil {
		logger.Error("failed to resolve telegram user", "telegram_user_id", update.Message.From.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to load your settings. Please try again later.")
		return
	}
	settings, err := reminders.Load(ctx, user.ID)
	if errors.Is(err, db.ErrRecordNotFound) {
		sendText(ctx, b, chatID, "Settings not found. Send /start to initialize your account.")
		return
	}
	if err != nil {
		logger.Error("failed to load reminder settings", "user_id", user.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to load your settings. Please try again later.")
		return
	}

	args := strings.Fields(update.Message.Text)
	if len(args) > 1 {
		settings, err = applyReminderArgs(ctx, user.ID, args[1:])
		if errors.Is(err, ErrInvalidAction) || errors.Is(err, reminders.ErrUnknownSlot) {
			sendText(ctx, b, chatID, "Usage: /reminders [morning|afternoon|evening on|off] or /reminders resume")
			return
		}
		if err != nil {
			logger.Error("failed to update reminder settings", "user_id", user.ID, "error", err)
			sendText(ctx, b, chatID, "Failed to save your settings. Please try again later.")
			return
		}
	}

	text, keyboard, err := ui.RenderHome(viewOf(settings))
	if err != nil {
		logger.Error("failed to render reminder settings", "user_id", user.ID, "error", err)
		return
	}
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard,
	}); err != nil {
		logger.Error("failed to send reminder settings", "user_id", user.ID, "error", err)
	}
}

func applyReminderArgs(ctx context.Context, userID uint, args []string) (db.ReminderSettings, error) {
	if len(args) == 1 && strings.EqualFold(args[0], "resume") {
		return reminders.Resume(ctx, userID, time.Now().UTC())
	}
	if len(args) != 2 {
		return db.ReminderSettings{}, ErrInvalidAction
	}
	switch strings.ToLower(args[1]) {
	case "on":
		return reminders.SetSlot(ctx, userID, args[0], true)
	case "off":
		return reminders.SetSlot(ctx, userID, args[0], false)
	default:
		return db.ReminderSettings{}, ErrInvalidAction
	}
}

func HandleRemindersCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.CallbackQuery == nil {
		logger.Error("invalid update in HandleRemindersCallback")
		return
	}
	answerCallback := callbackAnswerer(ctx, b, update.CallbackQuery.ID)

	action, err := ui.ParseCallbackData(update.CallbackQuery.Data)
	if err != nil {
		logger.Error("failed to parse settings callback", "data", update.CallbackQuery.Data, "error", err)
		answerCallback("Unknown command")
		return
	}
	msg, ok := callbackMessage(update)
	if !ok {
		answerCallback("Message is not available")
		return
	}

	_, user, err := resolveTelegramUser(ctx, &update.CallbackQuery.From)
	if err != nil {
		logger.Error("failed to resolve telegram user", "telegram_user_id", update.CallbackQuery.From.ID, "error", err)
		answerCallback("Failed to load settings")
		return
	}
	settings, err := reminders.Load(ctx, user.ID)
	if err != nil {
		logger.Error("failed to load reminder settings", "user_id", user.ID, "error", err)
		answerCallback("Failed to load settings")
		return
	}

	settings, next, err := applyAction(ctx, settings, action)
	if err != nil {
		logger.Error("failed to apply settings action", "user_id", user.ID, "error", err)
		answerCallback("Failed to save settings")
		return
	}
	answerCallback("")

	var text string
	var keyboard *models.InlineKeyboardMarkup
	view := viewOf(settings)
	switch next {
	case ui.ScreenHome:
		text, keyboard, err = ui.RenderHome(view)
	case ui.ScreenSlots:
		text, keyboard, err = ui.RenderSlots(view)
	case ui.ScreenTimezone:
		text, keyboard, err = ui.RenderTimezone(view.TimezoneOffset)
	case ui.ScreenClose:
		text = "Settings saved ✅"
		keyboard = clearKeyboard()
	default:
		logger.Error("unknown settings screen", "screen", next)
		return
	}
	if err != nil {
		logger.Error("failed to render settings screen", "user_id", user.ID, "error", err)
		return
	}

	if _, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        text,
		ReplyMarkup: keyboard,
	}); err != nil {
		logger.Error("failed to edit settings message", "user_id", user.ID, "error", err)
	}
}

// applyAction stores the change an action asks for and returns the screen
// to show next.
func applyAction(ctx context.Context, settings db.ReminderSettings, action ui.Action) (db.ReminderSettings, ui.Screen, error) {
	switch action.Screen {
	case ui.ScreenHome, ui.ScreenClose:
		return settings, action.Screen, nil
	case ui.ScreenResume:
		updated, err := reminders.Resume(ctx, settings.UserID, time.Now().UTC())
		return updated, ui.ScreenHome, err
	case ui.ScreenSlots:
		if action.Op == ui.OpNone {
			return settings, ui.ScreenSlots, nil
		}
		var slot string
		var enabled bool
		switch action.Value {
		case ui.SlotMorning:
			slot, enabled = reminders.SlotMorning, !settings.ReminderMorning
		case ui.SlotAfternoon:
			slot, enabled = reminders.SlotAfternoon, !settings.ReminderAfternoon
		case ui.SlotEvening:
			slot, enabled = reminders.SlotEvening, !settings.ReminderEvening
		default:
			return settings, ui.ScreenSlots, ErrInvalidAction
		}
		updated, err := reminders.SetSlot(ctx, settings.UserID, slot, enabled)
		return updated, ui.ScreenSlots, err
	case ui.ScreenTimezone:
		offset := settings.TimezoneOffsetHours
		switch action.Op {
		case ui.OpNone:
			return settings, ui.ScreenTimezone, nil
		case ui.OpInc, ui.OpDec:
			offset += action.Value
		case ui.OpSet:
			offset = action.Value
		default:
			return settings, ui.ScreenTimezone, ErrInvalidAction
		}
		updated, err := reminders.SetTimezone(ctx, settings.UserID, offset)
		return updated, ui.ScreenTimezone, err
	default:
		return settings, ui.ScreenHome, ErrInvalidAction
	}
}

func viewOf(settings db.ReminderSettings) ui.ReminderView {
	return ui.ReminderView{
		Morning:        settings.ReminderMorning,
		Afternoon:      settings.ReminderAfternoon,
		Evening:        settings.ReminderEvening,
		TimezoneOffset: settings.TimezoneOffsetHours,
		Paused:         settings.RemindersPaused,
	}
}
