package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/battle"
	"github.com/smith3v/study-tracker/pkg/bot/practice"
	"github.com/smith3v/study-tracker/pkg/logger"
)

// HandleStop ends the user's practice run and battle in this chat, scoring
// whatever was answered.
func HandleStop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleStop")
		return
	}
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	stopped := false

	summary, ok, err := practice.DefaultManager.Stop(ctx, chatID, userID)
	if err != nil {
		logger.Error("failed to stop practice", "telegram_user_id", userID, "error", err)
	}
	if ok {
		stopped = true
		sendText(ctx, b, chatID, practice.FormatSummary(summary))
	}

	outcome, err := battle.DefaultManager.Forfeit(ctx, battle.TelegramKey(chatID, userID))
	switch {
	case errors.Is(err, battle.ErrNoBattle):
	case err != nil:
		logger.Error("failed to forfeit battle", "telegram_user_id", userID, "error", err)
		stopped = true
		sendText(ctx, b, chatID, battle.FormatOutcome(outcome))
	default:
		stopped = true
		sendText(ctx, b, chatID, battle.FormatOutcome(outcome))
	}

	if !stopped {
		sendText(ctx, b, chatID, "Nothing to stop.")
	}
}
