package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/logger"
)

// DefaultHandler routes free text to an active battle and answers
// everything else with the command list.
func DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		return
	}
	if update.Message.Chat.ID == 0 {
		logger.Error("chat ID is zero in DefaultHandler")
		return
	}

	if update.Message.Text != "" {
		if handled := handleBattleTextAttempt(ctx, b, update); handled {
			return
		}
	}
	sendText(ctx, b, update.Message.Chat.ID, helpText)
}
