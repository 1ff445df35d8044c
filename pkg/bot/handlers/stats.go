package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/analytics"
	"github.com/smith3v/study-tracker/pkg/logger"
)

func HandleStats(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleStats")
		return
	}
	chatID := update.Message.Chat.ID

	_, user, err := resolveTelegramUser(ctx, update.Message.From)
	if err != nil {
		logger.Error("failed to resolve telegram user", "telegram_user_id", update.Message.From.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to load your stats. Please try again later.")
		return
	}
	summary, err := analytics.UserSummary(ctx, user.ID, time.Now().UTC())
	if err != nil {
		logger.Error("failed to load stats", "user_id", user.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to load your stats. Please try again later.")
		return
	}
	sendText(ctx, b, chatID, formatStats(summary))
}

func formatStats(summary analytics.Summary) string {
	if summary.Sessions == 0 {
		return fmt.Sprintf("No sessions yet. Level %d, %d cards due.\nSend /review to get started.", summary.Level, summary.DueCards)
	}
	return fmt.Sprintf(
		"Level %d, %d XP\nStreak: %d day(s)\nSessions: %d, accuracy %.1f%% (%d/%d)\nCards: %d, due now: %d",
		summary.Level,
		summary.XP,
		summary.Streak,
		summary.Sessions,
		summary.Accuracy,
		summary.Correct,
		summary.Correct+summary.Incorrect,
		summary.Flashcards,
		summary.DueCards,
	)
}
