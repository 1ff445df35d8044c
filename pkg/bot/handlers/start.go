package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/bot/reminders"
	"github.com/smith3v/study-tracker/pkg/logger"
)

const welcomeText = "Welcome to Study Tracker!\n" +
	"Your flashcards live in the web app; here you can practice them on the go.\n\n" +
	helpText

const helpText = "Commands:\n" +
	"/review: practice the cards that are due\n" +
	"/battle: typed-answer quiz over your cards\n" +
	"/stop: end the current practice or battle\n" +
	"/stats: XP, level and streak\n" +
	"/reminders: choose when to get due-card reminders"

// HandleStart creates the user and binds this chat for reminders.
func HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleStart")
		return
	}
	chatID := update.Message.Chat.ID

	_, user, err := resolveTelegramUser(ctx, update.Message.From)
	if err != nil {
		logger.Error("failed to resolve telegram user", "telegram_user_id", update.Message.From.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to initialize your account. Please try again later.")
		return
	}
	if _, err := reminders.Register(ctx, user.ID, update.Message.From.ID, chatID); err != nil {
		logger.Error("failed to register reminders", "user_id", user.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to initialize your account. Please try again later.")
		return
	}

	logger.Info("telegram user started", "user_id", user.ID, "chat_id", chatID)
	sendText(ctx, b, chatID, welcomeText)
}
