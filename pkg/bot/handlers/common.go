package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/logger"
)

// ChatSender sends plain text messages through the bot. It lets background
// jobs report to chats without depending on the bot API types.
type ChatSender struct {
	Bot *bot.Bot
}

func (s ChatSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := s.Bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}

// resolveTelegramUser maps a Telegram account to its stored user.
func resolveTelegramUser(ctx context.Context, from *models.User) (auth.Credentials, db.User, error) {
	creds := auth.Telegram(from.ID, displayName(from))
	user, err := creds.User(ctx)
	if err != nil {
		return creds, db.User{}, err
	}
	return creds, user, nil
}

func displayName(from *models.User) string {
	if from == nil {
		return ""
	}
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		name = from.Username
	}
	return name
}

func sendText(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func callbackAnswerer(ctx context.Context, b *bot.Bot, callbackID string) func(string) {
	answered := false
	return func(text string) {
		if answered || callbackID == "" {
			return
		}
		if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: callbackID,
			Text:            text,
		}); err != nil {
			logger.Error("failed to answer callback query", "error", err)
		}
		answered = true
	}
}

// callbackMessage returns the accessible message a callback belongs to.
func callbackMessage(update *models.Update) (*models.Message, bool) {
	message := update.CallbackQuery.Message
	if message.Type != models.MaybeInaccessibleMessageTypeMessage || message.Message == nil {
		return nil, false
	}
	if message.Message.Chat.ID == 0 {
		return nil, false
	}
	return message.Message, true
}

func validMessage(update *models.Update) bool {
	return update != nil && update.Message != nil && update.Message.From != nil && update.Message.Chat.ID != 0
}

func clearKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{},
	}
}
