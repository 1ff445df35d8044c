package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/bot/practice"
	"github.com/smith3v/study-tracker/pkg/logger"
)

func HandleReview(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleReview")
		return
	}
	chatID := update.Message.Chat.ID
	from := update.Message.From

	if update.Message.Chat.Type != models.ChatTypePrivate {
		sendText(ctx, b, chatID, "The /review command works only in private chat.")
		return
	}

	creds, user, err := resolveTelegramUser(ctx, from)
	if err != nil {
		logger.Error("failed to resolve telegram user", "telegram_user_id", from.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to start review. Please try again later.")
		return
	}

	player := practice.Player{Creds: creds, UserID: user.ID, ChatID: chatID, TelegramUserID: from.ID}
	prompt, err := practice.DefaultManager.Start(ctx, player, practice.DefaultRunSize)
	if errors.Is(err, practice.ErrNothingDue) {
		sendText(ctx, b, chatID, "Nothing to review right now.")
		return
	}
	if err != nil {
		logger.Error("failed to start practice", "user_id", user.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to start review. Please try again later.")
		return
	}

	sendPracticePrompt(ctx, b, chatID, from.ID, prompt)
}

func HandleReviewCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.CallbackQuery == nil {
		logger.Error("invalid update in HandleReviewCallback")
		return
	}
	answerCallback := callbackAnswerer(ctx, b, update.CallbackQuery.ID)

	token, correct, ok := practice.ParseCallback(update.CallbackQuery.Data)
	if !ok {
		answerCallback("Not active")
		return
	}
	msg, ok := callbackMessage(update)
	if !ok {
		answerCallback("Message missing")
		return
	}
	userID := update.CallbackQuery.From.ID

	result, err := practice.DefaultManager.Answer(ctx, msg.Chat.ID, userID, token, msg.ID, correct)
	if err != nil {
		logger.Error("failed to record practice answer", "telegram_user_id", userID, "error", err)
		answerCallback("Failed to save your answer. Please try again.")
		return
	}
	if !result.Handled {
		answerCallback(result.Notice)
		return
	}

	if _, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		Text:        practice.ResolvedText(practice.BuildPrompt(result.Card, 0, 0), result.Correct),
		ParseMode:   models.ParseModeMarkdown,
		ReplyMarkup: clearKeyboard(),
	}); err != nil {
		logger.Error("failed to edit practice prompt", "telegram_user_id", userID, "error", err)
	}
	answerCallback("")

	if result.Summary != nil {
		sendText(ctx, b, msg.Chat.ID, practice.FormatSummary(*result.Summary))
		return
	}
	if result.Next != nil {
		sendPracticePrompt(ctx, b, msg.Chat.ID, userID, *result.Next)
	}
}

func sendPracticePrompt(ctx context.Context, b *bot.Bot, chatID, telegramUserID int64, prompt practice.Prompt) {
	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        practice.BuildPrompt(prompt.Card, prompt.Position, prompt.Total),
		ParseMode:   models.ParseModeMarkdown,
		ReplyMarkup: practice.BuildKeyboard(prompt.Token),
	})
	if err != nil {
		logger.Error("failed to send practice prompt", "telegram_user_id", telegramUserID, "error", err)
		return
	}
	practice.DefaultManager.SetCurrentMessageID(ctx, chatID, telegramUserID, prompt.Token, msg.ID)
}
