package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/battle"
	"github.com/smith3v/study-tracker/pkg/logger"
)

const battleRevealPrefix = "b:r:"

func HandleBattleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !validMessage(update) {
		logger.Error("invalid update in HandleBattleStart")
		return
	}
	chatID := update.Message.Chat.ID
	from := update.Message.From

	if update.Message.Chat.Type != models.ChatTypePrivate {
		sendText(ctx, b, chatID, "The /battle command works only in private chat.")
		return
	}

	creds, user, err := resolveTelegramUser(ctx, from)
	if err != nil {
		logger.Error("failed to resolve telegram user", "telegram_user_id", from.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to start the battle. Please try again later.")
		return
	}

	player := battle.Player{Creds: creds, UserID: user.ID, ChatID: chatID, TelegramUserID: from.ID}
	prompt, err := battle.DefaultManager.StartForPlayer(ctx, player)
	if errors.Is(err, battle.ErrNoFlashcards) {
		sendText(ctx, b, chatID, "You have no flashcards yet. Add some in the web app first.")
		return
	}
	if err != nil {
		logger.Error("failed to start battle", "user_id", user.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to start the battle. Please try again later.")
		return
	}

	sendBattlePrompt(ctx, b, player.Key(), chatID, prompt, true)
}

func HandleBattleCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.CallbackQuery == nil {
		logger.Error("invalid update in HandleBattleCallback")
		return
	}
	answerCallback := callbackAnswerer(ctx, b, update.CallbackQuery.ID)

	token := strings.TrimPrefix(update.CallbackQuery.Data, battleRevealPrefix)
	if !strings.HasPrefix(update.CallbackQuery.Data, battleRevealPrefix) || token == "" {
		answerCallback("Not active")
		return
	}
	msg, ok := callbackMessage(update)
	if !ok {
		answerCallback("Message missing")
		return
	}

	chatID := msg.Chat.ID
	userID := update.CallbackQuery.From.ID
	key := battle.TelegramKey(chatID, userID)
	result, err := battle.DefaultManager.Reveal(ctx, key, token, msg.ID)
	if err != nil {
		logger.Error("failed to record battle reveal", "telegram_user_id", userID, "error", err)
	}
	if !result.Handled {
		notice := result.Notice
		if notice == "" {
			notice = "Not active"
		}
		answerCallback(notice)
		return
	}

	editBattlePrompt(ctx, b, chatID, result.PromptMessageID, result.Card, "👀")
	answerCallback("")
	continueBattle(ctx, b, key, chatID, result)
}

// handleBattleTextAttempt treats free text as an answer when the user has
// an active battle in this chat.
func handleBattleTextAttempt(ctx context.Context, b *bot.Bot, update *models.Update) bool {
	if !validMessage(update) {
		return false
	}
	text := strings.TrimSpace(update.Message.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return false
	}

	chatID := update.Message.Chat.ID
	key := battle.TelegramKey(chatID, update.Message.From.ID)
	if _, ok := battle.DefaultManager.Current(ctx, key); !ok {
		return false
	}

	result, err := battle.DefaultManager.Answer(ctx, key, "", text)
	if err != nil {
		logger.Error("failed to record battle answer", "telegram_user_id", update.Message.From.ID, "error", err)
	}
	if !result.Handled {
		return true
	}

	suffix := "❌"
	if result.Correct {
		suffix = "✅"
	}
	editBattlePrompt(ctx, b, chatID, result.PromptMessageID, result.Card, suffix)
	continueBattle(ctx, b, key, chatID, result)
	return true
}

func continueBattle(ctx context.Context, b *bot.Bot, key string, chatID int64, result battle.AttemptResult) {
	if result.Outcome != nil {
		sendText(ctx, b, chatID, battle.FormatOutcome(*result.Outcome))
		return
	}
	if result.Next != nil {
		sendBattlePrompt(ctx, b, key, chatID, *result.Next, false)
	}
}

func sendBattlePrompt(ctx context.Context, b *bot.Bot, key string, chatID int64, prompt battle.Prompt, includeHint bool) {
	text := fmt.Sprintf("%s → ?", prompt.Shown)
	if includeHint {
		text += "\n(reply with the other side of the card, or tap 👀 to reveal, which counts as a miss)"
	}
	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "👀", CallbackData: battleRevealPrefix + prompt.Token}},
			},
		},
	})
	if err != nil {
		logger.Error("failed to send battle prompt", "chat_id", chatID, "error", err)
		return
	}
	battle.DefaultManager.SetCurrentMessageIDForToken(key, prompt.Token, msg.ID)
}

func editBattlePrompt(ctx context.Context, b *bot.Bot, chatID int64, messageID int, card battle.Card, suffix string) {
	if messageID == 0 {
		return
	}
	if _, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        formatBattleRevealText(card, suffix),
		ParseMode:   models.ParseModeMarkdown,
		ReplyMarkup: clearKeyboard(),
	}); err != nil {
		logger.Error("failed to edit battle prompt", "chat_id", chatID, "error", err)
	}
}

func formatBattleRevealText(card battle.Card, suffix string) string {
	shown := bot.EscapeMarkdown(card.Shown)
	expected := bot.EscapeMarkdown(card.Expected)
	return fmt.Sprintf("%s → ||%s|| %s", shown, expected, suffix)
}
