package practice

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/study-tracker/pkg/db"
)

// CallbackPrefix starts the callback data of the answer buttons:
// "p:answer:<token>:<yes|no>".
const CallbackPrefix = "p:answer:"

const (
	answerYes = "yes"
	answerNo  = "no"
)

// BuildPrompt shows the front of the card with the back hidden as a spoiler.
func BuildPrompt(card db.Flashcard, position, total int) string {
	text := fmt.Sprintf("%s → ||%s||", bot.EscapeMarkdown(card.Front), bot.EscapeMarkdown(card.Back))
	if total > 1 {
		text = fmt.Sprintf("%s\n_%d/%d_", text, position, total)
	}
	return text
}

func BuildKeyboard(token string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Knew it", CallbackData: CallbackPrefix + token + ":" + answerYes},
				{Text: "❌ Forgot", CallbackData: CallbackPrefix + token + ":" + answerNo},
			},
		},
	}
}

// ParseCallback extracts the prompt token and the answer from callback data.
func ParseCallback(data string) (token string, correct bool, ok bool) {
	if !strings.HasPrefix(data, CallbackPrefix) {
		return "", false, false
	}
	parts := strings.Split(strings.TrimPrefix(data, CallbackPrefix), ":")
	if len(parts) != 2 || parts[0] == "" {
		return "", false, false
	}
	switch parts[1] {
	case answerYes:
		return parts[0], true, true
	case answerNo:
		return parts[0], false, true
	default:
		return "", false, false
	}
}

// ResolvedText appends the chosen answer to a prompt once it was graded.
func ResolvedText(prompt string, correct bool) string {
	label := "❌ Forgot"
	if correct {
		label = "✅ Knew it"
	}
	if prompt == "" {
		return label
	}
	return prompt + "\n" + label
}

func FormatSummary(summary Summary) string {
	text := fmt.Sprintf("Practice done: %d of %d remembered (%.1f%%).",
		summary.Correct, summary.Correct+summary.Incorrect, summary.Accuracy)
	if summary.Session != nil {
		text += fmt.Sprintf("\nXP: %d, level %d, streak %d",
			summary.Session.XPEarned, summary.Session.Level, summary.Session.StreakCount)
	}
	return text
}
