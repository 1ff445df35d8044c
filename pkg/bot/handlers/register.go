package handlers

import (
	"github.com/go-telegram/bot"
	"github.com/smith3v/study-tracker/pkg/bot/practice"
	"github.com/smith3v/study-tracker/pkg/ui"
)

// Options returns the bot options that install the default handler and the
// activity middleware.
func Options(tracker *ActivityTracker) []bot.Option {
	return []bot.Option{
		bot.WithDefaultHandler(DefaultHandler),
		bot.WithMiddlewares(ActivityMiddleware(tracker)),
	}
}

// Register wires every command and callback handler into b.
func Register(b *bot.Bot) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, HandleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/review", bot.MatchTypeExact, HandleReview)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/battle", bot.MatchTypeExact, HandleBattleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/stop", bot.MatchTypeExact, HandleStop)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/stats", bot.MatchTypeExact, HandleStats)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/reminders", bot.MatchTypePrefix, HandleReminders)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, ui.CallbackPrefix, bot.MatchTypePrefix, HandleRemindersCallback)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, battleRevealPrefix, bot.MatchTypePrefix, HandleBattleCallback)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, practice.CallbackPrefix, bot.MatchTypePrefix, HandleReviewCallback)
}
