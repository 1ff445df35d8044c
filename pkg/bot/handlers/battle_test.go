package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/smith3v/study-tracker/pkg/battle"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/internal/testutil"
)

func expectedAnswer(shown string) string {
	if shown == "hola" {
		return "adios"
	}
	return "hola"
}

func TestHandleBattleStartWithoutFlashcards(t *testing.T) {
	testutil.SetupTestDB(t)
	resetManagers(t)

	client := newMockClient()
	b := newTestTelegramBot(t, client)

	HandleBattleStart(context.Background(), b, newTestUpdate("/battle", 4001))

	if got := client.lastMessageText(t); !strings.Contains(got, "no flashcards") {
		t.Fatalf("expected no-flashcards message, got %q", got)
	}
}

func TestBattleTextAnswersFinishTheBattle(t *testing.T) {
	testutil.SetupTestDB(t)
	resetManagers(t)
	ctx := context.Background()

	user := testutil.CreateUser(t, "telegram:4002")
	testutil.CreateFlashcard(t, user.ID, "card-hola", "hola", "adios")

	client := newMockClient()
	client.response = `{"ok":true,"result":{"message_id":42}}`
	b := newTestTelegramBot(t, client)

	HandleBattleStart(ctx, b, newTestUpdate("/battle", 4002))

	first := client.lastMessageText(t)
	if !strings.Contains(first, "→ ?") || !strings.Contains(first, "reveal") {
		t.Fatalf("expected first battle prompt with hint, got %q", first)
	}
	if body := client.lastRequestBody(t); !strings.Contains(body, battleRevealPrefix) {
		t.Fatalf("expected reveal button, got %q", body)
	}

	key := battle.TelegramKey(4002, 4002)
	prompt, ok := battle.DefaultManager.Current(ctx, key)
	if !ok {
		t.Fatalf("expected an active battle")
	}
	DefaultHandler(ctx, b, newTestUpdate(expectedAnswer(prompt.Shown), 4002))

	edit := requestField(t, client.lastRequestTo(t, "editMessageText"), "text")
	if !strings.Contains(edit, "✅") {
		t.Fatalf("expected a correct mark, got %q", edit)
	}
	second := client.lastMessageText(t)
	if strings.Contains(second, "reveal") {
		t.Fatalf("expected follow-up prompt without hint, got %q", second)
	}

	prompt, ok = battle.DefaultManager.Current(ctx, key)
	if !ok {
		t.Fatalf("expected the battle to continue")
	}
	DefaultHandler(ctx, b, newTestUpdate(expectedAnswer(prompt.Shown), 4002))

	if got := client.lastMessageText(t); !strings.Contains(got, "Battle over!") || !strings.Contains(got, "Accuracy: 100% (2/2)") {
		t.Fatalf("expected battle outcome, got %q", got)
	}
	if _, ok := battle.DefaultManager.Current(ctx, key); ok {
		t.Fatalf("expected the battle to be finished")
	}

	var sessions int64
	if err := db.DB.Model(&db.SessionRecord{}).Where("user_id = ?", user.ID).Count(&sessions).Error; err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if sessions != 1 {
		t.Fatalf("expected one scored session, got %d", sessions)
	}
}

func TestBattleRevealCountsAsMiss(t *testing.T) {
	testutil.SetupTestDB(t)
	resetManagers(t)
	ctx := context.Background()

	user := testutil.CreateUser(t, "telegram:4003")
	testutil.CreateFlashcard(t, user.ID, "card-hola", "hola", "adios")

	client := newMockClient()
	client.response = `{"ok":true,"result":{"message_id":42}}`
	b := newTestTelegramBot(t, client)

	HandleBattleStart(ctx, b, newTestUpdate("/battle", 4003))

	key := battle.TelegramKey(4003, 4003)
	prompt, ok := battle.DefaultManager.Current(ctx, key)
	if !ok {
		t.Fatalf("expected an active battle")
	}

	HandleBattleCallback(ctx, b, newTestCallbackUpdate(battleRevealPrefix+prompt.Token, 4003, 4003, 42))

	edit := requestField(t, client.lastRequestTo(t, "editMessageText"), "text")
	if !strings.Contains(edit, "👀") || !strings.Contains(edit, "||") {
		t.Fatalf("expected revealed answer, got %q", edit)
	}

	var record db.ReviewRecord
	if err := db.DB.Where("user_id = ?", user.ID).First(&record).Error; err != nil {
		t.Fatalf("expected a review record: %v", err)
	}
	if record.IncorrectCount != 1 {
		t.Fatalf("expected the reveal to count as a miss, got %+v", record)
	}

	// The token is spent after the reveal.
	requests := len(client.requests)
	HandleBattleCallback(ctx, b, newTestCallbackUpdate(battleRevealPrefix+prompt.Token, 4003, 4003, 42))
	if got := requestField(t, client.lastRequestTo(t, "answerCallbackQuery"), "text"); got == "" {
		t.Fatalf("expected a notice for a spent token")
	}
	if len(client.requests) != requests+1 {
		t.Fatalf("expected only a callback answer, got %d new requests", len(client.requests)-requests)
	}
}
