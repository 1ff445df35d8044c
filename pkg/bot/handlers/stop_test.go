package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/smith3v/study-tracker/pkg/battle"
	"github.com/smith3v/study-tracker/pkg/internal/testutil"
)

func TestHandleStopWithNothingActive(t *testing.T) {
	testutil.SetupTestDB(t)
	resetManagers(t)

	client := newMockClient()
	b := newTestTelegramBot(t, client)

	HandleStop(context.Background(), b, newTestUpdate("/stop", 601))

	if got := client.lastMessageText(t); got != "Nothing to stop." {
		t.Fatalf("expected nothing-to-stop message, got %q", got)
	}
}

func TestHandleStopForfeitsBattle(t *testing.T) {
	testutil.SetupTestDB(t)
	resetManagers(t)
	ctx := context.Background()

	user := testutil.CreateUser(t, "telegram:602")
	testutil.CreateFlashcard(t, user.ID, "card-hola", "hola", "adios")

	client := newMockClient()
	b := newTestTelegramBot(t, client)

	HandleBattleStart(ctx, b, newTestUpdate("/battle", 602))
	HandleStop(ctx, b, newTestUpdate("/stop", 602))

	if got := client.lastMessageText(t); !strings.Contains(got, "Battle over!") {
		t.Fatalf("expected battle outcome, got %q", got)
	}
	if _, ok := battle.DefaultManager.Current(ctx, battle.TelegramKey(602, 602)); ok {
		t.Fatalf("expected the battle to be forfeited")
	}
}

func TestHandleStopEndsPracticeRun(t *testing.T) {
	testutil.SetupTestDB(t)
	resetManagers(t)
	ctx := context.Background()

	user := testutil.CreateUser(t, "telegram:603")
	testutil.CreateFlashcard(t, user.ID, "card-hola", "hola", "hello")

	client := newMockClient()
	b := newTestTelegramBot(t, client)

	HandleReview(ctx, b, newTestUpdate("/review", 603))
	HandleStop(ctx, b, newTestUpdate("/stop", 603))

	if got := client.lastMessageText(t); !strings.Contains(got, "Practice done: 0 of 0") {
		t.Fatalf("expected practice summary, got %q", got)
	}
}
