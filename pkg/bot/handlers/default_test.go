package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/smith3v/study-tracker/pkg/internal/testutil"
)

func TestDefaultHandlerSendsHelpForText(t *testing.T) {
	testutil.SetupTestDB(t)
	resetManagers(t)

	client := newMockClient()
	b := newTestTelegramBot(t, client)

	DefaultHandler(context.Background(), b, newTestUpdate("hello", 100))

	got := client.lastMessageText(t)
	if !strings.Contains(got, "Commands:") || !strings.Contains(got, "/battle") {
		t.Fatalf("expected commands message, got %q", got)
	}
}

func TestDefaultHandlerIgnoresUpdatesWithoutMessage(t *testing.T) {
	resetManagers(t)

	client := newMockClient()
	b := newTestTelegramBot(t, client)

	DefaultHandler(context.Background(), b, nil)
	DefaultHandler(context.Background(), b, newTestCallbackUpdate("s:home", 1, 1, 1))

	if len(client.requests) != 0 {
		t.Fatalf("expected no requests, got %d", len(client.requests))
	}
}
