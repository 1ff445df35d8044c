package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/internal/testutil"
)

func TestHandleStartRegistersChat(t *testing.T) {
	testutil.SetupTestDB(t)
	resetManagers(t)

	client := newMockClient()
	b := newTestTelegramBot(t, client)

	HandleStart(context.Background(), b, newTestUpdate("/start", 202))

	user, err := db.LookupUser(context.Background(), "telegram:202")
	if err != nil {
		t.Fatalf("expected user to be created: %v", err)
	}
	if user.DisplayName != "Test" {
		t.Fatalf("expected display name from Telegram, got %q", user.DisplayName)
	}
	var settings db.ReminderSettings
	if err := db.DB.Where("user_id = ?", user.ID).First(&settings).Error; err != nil {
		t.Fatalf("failed to load reminder settings: %v", err)
	}
	if settings.ChatID != 202 || settings.TelegramUserID != 202 || !settings.ReminderEvening {
		t.Fatalf("unexpected reminder settings %+v", settings)
	}

	got := client.lastMessageText(t)
	if !strings.Contains(got, "Welcome") || !strings.Contains(got, "/review") {
		t.Fatalf("expected welcome message, got %q", got)
	}
}

func TestHandleStartTwiceKeepsOneSettingsRow(t *testing.T) {
	testutil.SetupTestDB(t)
	resetManagers(t)

	client := newMockClient()
	b := newTestTelegramBot(t, client)
	HandleStart(context.Background(), b, newTestUpdate("/start", 203))
	HandleStart(context.Background(), b, newTestUpdate("/start", 203))

	var count int64
	if err := db.DB.Model(&db.ReminderSettings{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count settings: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single settings row, got %d", count)
	}
}
