package reminders

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	telegram "github.com/go-telegram/bot"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/internal/testutil"
	"github.com/smith3v/study-tracker/pkg/logger"
)

type recordedRequest struct {
	path        string
	contentType string
	body        []byte
}

type mockClient struct {
	requests []recordedRequest
	response string
}

func newMockClient() *mockClient {
	return &mockClient{
		response: `{"ok":true,"result":{}}`,
	}
}

func (m *mockClient) Do(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if err := req.Body.Close(); err != nil {
		return nil, fmt.Errorf("failed to close request body: %w", err)
	}
	m.requests = append(m.requests, recordedRequest{
		path:        req.URL.Path,
		contentType: req.Header.Get("Content-Type"),
		body:        body,
	})

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(m.response)),
		Header:     make(http.Header),
	}, nil
}

func (m *mockClient) lastMessageText(t *testing.T) string {
	t.Helper()
	if len(m.requests) == 0 {
		t.Fatalf("expected at least one recorded request")
	}
	req := m.requests[len(m.requests)-1]

	mediaType, params, err := mime.ParseMediaType(req.contentType)
	if err != nil {
		t.Fatalf("failed to parse media type: %v", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		t.Fatalf("unexpected media type: %s", mediaType)
	}

	reader := multipart.NewReader(bytes.NewReader(req.body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read multipart part: %v", err)
		}
		if part.FormName() == "text" {
			data, err := io.ReadAll(part)
			if err != nil {
				t.Fatalf("failed to read text part: %v", err)
			}
			return string(data)
		}
	}
	t.Fatalf("text field not found in request")
	return ""
}

func newTestTelegramBot(t *testing.T, client *mockClient) *telegram.Bot {
	t.Helper()
	b, err := telegram.New("test-token",
		telegram.WithSkipGetMe(),
		telegram.WithHTTPClient(time.Second, client),
	)
	if err != nil {
		t.Fatalf("failed to create test bot: %v", err)
	}
	return b
}

func TestLatestDueSlotSelectsMostRecent(t *testing.T) {
	now := time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC)
	settings := db.ReminderSettings{
		ReminderMorning:   true,
		ReminderAfternoon: true,
		ReminderEvening:   true,
	}

	slot, ok := latestDueSlot(now, settings)
	if !ok {
		t.Fatalf("expected due slot")
	}
	expected := time.Date(2025, 1, 2, 13, 0, 0, 0, time.UTC)
	if !slot.Equal(expected) {
		t.Fatalf("expected slot %v, got %v", expected, slot)
	}
}

func TestLatestDueSlotRespectsLastSent(t *testing.T) {
	now := time.Date(2025, 1, 2, 21, 0, 0, 0, time.UTC)
	lastSent := time.Date(2025, 1, 2, 20, 30, 0, 0, time.UTC)
	settings := db.ReminderSettings{
		ReminderMorning:    true,
		ReminderEvening:    true,
		LastReminderSentAt: &lastSent,
	}

	if _, ok := latestDueSlot(now, settings); ok {
		t.Fatalf("expected no slot after the evening reminder was sent")
	}
}

func TestLatestDueSlotUsesTimezoneOffset(t *testing.T) {
	// 06:30 UTC is 08:30 at UTC+2.
	now := time.Date(2025, 1, 2, 6, 30, 0, 0, time.UTC)
	settings := db.ReminderSettings{ReminderMorning: true, TimezoneOffsetHours: 2}

	slot, ok := latestDueSlot(now, settings)
	if !ok {
		t.Fatalf("expected morning slot to be due")
	}
	if expected := time.Date(2025, 1, 2, 6, 0, 0, 0, time.UTC); !slot.Equal(expected) {
		t.Fatalf("expected slot %v, got %v", expected, slot)
	}

	settings.TimezoneOffsetHours = 0
	if _, ok := latestDueSlot(now, settings); ok {
		t.Fatalf("expected no slot before 08:00 UTC")
	}
}

func TestComputeMissedCount(t *testing.T) {
	lastSent := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	lastEngaged := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

	settings := db.ReminderSettings{
		MissedReminders:    1,
		LastReminderSentAt: &lastSent,
	}
	if got := computeMissedCount(settings); got != 2 {
		t.Fatalf("expected missed count 2, got %d", got)
	}

	settings.LastEngagedAt = &lastEngaged
	if got := computeMissedCount(settings); got != 0 {
		t.Fatalf("expected missed reset to 0, got %d", got)
	}
}

func TestProcessSendsDueCount(t *testing.T) {
	testutil.SetupTestDB(t)
	logger.SetLogLevel(logger.ERROR)
	t.Cleanup(func() { logger.SetLogLevel(logger.INFO) })
	ctx := context.Background()

	user := testutil.CreateUser(t, "telegram:21")
	testutil.CreateFlashcard(t, user.ID, "r1", "a", "b")
	testutil.CreateFlashcard(t, user.ID, "r2", "c", "d")
	if _, err := Register(ctx, user.ID, 21, 21); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	client := newMockClient()
	b := newTestTelegramBot(t, client)
	now := time.Date(2025, 1, 2, 20, 5, 0, 0, time.UTC)

	if sent := Process(ctx, b, now); sent != 1 {
		t.Fatalf("expected one reminder, got %d", sent)
	}
	if got := client.lastMessageText(t); got != "You have 2 cards due. Send /review to practice." {
		t.Fatalf("unexpected reminder text %q", got)
	}

	if sent := Process(ctx, b, now.Add(time.Minute)); sent != 0 {
		t.Fatalf("expected the slot to be served once, got %d", sent)
	}
	settings, err := Load(ctx, user.ID)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if settings.LastReminderSentAt == nil || !settings.LastReminderSentAt.Equal(now) {
		t.Fatalf("expected last reminder at %v, got %v", now, settings.LastReminderSentAt)
	}
}

func TestProcessSkipsUsersWithoutDueCards(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, "telegram:22")
	if _, err := Register(ctx, user.ID, 22, 22); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	client := newMockClient()
	b := newTestTelegramBot(t, client)
	if sent := Process(ctx, b, time.Date(2025, 1, 2, 21, 0, 0, 0, time.UTC)); sent != 0 {
		t.Fatalf("expected no reminder, got %d", sent)
	}
	if len(client.requests) != 0 {
		t.Fatalf("expected no message to be sent")
	}
}

func TestProcessPausesAfterMissedReminders(t *testing.T) {
	testutil.SetupTestDB(t)
	logger.SetLogLevel(logger.ERROR)
	t.Cleanup(func() { logger.SetLogLevel(logger.INFO) })
	ctx := context.Background()

	user := testutil.CreateUser(t, "telegram:23")
	testutil.CreateFlashcard(t, user.ID, "r3", "a", "b")
	if _, err := Register(ctx, user.ID, 23, 23); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	lastSent := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)
	if err := db.DB.Model(&db.ReminderSettings{}).Where("user_id = ?", user.ID).Updates(map[string]interface{}{
		"missed_reminders":      MaxMissed - 1,
		"last_reminder_sent_at": lastSent,
	}).Error; err != nil {
		t.Fatalf("failed to seed reminder state: %v", err)
	}

	client := newMockClient()
	b := newTestTelegramBot(t, client)
	if sent := Process(ctx, b, time.Date(2025, 1, 2, 20, 1, 0, 0, time.UTC)); sent != 0 {
		t.Fatalf("expected no reminder once paused, got %d", sent)
	}
	if got := client.lastMessageText(t); !strings.Contains(got, "Paused reminders") {
		t.Fatalf("expected pause notice, got %q", got)
	}
	settings, err := Load(ctx, user.ID)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !settings.RemindersPaused || settings.MissedReminders != MaxMissed {
		t.Fatalf("expected paused settings, got %+v", settings)
	}

	if err := MarkEngaged(ctx, time.Date(2025, 1, 2, 21, 0, 0, 0, time.UTC), 23); err != nil {
		t.Fatalf("MarkEngaged returned error: %v", err)
	}
	settings, _ = Load(ctx, user.ID)
	if settings.RemindersPaused || settings.MissedReminders != 0 {
		t.Fatalf("expected engagement to resume reminders, got %+v", settings)
	}
}
