package db

import (
	"testing"
	"time"

	"gorm.io/datatypes"
)

func TestCleanupExpiredSessions(t *testing.T) {
	gdb := openTestDB(t, "session_cleanup", &PracticeSession{}, &BattleState{})

	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	raw := datatypes.JSON([]byte("[]"))

	seeds := []any{
		&PracticeSession{
			ChatID:         1,
			TelegramUserID: 1,
			UserID:         1,
			FlashcardIDs:   raw,
			StartedAt:      now.Add(-48 * time.Hour),
			LastActivityAt: now.Add(-48 * time.Hour),
			ExpiresAt:      now.Add(-24 * time.Hour),
		},
		&PracticeSession{
			ChatID:         2,
			TelegramUserID: 2,
			UserID:         2,
			FlashcardIDs:   raw,
			StartedAt:      now,
			LastActivityAt: now,
			ExpiresAt:      now.Add(24 * time.Hour),
		},
		&BattleState{
			SessionKey:     "web:3",
			BattleID:       "b3",
			UserID:         3,
			Deck:           raw,
			StartedAt:      now.Add(-time.Hour),
			LastActivityAt: now.Add(-time.Hour),
			ExpiresAt:      now,
		},
		&BattleState{
			SessionKey:     "web:4",
			BattleID:       "b4",
			UserID:         4,
			Deck:           raw,
			StartedAt:      now,
			LastActivityAt: now,
			ExpiresAt:      now.Add(15 * time.Minute),
		},
	}
	for _, seed := range seeds {
		if err := gdb.Create(seed).Error; err != nil {
			t.Fatalf("failed to seed %T: %v", seed, err)
		}
	}

	deleted, err := CleanupExpiredSessions(now)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted rows, got %d", deleted)
	}

	var practiceCount int64
	if err := gdb.Model(&PracticeSession{}).Count(&practiceCount).Error; err != nil {
		t.Fatalf("failed to count practice sessions: %v", err)
	}
	if practiceCount != 1 {
		t.Fatalf("expected 1 practice session remaining, got %d", practiceCount)
	}

	var battleCount int64
	if err := gdb.Model(&BattleState{}).Count(&battleCount).Error; err != nil {
		t.Fatalf("failed to count battle states: %v", err)
	}
	if battleCount != 1 {
		t.Fatalf("expected 1 battle state remaining, got %d", battleCount)
	}
}

func TestCleanupExpiredSessionsWithoutDB(t *testing.T) {
	DB = nil
	deleted, err := CleanupExpiredSessions(time.Now())
	if err != nil || deleted != 0 {
		t.Fatalf("expected no-op without a database, got %d, %v", deleted, err)
	}
}
