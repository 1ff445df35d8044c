package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smith3v/study-tracker/pkg/config"
)

type legacySessionRecordTable struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"index"`
	Mode           string    `gorm:"not null;default:'web'"`
	StartedAt      time.Time `gorm:"not null"`
	EndedAt        time.Time `gorm:"not null"`
	CorrectCount   int       `gorm:"not null;default:0"`
	IncorrectCount int       `gorm:"not null;default:0"`
	Accuracy       float64   `gorm:"not null;default:0"`
	XPEarned       int       `gorm:"not null;default:0"`
	StreakCount    int       `gorm:"not null;default:0"`
	Level          int       `gorm:"not null;default:1"`
	CreatedAt      time.Time
}

func (legacySessionRecordTable) TableName() string {
	return "session_records"
}

func TestMigrateNumbersLegacySessions(t *testing.T) {
	gdb := openTestDB(t, "migrate_sequences", &legacySessionRecordTable{})

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	legacy := []legacySessionRecordTable{
		{UserID: 1, StartedAt: base.Add(48 * time.Hour), EndedAt: base.Add(49 * time.Hour), XPEarned: 80, StreakCount: 2, Level: 1},
		{UserID: 1, StartedAt: base, EndedAt: base.Add(time.Hour), XPEarned: 40, StreakCount: 1, Level: 1},
		{UserID: 2, StartedAt: base, EndedAt: base.Add(time.Hour), XPEarned: 40, StreakCount: 1, Level: 1},
	}
	if err := gdb.Create(&legacy).Error; err != nil {
		t.Fatalf("failed to seed legacy sessions: %v", err)
	}

	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	var records []SessionRecord
	if err := gdb.Order("user_id ASC, sequence ASC").Find(&records).Error; err != nil {
		t.Fatalf("failed to load sessions: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(records))
	}
	if records[0].Sequence != 1 || records[0].XPEarned != 40 {
		t.Fatalf("expected oldest session of user 1 to be sequence 1, got %+v", records[0])
	}
	if records[1].Sequence != 2 || records[1].XPEarned != 80 {
		t.Fatalf("expected newest session of user 1 to be sequence 2, got %+v", records[1])
	}
	if records[2].Sequence != 1 {
		t.Fatalf("expected user 2 numbering to restart at 1, got %+v", records[2])
	}

	dup := SessionRecord{UserID: 1, Sequence: 2, StartedAt: base, EndedAt: base}
	if err := gdb.Create(&dup).Error; err == nil {
		t.Fatal("expected unique index on (user_id, sequence) after migration")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	gdb := openTestDB(t, "migrate_idempotent")
	if err := Migrate(gdb); err != nil {
		t.Fatalf("first Migrate returned error: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}
}

func TestDialectorForRejectsUnknownDriver(t *testing.T) {
	if _, err := dialectorFor(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	d, err := dialectorFor(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name() != "sqlite" {
		t.Fatalf("expected sqlite dialector, got %s", d.Name())
	}
}

func TestResolveUserCreatesOnce(t *testing.T) {
	openTestDB(t, "resolve_user", &User{})
	ctx := context.Background()

	first, err := ResolveUser(ctx, "telegram:42", "Ada")
	if err != nil {
		t.Fatalf("ResolveUser returned error: %v", err)
	}
	second, err := ResolveUser(ctx, " telegram:42 ", "Someone else")
	if err != nil {
		t.Fatalf("ResolveUser returned error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same user, got %d and %d", first.ID, second.ID)
	}
	if second.DisplayName != "Ada" {
		t.Fatalf("expected display name from first sight, got %q", second.DisplayName)
	}
}

func TestResolveUserErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := ResolveUser(ctx, "  ", ""); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	DB = nil
	if _, err := ResolveUser(ctx, "web:1", ""); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	openTestDB(t, "lookup_user", &User{})
	if _, err := LookupUser(ctx, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
