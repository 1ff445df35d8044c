package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/internal/testutil"
)

func session(start time.Time, correct, incorrect int) SessionInput {
	return SessionInput{
		Mode:           db.ModeWeb,
		StartedAt:      start,
		EndedAt:        start.Add(20 * time.Minute),
		CorrectCount:   correct,
		IncorrectCount: incorrect,
	}
}

func TestCompleteSessionAppendsScoredRecords(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()
	creds := auth.Credentials{Subject: "web:scorer"}
	engine := NewEngine(SameDayFull)
	d := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)

	first, err := engine.CompleteSession(ctx, creds, session(d, 3, 1))
	if err != nil {
		t.Fatalf("CompleteSession returned error: %v", err)
	}
	if first.XPEarned != 40 || first.StreakCount != 1 || first.Level != 1 || first.Sequence != 1 {
		t.Fatalf("unexpected first record %+v", first)
	}
	if first.Accuracy != 75 {
		t.Fatalf("expected accuracy 75, got %v", first.Accuracy)
	}

	second, err := engine.CompleteSession(ctx, creds, session(first.EndedAt.Add(Day), 5, 0))
	if err != nil {
		t.Fatalf("CompleteSession returned error: %v", err)
	}
	if second.XPEarned != 80 || second.StreakCount != 2 || second.Sequence != 2 {
		t.Fatalf("unexpected second record %+v", second)
	}

	third, err := engine.CompleteSession(ctx, creds, session(second.EndedAt.Add(3*Day), 1, 1))
	if err != nil {
		t.Fatalf("CompleteSession returned error: %v", err)
	}
	if third.XPEarned != 100 || third.StreakCount != 1 || third.Level != 2 {
		t.Fatalf("unexpected third record %+v", third)
	}

	stats, err := engine.CurrentStats(ctx, creds)
	if err != nil {
		t.Fatalf("CurrentStats returned error: %v", err)
	}
	if stats.XP != 100 || stats.Streak != 1 || stats.Level != 2 || stats.Sessions != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	history, err := engine.History(ctx, creds, 2)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 2 || history[0].Sequence != 3 || history[1].Sequence != 2 {
		t.Fatalf("expected newest two sessions, got %+v", history)
	}
}

func TestCompleteSessionSameDayPolicy(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()
	creds := auth.Credentials{Subject: "web:sameday"}
	engine := NewEngine(SameDayNone)
	d := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	first, err := engine.CompleteSession(ctx, creds, session(d, 1, 0))
	if err != nil {
		t.Fatalf("CompleteSession returned error: %v", err)
	}
	// Starts exactly when the first one ended.
	second, err := engine.CompleteSession(ctx, creds, session(first.EndedAt, 1, 0))
	if err != nil {
		t.Fatalf("CompleteSession returned error: %v", err)
	}
	if second.XPEarned != first.XPEarned || second.StreakCount != first.StreakCount {
		t.Fatalf("expected no same-day reward, got %+v", second)
	}
}

func TestCompleteSessionRescoresAfterConcurrentAppend(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()
	creds := auth.Credentials{Subject: "web:racer"}
	engine := NewEngine(SameDayFull)
	d := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)

	first, err := engine.CompleteSession(ctx, creds, session(d, 1, 0))
	if err != nil {
		t.Fatalf("CompleteSession returned error: %v", err)
	}

	competitor := NewEngine(SameDayFull)
	calls := 0
	engine.beforeAppend = func() {
		calls++
		if calls == 1 {
			if _, err := competitor.CompleteSession(ctx, creds, session(first.EndedAt.Add(Day), 1, 0)); err != nil {
				t.Errorf("competing submission failed: %v", err)
			}
		}
	}

	record, err := engine.CompleteSession(ctx, creds, session(first.EndedAt.Add(Day), 2, 0))
	if err != nil {
		t.Fatalf("CompleteSession returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d attempts", calls)
	}
	if record.Sequence != 3 {
		t.Fatalf("expected sequence 3 after the competitor took 2, got %d", record.Sequence)
	}
	// Re-scored against the competitor's session, which ended twenty
	// minutes before this one started.
	if record.StreakCount != 3 || record.XPEarned != 120 {
		t.Fatalf("expected re-scored record on top of the competitor, got %+v", record)
	}

	var count int64
	if err := db.DB.Model(&db.SessionRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 sessions, got %d", count)
	}
}

func TestCompleteSessionRescoresWhenAppendLandsBetweenReads(t *testing.T) {
	testutil.SetupTestDB(t)
	ctx := context.Background()
	creds := auth.Credentials{Subject: "web:gap"}
	engine := NewEngine(SameDayFull)
	d := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)

	competitor := NewEngine(SameDayFull)
	var competing db.SessionRecord
	calls := 0
	engine.afterSequenceRead = func() {
		calls++
		if calls == 1 {
			var err error
			competing, err = competitor.CompleteSession(ctx, creds, session(d, 1, 0))
			if err != nil {
				t.Errorf("competing submission failed: %v", err)
			}
		}
	}

	record, err := engine.CompleteSession(ctx, creds, session(d.Add(Day), 2, 0))
	if err != nil {
		t.Fatalf("CompleteSession returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d attempts", calls)
	}
	if competing.Sequence != 1 || competing.XPEarned != 40 || competing.StreakCount != 1 {
		t.Fatalf("unexpected competing record %+v", competing)
	}
	if record.Sequence != 2 || record.XPEarned != 80 || record.StreakCount != 2 {
		t.Fatalf("expected record scored on top of the competing session, got %+v", record)
	}

	var count int64
	if err := db.DB.Model(&db.SessionRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 sessions, got %d", count)
	}
}

func TestCompleteSessionErrors(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(SameDayFull)
	d := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)

	if _, err := engine.CompleteSession(ctx, auth.Credentials{}, session(d, 1, 0)); !errors.Is(err, db.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := engine.CompleteSession(ctx, auth.Credentials{Subject: "web:x"}, session(d, 1, 0)); !errors.Is(err, db.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	invalid := []SessionInput{
		{StartedAt: d, EndedAt: d.Add(-time.Minute)},
		{StartedAt: d, EndedAt: d, CorrectCount: -1},
		{EndedAt: d},
		{Mode: "nap", StartedAt: d, EndedAt: d},
	}
	for _, in := range invalid {
		if _, err := engine.CompleteSession(ctx, auth.Credentials{Subject: "web:x"}, in); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("expected ErrInvalidSession for %+v, got %v", in, err)
		}
	}
}

func TestCurrentStatsWithoutSessions(t *testing.T) {
	testutil.SetupTestDB(t)
	stats, err := DefaultEngine.CurrentStats(context.Background(), auth.Credentials{Subject: "web:new"})
	if err != nil {
		t.Fatalf("CurrentStats returned error: %v", err)
	}
	if stats != (Stats{Level: 1}) {
		t.Fatalf("expected zero stats at level 1, got %+v", stats)
	}
}
