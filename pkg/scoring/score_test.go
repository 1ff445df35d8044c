package scoring

import (
	"testing"
	"time"
)

func TestScore(t *testing.T) {
	d := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		previous *Snapshot
		start    time.Time
		want     Result
	}{
		{
			name:  "first session",
			start: d,
			want:  Result{XP: 40, Streak: 1, Level: 1},
		},
		{
			name:     "next day continues streak",
			previous: &Snapshot{XP: 40, Streak: 1, EndedAt: d},
			start:    d.Add(Day),
			want:     Result{XP: 80, Streak: 2, Level: 1},
		},
		{
			name:     "two missed days cost twenty",
			previous: &Snapshot{XP: 80, Streak: 2, EndedAt: d},
			start:    d.Add(3 * Day),
			want:     Result{XP: 100, Streak: 1, Level: 2},
		},
		{
			name:     "penalty clamps at zero",
			previous: &Snapshot{XP: 10, Streak: 4, EndedAt: d},
			start:    d.Add(30 * Day),
			want:     Result{XP: 0, Streak: 1, Level: 1},
		},
		{
			name:     "same instant holds streak",
			previous: &Snapshot{XP: 120, Streak: 3, EndedAt: d},
			start:    d,
			want:     Result{XP: 160, Streak: 3, Level: 2},
		},
		{
			name:     "a few hours later counts as one day",
			previous: &Snapshot{XP: 40, Streak: 1, EndedAt: d},
			start:    d.Add(3 * time.Hour),
			want:     Result{XP: 80, Streak: 2, Level: 1},
		},
		{
			name:     "clock skew uses the absolute gap",
			previous: &Snapshot{XP: 40, Streak: 1, EndedAt: d},
			start:    d.Add(-30 * time.Hour),
			want:     Result{XP: 70, Streak: 1, Level: 1},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.previous, tc.start)
			if got != tc.want {
				t.Fatalf("Score() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestScoreFirstSessionIgnoresStart(t *testing.T) {
	for _, start := range []time.Time{{}, time.Unix(0, 0), time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)} {
		if got := Score(nil, start); got != (Result{XP: 40, Streak: 1, Level: 1}) {
			t.Fatalf("Score(nil, %v) = %+v", start, got)
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	d := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	previous := &Snapshot{XP: 230, Streak: 5, EndedAt: d}
	first := Score(previous, d.Add(50*time.Hour))
	for i := 0; i < 10; i++ {
		if got := Score(previous, d.Add(50*time.Hour)); got != first {
			t.Fatalf("run %d: %+v != %+v", i, got, first)
		}
	}
	if previous.XP != 230 || previous.Streak != 5 {
		t.Fatalf("previous snapshot was modified: %+v", previous)
	}
}

func TestSameDayNonePolicy(t *testing.T) {
	d := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	previous := &Snapshot{XP: 120, Streak: 3, EndedAt: d}
	got := ScoreWithPolicy(previous, d, SameDayNone)
	if got != (Result{XP: 120, Streak: 3, Level: 2}) {
		t.Fatalf("unexpected result %+v", got)
	}
	next := ScoreWithPolicy(previous, d.Add(Day), SameDayNone)
	if next.XP != 160 || next.Streak != 4 {
		t.Fatalf("policy must only affect the same-day branch, got %+v", next)
	}
}

func TestLevel(t *testing.T) {
	cases := map[int]int{-50: 1, 0: 1, 99: 1, 100: 2, 199: 2, 250: 3, 1000: 11}
	for xp, want := range cases {
		if got := Level(xp); got != want {
			t.Fatalf("Level(%d) = %d, want %d", xp, got, want)
		}
	}
}

func TestDaysSince(t *testing.T) {
	d := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	cases := []struct {
		start time.Time
		want  int
	}{
		{start: d, want: 0},
		{start: d.Add(time.Nanosecond), want: 1},
		{start: d.Add(Day), want: 1},
		{start: d.Add(Day + time.Second), want: 2},
		{start: d.Add(-Day), want: 1},
	}
	for _, tc := range cases {
		if got := DaysSince(d, tc.start); got != tc.want {
			t.Fatalf("DaysSince(%v) = %d, want %d", tc.start.Sub(d), got, tc.want)
		}
	}
}

func TestParseSameDayPolicy(t *testing.T) {
	if p, err := ParseSameDayPolicy("None"); err != nil || p != SameDayNone {
		t.Fatalf("expected none, got %v, %v", p, err)
	}
	if p, err := ParseSameDayPolicy(""); err != nil || p != SameDayFull {
		t.Fatalf("expected full default, got %v, %v", p, err)
	}
	if _, err := ParseSameDayPolicy("half"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestAccuracy(t *testing.T) {
	if got := Accuracy(0, 0); got != 0 {
		t.Fatalf("expected 0 without answers, got %v", got)
	}
	if got := Accuracy(2, 1); got != 66.7 {
		t.Fatalf("expected 66.7, got %v", got)
	}
	if got := Accuracy(5, 0); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
}
