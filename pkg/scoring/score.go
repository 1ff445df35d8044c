package scoring

import (
	"fmt"
	"strings"
	"time"
)

const (
	Day = 24 * time.Hour

	BaseReward    = 40
	MissedDayCost = 10
	XPPerLevel    = 100
)

// SameDayPolicy decides the reward for a session that starts with no whole
// day elapsed since the previous one ended.
type SameDayPolicy int

const (
	// SameDayFull grants the base reward again.
	SameDayFull SameDayPolicy = iota
	// SameDayNone grants nothing; streak and XP are carried over.
	SameDayNone
)

func ParseSameDayPolicy(value string) (SameDayPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "full":
		return SameDayFull, nil
	case "none":
		return SameDayNone, nil
	default:
		return SameDayFull, fmt.Errorf("invalid same-day reward policy %q", value)
	}
}

func (p SameDayPolicy) String() string {
	if p == SameDayNone {
		return "none"
	}
	return "full"
}

func (p SameDayPolicy) reward() int {
	if p == SameDayNone {
		return 0
	}
	return BaseReward
}

// Snapshot is the part of the previous session that scoring depends on.
type Snapshot struct {
	XP      int
	Streak  int
	EndedAt time.Time
}

type Result struct {
	XP     int
	Streak int
	Level  int
}

// Level derives the level from cumulative XP.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// DaysSince is the number of started days between the end of the previous
// session and start, in either direction.
func DaysSince(previousEnd, start time.Time) int {
	gap := start.Sub(previousEnd)
	if gap < 0 {
		gap = -gap
	}
	return int((gap + Day - 1) / Day)
}

// Score applies the full same-day reward.
func Score(previous *Snapshot, start time.Time) Result {
	return ScoreWithPolicy(previous, start, SameDayFull)
}

func ScoreWithPolicy(previous *Snapshot, start time.Time, policy SameDayPolicy) Result {
	if previous == nil {
		return Result{XP: BaseReward, Streak: 1, Level: Level(BaseReward)}
	}

	var xp, streak int
	switch days := DaysSince(previous.EndedAt, start); {
	case days == 1:
		streak = previous.Streak + 1
		xp = previous.XP + BaseReward
	case days > 1:
		penalty := (days - 1) * MissedDayCost
		streak = 1
		xp = max(0, previous.XP-penalty+BaseReward)
	default:
		streak = previous.Streak
		xp = previous.XP + policy.reward()
	}
	return Result{XP: xp, Streak: streak, Level: Level(xp)}
}
