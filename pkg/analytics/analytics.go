package analytics

import (
	"context"
	"time"

	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/flashcards"
	"github.com/smith3v/study-tracker/pkg/review"
	"github.com/smith3v/study-tracker/pkg/scoring"
)

const dateLayout = "2006-01-02"

// MaxDays caps the range of a daily progress query.
const MaxDays = 366

type DayProgress struct {
	Date      string  `json:"date"`
	Sessions  int     `json:"sessions"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Accuracy  float64 `json:"accuracy"`
	// XP is the cumulative XP at the end of the day, carried over from
	// earlier days when nothing was studied.
	XP int `json:"xp"`
}

type Summary struct {
	Sessions       int64   `json:"sessions"`
	Correct        int64   `json:"correct"`
	Incorrect      int64   `json:"incorrect"`
	Accuracy       float64 `json:"accuracy"`
	MinutesStudied int64   `json:"minutesStudied"`
	XP             int     `json:"xp"`
	Streak         int     `json:"streak"`
	Level          int     `json:"level"`
	DueCards       int64   `json:"dueCards"`
	Flashcards     int64   `json:"flashcards"`
}

// DailyProgress buckets sessions by the UTC day they ended, one entry per
// day from from to to inclusive.
func DailyProgress(ctx context.Context, userID uint, from, to time.Time) ([]DayProgress, error) {
	const op = "analytics.DailyProgress"
	if err := db.Ready(op); err != nil {
		return nil, err
	}
	first := truncateDay(from)
	last := truncateDay(to)
	if last.Before(first) {
		first, last = last, first
	}
	if days := int(last.Sub(first)/(24*time.Hour)) + 1; days > MaxDays {
		first = last.AddDate(0, 0, -(MaxDays - 1))
	}
	end := last.AddDate(0, 0, 1)

	var carried db.SessionRecord
	if err := db.DB.WithContext(ctx).
		Where("user_id = ? AND ended_at < ?", userID, first).
		Order("ended_at DESC, sequence DESC").
		Limit(1).
		Find(&carried).Error; err != nil {
		return nil, db.Wrap(op, err)
	}

	var sessions []db.SessionRecord
	if err := db.DB.WithContext(ctx).
		Where("user_id = ? AND ended_at >= ? AND ended_at < ?", userID, first, end).
		Order("ended_at ASC, sequence ASC").
		Find(&sessions).Error; err != nil {
		return nil, db.Wrap(op, err)
	}

	byDay := make(map[string][]db.SessionRecord)
	for _, session := range sessions {
		key := session.EndedAt.UTC().Format(dateLayout)
		byDay[key] = append(byDay[key], session)
	}

	xp := carried.XPEarned
	progress := make([]DayProgress, 0, int(end.Sub(first)/(24*time.Hour)))
	for day := first; day.Before(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		entry := DayProgress{Date: key}
		for _, session := range byDay[key] {
			entry.Sessions++
			entry.Correct += session.CorrectCount
			entry.Incorrect += session.IncorrectCount
			xp = session.XPEarned
		}
		entry.Accuracy = scoring.Accuracy(entry.Correct, entry.Incorrect)
		entry.XP = xp
		progress = append(progress, entry)
	}
	return progress, nil
}

func UserSummary(ctx context.Context, userID uint, now time.Time) (Summary, error) {
	const op = "analytics.UserSummary"
	if err := db.Ready(op); err != nil {
		return Summary{}, err
	}

	var totals struct {
		Sessions  int64
		Correct   int64
		Incorrect int64
	}
	if err := db.DB.WithContext(ctx).
		Model(&db.SessionRecord{}).
		Select("COUNT(*) AS sessions, COALESCE(SUM(correct_count), 0) AS correct, COALESCE(SUM(incorrect_count), 0) AS incorrect").
		Where("user_id = ?", userID).
		Scan(&totals).Error; err != nil {
		return Summary{}, db.Wrap(op, err)
	}

	var spans []db.SessionRecord
	if err := db.DB.WithContext(ctx).
		Select("started_at", "ended_at").
		Where("user_id = ?", userID).
		Find(&spans).Error; err != nil {
		return Summary{}, db.Wrap(op, err)
	}
	var studied time.Duration
	for _, span := range spans {
		if span.EndedAt.After(span.StartedAt) {
			studied += span.EndedAt.Sub(span.StartedAt)
		}
	}

	stats, err := scoring.StatsForUser(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	due, err := review.CountDue(ctx, userID, now)
	if err != nil {
		return Summary{}, err
	}
	cards, err := flashcards.Count(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Sessions:       totals.Sessions,
		Correct:        totals.Correct,
		Incorrect:      totals.Incorrect,
		Accuracy:       scoring.Accuracy(int(totals.Correct), int(totals.Incorrect)),
		MinutesStudied: int64(studied / time.Minute),
		XP:             stats.XP,
		Streak:         stats.Streak,
		Level:          stats.Level,
		DueCards:       due,
		Flashcards:     cards,
	}, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
