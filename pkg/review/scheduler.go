package review

import (
	"time"

	"github.com/smith3v/study-tracker/pkg/db"
)

const Day = 24 * time.Hour

// ladder holds the review interval in days after the n-th correct answer.
// Counts beyond the ladder keep the last step.
var ladder = []int{2, 4, 7, 14}

// RetryDelay is the wait after any incorrect answer.
const RetryDelay = Day

// Interval returns the delay after the correctCount-th correct answer.
func Interval(correctCount int) time.Duration {
	if correctCount < 1 {
		correctCount = 1
	}
	if correctCount > len(ladder) {
		correctCount = len(ladder)
	}
	return time.Duration(ladder[correctCount-1]) * Day
}

// OnCorrect records a correct answer. The ladder is indexed by the new
// count, so the first correct answer already waits two days.
func OnCorrect(record db.ReviewRecord, now time.Time) db.ReviewRecord {
	record.CorrectCount++
	reviewed := now
	record.LastReviewedAt = &reviewed
	record.NextReviewAt = now.Add(Interval(record.CorrectCount))
	return record
}

// OnIncorrect records a miss; the card comes back a day later whatever its
// history.
func OnIncorrect(record db.ReviewRecord, now time.Time) db.ReviewRecord {
	record.IncorrectCount++
	reviewed := now
	record.LastReviewedAt = &reviewed
	record.NextReviewAt = now.Add(RetryDelay)
	return record
}

func Apply(record db.ReviewRecord, correct bool, now time.Time) db.ReviewRecord {
	if correct {
		return OnCorrect(record, now)
	}
	return OnIncorrect(record, now)
}

func IsDue(record db.ReviewRecord, now time.Time) bool {
	return !record.NextReviewAt.After(now)
}
