package review

import (
	"context"
	"errors"
	"time"

	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/logger"
	"gorm.io/gorm"
)

// MaxAttempts bounds the re-reads after a concurrent update of the same
// review record.
const MaxAttempts = 3

// beforeWrite runs between the read and the write of a review record.
var beforeWrite func()

// RecordAnswer applies an answer to the caller's flashcard identified by
// its public ID and returns the stored review record.
func RecordAnswer(ctx context.Context, creds auth.Credentials, publicID string, correct bool, now time.Time) (db.ReviewRecord, error) {
	const op = "review.RecordAnswer"
	if !creds.Authenticated() {
		return db.ReviewRecord{}, db.NewError(op, db.ErrNotAuthenticated)
	}
	if err := db.Ready(op); err != nil {
		return db.ReviewRecord{}, err
	}
	user, err := creds.User(ctx)
	if err != nil {
		return db.ReviewRecord{}, err
	}

	var card db.Flashcard
	if err := db.DB.WithContext(ctx).
		Where("public_id = ? AND user_id = ?", publicID, user.ID).
		First(&card).Error; err != nil {
		return db.ReviewRecord{}, db.Wrap(op, err)
	}
	return Answer(ctx, user.ID, card.ID, correct, now)
}

// Answer applies an answer for an already resolved user and flashcard.
// A lost optimistic race is retried up to MaxAttempts times; store
// failures are returned immediately.
func Answer(ctx context.Context, userID, flashcardID uint, correct bool, now time.Time) (db.ReviewRecord, error) {
	const op = "review.Answer"
	if err := db.Ready(op); err != nil {
		return db.ReviewRecord{}, err
	}
	now = now.UTC()

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		record, err := applyAnswer(ctx, userID, flashcardID, correct, now)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, db.ErrConflict) {
			logger.Error("failed to record answer", "user_id", userID, "flashcard_id", flashcardID, "error", err)
			return db.ReviewRecord{}, err
		}
		lastErr = err
		logger.Debug("review record changed concurrently", "user_id", userID, "flashcard_id", flashcardID, "attempt", attempt)
	}
	logger.Warn("giving up on contended review record", "user_id", userID, "flashcard_id", flashcardID)
	return db.ReviewRecord{}, lastErr
}

func applyAnswer(ctx context.Context, userID, flashcardID uint, correct bool, now time.Time) (db.ReviewRecord, error) {
	const op = "review.Answer"
	tx := db.DB.WithContext(ctx)

	var current db.ReviewRecord
	err := tx.Where("user_id = ? AND flashcard_id = ?", userID, flashcardID).First(&current).Error
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return db.ReviewRecord{}, db.Wrap(op, err)
	}
	if !exists {
		current = db.ReviewRecord{UserID: userID, FlashcardID: flashcardID}
	}

	next := Apply(current, correct, now)
	if beforeWrite != nil {
		beforeWrite()
	}

	if !exists {
		next.Version = 1
		if err := tx.Create(&next).Error; err != nil {
			return db.ReviewRecord{}, db.Wrap(op, err)
		}
		return next, nil
	}

	next.Version = current.Version + 1
	res := tx.Model(&db.ReviewRecord{}).
		Where("id = ? AND version = ?", current.ID, current.Version).
		Updates(map[string]any{
			"correct_count":    next.CorrectCount,
			"incorrect_count":  next.IncorrectCount,
			"last_reviewed_at": next.LastReviewedAt,
			"next_review_at":   next.NextReviewAt,
			"version":          next.Version,
		})
	if res.Error != nil {
		return db.ReviewRecord{}, db.Wrap(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return db.ReviewRecord{}, db.NewError(op, db.ErrConflict)
	}
	return next, nil
}

// DueFlashcards returns the caller's cards that were never reviewed or
// whose next review is not after now. Overdue cards come first, oldest due
// first, followed by unseen cards.
func DueFlashcards(ctx context.Context, creds auth.Credentials, now time.Time, limit int) ([]db.Flashcard, error) {
	const op = "review.DueFlashcards"
	if !creds.Authenticated() {
		return nil, db.NewError(op, db.ErrNotAuthenticated)
	}
	if err := db.Ready(op); err != nil {
		return nil, err
	}
	user, err := creds.User(ctx)
	if err != nil {
		return nil, err
	}
	return DueForUser(ctx, user.ID, now, limit)
}

func DueForUser(ctx context.Context, userID uint, now time.Time, limit int) ([]db.Flashcard, error) {
	const op = "review.DueForUser"
	if err := db.Ready(op); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []db.Flashcard{}, nil
	}
	var cards []db.Flashcard
	err := dueQuery(ctx, userID, now.UTC()).
		Select("flashcards.*").
		Order("CASE WHEN review_records.id IS NULL THEN 1 ELSE 0 END ASC").
		Order("review_records.next_review_at ASC").
		Order("flashcards.id ASC").
		Limit(limit).
		Find(&cards).Error
	if err != nil {
		return nil, db.Wrap(op, err)
	}
	return cards, nil
}

// CountDue counts the cards DueForUser would return without a limit.
func CountDue(ctx context.Context, userID uint, now time.Time) (int64, error) {
	const op = "review.CountDue"
	if err := db.Ready(op); err != nil {
		return 0, err
	}
	var count int64
	if err := dueQuery(ctx, userID, now.UTC()).Count(&count).Error; err != nil {
		return 0, db.Wrap(op, err)
	}
	return count, nil
}

func dueQuery(ctx context.Context, userID uint, now time.Time) *gorm.DB {
	return db.DB.WithContext(ctx).
		Model(&db.Flashcard{}).
		Joins("LEFT JOIN review_records ON review_records.flashcard_id = flashcards.id AND review_records.user_id = flashcards.user_id").
		Where("flashcards.user_id = ?", userID).
		Where("(review_records.id IS NULL OR review_records.next_review_at <= ?)", now)
}
