package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/logger"
	"gorm.io/gorm"
)

// MaxAttempts bounds how often a session append is re-scored after losing
// a race against a concurrent submission.
const MaxAttempts = 3

var ErrInvalidSession = errors.New("invalid session")

var validate = validator.New()

// SessionInput holds the tallies of a finished study session.
type SessionInput struct {
	Mode           string    `json:"mode" validate:"omitempty,oneof=practice battle web"`
	StartedAt      time.Time `json:"startedAt" validate:"required"`
	EndedAt        time.Time `json:"endedAt" validate:"required,gtefield=StartedAt"`
	CorrectCount   int       `json:"correctCount" validate:"gte=0"`
	IncorrectCount int       `json:"incorrectCount" validate:"gte=0"`
}

type Stats struct {
	XP            int        `json:"xp"`
	Streak        int        `json:"streak"`
	Level         int        `json:"level"`
	Sessions      int        `json:"sessions"`
	LastSessionAt *time.Time `json:"lastSessionAt,omitempty"`
}

type Engine struct {
	policy SameDayPolicy
	// afterSequenceRead runs between the sequence and previous-session reads.
	afterSequenceRead func()
	// beforeAppend runs between scoring and inserting a session.
	beforeAppend func()
}

func NewEngine(policy SameDayPolicy) *Engine {
	return &Engine{policy: policy}
}

var DefaultEngine = NewEngine(SameDayFull)

func ResetDefaultEngine(policy SameDayPolicy) {
	DefaultEngine = NewEngine(policy)
}

func (e *Engine) Policy() SameDayPolicy {
	return e.policy
}

// Accuracy is the percentage of correct answers rounded to one decimal.
func Accuracy(correct, incorrect int) float64 {
	total := correct + incorrect
	if total <= 0 {
		return 0
	}
	return math.Round(float64(correct)*1000/float64(total)) / 10
}

// CompleteSession scores a finished session against the caller's latest
// one and appends it. Appends are serialised by the unique
// (user, sequence) index: the loser of a race re-reads and re-scores.
func (e *Engine) CompleteSession(ctx context.Context, creds auth.Credentials, in SessionInput) (db.SessionRecord, error) {
	const op = "scoring.CompleteSession"
	if !creds.Authenticated() {
		return db.SessionRecord{}, db.NewError(op, db.ErrNotAuthenticated)
	}
	if in.Mode == "" {
		in.Mode = db.ModeWeb
	}
	if err := validate.Struct(in); err != nil {
		return db.SessionRecord{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if err := db.Ready(op); err != nil {
		return db.SessionRecord{}, err
	}
	user, err := creds.User(ctx)
	if err != nil {
		return db.SessionRecord{}, err
	}

	in.StartedAt = in.StartedAt.UTC()
	in.EndedAt = in.EndedAt.UTC()

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		record, err := e.appendSession(ctx, user.ID, in)
		if err == nil {
			logger.Info("session completed",
				"user_id", user.ID,
				"mode", record.Mode,
				"xp", record.XPEarned,
				"streak", record.StreakCount,
				"level", record.Level,
			)
			return record, nil
		}
		if !errors.Is(err, db.ErrConflict) {
			logger.Error("failed to complete session", "user_id", user.ID, "error", err)
			return db.SessionRecord{}, err
		}
		lastErr = err
		logger.Debug("concurrent session submission, re-scoring", "user_id", user.ID, "attempt", attempt)
	}
	logger.Warn("giving up on contended session append", "user_id", user.ID)
	return db.SessionRecord{}, lastErr
}

func (e *Engine) appendSession(ctx context.Context, userID uint, in SessionInput) (db.SessionRecord, error) {
	const op = "scoring.CompleteSession"
	tx := db.DB.WithContext(ctx)

	// Sequence before previous session: an append landing between the two
	// reads still collides on (user_id, sequence).
	var maxSequence int
	if err := tx.Model(&db.SessionRecord{}).
		Where("user_id = ?", userID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSequence).Error; err != nil {
		return db.SessionRecord{}, db.Wrap(op, err)
	}
	if e.afterSequenceRead != nil {
		e.afterSequenceRead()
	}
	latest, err := latestSession(tx, userID)
	if err != nil {
		return db.SessionRecord{}, db.Wrap(op, err)
	}

	var previous *Snapshot
	if latest != nil {
		previous = &Snapshot{XP: latest.XPEarned, Streak: latest.StreakCount, EndedAt: latest.EndedAt}
	}
	result := ScoreWithPolicy(previous, in.StartedAt, e.policy)

	record := db.SessionRecord{
		UserID:         userID,
		Sequence:       maxSequence + 1,
		Mode:           in.Mode,
		StartedAt:      in.StartedAt,
		EndedAt:        in.EndedAt,
		CorrectCount:   in.CorrectCount,
		IncorrectCount: in.IncorrectCount,
		Accuracy:       Accuracy(in.CorrectCount, in.IncorrectCount),
		XPEarned:       result.XP,
		StreakCount:    result.Streak,
		Level:          result.Level,
	}
	if e.beforeAppend != nil {
		e.beforeAppend()
	}
	if err := tx.Create(&record).Error; err != nil {
		return db.SessionRecord{}, db.Wrap(op, err)
	}
	return record, nil
}

// latestSession returns the most recently ended session or nil.
func latestSession(tx *gorm.DB, userID uint) (*db.SessionRecord, error) {
	var latest db.SessionRecord
	err := tx.Where("user_id = ?", userID).
		Order("ended_at DESC, sequence DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &latest, nil
}

// CurrentStats reads the caller's latest session. Users without sessions
// are at level 1 with no XP.
func (e *Engine) CurrentStats(ctx context.Context, creds auth.Credentials) (Stats, error) {
	const op = "scoring.CurrentStats"
	if !creds.Authenticated() {
		return Stats{}, db.NewError(op, db.ErrNotAuthenticated)
	}
	if err := db.Ready(op); err != nil {
		return Stats{}, err
	}
	user, err := creds.User(ctx)
	if err != nil {
		return Stats{}, err
	}
	return StatsForUser(ctx, user.ID)
}

func StatsForUser(ctx context.Context, userID uint) (Stats, error) {
	const op = "scoring.StatsForUser"
	if err := db.Ready(op); err != nil {
		return Stats{}, err
	}
	tx := db.DB.WithContext(ctx)
	latest, err := latestSession(tx, userID)
	if err != nil {
		return Stats{}, db.Wrap(op, err)
	}
	var count int64
	if err := tx.Model(&db.SessionRecord{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return Stats{}, db.Wrap(op, err)
	}
	if latest == nil {
		return Stats{Level: Level(0)}, nil
	}
	ended := latest.EndedAt
	return Stats{
		XP:            latest.XPEarned,
		Streak:        latest.StreakCount,
		Level:         latest.Level,
		Sessions:      int(count),
		LastSessionAt: &ended,
	}, nil
}

// History returns up to limit of the caller's sessions, newest first.
func (e *Engine) History(ctx context.Context, creds auth.Credentials, limit int) ([]db.SessionRecord, error) {
	const op = "scoring.History"
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
	if limit <= 0 {
		limit = 20
	}
	var sessions []db.SessionRecord
	if err := db.DB.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Order("ended_at DESC, sequence DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, db.Wrap(op, err)
	}
	return sessions, nil
}
