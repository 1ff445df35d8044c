// pkg/db/models.go
package db

import (
	"time"

	"gorm.io/datatypes"
)

// Session modes recorded on SessionRecord.Mode.
const (
	ModePractice = "practice"
	ModeBattle   = "battle"
	ModeWeb      = "web"
)

type User struct {
	ID          uint   `gorm:"primaryKey"`
	Subject     string `gorm:"not null;uniqueIndex"` // Authenticated principal, e.g. "telegram:42"
	DisplayName string
	CreatedAt   time.Time
}

type Flashcard struct {
	ID        uint   `gorm:"primaryKey"`
	PublicID  string `gorm:"not null;uniqueIndex"`
	UserID    uint   `gorm:"not null;index"`
	Front     string `gorm:"not null"`
	Back      string `gorm:"not null"`
	Topic     string `gorm:"not null;default:''"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ReviewRecord struct {
	ID             uint `gorm:"primaryKey"`
	UserID         uint `gorm:"not null;uniqueIndex:idx_review_user_card;index:idx_review_user_due"`
	FlashcardID    uint `gorm:"not null;uniqueIndex:idx_review_user_card"`
	CorrectCount   int  `gorm:"not null;default:0"`
	IncorrectCount int  `gorm:"not null;default:0"`
	LastReviewedAt *time.Time
	NextReviewAt   time.Time `gorm:"not null;index:idx_review_user_due"`
	Version        int       `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SessionRecord rows are append-only. XPEarned and StreakCount are the
// running totals after the session, not the session's own contribution.
type SessionRecord struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_session_user_sequence;index:idx_session_user_ended"`
	Sequence       int       `gorm:"not null;uniqueIndex:idx_session_user_sequence"`
	Mode           string    `gorm:"not null;default:'web'"`
	StartedAt      time.Time `gorm:"not null"`
	EndedAt        time.Time `gorm:"not null;index:idx_session_user_ended"`
	CorrectCount   int       `gorm:"not null;default:0"`
	IncorrectCount int       `gorm:"not null;default:0"`
	Accuracy       float64   `gorm:"not null;default:0"`
	XPEarned       int       `gorm:"not null;default:0"`
	StreakCount    int       `gorm:"not null;default:0"`
	Level          int       `gorm:"not null;default:1"`
	CreatedAt      time.Time
}

type PracticeSession struct {
	ID               uint           `gorm:"primaryKey"`
	ChatID           int64          `gorm:"index;uniqueIndex:idx_practice_session_user_chat"`
	TelegramUserID   int64          `gorm:"index;uniqueIndex:idx_practice_session_user_chat"`
	UserID           uint           `gorm:"not null;index"`
	FlashcardIDs     datatypes.JSON `gorm:"not null"`
	CurrentIndex     int            `gorm:"not null;default:0"`
	CurrentToken     string         `gorm:"not null;default:''"`
	CurrentMessageID int            `gorm:"not null;default:0"`
	CorrectCount     int            `gorm:"not null;default:0"`
	IncorrectCount   int            `gorm:"not null;default:0"`
	StartedAt        time.Time      `gorm:"not null"`
	LastActivityAt   time.Time      `gorm:"not null"`
	ExpiresAt        time.Time      `gorm:"not null;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BattleState mirrors an in-progress battle. Deck lists the current card
// first, followed by the remaining queue.
type BattleState struct {
	ID               uint           `gorm:"primaryKey"`
	SessionKey       string         `gorm:"not null;uniqueIndex"`
	BattleID         string         `gorm:"not null"`
	UserID           uint           `gorm:"not null;index"`
	ChatID           int64          `gorm:"not null;default:0"`
	Deck             datatypes.JSON `gorm:"not null"`
	CurrentToken     string         `gorm:"not null;default:''"`
	CurrentMessageID int            `gorm:"not null;default:0"`
	CorrectCount     int            `gorm:"not null;default:0"`
	AttemptCount     int            `gorm:"not null;default:0"`
	StartedAt        time.Time      `gorm:"not null"`
	LastActivityAt   time.Time      `gorm:"not null"`
	ExpiresAt        time.Time      `gorm:"not null;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ReminderSettings struct {
	ID                  uint  `gorm:"primaryKey"`
	UserID              uint  `gorm:"not null;uniqueIndex"`
	TelegramUserID      int64 `gorm:"index"`
	ChatID              int64 `gorm:"not null;default:0"`
	ReminderMorning     bool  `gorm:"not null;default:false"`
	ReminderAfternoon   bool  `gorm:"not null;default:false"`
	ReminderEvening     bool  `gorm:"not null;default:false"`
	TimezoneOffsetHours int   `gorm:"not null;default:0"`
	MissedReminders     int   `gorm:"not null;default:0"`
	RemindersPaused     bool  `gorm:"not null;default:false"`
	LastReminderSentAt  *time.Time
	LastEngagedAt       *time.Time
}

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{
		&User{},
		&Flashcard{},
		&ReviewRecord{},
		&SessionRecord{},
		&PracticeSession{},
		&BattleState{},
		&ReminderSettings{},
	}
}
