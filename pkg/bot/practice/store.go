package practice

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/flashcards"
	"github.com/smith3v/study-tracker/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const practiceSessionTTL = 24 * time.Hour

func buildPracticeSession(session *Session) (*db.PracticeSession, error) {
	if session == nil {
		return nil, errors.New("nil session")
	}
	raw, err := json.Marshal(session.flashcardIDs)
	if err != nil {
		return nil, err
	}
	return &db.PracticeSession{
		ChatID:           session.player.ChatID,
		TelegramUserID:   session.player.TelegramUserID,
		UserID:           session.player.UserID,
		FlashcardIDs:     datatypes.JSON(raw),
		CurrentIndex:     session.currentIndex,
		CurrentToken:     session.currentToken,
		CurrentMessageID: session.currentMessage,
		CorrectCount:     session.correctCount,
		IncorrectCount:   session.incorrectCount,
		StartedAt:        session.startedAt.UTC(),
		LastActivityAt:   session.lastActivityAt.UTC(),
	}, nil
}

func loadPracticeSession(ctx context.Context, chatID, telegramUserID int64, now time.Time) (*db.PracticeSession, error) {
	if db.DB == nil {
		return nil, nil
	}
	var row db.PracticeSession
	err := db.DB.WithContext(ctx).
		Where("chat_id = ? AND telegram_user_id = ? AND expires_at > ?", chatID, telegramUserID, now.UTC()).
		First(&row).Error
	if err == nil {
		return &row, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

func upsertPracticeSession(ctx context.Context, row *db.PracticeSession) error {
	if row == nil || db.DB == nil {
		return nil
	}
	if row.LastActivityAt.IsZero() {
		row.LastActivityAt = time.Now().UTC()
	}
	row.ExpiresAt = row.LastActivityAt.Add(practiceSessionTTL)

	return db.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "chat_id"},
			{Name: "telegram_user_id"},
		},
		UpdateAll: true,
	}).Create(row).Error
}

func deletePracticeSession(ctx context.Context, chatID, telegramUserID int64) error {
	if db.DB == nil {
		return nil
	}
	return db.DB.WithContext(ctx).
		Where("chat_id = ? AND telegram_user_id = ?", chatID, telegramUserID).
		Delete(&db.PracticeSession{}).Error
}

// ensureLoaded brings a persisted run back into memory after a restart.
func (m *Manager) ensureLoaded(ctx context.Context, chatID, telegramUserID int64) {
	key := sessionKey(chatID, telegramUserID)
	m.mu.Lock()
	_, ok := m.sessions[key]
	m.mu.Unlock()
	if ok {
		return
	}

	row, err := loadPracticeSession(ctx, chatID, telegramUserID, m.now())
	if err != nil {
		logger.Error("failed to load practice session", "chat_id", chatID, "error", err)
		return
	}
	if row == nil {
		return
	}
	if _, err := m.startFromPersisted(ctx, row); err != nil {
		logger.Error("failed to restore practice session", "chat_id", chatID, "error", err)
	}
}

// expiredPracticeSessions lists persisted runs with no activity since
// cutoff.
func expiredPracticeSessions(ctx context.Context, cutoff time.Time) ([]db.PracticeSession, error) {
	if db.DB == nil {
		return nil, nil
	}
	var rows []db.PracticeSession
	err := db.DB.WithContext(ctx).
		Where("last_activity_at < ?", cutoff.UTC()).
		Find(&rows).Error
	return rows, err
}

func playerFromRow(ctx context.Context, row *db.PracticeSession) (Player, error) {
	var user db.User
	if err := db.DB.WithContext(ctx).First(&user, row.UserID).Error; err != nil {
		return Player{}, db.Wrap("practice.restore", err)
	}
	return Player{
		Creds:          auth.Credentials{Subject: user.Subject, DisplayName: user.DisplayName},
		UserID:         row.UserID,
		ChatID:         row.ChatID,
		TelegramUserID: row.TelegramUserID,
	}, nil
}

// idleFromPersisted rebuilds just enough of an expired run to score it.
// The cards are not loaded; they may be gone by now.
func idleFromPersisted(ctx context.Context, row *db.PracticeSession) (*Session, error) {
	player, err := playerFromRow(ctx, row)
	if err != nil {
		return nil, err
	}
	return &Session{
		player:         player,
		correctCount:   row.CorrectCount,
		incorrectCount: row.IncorrectCount,
		startedAt:      row.StartedAt,
		lastActivityAt: row.LastActivityAt,
	}, nil
}

func (m *Manager) startFromPersisted(ctx context.Context, row *db.PracticeSession) (*Session, error) {
	var ids []uint
	if err := json.Unmarshal(row.FlashcardIDs, &ids); err != nil {
		return nil, err
	}
	if row.CurrentIndex < 0 || row.CurrentIndex >= len(ids) {
		return nil, errors.New("current index out of range")
	}
	cards, err := flashcards.ByIDs(ctx, row.UserID, ids)
	if err != nil {
		return nil, err
	}
	current, ok := cards[ids[row.CurrentIndex]]
	if !ok {
		return nil, errors.New("current flashcard no longer exists")
	}
	queue := make([]db.Flashcard, 0, len(ids)-row.CurrentIndex-1)
	for _, id := range ids[row.CurrentIndex+1:] {
		if card, ok := cards[id]; ok {
			queue = append(queue, card)
		}
	}

	player, err := playerFromRow(ctx, row)
	if err != nil {
		return nil, err
	}

	session := &Session{
		player:         player,
		flashcardIDs:   ids,
		queue:          queue,
		currentCard:    &current,
		currentIndex:   row.CurrentIndex,
		currentToken:   row.CurrentToken,
		currentMessage: row.CurrentMessageID,
		correctCount:   row.CorrectCount,
		incorrectCount: row.IncorrectCount,
		startedAt:      row.StartedAt,
		lastActivityAt: row.LastActivityAt,
	}

	key := sessionKey(row.ChatID, row.TelegramUserID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[key]; ok {
		return existing, nil
	}
	m.sessions[key] = session
	return session, nil
}
