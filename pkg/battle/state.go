package battle

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

// stateTTL bounds how long a mirrored battle can be resumed after a
// restart. Older rows are removed by the session cleanup job.
const stateTTL = 24 * time.Hour

type persistedCard struct {
	FlashcardID uint          `json:"flashcard_id"`
	Direction   CardDirection `json:"direction"`
}

func snapshotLocked(session *Session) (*db.BattleState, error) {
	if session == nil {
		return nil, errors.New("nil session")
	}
	deck := make([]persistedCard, 0, len(session.deck)+1)
	if session.currentCard != nil {
		deck = append(deck, persistedCard{
			FlashcardID: session.currentCard.FlashcardID,
			Direction:   session.currentCard.Direction,
		})
	}
	for _, card := range session.deck {
		deck = append(deck, persistedCard{FlashcardID: card.FlashcardID, Direction: card.Direction})
	}
	raw, err := json.Marshal(deck)
	if err != nil {
		return nil, err
	}
	lastActivity := session.lastActivityAt.UTC()
	return &db.BattleState{
		SessionKey:       session.key,
		BattleID:         session.id,
		UserID:           session.player.UserID,
		ChatID:           session.player.ChatID,
		Deck:             datatypes.JSON(raw),
		CurrentToken:     session.currentToken,
		CurrentMessageID: session.currentMessageID,
		CorrectCount:     session.correctCount,
		AttemptCount:     session.attemptCount,
		StartedAt:        session.startedAt.UTC(),
		LastActivityAt:   lastActivity,
		ExpiresAt:        lastActivity.Add(stateTTL),
	}, nil
}

// saveState mirrors a snapshot. The in-memory battle stays authoritative,
// so failures are logged only.
func (m *Manager) saveState(ctx context.Context, state *db.BattleState, buildErr error) {
	if buildErr != nil {
		logger.Error("failed to build battle state", "error", buildErr)
		return
	}
	if state == nil || db.DB == nil {
		return
	}
	err := db.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_key"}},
		UpdateAll: true,
	}).Create(state).Error
	if err != nil {
		logger.Error("failed to persist battle state", "session_key", state.SessionKey, "error", err)
	}
}

func deleteState(ctx context.Context, key string) {
	if db.DB == nil {
		return
	}
	if err := db.DB.WithContext(ctx).Where("session_key = ?", key).Delete(&db.BattleState{}).Error; err != nil {
		logger.Error("failed to delete battle state", "session_key", key, "error", err)
	}
}

// RestoreAll loads every unexpired mirrored battle into memory. Battles
// that were idle for too long are then ended by the next sweep.
func (m *Manager) RestoreAll(ctx context.Context) (int, error) {
	if db.DB == nil {
		return 0, nil
	}
	var rows []db.BattleState
	if err := db.DB.WithContext(ctx).Where("expires_at > ?", m.now().UTC()).Find(&rows).Error; err != nil {
		return 0, db.Wrap("battle.RestoreAll", err)
	}
	restored := 0
	for i := range rows {
		if _, err := m.restore(ctx, &rows[i]); err != nil {
			logger.Error("failed to restore battle", "session_key", rows[i].SessionKey, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

// ensureLoaded restores the battle for key from its mirror when it is not
// in memory.
func (m *Manager) ensureLoaded(ctx context.Context, key string) {
	if db.DB == nil {
		return
	}
	m.mu.Lock()
	_, ok := m.sessions[key]
	m.mu.Unlock()
	if ok {
		return
	}

	var row db.BattleState
	err := db.DB.WithContext(ctx).
		Where("session_key = ? AND expires_at > ?", key, m.now().UTC()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err != nil {
		logger.Error("failed to load battle state", "session_key", key, "error", err)
		return
	}
	if _, err := m.restore(ctx, &row); err != nil {
		logger.Error("failed to restore battle", "session_key", key, "error", err)
	}
}

func (m *Manager) restore(ctx context.Context, row *db.BattleState) (*Session, error) {
	var persisted []persistedCard
	if err := json.Unmarshal(row.Deck, &persisted); err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(persisted))
	for _, entry := range persisted {
		ids = append(ids, entry.FlashcardID)
	}
	cards, err := flashcards.ByIDs(ctx, row.UserID, ids)
	if err != nil {
		return nil, err
	}
	deck := make([]Card, 0, len(persisted))
	for _, entry := range persisted {
		card, ok := cards[entry.FlashcardID]
		if !ok {
			continue
		}
		deck = append(deck, buildCard(card, entry.Direction))
	}
	if len(deck) == 0 {
		deleteState(ctx, row.SessionKey)
		return nil, errors.New("no cards left in mirrored battle")
	}

	var user db.User
	if err := db.DB.WithContext(ctx).First(&user, row.UserID).Error; err != nil {
		return nil, db.Wrap("battle.restore", err)
	}

	session := &Session{
		id:  row.BattleID,
		key: row.SessionKey,
		player: Player{
			Creds:  auth.Credentials{Subject: user.Subject, DisplayName: user.DisplayName},
			UserID: row.UserID,
			ChatID: row.ChatID,
		},
		startedAt:        row.StartedAt,
		lastActivityAt:   row.LastActivityAt,
		correctCount:     row.CorrectCount,
		attemptCount:     row.AttemptCount,
		currentCard:      &deck[0],
		currentMessageID: row.CurrentMessageID,
		currentToken:     row.CurrentToken,
		deck:             append([]Card(nil), deck[1:]...),
	}

	m.mu.Lock()
	if existing, ok := m.sessions[row.SessionKey]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.sessions[row.SessionKey] = session
	m.mu.Unlock()
	return session, nil
}
