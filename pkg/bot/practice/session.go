package practice

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/logger"
	"github.com/smith3v/study-tracker/pkg/review"
	"github.com/smith3v/study-tracker/pkg/scoring"
)

const (
	DefaultRunSize           = 10
	SessionInactivityTimeout = 24 * time.Hour
	SessionSweeperInterval   = 10 * time.Minute
)

var ErrNothingDue = errors.New("nothing to review")

// Player is the Telegram user running a practice.
type Player struct {
	Creds          auth.Credentials
	UserID         uint
	ChatID         int64
	TelegramUserID int64
}

type Session struct {
	player         Player
	flashcardIDs   []uint
	queue          []db.Flashcard
	currentCard    *db.Flashcard
	currentIndex   int
	currentToken   string
	currentMessage int
	correctCount   int
	incorrectCount int
	startedAt      time.Time
	lastActivityAt time.Time

	// resolving is set while an answer to the current prompt is saved.
	resolving bool
}

// Prompt is the card waiting for an answer.
type Prompt struct {
	Card     db.Flashcard
	Token    string
	Position int
	Total    int
}

type Summary struct {
	Correct   int
	Incorrect int
	Accuracy  float64
	Session   *db.SessionRecord
}

// AnswerResult reports the effect of a button press. Handled is false and
// Notice explains why when the press did not match the active prompt.
type AnswerResult struct {
	Handled bool
	Notice  string
	Card    db.Flashcard
	Correct bool
	Next    *Prompt
	Summary *Summary
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
	engine   *scoring.Engine

	// beforeRecord runs after a press claims the prompt and before the
	// review write.
	beforeRecord func()
}

// NewManager builds a manager with an injectable clock. A nil engine uses
// scoring.DefaultEngine.
func NewManager(now func() time.Time, engine *scoring.Engine) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Session),
		now:      now,
		engine:   engine,
	}
}

var DefaultManager = NewManager(nil, nil)

func ResetDefaultManager(now func() time.Time, engine *scoring.Engine) {
	DefaultManager = NewManager(now, engine)
}

func (m *Manager) scorer() *scoring.Engine {
	if m.engine != nil {
		return m.engine
	}
	return scoring.DefaultEngine
}

// Start replaces the player's run with one over the cards due now.
func (m *Manager) Start(ctx context.Context, player Player, size int) (Prompt, error) {
	if size <= 0 {
		size = DefaultRunSize
	}
	cards, err := review.DueForUser(ctx, player.UserID, m.now(), size)
	if err != nil {
		return Prompt{}, err
	}
	return m.StartWith(ctx, player, cards)
}

// StartWith replaces the player's run with one over cards in the given
// order.
func (m *Manager) StartWith(ctx context.Context, player Player, cards []db.Flashcard) (Prompt, error) {
	if len(cards) == 0 {
		return Prompt{}, ErrNothingDue
	}
	now := m.now()
	ids := make([]uint, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
	}
	session := &Session{
		player:         player,
		flashcardIDs:   ids,
		queue:          append([]db.Flashcard(nil), cards...),
		currentIndex:   -1,
		startedAt:      now,
		lastActivityAt: now,
	}

	key := sessionKey(player.ChatID, player.TelegramUserID)
	m.mu.Lock()
	m.sessions[key] = session
	m.nextPromptLocked(session)
	prompt := promptOf(session)
	row, err := buildPracticeSession(session)
	m.mu.Unlock()

	m.persist(ctx, row, err)
	logger.Info("practice started", "user_id", player.UserID, "cards", len(cards))
	return prompt, nil
}

// Current returns the prompt waiting for an answer.
func (m *Manager) Current(ctx context.Context, chatID, telegramUserID int64) (Prompt, bool) {
	m.ensureLoaded(ctx, chatID, telegramUserID)
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[sessionKey(chatID, telegramUserID)]
	if session == nil || session.currentCard == nil {
		return Prompt{}, false
	}
	return promptOf(session), true
}

// SetCurrentMessageID records the message carrying the prompt with token.
func (m *Manager) SetCurrentMessageID(ctx context.Context, chatID, telegramUserID int64, token string, messageID int) {
	m.mu.Lock()
	session := m.sessions[sessionKey(chatID, telegramUserID)]
	if session == nil || session.currentToken != token {
		m.mu.Unlock()
		return
	}
	session.currentMessage = messageID
	row, err := buildPracticeSession(session)
	m.mu.Unlock()

	m.persist(ctx, row, err)
}

// Answer grades the active prompt. The grade goes through the review
// schedule first; when that fails the prompt stays active so the user can
// press again.
func (m *Manager) Answer(ctx context.Context, chatID, telegramUserID int64, token string, messageID int, correct bool) (AnswerResult, error) {
	m.ensureLoaded(ctx, chatID, telegramUserID)
	key := sessionKey(chatID, telegramUserID)

	m.mu.Lock()
	session := m.sessions[key]
	if session == nil || session.currentCard == nil || session.currentToken != token || session.currentMessage != messageID {
		m.mu.Unlock()
		return AnswerResult{Notice: "Not active"}, nil
	}
	if session.resolving {
		m.mu.Unlock()
		return AnswerResult{Notice: "Already resolved"}, nil
	}
	session.resolving = true
	card := *session.currentCard
	player := session.player
	m.mu.Unlock()

	if m.beforeRecord != nil {
		m.beforeRecord()
	}
	now := m.now()
	if _, err := review.RecordAnswer(ctx, player.Creds, card.PublicID, correct, now); err != nil {
		m.mu.Lock()
		session.resolving = false
		m.mu.Unlock()
		return AnswerResult{Notice: "Failed to save answer"}, err
	}

	m.mu.Lock()
	session.resolving = false
	if m.sessions[key] != session || session.currentToken != token {
		m.mu.Unlock()
		return AnswerResult{Notice: "Already resolved"}, nil
	}
	if correct {
		session.correctCount++
	} else {
		session.incorrectCount++
	}
	session.lastActivityAt = now
	result := AnswerResult{Handled: true, Card: card, Correct: correct}
	if !m.nextPromptLocked(session) {
		delete(m.sessions, key)
		m.mu.Unlock()

		summary, err := m.finish(ctx, session, now)
		result.Summary = &summary
		return result, err
	}
	next := promptOf(session)
	result.Next = &next
	row, err := buildPracticeSession(session)
	m.mu.Unlock()

	m.persist(ctx, row, err)
	return result, nil
}

// Stop ends the run early and scores the answers given so far.
func (m *Manager) Stop(ctx context.Context, chatID, telegramUserID int64) (Summary, bool, error) {
	m.ensureLoaded(ctx, chatID, telegramUserID)
	key := sessionKey(chatID, telegramUserID)
	m.mu.Lock()
	session := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if session == nil {
		return Summary{}, false, nil
	}
	summary, err := m.finish(ctx, session, m.now())
	return summary, true, err
}

// SweepInactive ends runs idle for longer than SessionInactivityTimeout
// and returns how many were ended. Persisted runs that were never brought
// back into memory after a restart are scored too.
func (m *Manager) SweepInactive(ctx context.Context) int {
	now := m.now()
	m.mu.Lock()
	expired := make([]*Session, 0)
	for key, session := range m.sessions {
		if session == nil {
			delete(m.sessions, key)
			continue
		}
		if now.Sub(session.lastActivityAt) > SessionInactivityTimeout {
			expired = append(expired, session)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		if _, err := m.finish(ctx, session, session.lastActivityAt); err != nil {
			logger.Error("failed to finish inactive practice", "user_id", session.player.UserID, "error", err)
		}
	}
	return len(expired) + m.sweepPersisted(ctx, now)
}

func (m *Manager) sweepPersisted(ctx context.Context, now time.Time) int {
	rows, err := expiredPracticeSessions(ctx, now.Add(-SessionInactivityTimeout))
	if err != nil {
		logger.Error("failed to load expired practice sessions", "error", err)
		return 0
	}
	ended := 0
	for i := range rows {
		row := &rows[i]
		m.mu.Lock()
		_, live := m.sessions[sessionKey(row.ChatID, row.TelegramUserID)]
		m.mu.Unlock()
		if live {
			continue
		}
		session, err := idleFromPersisted(ctx, row)
		if err != nil {
			logger.Error("failed to restore expired practice", "chat_id", row.ChatID, "error", err)
			continue
		}
		if _, err := m.finish(ctx, session, session.lastActivityAt); err != nil {
			logger.Error("failed to finish inactive practice", "user_id", session.player.UserID, "error", err)
		}
		ended++
	}
	return ended
}

// finish drops the persisted run and records a practice session when at
// least one card was answered.
func (m *Manager) finish(ctx context.Context, session *Session, endedAt time.Time) (Summary, error) {
	summary := Summary{
		Correct:   session.correctCount,
		Incorrect: session.incorrectCount,
		Accuracy:  scoring.Accuracy(session.correctCount, session.incorrectCount),
	}
	if err := deletePracticeSession(ctx, session.player.ChatID, session.player.TelegramUserID); err != nil {
		logger.Error("failed to delete practice session", "user_id", session.player.UserID, "error", err)
	}
	if session.correctCount+session.incorrectCount == 0 {
		return summary, nil
	}
	if endedAt.Before(session.startedAt) {
		endedAt = session.startedAt
	}
	record, err := m.scorer().CompleteSession(ctx, session.player.Creds, scoring.SessionInput{
		Mode:           db.ModePractice,
		StartedAt:      session.startedAt,
		EndedAt:        endedAt,
		CorrectCount:   session.correctCount,
		IncorrectCount: session.incorrectCount,
	})
	if err != nil {
		return summary, err
	}
	summary.Session = &record
	logger.Info("practice finished", "user_id", session.player.UserID, "correct", summary.Correct, "incorrect", summary.Incorrect)
	return summary, nil
}

func (m *Manager) persist(ctx context.Context, row *db.PracticeSession, buildErr error) {
	if buildErr != nil {
		logger.Error("failed to build practice session", "error", buildErr)
		return
	}
	if err := upsertPracticeSession(ctx, row); err != nil {
		logger.Error("failed to persist practice session", "user_id", row.UserID, "error", err)
	}
}

func (m *Manager) nextPromptLocked(session *Session) bool {
	if len(session.queue) == 0 {
		session.currentCard = nil
		return false
	}
	card := session.queue[0]
	session.queue = session.queue[1:]
	session.currentCard = &card
	session.currentToken = fmt.Sprintf("%x", rand.Int63())
	session.currentMessage = 0
	session.currentIndex++
	return true
}

func promptOf(session *Session) Prompt {
	if session == nil || session.currentCard == nil {
		return Prompt{}
	}
	return Prompt{
		Card:     *session.currentCard,
		Token:    session.currentToken,
		Position: session.currentIndex + 1,
		Total:    len(session.flashcardIDs),
	}
}

func sessionKey(chatID, telegramUserID int64) string {
	return fmt.Sprintf("%d:%d", chatID, telegramUserID)
}
