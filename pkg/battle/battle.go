package battle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/flashcards"
	"github.com/smith3v/study-tracker/pkg/logger"
	"github.com/smith3v/study-tracker/pkg/review"
	"github.com/smith3v/study-tracker/pkg/scoring"
)

const (
	DeckFlashcards    = 5
	InactivityTimeout = 15 * time.Minute
	SweeperInterval   = 1 * time.Minute
)

// End reasons reported in Outcome.Reason.
const (
	ReasonFinished = "finished"
	ReasonForfeit  = "forfeit"
	ReasonTimeout  = "timeout"
)

var (
	ErrNoFlashcards = errors.New("no flashcards to battle with")
	ErrNoBattle     = errors.New("no active battle")
)

// CardDirection describes which side of the flashcard is shown.
type CardDirection string

const (
	FrontToBack CardDirection = "front_to_back"
	BackToFront CardDirection = "back_to_front"
)

// Card is a single prompt in the battle deck.
type Card struct {
	FlashcardID uint
	Direction   CardDirection
	Shown       string
	Expected    string
}

type Prompt struct {
	BattleID  string        `json:"battleId"`
	Token     string        `json:"token"`
	Shown     string        `json:"shown"`
	Direction CardDirection `json:"direction"`
	Remaining int           `json:"remaining"`
}

// Player identifies who is playing. ChatID is zero for web battles.
type Player struct {
	Creds          auth.Credentials
	UserID         uint
	ChatID         int64
	TelegramUserID int64
}

func (p Player) Key() string {
	if p.ChatID != 0 {
		return TelegramKey(p.ChatID, p.TelegramUserID)
	}
	return WebKey(p.UserID)
}

func WebKey(userID uint) string {
	return fmt.Sprintf("web:%d", userID)
}

func TelegramKey(chatID, telegramUserID int64) string {
	return fmt.Sprintf("tg:%d:%d", chatID, telegramUserID)
}

// Session tracks a single player's active battle.
type Session struct {
	id     string
	key    string
	player Player

	startedAt      time.Time
	lastActivityAt time.Time
	correctCount   int
	attemptCount   int

	deck []Card

	currentCard      *Card
	currentMessageID int
	currentResolved  bool
	currentToken     string
}

type Outcome struct {
	BattleID string            `json:"battleId"`
	Reason   string            `json:"reason"`
	Correct  int               `json:"correct"`
	Attempts int               `json:"attempts"`
	Accuracy float64           `json:"accuracy"`
	Session  *db.SessionRecord `json:"session,omitempty"`
	ChatID   int64             `json:"-"`
}

// AttemptResult describes the effect of a typed answer or a reveal.
// Handled is false when the input did not belong to an active prompt.
type AttemptResult struct {
	Handled         bool
	Notice          string
	Correct         bool
	Card            Card
	PromptMessageID int
	Next            *Prompt
	Outcome         *Outcome

	// ReviewSaved reports whether a handled attempt reached the review
	// schedule.
	ReviewSaved bool
}

// MessageSender delivers timeout notices to Telegram chats.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Manager holds active battles with thread-safe access.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
	engine   *scoring.Engine
}

// NewManager initializes a manager with an injectable clock. A nil engine
// uses scoring.DefaultEngine.
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

// StartForPlayer draws a fresh deck from the player's flashcards.
func (m *Manager) StartForPlayer(ctx context.Context, player Player) (Prompt, error) {
	cards, err := flashcards.Random(ctx, player.UserID, DeckFlashcards)
	if err != nil {
		return Prompt{}, err
	}
	return m.Start(ctx, player, cards)
}

// Start replaces any battle of the player with a new one over up to
// DeckFlashcards of cards, each asked in both directions.
func (m *Manager) Start(ctx context.Context, player Player, cards []db.Flashcard) (Prompt, error) {
	if len(cards) == 0 {
		return Prompt{}, ErrNoFlashcards
	}
	deck := buildDeck(sampleFlashcards(cards, DeckFlashcards))
	shuffleDeck(deck)

	now := m.now()
	session := &Session{
		id:              uuid.NewString(),
		key:             player.Key(),
		player:          player,
		startedAt:       now,
		lastActivityAt:  now,
		deck:            deck,
		currentResolved: true,
	}

	m.mu.Lock()
	m.sessions[session.key] = session
	m.nextPromptLocked(session)
	prompt := promptOf(session)
	state, err := snapshotLocked(session)
	m.mu.Unlock()

	logger.Info("battle started", "user_id", player.UserID, "battle_id", session.id, "cards", len(deck))
	m.saveState(ctx, state, err)
	return prompt, nil
}

// Current returns the active prompt for key.
func (m *Manager) Current(ctx context.Context, key string) (Prompt, bool) {
	m.ensureLoaded(ctx, key)
	m.mu.Lock()
	defer m.mu.Unlock()
	session := m.sessions[key]
	if session == nil || session.currentCard == nil || session.currentResolved {
		return Prompt{}, false
	}
	return promptOf(session), true
}

// Answer applies a typed answer to the active prompt. A miss puts the card
// back at the end of the queue. The answer also feeds the review schedule;
// a failure there is returned after the battle has advanced. A non-empty
// token must match the active prompt; chat answers pass "".
func (m *Manager) Answer(ctx context.Context, key, token, text string) (AttemptResult, error) {
	m.ensureLoaded(ctx, key)

	m.mu.Lock()
	session := m.sessions[key]
	if session == nil || session.currentCard == nil || session.currentResolved {
		m.mu.Unlock()
		return AttemptResult{}, nil
	}
	if token != "" && session.currentToken != token {
		m.mu.Unlock()
		return AttemptResult{Notice: "Not active"}, nil
	}
	if session.player.ChatID != 0 && session.currentMessageID == 0 {
		m.mu.Unlock()
		return AttemptResult{}, nil
	}

	card := *session.currentCard
	result := AttemptResult{
		Handled:         true,
		PromptMessageID: session.currentMessageID,
		Card:            card,
		Correct:         MatchesExpected(text, card.Expected, strings.Contains(card.Shown, ",")),
	}
	now := m.now()
	session.attemptCount++
	if result.Correct {
		session.correctCount++
	} else {
		session.deck = append(session.deck, card)
	}
	session.lastActivityAt = now
	session.currentResolved = true

	finished := m.advanceLocked(session, &result)
	var state *db.BattleState
	var stateErr error
	if !finished {
		state, stateErr = snapshotLocked(session)
	}
	m.mu.Unlock()

	reviewErr := m.recordReview(ctx, session.player, card, result.Correct, now)
	result.ReviewSaved = reviewErr == nil
	if finished {
		outcome, err := m.finalize(ctx, session, ReasonFinished, now)
		result.Outcome = &outcome
		return result, errors.Join(reviewErr, err)
	}
	m.saveState(ctx, state, stateErr)
	return result, reviewErr
}

// Reveal shows the answer of the active prompt. It counts as a miss and
// requeues the card. token and messageID must match the active prompt.
func (m *Manager) Reveal(ctx context.Context, key, token string, messageID int) (AttemptResult, error) {
	m.ensureLoaded(ctx, key)

	m.mu.Lock()
	session := m.sessions[key]
	if session == nil {
		m.mu.Unlock()
		return AttemptResult{Notice: "Not active"}, nil
	}
	if session.currentCard == nil || session.currentResolved {
		m.mu.Unlock()
		return AttemptResult{Notice: "Already resolved"}, nil
	}
	if session.currentToken != token || session.currentMessageID != messageID {
		m.mu.Unlock()
		return AttemptResult{Notice: "Not active"}, nil
	}

	card := *session.currentCard
	result := AttemptResult{
		Handled:         true,
		PromptMessageID: session.currentMessageID,
		Card:            card,
	}
	now := m.now()
	session.attemptCount++
	session.lastActivityAt = now
	session.currentResolved = true
	session.deck = append(session.deck, card)

	m.advanceLocked(session, &result)
	state, stateErr := snapshotLocked(session)
	m.mu.Unlock()

	reviewErr := m.recordReview(ctx, session.player, card, false, now)
	result.ReviewSaved = reviewErr == nil
	m.saveState(ctx, state, stateErr)
	return result, reviewErr
}

// Forfeit ends the player's battle early and scores what was answered.
func (m *Manager) Forfeit(ctx context.Context, key string) (Outcome, error) {
	m.ensureLoaded(ctx, key)

	m.mu.Lock()
	session := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if session == nil {
		return Outcome{}, ErrNoBattle
	}
	return m.finalize(ctx, session, ReasonForfeit, m.now())
}

// SetCurrentMessageIDForToken stores the Telegram message ID if the token
// matches the active prompt.
func (m *Manager) SetCurrentMessageIDForToken(key, token string, messageID int) {
	m.mu.Lock()
	session := m.sessions[key]
	if session == nil || (token != "" && session.currentToken != token) {
		m.mu.Unlock()
		return
	}
	session.currentMessageID = messageID
	state, err := snapshotLocked(session)
	m.mu.Unlock()

	m.saveState(context.Background(), state, err)
}

// SweepInactive ends battles idle for longer than InactivityTimeout and
// sends the result to Telegram players when sender is set.
func (m *Manager) SweepInactive(ctx context.Context, sender MessageSender) []Outcome {
	now := m.now()
	expired := m.collectInactive(now)
	outcomes := make([]Outcome, 0, len(expired))
	for _, session := range expired {
		outcome, err := m.finalize(ctx, session, ReasonTimeout, session.lastActivityAt.Add(InactivityTimeout))
		if err != nil {
			logger.Error("failed to finalize timed out battle", "battle_id", session.id, "error", err)
		}
		outcomes = append(outcomes, outcome)
		if sender == nil || session.player.ChatID == 0 {
			continue
		}
		if err := sender.SendMessage(ctx, session.player.ChatID, FormatOutcome(outcome)); err != nil {
			logger.Error("failed to send battle timeout stats", "chat_id", session.player.ChatID, "error", err)
		}
	}
	return outcomes
}

func (m *Manager) collectInactive(now time.Time) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := make([]*Session, 0)
	for key, session := range m.sessions {
		if session == nil {
			delete(m.sessions, key)
			continue
		}
		if now.Sub(session.lastActivityAt) > InactivityTimeout {
			expired = append(expired, session)
			delete(m.sessions, key)
		}
	}
	return expired
}

// finalize scores a battle that has been removed from the manager. Battles
// without a single attempt are dropped without a session record.
func (m *Manager) finalize(ctx context.Context, session *Session, reason string, endedAt time.Time) (Outcome, error) {
	outcome := Outcome{
		BattleID: session.id,
		Reason:   reason,
		Correct:  session.correctCount,
		Attempts: session.attemptCount,
		Accuracy: scoring.Accuracy(session.correctCount, session.attemptCount-session.correctCount),
		ChatID:   session.player.ChatID,
	}
	deleteState(ctx, session.key)

	if session.attemptCount == 0 {
		return outcome, nil
	}
	if endedAt.Before(session.startedAt) {
		endedAt = session.startedAt
	}
	record, err := m.scorer().CompleteSession(ctx, session.player.Creds, scoring.SessionInput{
		Mode:           db.ModeBattle,
		StartedAt:      session.startedAt,
		EndedAt:        endedAt,
		CorrectCount:   session.correctCount,
		IncorrectCount: session.attemptCount - session.correctCount,
	})
	if err != nil {
		return outcome, err
	}
	outcome.Session = &record
	logger.Info("battle finished", "battle_id", session.id, "reason", reason, "correct", outcome.Correct, "attempts", outcome.Attempts)
	return outcome, nil
}

func (m *Manager) recordReview(ctx context.Context, player Player, card Card, correct bool, now time.Time) error {
	if player.UserID == 0 || card.FlashcardID == 0 {
		return nil
	}
	_, err := review.Answer(ctx, player.UserID, card.FlashcardID, correct, now)
	return err
}

// advanceLocked moves to the next prompt after the current one was
// resolved. It reports true when the deck is exhausted, in which case the
// session has been removed from the manager.
func (m *Manager) advanceLocked(session *Session, result *AttemptResult) bool {
	if len(session.deck) == 0 {
		session.currentCard = nil
		delete(m.sessions, session.key)
		return true
	}
	m.nextPromptLocked(session)
	next := promptOf(session)
	result.Next = &next
	return false
}

func (m *Manager) nextPromptLocked(session *Session) (Card, bool) {
	if session == nil || len(session.deck) == 0 {
		return Card{}, false
	}
	card := session.deck[0]
	session.deck = session.deck[1:]
	session.currentCard = &card
	session.currentResolved = false
	session.currentMessageID = 0
	session.currentToken = nextToken()
	return card, true
}

func nextToken() string {
	return strconv.FormatInt(rand.Int63(), 36)
}

func promptOf(session *Session) Prompt {
	if session == nil || session.currentCard == nil {
		return Prompt{}
	}
	return Prompt{
		BattleID:  session.id,
		Token:     session.currentToken,
		Shown:     session.currentCard.Shown,
		Direction: session.currentCard.Direction,
		Remaining: len(session.deck),
	}
}

// buildDeck expands flashcards into two-direction cards without shuffling.
func buildDeck(cards []db.Flashcard) []Card {
	deck := make([]Card, 0, len(cards)*2)
	for _, card := range cards {
		deck = append(deck, buildCard(card, FrontToBack))
		deck = append(deck, buildCard(card, BackToFront))
	}
	return deck
}

func buildCard(card db.Flashcard, direction CardDirection) Card {
	result := Card{
		FlashcardID: card.ID,
		Direction:   direction,
	}
	switch direction {
	case FrontToBack:
		result.Shown = card.Front
		result.Expected = card.Back
	case BackToFront:
		result.Shown = card.Back
		result.Expected = card.Front
	}
	return result
}

// sampleFlashcards returns up to limit distinct cards, choosing randomly
// when necessary.
func sampleFlashcards(cards []db.Flashcard, limit int) []db.Flashcard {
	if limit <= 0 || len(cards) <= limit {
		return cards
	}
	perm := rand.Perm(len(cards))
	selected := make([]db.Flashcard, 0, limit)
	for i := 0; i < limit; i++ {
		selected = append(selected, cards[perm[i]])
	}
	return selected
}

func shuffleDeck(deck []Card) {
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}
