package api

import (
	"net/http"
	"time"

	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/flashcards"
	"github.com/smith3v/study-tracker/pkg/review"
)

const (
	defaultDueLimit = 20
	maxDueLimit     = 200
)

type flashcardJSON struct {
	ID        string    `json:"id"`
	Front     string    `json:"front"`
	Back      string    `json:"back"`
	Topic     string    `json:"topic,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type reviewJSON struct {
	FlashcardID    string     `json:"flashcardId"`
	CorrectCount   int        `json:"correctCount"`
	IncorrectCount int        `json:"incorrectCount"`
	LastReviewedAt *time.Time `json:"lastReviewedAt,omitempty"`
	NextReviewAt   time.Time  `json:"nextReviewAt"`
}

func toFlashcardJSON(card db.Flashcard) flashcardJSON {
	return flashcardJSON{
		ID:        card.PublicID,
		Front:     card.Front,
		Back:      card.Back,
		Topic:     card.Topic,
		CreatedAt: card.CreatedAt,
	}
}

func toFlashcardList(cards []db.Flashcard) []flashcardJSON {
	out := make([]flashcardJSON, 0, len(cards))
	for _, card := range cards {
		out = append(out, toFlashcardJSON(card))
	}
	return out
}

func (s *Server) listFlashcards(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	cards, err := flashcards.List(r.Context(), creds, r.URL.Query().Get("topic"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFlashcardList(cards))
}

func (s *Server) createFlashcard(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	var in flashcards.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	card, err := flashcards.Create(r.Context(), creds, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFlashcardJSON(card))
}

func (s *Server) deleteFlashcard(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	if err := flashcards.Delete(r.Context(), creds, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dueFlashcards(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	limit, err := intQuery(r, "limit", defaultDueLimit, maxDueLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cards, err := review.DueFlashcards(r.Context(), creds, s.now(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFlashcardList(cards))
}

func (s *Server) answerFlashcard(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	var body struct {
		Correct *bool `json:"correct"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Correct == nil {
		writeError(w, r, errMissingField("correct"))
		return
	}

	publicID := r.PathValue("id")
	record, err := review.RecordAnswer(r.Context(), creds, publicID, *body.Correct, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewJSON{
		FlashcardID:    publicID,
		CorrectCount:   record.CorrectCount,
		IncorrectCount: record.IncorrectCount,
		LastReviewedAt: record.LastReviewedAt,
		NextReviewAt:   record.NextReviewAt,
	})
}
