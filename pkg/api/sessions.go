package api

import (
	"net/http"
	"time"

	"github.com/smith3v/study-tracker/pkg/analytics"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/scoring"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	defaultDays         = 30
)

type sessionJSON struct {
	Sequence       int       `json:"sequence"`
	Mode           string    `json:"mode"`
	StartedAt      time.Time `json:"startedAt"`
	EndedAt        time.Time `json:"endedAt"`
	CorrectCount   int       `json:"correctCount"`
	IncorrectCount int       `json:"incorrectCount"`
	Accuracy       float64   `json:"accuracy"`
	XPEarned       int       `json:"xpEarned"`
	StreakCount    int       `json:"streakCount"`
	Level          int       `json:"level"`
}

func toSessionJSON(record db.SessionRecord) sessionJSON {
	return sessionJSON{
		Sequence:       record.Sequence,
		Mode:           record.Mode,
		StartedAt:      record.StartedAt,
		EndedAt:        record.EndedAt,
		CorrectCount:   record.CorrectCount,
		IncorrectCount: record.IncorrectCount,
		Accuracy:       record.Accuracy,
		XPEarned:       record.XPEarned,
		StreakCount:    record.StreakCount,
		Level:          record.Level,
	}
}

func (s *Server) completeSession(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	var in scoring.SessionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	record, err := s.scorer().CompleteSession(r.Context(), creds, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionJSON(record))
}

func (s *Server) sessionHistory(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	limit, err := intQuery(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.scorer().History(r.Context(), creds, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]sessionJSON, 0, len(records))
	for _, record := range records {
		out = append(out, toSessionJSON(record))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) currentStats(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	stats, err := s.scorer().CurrentStats(r.Context(), creds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) dailyProgress(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	days, err := intQuery(r, "days", defaultDays, analytics.MaxDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := creds.User(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := s.now()
	progress, err := analytics.DailyProgress(r.Context(), user.ID, now.AddDate(0, 0, -(days-1)), now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	creds, ok := credentials(w, r)
	if !ok {
		return
	}
	user, err := creds.User(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := analytics.UserSummary(r.Context(), user.ID, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
