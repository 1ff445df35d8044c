// Package api serves the study tracker over HTTP for the web client.
package api

import (
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/battle"
	"github.com/smith3v/study-tracker/pkg/config"
	"github.com/smith3v/study-tracker/pkg/scoring"
)

type Server struct {
	engine  *scoring.Engine
	battles *battle.Manager
	now     func() time.Time
}

// NewServer builds a server around engine and battles. Nil arguments fall
// back to the package defaults.
func NewServer(engine *scoring.Engine, battles *battle.Manager) *Server {
	return &Server{
		engine:  engine,
		battles: battles,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) scorer() *scoring.Engine {
	if s.engine != nil {
		return s.engine
	}
	return scoring.DefaultEngine
}

func (s *Server) battleManager() *battle.Manager {
	if s.battles != nil {
		return s.battles
	}
	return battle.DefaultManager
}

// Routes registers the /api endpoints. They expect the auth middleware in
// front of them.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Flashcards
	mux.HandleFunc("GET /api/flashcards", s.listFlashcards)
	mux.HandleFunc("POST /api/flashcards", s.createFlashcard)
	mux.HandleFunc("GET /api/flashcards/due", s.dueFlashcards)
	mux.HandleFunc("DELETE /api/flashcards/{id}", s.deleteFlashcard)
	mux.HandleFunc("POST /api/flashcards/{id}/answers", s.answerFlashcard)

	// Sessions and stats
	mux.HandleFunc("POST /api/sessions", s.completeSession)
	mux.HandleFunc("GET /api/sessions", s.sessionHistory)
	mux.HandleFunc("GET /api/stats", s.currentStats)
	mux.HandleFunc("GET /api/stats/daily", s.dailyProgress)
	mux.HandleFunc("GET /api/stats/summary", s.summary)

	// Battles
	mux.HandleFunc("POST /api/battles", s.startBattle)
	mux.HandleFunc("GET /api/battles", s.currentBattle)
	mux.HandleFunc("POST /api/battles/answer", s.answerBattle)
	mux.HandleFunc("POST /api/battles/reveal", s.revealBattle)
	mux.HandleFunc("DELETE /api/battles", s.forfeitBattle)

	return mux
}

// Handler wraps the routes with token verification and CORS. /healthz is
// served without a token.
func (s *Server) Handler(cfg config.Config) (http.Handler, error) {
	authMiddleware, err := auth.EnsureValidToken(cfg.Auth)
	if err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.healthz)
	root.Handle("/api/", authMiddleware(s.Routes()))

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(root), nil
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
