package api

import (
	"net/http"
	"strings"

	"github.com/smith3v/study-tracker/pkg/battle"
)

type outcomeJSON struct {
	BattleID string       `json:"battleId"`
	Reason   string       `json:"reason"`
	Correct  int          `json:"correct"`
	Attempts int          `json:"attempts"`
	Accuracy float64      `json:"accuracy"`
	Session  *sessionJSON `json:"session,omitempty"`
}

type attemptJSON struct {
	Handled     bool           `json:"handled"`
	Notice      string         `json:"notice,omitempty"`
	Correct     bool           `json:"correct"`
	Expected    string         `json:"expected,omitempty"`
	ReviewSaved bool           `json:"reviewSaved"`
	Next        *battle.Prompt `json:"next,omitempty"`
	Outcome     *outcomeJSON   `json:"outcome,omitempty"`
}

func toOutcomeJSON(outcome battle.Outcome) *outcomeJSON {
	out := &outcomeJSON{
		BattleID: outcome.BattleID,
		Reason:   outcome.Reason,
		Correct:  outcome.Correct,
		Attempts: outcome.Attempts,
		Accuracy: outcome.Accuracy,
	}
	if outcome.Session != nil {
		session := toSessionJSON(*outcome.Session)
		out.Session = &session
	}
	return out
}

func toAttemptJSON(result battle.AttemptResult) attemptJSON {
	out := attemptJSON{
		Handled: result.Handled,
		Notice:  result.Notice,
		Correct: result.Correct,
		Next:    result.Next,
	}
	if result.Handled {
		out.Expected = result.Card.Expected
		out.ReviewSaved = result.ReviewSaved
		if !result.ReviewSaved && out.Notice == "" {
			out.Notice = "Answer counted, review not saved"
		}
	}
	if result.Outcome != nil {
		out.Outcome = toOutcomeJSON(*result.Outcome)
	}
	return out
}

// webPlayer resolves the caller into a battle player keyed by user.
func webPlayer(w http.ResponseWriter, r *http.Request) (battle.Player, bool) {
	creds, ok := credentials(w, r)
	if !ok {
		return battle.Player{}, false
	}
	user, err := creds.User(r.Context())
	if err != nil {
		writeError(w, r, err)
		return battle.Player{}, false
	}
	return battle.Player{Creds: creds, UserID: user.ID}, true
}

func (s *Server) startBattle(w http.ResponseWriter, r *http.Request) {
	player, ok := webPlayer(w, r)
	if !ok {
		return
	}
	prompt, err := s.battleManager().StartForPlayer(r.Context(), player)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, prompt)
}

func (s *Server) currentBattle(w http.ResponseWriter, r *http.Request) {
	player, ok := webPlayer(w, r)
	if !ok {
		return
	}
	prompt, ok := s.battleManager().Current(r.Context(), player.Key())
	if !ok {
		writeError(w, r, battle.ErrNoBattle)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) answerBattle(w http.ResponseWriter, r *http.Request) {
	player, ok := webPlayer(w, r)
	if !ok {
		return
	}
	var body struct {
		Answer string `json:"answer"`
		Token  string `json:"token"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Answer) == "" {
		writeError(w, r, errMissingField("answer"))
		return
	}
	s.writeAttempt(w, r, player, func() (battle.AttemptResult, error) {
		return s.battleManager().Answer(r.Context(), player.Key(), body.Token, body.Answer)
	})
}

func (s *Server) revealBattle(w http.ResponseWriter, r *http.Request) {
	player, ok := webPlayer(w, r)
	if !ok {
		return
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Token == "" {
		writeError(w, r, errMissingField("token"))
		return
	}
	s.writeAttempt(w, r, player, func() (battle.AttemptResult, error) {
		return s.battleManager().Reveal(r.Context(), player.Key(), body.Token, 0)
	})
}

// writeAttempt answers 404 when no battle is running and 409 when the
// attempt did not match the current prompt.
func (s *Server) writeAttempt(w http.ResponseWriter, r *http.Request, player battle.Player, attempt func() (battle.AttemptResult, error)) {
	if _, ok := s.battleManager().Current(r.Context(), player.Key()); !ok {
		writeError(w, r, battle.ErrNoBattle)
		return
	}
	result, err := attempt()
	if err != nil && !result.Handled {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !result.Handled {
		status = http.StatusConflict
	}
	writeJSON(w, status, toAttemptJSON(result))
}

func (s *Server) forfeitBattle(w http.ResponseWriter, r *http.Request) {
	player, ok := webPlayer(w, r)
	if !ok {
		return
	}
	outcome, err := s.battleManager().Forfeit(r.Context(), player.Key())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeJSON(outcome))
}
