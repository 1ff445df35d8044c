package battle

import (
	"fmt"
	"math"
)

func FormatOutcome(outcome Outcome) string {
	text := fmt.Sprintf(
		"Battle over!\nYou got %d correct answers.\nAccuracy: %d%% (%d/%d)",
		outcome.Correct,
		int(math.Round(outcome.Accuracy)),
		outcome.Correct,
		outcome.Attempts,
	)
	if outcome.Session != nil {
		text += fmt.Sprintf("\nXP: %d, level %d, streak %d",
			outcome.Session.XPEarned,
			outcome.Session.Level,
			outcome.Session.StreakCount,
		)
	}
	return text
}
