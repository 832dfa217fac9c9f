package services

import "math"

// Per-game score values from a player's own perspective.
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

// ExpectedScore returns the probability of a beating b under the
// logistic Elo model. ExpectedScore(a, b) + ExpectedScore(b, a) == 1.
func ExpectedScore(a, b float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (b-a)/400.0))
}

// UpdateRatings applies one game outcome to both ratings and returns
// the new pair. scoreA is a's actual score (1, 0.5 or 0); b receives
// the complement. Pure and deterministic, no failure modes.
func UpdateRatings(k, a, b, scoreA float64) (newA, newB float64) {
	ea := ExpectedScore(a, b)
	eb := 1.0 - ea
	newA = a + k*(scoreA-ea)
	newB = b + k*((1.0-scoreA)-eb)
	return newA, newB
}

// ScoreForResult translates a reporter's result letter into the
// reporter's own numeric score.
func ScoreForResult(result string) float64 {
	switch result {
	case "w":
		return ScoreWin
	case "l":
		return ScoreLoss
	default:
		return ScoreDraw
	}
}
