// Package model contains domain models passed between layers.
package model

// Member is a ranked entity on the club ladder. Ranks are 1-based,
// unique across all members, and dense: at any observable point the
// set of ranks is exactly 1..N. Rank 1 is the best standing.
type Member struct {
	ID   string // opaque identity, owned by the store
	Name string // display name, optional
	Rank int
}

// Outcome tags the result of a match from participant A's perspective.
type Outcome string

// Match outcome tags.
const (
	OutcomeAWins Outcome = "a_wins"
	OutcomeBWins Outcome = "b_wins"
	OutcomeDraw  Outcome = "draw"
)

// Valid reports whether the outcome is one of the known tags.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAWins, OutcomeBWins, OutcomeDraw:
		return true
	default:
		return false
	}
}

// MatchOutcome describes a finished match between two ranked members.
// RankA and RankB are the ranks as recorded at match time; the engine
// resolves higher/lower solely from these, not from the store, so the
// computation stays deterministic against the input.
type MatchOutcome struct {
	MatchID string // optional, used for at-most-once application
	A       string // participant A identity
	B       string // participant B identity
	RankA   int
	RankB   int
	Outcome Outcome
}

// RankChange reports the exact before/after ranks for both
// participants of an applied match, even when nothing moved.
type RankChange struct {
	ABefore int `json:"a_before"`
	BBefore int `json:"b_before"`
	AAfter  int `json:"a_after"`
	BAfter  int `json:"b_after"`
}

// Moved reports whether either participant changed rank.
func (c RankChange) Moved() bool {
	return c.AAfter != c.ABefore || c.BAfter != c.BBefore
}
