package models

import "time"

// CardFace identifies the artwork shown on a revealed cell. The server only
// deals in face identifiers; mapping them to images is the front end's job.
type CardFace string

// Cell is one position on the board. Solved cells stay face-up for the rest
// of the round; Revealed marks cells flipped in the current attempt and is
// cleared after every resolution.
type Cell struct {
	Face     CardFace `json:"face"`
	Solved   bool     `json:"solved"`
	Revealed bool     `json:"revealed"`
}

// Board is the ordered sequence of cells for one round.
type Board []Cell

// Phase is the session state machine position.
type Phase string

const (
	PhaseLogin   Phase = "LOGIN"
	PhasePlaying Phase = "PLAYING"
	PhaseWin     Phase = "WIN"
	PhaseLose    Phase = "LOSE"
)

// Terminal reports whether the phase ends the round.
func (p Phase) Terminal() bool {
	return p == PhaseWin || p == PhaseLose
}

// Outcome is the logged result of a finished round.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLose Outcome = "LOSE"
)

// PrizeTier is one reward category in the weighted draw. Weights are
// relative; they do not need to sum to 1.
type PrizeTier struct {
	Prefix       string  `yaml:"prefix" json:"prefix"`
	Name         string  `yaml:"name" json:"name"`
	Weight       float64 `yaml:"weight" json:"weight"`
	ValidityDays int     `yaml:"validity_days" json:"validityDays"`
}

// PrizeResult is the outcome of a draw for one winning session: the tier
// name, the minted coupon code and the last valid day as YYYY/MM/DD.
type PrizeResult struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Expiry string `json:"expiry"`
}

// LogEntry is one immutable row of the result log.
type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Email      string    `json:"email"`
	Outcome    Outcome   `json:"outcome"`
	PrizeName  string    `json:"prizeName"`
	CouponCode string    `json:"couponCode"`
}
