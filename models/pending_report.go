package models

import (
	"time"
)

// Result letters as reported at the command surface, always from the
// reporter's own perspective.
const (
	ResultWin  = "w"
	ResultLoss = "l"
	ResultDraw = "d"
)

// PendingReport is a one-sided match claim waiting for the opponent's
// complementary claim. Freeform reports leave PairingID nil and use
// game number 0; season reports carry the pairing id and a slot of 1
// or 2. The unique indexes back up the transactional check-then-write:
// at most one live claim per (reporter, opponent, slot) and at most
// one per season pairing slot.
type PendingReport struct {
	ID         string  `gorm:"primaryKey" json:"id"`
	ReporterID string  `gorm:"not null;uniqueIndex:uniq_pending_claim" json:"reporter_id"`
	OpponentID string  `gorm:"not null;uniqueIndex:uniq_pending_claim" json:"opponent_id"`
	Result     string  `gorm:"type:varchar(1);not null" json:"result"`
	PairingID  *string `gorm:"uniqueIndex:uniq_pending_slot" json:"pairing_id,omitempty"`
	GameNumber int     `gorm:"not null;default:0;uniqueIndex:uniq_pending_claim;uniqueIndex:uniq_pending_slot" json:"game_number"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// Expired reports are treated as absent by every read even before the
// sweeper physically removes them.
func (r *PendingReport) Expired(ttl time.Duration, now time.Time) bool {
	return r.CreatedAt.Before(now.Add(-ttl))
}

// ComplementOf reports whether other's claim mirrors this one
// (win/loss swap, draw/draw match).
func (r *PendingReport) ComplementOf(result string) bool {
	return ComplementResult(r.Result) == result
}

// ComplementResult returns the result the counterparty must report to
// confirm the given claim.
func ComplementResult(result string) string {
	switch result {
	case ResultWin:
		return ResultLoss
	case ResultLoss:
		return ResultWin
	default:
		return ResultDraw
	}
}

// ValidResult reports whether the letter is one of w/l/d.
func ValidResult(result string) bool {
	return result == ResultWin || result == ResultLoss || result == ResultDraw
}
