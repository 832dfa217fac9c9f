package models

import (
	"time"
)

// GamesPerPairing is the number of game slots every season pairing
// carries. Settlement fires only once all slots are filled.
const GamesPerPairing = 2

// Pairing is a scheduled season matchup. Result1/Result2 hold the
// per-game scores in {0, 0.5, 1} from player 1's perspective; nil
// means the game has not been confirmed yet. The pairing set for a
// season is fixed at activation and kept forever for history.
type Pairing struct {
	ID           string   `gorm:"primaryKey" json:"id"`
	SeasonNumber int      `gorm:"not null;index" json:"season_number"`
	GroupName    string   `gorm:"not null" json:"group_name"`
	GroupKey     string   `gorm:"not null;index" json:"-"`
	Player1ID    string   `gorm:"not null;index" json:"player1_id"`
	Player2ID    string   `gorm:"not null;index" json:"player2_id"`
	Result1      *float64 `json:"result1,omitempty"`
	Result2      *float64 `json:"result2,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Result returns the stored score for the given slot (1 or 2).
func (p *Pairing) Result(game int) *float64 {
	if game == 1 {
		return p.Result1
	}
	return p.Result2
}

// Complete reports whether every game slot has a confirmed score.
func (p *Pairing) Complete() bool {
	return p.Result1 != nil && p.Result2 != nil
}

// Involves reports whether the player is one of the two parties.
func (p *Pairing) Involves(playerID string) bool {
	return p.Player1ID == playerID || p.Player2ID == playerID
}
