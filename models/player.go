package models

import (
	"time"
)

// Player is a registered ladder member. The ID is the chat platform's
// user id, owned by the gateway. Rating and the W/L/D counters change
// only through confirmed match outcomes.
type Player struct {
	ID       string  `gorm:"primaryKey" json:"id"`
	Rating   float64 `gorm:"not null" json:"rating"`
	Wins     int     `gorm:"not null;default:0" json:"wins"`
	Losses   int     `gorm:"not null;default:0" json:"losses"`
	Draws    int     `gorm:"not null;default:0" json:"draws"`
	SignedUp bool    `gorm:"not null;default:false;index" json:"signed_up"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TotalGames is the number of confirmed games on record.
func (p *Player) TotalGames() int {
	return p.Wins + p.Losses + p.Draws
}

// WinRate is wins over decisive games (draws excluded), 0 if none.
func (p *Player) WinRate() float64 {
	decisive := p.Wins + p.Losses
	if decisive == 0 {
		return 0
	}
	return float64(p.Wins) / float64(decisive) * 100
}
