package models

import (
	"time"
)

// Season numbers are strictly increasing starting at 1; at most one
// season is active at any time. A new inactive season row is created
// the moment the previous one closes.
type Season struct {
	Number int  `gorm:"primaryKey;column:season_number;autoIncrement:false" json:"season_number"`
	Active bool `gorm:"not null;default:false" json:"active"`

	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Tier is one rating band from the tier table. Players are assigned
// to the first tier, scanning by descending MinRating, whose range
// contains their rating.
type Tier struct {
	Name      string  `json:"name"`
	Key       string  `json:"key"` // slugged Name, used for lookups
	MinRating float64 `json:"min_rating"`
	MaxRating float64 `json:"max_rating"`
}

// Contains reports whether the rating falls inside the tier's
// inclusive range.
func (t Tier) Contains(rating float64) bool {
	return rating >= t.MinRating && rating <= t.MaxRating
}
