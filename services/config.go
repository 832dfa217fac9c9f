package services

import (
	"sort"
	"time"

	"elo-ladder-system/models"
)

// Default ladder tuning, overridable through the environment.
const (
	DefaultBaselineRating = 1380
	DefaultKFactor        = 25
	DefaultPendingTTL     = 30 * time.Minute

	// Tier groups larger than MaxGroupSize are split into randomized
	// subgroups of MinGroupSize..MaxGroupSize players.
	MaxGroupSize = 7
	MinGroupSize = 4
)

// Config carries the injected ladder tuning. Services never read the
// environment themselves.
type Config struct {
	BaselineRating float64
	KFactor        float64
	PendingTTL     time.Duration
	Tiers          []models.Tier
}

// NewConfig fills zero values with the defaults and orders the tier
// table by descending minimum rating, the scan order used for
// assignment.
func NewConfig(baseline, kFactor float64, ttl time.Duration, tiers []models.Tier) Config {
	cfg := Config{
		BaselineRating: baseline,
		KFactor:        kFactor,
		PendingTTL:     ttl,
		Tiers:          make([]models.Tier, len(tiers)),
	}
	if cfg.BaselineRating == 0 {
		cfg.BaselineRating = DefaultBaselineRating
	}
	if cfg.KFactor == 0 {
		cfg.KFactor = DefaultKFactor
	}
	if cfg.PendingTTL == 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	copy(cfg.Tiers, tiers)
	sort.SliceStable(cfg.Tiers, func(i, j int) bool {
		return cfg.Tiers[i].MinRating > cfg.Tiers[j].MinRating
	})
	return cfg
}

// TierFor returns the first tier whose range contains the rating, or
// false when the rating falls outside every tier.
func (c Config) TierFor(rating float64) (models.Tier, bool) {
	for _, t := range c.Tiers {
		if t.Contains(rating) {
			return t, true
		}
	}
	return models.Tier{}, false
}

// TierByKey looks a tier up by its slugged key.
func (c Config) TierByKey(key string) (models.Tier, bool) {
	for _, t := range c.Tiers {
		if t.Key == key {
			return t, true
		}
	}
	return models.Tier{}, false
}
