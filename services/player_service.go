package services

import (
	"errors"
	"log"

	"elo-ladder-system/models"

	"gorm.io/gorm"
)

// PlayerService owns the durable per-player ladder state and the
// read views over it (stats, leaderboard).
type PlayerService struct {
	DB  *gorm.DB
	Cfg Config
}

func NewPlayerService(db *gorm.DB, cfg Config) *PlayerService {
	return &PlayerService{DB: db, Cfg: cfg}
}

// Register creates a player record at the baseline rating with zero
// counters. Players are never deleted afterwards.
func (s *PlayerService) Register(playerID string) (*models.Player, error) {
	player := models.Player{
		ID:     playerID,
		Rating: s.Cfg.BaselineRating,
	}
	res := s.DB.Where("id = ?", playerID).FirstOrCreate(&player)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyExists
	}
	log.Printf("[PLAYERS] Registered %s at rating %.0f", playerID, player.Rating)
	return &player, nil
}

// Get returns the player record or ErrNotRegistered.
func (s *PlayerService) Get(playerID string) (*models.Player, error) {
	var player models.Player
	if err := s.DB.First(&player, "id = ?", playerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	return &player, nil
}

// SetSignup flips the season-signup flag. The flag is only meaningful
// while no season is active; SeasonService gates that.
func (s *PlayerService) SetSignup(playerID string, signedUp bool) error {
	res := s.DB.Model(&models.Player{}).Where("id = ?", playerID).
		Update("signed_up", signedUp)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotRegistered
	}
	return nil
}

// ResetAllSignups clears every signup flag; runs at season close.
func (s *PlayerService) ResetAllSignups() error {
	return s.DB.Model(&models.Player{}).Where("signed_up = ?", true).
		Update("signed_up", false).Error
}

// SignedUpPlayers returns everyone with the signup flag set.
func (s *PlayerService) SignedUpPlayers() ([]models.Player, error) {
	var players []models.Player
	if err := s.DB.Where("signed_up = ?", true).Order("rating DESC").
		Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

// applyOutcome sets the new rating and bumps the counters in a single
// UPDATE. Callers run it inside the transaction that settles the
// outcome so each confirmed game is applied at most once.
func applyOutcome(tx *gorm.DB, playerID string, newRating float64, wins, losses, draws int) error {
	res := tx.Model(&models.Player{}).Where("id = ?", playerID).Updates(map[string]interface{}{
		"rating": newRating,
		"wins":   gorm.Expr("wins + ?", wins),
		"losses": gorm.Expr("losses + ?", losses),
		"draws":  gorm.Expr("draws + ?", draws),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotRegistered
	}
	return nil
}

// PlayerStats is the read view behind the stats command.
type PlayerStats struct {
	Player       models.Player `json:"player"`
	TotalGames   int           `json:"total_games"`
	WinRate      float64       `json:"win_rate"`
	Rank         int64         `json:"rank"`
	TotalPlayers int64         `json:"total_players"`
	Tier         string        `json:"tier,omitempty"`
}

// GetStats returns a player's record plus their ladder rank.
func (s *PlayerService) GetStats(playerID string) (*PlayerStats, error) {
	player, err := s.Get(playerID)
	if err != nil {
		return nil, err
	}

	var better, total int64
	if err := s.DB.Model(&models.Player{}).Where("rating > ?", player.Rating).
		Count(&better).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Player{}).Count(&total).Error; err != nil {
		return nil, err
	}

	stats := PlayerStats{
		Player:       *player,
		TotalGames:   player.TotalGames(),
		WinRate:      player.WinRate(),
		Rank:         better + 1,
		TotalPlayers: total,
	}
	if tier, ok := s.Cfg.TierFor(player.Rating); ok {
		stats.Tier = tier.Name
	}
	return &stats, nil
}

// LeaderboardEntry is one ranked row of the leaderboard view.
type LeaderboardEntry struct {
	Rank    int           `json:"rank"`
	Player  models.Player `json:"player"`
	WinRate float64       `json:"win_rate"`
}

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 25
)

// GetLeaderboard returns the top players by rating. limit is clamped
// to 1..25 (0 means the default of 10). tierKey optionally restricts
// the board to one tier's rating band; an unknown key is ErrNotFound.
func (s *PlayerService) GetLeaderboard(limit int, tierKey string) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	query := s.DB.Model(&models.Player{})
	if tierKey != "" {
		tier, ok := s.Cfg.TierByKey(tierKey)
		if !ok {
			return nil, ErrNotFound
		}
		query = query.Where("rating BETWEEN ? AND ?", tier.MinRating, tier.MaxRating)
	}

	var players []models.Player
	if err := query.Order("rating DESC").Limit(limit).Find(&players).Error; err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(players))
	for i, p := range players {
		entries = append(entries, LeaderboardEntry{
			Rank:    i + 1,
			Player:  p,
			WinRate: p.WinRate(),
		})
	}
	return entries, nil
}
