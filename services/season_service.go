package services

import (
	"context"
	"errors"
	"log"
	"time"

	"elo-ladder-system/models"

	"gorm.io/gorm"
)

// SeasonArchiver persists a closed season's final standings outside
// the database (object storage). Optional; failures only log.
type SeasonArchiver interface {
	ArchiveSeason(ctx context.Context, seasonNumber int, standings []SeasonStanding) error
}

// SeasonService drives the season lifecycle: signup while open,
// activation with pairing generation, and closure.
type SeasonService struct {
	DB       *gorm.DB
	Cfg      Config
	Pairings *PairingService
	Roles    RoleSyncer
	Archiver SeasonArchiver
}

func NewSeasonService(db *gorm.DB, cfg Config, pairings *PairingService, roles RoleSyncer) *SeasonService {
	if roles == nil {
		roles = NopRoleSyncer{}
	}
	return &SeasonService{DB: db, Cfg: cfg, Pairings: pairings, Roles: roles}
}

// EnsureInitialSeason creates season 1 (inactive) on first boot.
func (s *SeasonService) EnsureInitialSeason() error {
	season := models.Season{Number: 1}
	return s.DB.Where("season_number = ?", 1).FirstOrCreate(&season).Error
}

// Current returns the season with the highest number.
func (s *SeasonService) Current() (*models.Season, error) {
	var season models.Season
	if err := s.DB.Order("season_number DESC").First(&season).Error; err != nil {
		return nil, err
	}
	return &season, nil
}

// Active returns the active season or ErrNoActiveSeason.
func (s *SeasonService) Active() (*models.Season, error) {
	var season models.Season
	err := s.DB.Where("active = ?", true).First(&season).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveSeason
	}
	if err != nil {
		return nil, err
	}
	return &season, nil
}

// Signup flags a registered player for the upcoming season. Rejected
// while a season is running.
func (s *SeasonService) Signup(playerID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		active, err := activeSeasonNumber(tx)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrSeasonAlreadyActive
		}
		res := tx.Model(&models.Player{}).Where("id = ?", playerID).
			Update("signed_up", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotRegistered
		}
		return nil
	})
}

// SeasonStartResult is what startSeason reports back.
type SeasonStartResult struct {
	SeasonNumber int               `json:"season_number"`
	Pairings     *GenerationResult `json:"pairings"`
	RoleSync     *RoleSyncSummary  `json:"role_sync"`
}

// StartSeason freezes signups, synchronizes tier roles, generates the
// pairing set and activates the current season. Pairing generation and
// activation share one transaction, so a failed build leaves the
// season open with no partial pairings; the guarded activation update
// serializes concurrent starts.
func (s *SeasonService) StartSeason(ctx context.Context) (*SeasonStartResult, error) {
	current, err := s.Current()
	if err != nil {
		return nil, err
	}
	if current.Active {
		return nil, ErrSeasonAlreadyActive
	}

	roleSync, err := s.UpdateRoles(ctx)
	if err != nil && !errors.Is(err, ErrEmptySignupList) {
		return nil, err
	}

	result := &SeasonStartResult{SeasonNumber: current.Number, RoleSync: roleSync}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		generated, err := s.Pairings.Generate(tx, current.Number)
		if err != nil {
			return err
		}
		result.Pairings = generated

		res := tx.Model(&models.Season{}).
			Where("season_number = ? AND active = ?", current.Number, false).
			Update("active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSeasonAlreadyActive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[SEASONS] Season %d started with %d pairings", current.Number, result.Pairings.TotalPairings)
	return result, nil
}

// SeasonEndResult is what endSeason reports back.
type SeasonEndResult struct {
	ClosedSeason int `json:"closed_season"`
	NextSeason   int `json:"next_season"`
}

// EndSeason closes the active season: clears every signup flag, marks
// the season inactive and opens the next number. Historical pairings
// stay untouched. The standings archive runs after commit, best
// effort.
func (s *SeasonService) EndSeason(ctx context.Context) (*SeasonEndResult, error) {
	var result *SeasonEndResult
	var standings []SeasonStanding

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var season models.Season
		err := tx.Where("active = ?", true).First(&season).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveSeason
		}
		if err != nil {
			return err
		}

		standings, err = seasonStandings(tx, season.Number)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Player{}).Where("signed_up = ?", true).
			Update("signed_up", false).Error; err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Season{}).
			Where("season_number = ? AND active = ?", season.Number, true).
			Updates(map[string]interface{}{"active": false, "ended_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoActiveSeason
		}

		next := models.Season{Number: season.Number + 1}
		if err := tx.Create(&next).Error; err != nil {
			return err
		}

		result = &SeasonEndResult{ClosedSeason: season.Number, NextSeason: next.Number}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Archiver != nil {
		if err := s.Archiver.ArchiveSeason(ctx, result.ClosedSeason, standings); err != nil {
			log.Printf("[SEASONS] Archive upload for season %d failed: %v", result.ClosedSeason, err)
		}
	}

	log.Printf("[SEASONS] Season %d ended, season %d open for signups", result.ClosedSeason, result.NextSeason)
	return result, nil
}

// RoleSyncSummary aggregates a role synchronization batch.
type RoleSyncSummary struct {
	Total   int              `json:"total"`
	Updated int              `json:"updated"`
	Results []RoleSyncResult `json:"results"`
}

// UpdateRoles recomputes every signed-up player's tier role and pushes
// the batch to the role synchronizer. Per-player failures are logged
// and reported, never fatal.
func (s *SeasonService) UpdateRoles(ctx context.Context) (*RoleSyncSummary, error) {
	var players []models.Player
	if err := s.DB.Where("signed_up = ?", true).Find(&players).Error; err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, ErrEmptySignupList
	}

	var assignments []RoleAssignment
	for _, p := range players {
		tier, ok := s.Cfg.TierFor(p.Rating)
		if !ok {
			log.Printf("[ROLES] Player %s (rating %.0f) matches no tier, skipped", p.ID, p.Rating)
			continue
		}
		assignments = append(assignments, RoleAssignment{
			PlayerID: p.ID,
			Role:     tier.Name,
			Rating:   p.Rating,
		})
	}

	summary := &RoleSyncSummary{Total: len(players)}
	if len(assignments) == 0 {
		return summary, nil
	}

	summary.Results = s.Roles.SyncRoles(ctx, assignments)
	for _, r := range summary.Results {
		if r.Err != nil {
			log.Printf("[ROLES] Sync failed for %s: %v", r.PlayerID, r.Err)
			continue
		}
		summary.Updated++
	}
	log.Printf("[ROLES] Updated roles for %d/%d signed-up players", summary.Updated, summary.Total)
	return summary, nil
}

// SeasonStanding is one player's final line in a closed season's
// archive.
type SeasonStanding struct {
	GroupName string
	PlayerID  string
	Points    float64
	Games     int
	Rating    float64
}

// seasonStandings folds a season's pairing scores into per-player
// points (1 per win, 0.5 per draw), grouped by subgroup.
func seasonStandings(tx *gorm.DB, seasonNumber int) ([]SeasonStanding, error) {
	var pairings []models.Pairing
	if err := tx.Where("season_number = ?", seasonNumber).
		Order("group_key").Find(&pairings).Error; err != nil {
		return nil, err
	}

	type key struct{ group, player string }
	totals := make(map[key]*SeasonStanding)
	order := make([]key, 0)

	add := func(group, player string, points float64, played bool) {
		k := key{group, player}
		st, ok := totals[k]
		if !ok {
			st = &SeasonStanding{GroupName: group, PlayerID: player}
			totals[k] = st
			order = append(order, k)
		}
		if played {
			st.Points += points
			st.Games++
		}
	}

	for _, p := range pairings {
		for game := 1; game <= models.GamesPerPairing; game++ {
			score := p.Result(game)
			if score == nil {
				add(p.GroupName, p.Player1ID, 0, false)
				add(p.GroupName, p.Player2ID, 0, false)
				continue
			}
			add(p.GroupName, p.Player1ID, *score, true)
			add(p.GroupName, p.Player2ID, 1.0-*score, true)
		}
	}

	var playerIDs []string
	for _, k := range order {
		playerIDs = append(playerIDs, k.player)
	}
	var players []models.Player
	if len(playerIDs) > 0 {
		if err := tx.Where("id IN ?", playerIDs).Find(&players).Error; err != nil {
			return nil, err
		}
	}
	ratings := make(map[string]float64, len(players))
	for _, p := range players {
		ratings[p.ID] = p.Rating
	}

	standings := make([]SeasonStanding, 0, len(order))
	for _, k := range order {
		st := totals[k]
		st.Rating = ratings[k.player]
		standings = append(standings, *st)
	}
	return standings, nil
}
