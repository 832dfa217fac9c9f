package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"elo-ladder-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// PairingService builds the season pairing set and serves the pairing
// schedule read view.
type PairingService struct {
	DB  *gorm.DB
	Cfg Config
}

func NewPairingService(db *gorm.DB, cfg Config) *PairingService {
	return &PairingService{DB: db, Cfg: cfg}
}

// GenerationResult summarizes one pairing build.
type GenerationResult struct {
	SeasonNumber  int      `json:"season_number"`
	TotalPairings int      `json:"total_pairings"`
	Groups        []string `json:"groups"`
	Unmatched     []string `json:"unmatched,omitempty"` // players outside every tier, warning only
}

// Generate builds the full round-robin pairing set for the season
// from the signed-up players, inside the caller's transaction so a
// failed activation leaves nothing behind. Fails with no writes when
// nobody signed up or nobody matches a tier.
func (ps *PairingService) Generate(tx *gorm.DB, seasonNumber int) (*GenerationResult, error) {
	var players []models.Player
	if err := tx.Where("signed_up = ?", true).Find(&players).Error; err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, ErrEmptySignupList
	}

	groups, unmatched := ps.groupByTier(players)
	if len(groups) == 0 {
		return nil, ErrNoTierMatch
	}

	result := &GenerationResult{SeasonNumber: seasonNumber, Unmatched: unmatched}
	var rows []models.Pairing
	for _, group := range groups {
		subgroups := splitSubgroups(group.playerIDs, rand.Shuffle)
		for i, subgroup := range subgroups {
			name := group.tier.Name
			if len(subgroups) > 1 {
				name = fmt.Sprintf("%s-%d", group.tier.Name, i+1)
			}
			result.Groups = append(result.Groups, name)
			for _, pair := range roundRobinPairs(subgroup) {
				rows = append(rows, models.Pairing{
					ID:           uuid.NewString(),
					SeasonNumber: seasonNumber,
					GroupName:    name,
					GroupKey:     slug.Make(name),
					Player1ID:    pair[0],
					Player2ID:    pair[1],
				})
			}
		}
	}

	if err := tx.Create(&rows).Error; err != nil {
		return nil, err
	}
	result.TotalPairings = len(rows)
	log.Printf("[PAIRINGS] Generated %d pairings across %d groups for season %d",
		len(rows), len(result.Groups), seasonNumber)
	for _, id := range unmatched {
		log.Printf("[PAIRINGS] Warning: player %s matches no tier, excluded from season %d", id, seasonNumber)
	}
	return result, nil
}

type tierGroup struct {
	tier      models.Tier
	playerIDs []string
}

// groupByTier assigns each player to the first tier (descending by
// range minimum) containing their rating. Players outside every tier
// are returned separately as warnings.
func (ps *PairingService) groupByTier(players []models.Player) ([]tierGroup, []string) {
	byKey := make(map[string]int)
	var groups []tierGroup
	var unmatched []string
	for _, p := range players {
		tier, ok := ps.Cfg.TierFor(p.Rating)
		if !ok {
			unmatched = append(unmatched, p.ID)
			continue
		}
		idx, seen := byKey[tier.Key]
		if !seen {
			idx = len(groups)
			byKey[tier.Key] = idx
			groups = append(groups, tierGroup{tier: tier})
		}
		groups[idx].playerIDs = append(groups[idx].playerIDs, p.ID)
	}
	return groups, unmatched
}

// splitSubgroups bounds a tier group's match count: groups over
// MaxGroupSize are shuffled and split into ceil(n/max) near-even
// chunks, which keeps every subgroup between MinGroupSize and
// MaxGroupSize players. shuffle is injected for deterministic tests.
func splitSubgroups(playerIDs []string, shuffle func(n int, swap func(i, j int))) [][]string {
	ids := make([]string, len(playerIDs))
	copy(ids, playerIDs)
	if len(ids) <= MaxGroupSize {
		return [][]string{ids}
	}

	shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	count := (len(ids) + MaxGroupSize - 1) / MaxGroupSize
	base := len(ids) / count
	extra := len(ids) % count

	subgroups := make([][]string, 0, count)
	start := 0
	for i := 0; i < count; i++ {
		size := base
		if i < extra {
			size++
		}
		subgroups = append(subgroups, ids[start:start+size])
		start += size
	}
	return subgroups
}

// roundRobinPairs returns every unique unordered pair of the subgroup,
// C(k,2) pairs for k players.
func roundRobinPairs(playerIDs []string) [][2]string {
	var pairs [][2]string
	for i := 0; i < len(playerIDs); i++ {
		for j := i + 1; j < len(playerIDs); j++ {
			pairs = append(pairs, [2]string{playerIDs[i], playerIDs[j]})
		}
	}
	return pairs
}

// PairingSchedule is the pairings read view.
type PairingSchedule struct {
	SeasonNumber int              `json:"season_number"`
	GroupName    string           `json:"group_name,omitempty"`
	Pairings     []models.Pairing `json:"pairings"`
}

// GetSchedule returns a season's pairings, optionally narrowed to one
// group. seasonNumber 0 means the active season; an empty group with
// callerID set resolves to the caller's own group. Unknown groups come
// back as UnknownGroupError with close-name suggestions.
func (ps *PairingService) GetSchedule(seasonNumber int, group, callerID string) (*PairingSchedule, error) {
	if seasonNumber == 0 {
		var season models.Season
		err := ps.DB.Where("active = ?", true).First(&season).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSeason
		}
		if err != nil {
			return nil, err
		}
		seasonNumber = season.Number
	} else {
		var count int64
		if err := ps.DB.Model(&models.Season{}).Where("season_number = ?", seasonNumber).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
	}

	groupKey := ""
	if group != "" {
		groupKey = slug.Make(group)
		keys, err := ps.groupKeys(seasonNumber)
		if err != nil {
			return nil, err
		}
		if _, ok := keys[groupKey]; !ok {
			return nil, &UnknownGroupError{
				Group:       group,
				Season:      seasonNumber,
				Suggestions: suggestGroups(groupKey, keys),
			}
		}
	} else if callerID != "" {
		var pairing models.Pairing
		err := ps.DB.Where("season_number = ? AND (player1_id = ? OR player2_id = ?)",
			seasonNumber, callerID, callerID).First(&pairing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		groupKey = pairing.GroupKey
	}

	query := ps.DB.Where("season_number = ?", seasonNumber)
	if groupKey != "" {
		query = query.Where("group_key = ?", groupKey)
	}

	var pairings []models.Pairing
	if err := query.Order("group_key, created_at").Find(&pairings).Error; err != nil {
		return nil, err
	}
	if len(pairings) == 0 {
		return nil, ErrNotFound
	}

	schedule := &PairingSchedule{SeasonNumber: seasonNumber, Pairings: pairings}
	if groupKey != "" {
		schedule.GroupName = pairings[0].GroupName
	}
	return schedule, nil
}

// groupKeys maps group key to display name for one season.
func (ps *PairingService) groupKeys(seasonNumber int) (map[string]string, error) {
	var rows []models.Pairing
	if err := ps.DB.Model(&models.Pairing{}).
		Distinct("group_key", "group_name").
		Where("season_number = ?", seasonNumber).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make(map[string]string, len(rows))
	for _, row := range rows {
		keys[row.GroupKey] = row.GroupName
	}
	return keys, nil
}

// suggestGroups returns up to three group names containing the missed
// key as a substring.
func suggestGroups(missed string, keys map[string]string) []string {
	var suggestions []string
	for key, name := range keys {
		if strings.Contains(key, missed) || strings.Contains(missed, key) {
			suggestions = append(suggestions, name)
			if len(suggestions) == 3 {
				break
			}
		}
	}
	return suggestions
}
