package services

import (
	"errors"
	"log"
	"time"

	"elo-ladder-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportService runs the two-party reconciliation protocol for
// self-reported results. Every read-check-write sequence happens
// inside one transaction, with RowsAffected guards on the writes, so
// no outcome is ever applied to a rating more than once.
type ReportService struct {
	DB  *gorm.DB
	Cfg Config
}

func NewReportService(db *gorm.DB, cfg Config) *ReportService {
	return &ReportService{DB: db, Cfg: cfg}
}

// PlayerDelta describes one player's side of a confirmed outcome.
type PlayerDelta struct {
	PlayerID  string  `json:"player_id"`
	OldRating float64 `json:"old_rating"`
	NewRating float64 `json:"new_rating"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Draws     int     `json:"draws"`
}

// ReportOutcome is what a report operation produced: either a new
// pending claim, a confirmed freeform match, or a season slot fill
// (with Settled set once the pairing's final slot confirmed).
type ReportOutcome struct {
	SeasonMatch bool                  `json:"season_match"`
	GameNumber  int                   `json:"game_number,omitempty"`
	Confirmed   bool                  `json:"confirmed"`
	Settled     bool                  `json:"settled"`
	Pending     *models.PendingReport `json:"pending,omitempty"`
	Reporter    *PlayerDelta          `json:"reporter,omitempty"`
	Opponent    *PlayerDelta          `json:"opponent,omitempty"`
}

// Report records or confirms a match claim. gameNumber 0 means a
// freeform match; with an active season and gameNumber set, the claim
// goes against the caller's season pairing slot instead.
func (s *ReportService) Report(reporterID, opponentID, result string, gameNumber int) (*ReportOutcome, error) {
	if !models.ValidResult(result) {
		return nil, ErrInvalidResult
	}
	if reporterID == opponentID {
		return nil, ErrSelfReport
	}

	var outcome *ReportOutcome
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requirePlayers(tx, reporterID, opponentID); err != nil {
			return err
		}

		active, err := activeSeasonNumber(tx)
		if err != nil {
			return err
		}

		var txErr error
		if active > 0 && gameNumber != 0 {
			outcome, txErr = s.reportSeason(tx, active, reporterID, opponentID, result, gameNumber)
		} else {
			outcome, txErr = s.reportFreeform(tx, reporterID, opponentID, result)
		}
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// reportFreeform handles the no-season flow: first claim parks a
// pending report, the opponent's complementary claim confirms and
// applies both rating updates.
func (s *ReportService) reportFreeform(tx *gorm.DB, reporterID, opponentID, result string) (*ReportOutcome, error) {
	counterclaim, err := s.livePending(tx, opponentID, reporterID, 0)
	if err != nil {
		return nil, err
	}

	if counterclaim == nil {
		pending, err := s.createPending(tx, reporterID, opponentID, result, nil, 0)
		if err != nil {
			return nil, err
		}
		return &ReportOutcome{Pending: pending}, nil
	}

	if !counterclaim.ComplementOf(result) {
		return nil, ErrConflict
	}

	// The delete is the at-most-once gate: whichever confirmation
	// removes the row applies the ratings, any racer finds no report.
	res := tx.Delete(&models.PendingReport{}, "id = ?", counterclaim.ID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoPendingReport
	}

	reporter, opponent, err := loadPair(tx, reporterID, opponentID)
	if err != nil {
		return nil, err
	}

	score := ScoreForResult(result)
	newReporter, newOpponent := UpdateRatings(s.Cfg.KFactor, reporter.Rating, opponent.Rating, score)

	repDelta := tallyFromScore(reporterID, reporter.Rating, newReporter, score)
	oppDelta := tallyFromScore(opponentID, opponent.Rating, newOpponent, 1.0-score)

	if err := applyOutcome(tx, reporterID, newReporter, repDelta.Wins, repDelta.Losses, repDelta.Draws); err != nil {
		return nil, err
	}
	if err := applyOutcome(tx, opponentID, newOpponent, oppDelta.Wins, oppDelta.Losses, oppDelta.Draws); err != nil {
		return nil, err
	}

	log.Printf("[REPORTS] Confirmed %s vs %s: %.1f -> %.1f / %.1f -> %.1f",
		reporterID, opponentID, reporter.Rating, newReporter, opponent.Rating, newOpponent)

	return &ReportOutcome{
		Confirmed: true,
		Reporter:  &repDelta,
		Opponent:  &oppDelta,
	}, nil
}

// reportSeason handles a claim against a season pairing slot and, once
// the pairing's last slot confirms, settles the pairing.
func (s *ReportService) reportSeason(tx *gorm.DB, seasonNumber int, reporterID, opponentID, result string, gameNumber int) (*ReportOutcome, error) {
	if gameNumber < 1 || gameNumber > models.GamesPerPairing {
		return nil, ErrInvalidGameNumber
	}

	var pairing models.Pairing
	err := tx.Where("season_number = ?", seasonNumber).
		Where("(player1_id = ? AND player2_id = ?) OR (player1_id = ? AND player2_id = ?)",
			reporterID, opponentID, opponentID, reporterID).
		First(&pairing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPairing
		}
		return nil, err
	}

	if pairing.Result(gameNumber) != nil {
		return nil, ErrAlreadySettled
	}

	pending, err := s.livePendingForSlot(tx, pairing.ID, gameNumber)
	if err != nil {
		return nil, err
	}

	if pending == nil {
		created, err := s.createPending(tx, reporterID, opponentID, result, &pairing.ID, gameNumber)
		if err != nil {
			return nil, err
		}
		return &ReportOutcome{SeasonMatch: true, GameNumber: gameNumber, Pending: created}, nil
	}

	if pending.ReporterID == reporterID {
		return nil, ErrAlreadyReported
	}
	if !pending.ComplementOf(result) {
		return nil, ErrConflict
	}

	// Canonical player1-perspective score for the slot.
	score := ScoreForResult(result)
	if pairing.Player2ID == reporterID {
		score = 1.0 - score
	}

	column := "result1"
	if gameNumber == 2 {
		column = "result2"
	}
	res := tx.Model(&models.Pairing{}).
		Where("id = ? AND "+column+" IS NULL", pairing.ID).
		Update(column, score)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadySettled
	}

	if err := tx.Delete(&models.PendingReport{},
		"pairing_id = ? AND game_number = ?", pairing.ID, gameNumber).Error; err != nil {
		return nil, err
	}

	if err := tx.First(&pairing, "id = ?", pairing.ID).Error; err != nil {
		return nil, err
	}

	outcome := &ReportOutcome{
		SeasonMatch: true,
		GameNumber:  gameNumber,
		Confirmed:   true,
	}
	if !pairing.Complete() {
		return outcome, nil
	}

	repDelta, oppDelta, err := s.settlePairing(tx, &pairing, reporterID)
	if err != nil {
		return nil, err
	}
	outcome.Settled = true
	outcome.Reporter = repDelta
	outcome.Opponent = oppDelta
	return outcome, nil
}

// settlePairing applies the averaged rating update and the combined
// W/L/D tallies once both game slots are filled. Each game is scored
// against the same pre-settlement ratings, not cascaded, and tallies
// derive strictly from the canonical player1-perspective scores.
func (s *ReportService) settlePairing(tx *gorm.DB, pairing *models.Pairing, reporterID string) (*PlayerDelta, *PlayerDelta, error) {
	p1, p2, err := loadPair(tx, pairing.Player1ID, pairing.Player2ID)
	if err != nil {
		return nil, nil, err
	}

	scores := []float64{*pairing.Result1, *pairing.Result2}

	var sum1, sum2 float64
	p1Delta := PlayerDelta{PlayerID: p1.ID, OldRating: p1.Rating}
	p2Delta := PlayerDelta{PlayerID: p2.ID, OldRating: p2.Rating}
	for _, score := range scores {
		n1, n2 := UpdateRatings(s.Cfg.KFactor, p1.Rating, p2.Rating, score)
		sum1 += n1
		sum2 += n2
		switch score {
		case ScoreWin:
			p1Delta.Wins++
			p2Delta.Losses++
		case ScoreLoss:
			p1Delta.Losses++
			p2Delta.Wins++
		default:
			p1Delta.Draws++
			p2Delta.Draws++
		}
	}
	p1Delta.NewRating = sum1 / float64(len(scores))
	p2Delta.NewRating = sum2 / float64(len(scores))

	if err := applyOutcome(tx, p1.ID, p1Delta.NewRating, p1Delta.Wins, p1Delta.Losses, p1Delta.Draws); err != nil {
		return nil, nil, err
	}
	if err := applyOutcome(tx, p2.ID, p2Delta.NewRating, p2Delta.Wins, p2Delta.Losses, p2Delta.Draws); err != nil {
		return nil, nil, err
	}

	log.Printf("[REPORTS] Settled pairing %s (season %d, %s): %s %.1f -> %.1f, %s %.1f -> %.1f",
		pairing.ID, pairing.SeasonNumber, pairing.GroupName,
		p1.ID, p1Delta.OldRating, p1Delta.NewRating,
		p2.ID, p2Delta.OldRating, p2Delta.NewRating)

	if reporterID == p1.ID {
		return &p1Delta, &p2Delta, nil
	}
	return &p2Delta, &p1Delta, nil
}

// Cancel withdraws the caller's own outstanding freeform claim. The
// restated result must match the parked one exactly.
func (s *ReportService) Cancel(reporterID, opponentID, result string) error {
	if !models.ValidResult(result) {
		return ErrInvalidResult
	}
	if reporterID == opponentID {
		return ErrSelfReport
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		pending, err := s.livePending(tx, reporterID, opponentID, 0)
		if err != nil {
			return err
		}
		if pending == nil {
			return ErrNoPendingReport
		}
		if pending.Result != result {
			return ErrConflict
		}
		res := tx.Delete(&models.PendingReport{}, "id = ?", pending.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoPendingReport
		}
		return nil
	})
}

// CleanupExpired purges pending reports past the TTL. Reads already
// treat them as absent; this is housekeeping only, so racing a delete
// of an already-settled report is a no-op.
func (s *ReportService) CleanupExpired() (int64, error) {
	cutoff := time.Now().Add(-s.Cfg.PendingTTL)
	res := s.DB.Delete(&models.PendingReport{}, "created_at < ?", cutoff)
	return res.RowsAffected, res.Error
}

// livePending returns the reporter's unexpired freeform claim against
// the opponent, nil if absent.
func (s *ReportService) livePending(tx *gorm.DB, reporterID, opponentID string, gameNumber int) (*models.PendingReport, error) {
	cutoff := time.Now().Add(-s.Cfg.PendingTTL)
	var pending models.PendingReport
	err := tx.Where("reporter_id = ? AND opponent_id = ? AND game_number = ? AND created_at >= ?",
		reporterID, opponentID, gameNumber, cutoff).
		Order("created_at DESC").First(&pending).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

// livePendingForSlot returns the unexpired claim for a season pairing
// slot regardless of which party made it.
func (s *ReportService) livePendingForSlot(tx *gorm.DB, pairingID string, gameNumber int) (*models.PendingReport, error) {
	cutoff := time.Now().Add(-s.Cfg.PendingTTL)
	var pending models.PendingReport
	err := tx.Where("pairing_id = ? AND game_number = ? AND created_at >= ?",
		pairingID, gameNumber, cutoff).First(&pending).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

// createPending parks a new claim. An expired leftover under the same
// key is cleared first so the unique index only ever rejects a truly
// live duplicate.
func (s *ReportService) createPending(tx *gorm.DB, reporterID, opponentID, result string, pairingID *string, gameNumber int) (*models.PendingReport, error) {
	own, err := s.livePending(tx, reporterID, opponentID, gameNumber)
	if err != nil {
		return nil, err
	}
	if own != nil {
		return nil, ErrAlreadyReported
	}

	cutoff := time.Now().Add(-s.Cfg.PendingTTL)
	if err := tx.Delete(&models.PendingReport{},
		"reporter_id = ? AND opponent_id = ? AND game_number = ? AND created_at < ?",
		reporterID, opponentID, gameNumber, cutoff).Error; err != nil {
		return nil, err
	}

	pending := models.PendingReport{
		ID:         uuid.NewString(),
		ReporterID: reporterID,
		OpponentID: opponentID,
		Result:     result,
		PairingID:  pairingID,
		GameNumber: gameNumber,
		CreatedAt:  time.Now(),
	}
	if err := tx.Create(&pending).Error; err != nil {
		return nil, err
	}
	return &pending, nil
}

// requirePlayers checks both parties are registered.
func requirePlayers(tx *gorm.DB, ids ...string) error {
	var count int64
	if err := tx.Model(&models.Player{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return err
	}
	if count != int64(len(ids)) {
		return ErrNotRegistered
	}
	return nil
}

// loadPair fetches both players' current rows inside the transaction.
func loadPair(tx *gorm.DB, firstID, secondID string) (*models.Player, *models.Player, error) {
	var first, second models.Player
	if err := tx.First(&first, "id = ?", firstID).Error; err != nil {
		return nil, nil, err
	}
	if err := tx.First(&second, "id = ?", secondID).Error; err != nil {
		return nil, nil, err
	}
	return &first, &second, nil
}

// tallyFromScore builds one side's delta for a single freeform game.
func tallyFromScore(playerID string, oldRating, newRating, score float64) PlayerDelta {
	delta := PlayerDelta{PlayerID: playerID, OldRating: oldRating, NewRating: newRating}
	switch score {
	case ScoreWin:
		delta.Wins = 1
	case ScoreLoss:
		delta.Losses = 1
	default:
		delta.Draws = 1
	}
	return delta
}

// activeSeasonNumber returns the active season's number, 0 when none.
func activeSeasonNumber(tx *gorm.DB) (int, error) {
	var season models.Season
	err := tx.Where("active = ?", true).First(&season).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return season.Number, nil
}
