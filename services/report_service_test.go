package services

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"elo-ladder-system/models"

	"github.com/google/uuid"
)

func newReportFixture(t *testing.T) (*ReportService, *PlayerService) {
	t.Helper()
	db := openTestDB(t)
	cfg := testConfig()
	seedSeason(t, db, 1, false)
	seedPlayer(t, db, "alice", cfg.BaselineRating, false)
	seedPlayer(t, db, "bob", cfg.BaselineRating, false)
	return NewReportService(db, cfg), NewPlayerService(db, cfg)
}

func TestReportCreatesPending(t *testing.T) {
	reports, _ := newReportFixture(t)

	outcome, err := reports.Report("alice", "bob", "w", 0)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if outcome.Confirmed || outcome.Pending == nil {
		t.Fatalf("outcome = %+v, want unconfirmed pending", outcome)
	}
	if outcome.Pending.ReporterID != "alice" || outcome.Pending.Result != "w" {
		t.Errorf("pending = %+v", outcome.Pending)
	}
}

func TestReportConfirmUpdatesBothPlayersOnce(t *testing.T) {
	reports, players := newReportFixture(t)

	if _, err := reports.Report("alice", "bob", "w", 0); err != nil {
		t.Fatalf("first report: %v", err)
	}
	outcome, err := reports.Report("bob", "alice", "l", 0)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !outcome.Confirmed {
		t.Fatalf("outcome not confirmed: %+v", outcome)
	}

	alice, _ := players.Get("alice")
	bob, _ := players.Get("bob")
	if math.Abs(alice.Rating-1392.5) > 1e-9 || alice.Wins != 1 || alice.Losses != 0 {
		t.Errorf("alice = %.1f %dW %dL, want 1392.5 1W 0L", alice.Rating, alice.Wins, alice.Losses)
	}
	if math.Abs(bob.Rating-1367.5) > 1e-9 || bob.Losses != 1 || bob.Wins != 0 {
		t.Errorf("bob = %.1f %dW %dL, want 1367.5 0W 1L", bob.Rating, bob.Wins, bob.Losses)
	}

	var count int64
	reports.DB.Model(&models.PendingReport{}).Count(&count)
	if count != 0 {
		t.Errorf("pending reports remaining: %d", count)
	}
}

func TestReportConflictLeavesStateUntouched(t *testing.T) {
	reports, players := newReportFixture(t)

	if _, err := reports.Report("alice", "bob", "w", 0); err != nil {
		t.Fatalf("first report: %v", err)
	}
	// Both claiming a win is not a complement.
	if _, err := reports.Report("bob", "alice", "w", 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	alice, _ := players.Get("alice")
	if alice.Rating != reports.Cfg.BaselineRating || alice.TotalGames() != 0 {
		t.Errorf("conflict mutated alice: %+v", alice)
	}
	var count int64
	reports.DB.Model(&models.PendingReport{}).Where("reporter_id = ?", "alice").Count(&count)
	if count != 1 {
		t.Errorf("original pending report gone after conflict")
	}
}

func TestReportDuplicateOwnClaim(t *testing.T) {
	reports, _ := newReportFixture(t)

	if _, err := reports.Report("alice", "bob", "w", 0); err != nil {
		t.Fatalf("first report: %v", err)
	}
	if _, err := reports.Report("alice", "bob", "w", 0); !errors.Is(err, ErrAlreadyReported) {
		t.Fatalf("err = %v, want ErrAlreadyReported", err)
	}
}

func TestReportValidation(t *testing.T) {
	reports, _ := newReportFixture(t)

	if _, err := reports.Report("alice", "alice", "w", 0); !errors.Is(err, ErrSelfReport) {
		t.Errorf("self report err = %v", err)
	}
	if _, err := reports.Report("alice", "bob", "x", 0); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("bad result err = %v", err)
	}
	if _, err := reports.Report("alice", "ghost", "w", 0); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("unregistered opponent err = %v", err)
	}
}

func TestExpiredPendingTreatedAsAbsent(t *testing.T) {
	reports, _ := newReportFixture(t)

	stale := models.PendingReport{
		ID:         uuid.NewString(),
		ReporterID: "bob",
		OpponentID: "alice",
		Result:     "l",
		CreatedAt:  time.Now().Add(-reports.Cfg.PendingTTL - time.Minute),
	}
	if err := reports.DB.Create(&stale).Error; err != nil {
		t.Fatalf("seeding stale report: %v", err)
	}

	// Alice's "w" would confirm Bob's claim if it were live; instead it
	// must park a fresh pending report.
	outcome, err := reports.Report("alice", "bob", "w", 0)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if outcome.Confirmed || outcome.Pending == nil {
		t.Fatalf("expired claim confirmed: %+v", outcome)
	}
}

func TestCleanupExpired(t *testing.T) {
	reports, _ := newReportFixture(t)

	stale := models.PendingReport{
		ID:         uuid.NewString(),
		ReporterID: "bob",
		OpponentID: "alice",
		Result:     "d",
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	if err := reports.DB.Create(&stale).Error; err != nil {
		t.Fatalf("seeding stale report: %v", err)
	}
	if _, err := reports.Report("alice", "bob", "w", 0); err != nil {
		t.Fatalf("live report: %v", err)
	}

	deleted, err := reports.CleanupExpired()
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	var count int64
	reports.DB.Model(&models.PendingReport{}).Count(&count)
	if count != 1 {
		t.Errorf("live reports remaining = %d, want 1", count)
	}
}

func TestCancelRequiresExactClaim(t *testing.T) {
	reports, _ := newReportFixture(t)

	if err := reports.Cancel("alice", "bob", "w"); !errors.Is(err, ErrNoPendingReport) {
		t.Fatalf("cancel without report err = %v", err)
	}

	if _, err := reports.Report("alice", "bob", "w", 0); err != nil {
		t.Fatalf("report: %v", err)
	}
	if err := reports.Cancel("alice", "bob", "d"); !errors.Is(err, ErrConflict) {
		t.Fatalf("mismatched cancel err = %v", err)
	}
	var count int64
	reports.DB.Model(&models.PendingReport{}).Count(&count)
	if count != 1 {
		t.Fatalf("mismatched cancel deleted the report")
	}

	if err := reports.Cancel("alice", "bob", "w"); err != nil {
		t.Fatalf("matching cancel: %v", err)
	}
	reports.DB.Model(&models.PendingReport{}).Count(&count)
	if count != 0 {
		t.Errorf("report remaining after cancel")
	}
}

func TestConcurrentConfirmAppliesOnce(t *testing.T) {
	reports, players := newReportFixture(t)

	if _, err := reports.Report("alice", "bob", "w", 0); err != nil {
		t.Fatalf("report: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	confirmed := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := reports.Report("bob", "alice", "l", 0)
			confirmed <- err == nil && outcome.Confirmed
		}()
	}
	wg.Wait()
	close(confirmed)

	confirms := 0
	for ok := range confirmed {
		if ok {
			confirms++
		}
	}
	if confirms != 1 {
		t.Errorf("confirmations = %d, want exactly 1", confirms)
	}

	bob, _ := players.Get("bob")
	if bob.Losses != 1 || bob.TotalGames() != 1 {
		t.Errorf("bob tallied %d games (%dL), want exactly one loss", bob.TotalGames(), bob.Losses)
	}
	if math.Abs(bob.Rating-1367.5) > 1e-9 {
		t.Errorf("bob rating = %v, want single application 1367.5", bob.Rating)
	}
}

func seedSeasonPairing(t *testing.T, reports *ReportService, season int) models.Pairing {
	t.Helper()
	pairing := models.Pairing{
		ID:           uuid.NewString(),
		SeasonNumber: season,
		GroupName:    "Challengers",
		GroupKey:     "challengers",
		Player1ID:    "alice",
		Player2ID:    "bob",
	}
	if err := reports.DB.Create(&pairing).Error; err != nil {
		t.Fatalf("seeding pairing: %v", err)
	}
	return pairing
}

func activateSeason(t *testing.T, reports *ReportService, number int) {
	t.Helper()
	if err := reports.DB.Model(&models.Season{}).
		Where("season_number = ?", number).Update("active", true).Error; err != nil {
		t.Fatalf("activating season: %v", err)
	}
}

func TestSeasonReportRequiresPairing(t *testing.T) {
	reports, _ := newReportFixture(t)
	activateSeason(t, reports, 1)
	seedPlayer(t, reports.DB, "carol", 1380, false)

	if _, err := reports.Report("alice", "carol", "w", 1); !errors.Is(err, ErrNoPairing) {
		t.Fatalf("err = %v, want ErrNoPairing", err)
	}
	if _, err := reports.Report("alice", "bob", "w", 3); !errors.Is(err, ErrInvalidGameNumber) {
		t.Fatalf("game 3 err = %v, want ErrInvalidGameNumber", err)
	}
}

func TestSeasonSlotConfirmWithoutSettlement(t *testing.T) {
	reports, players := newReportFixture(t)
	activateSeason(t, reports, 1)
	pairing := seedSeasonPairing(t, reports, 1)

	if _, err := reports.Report("alice", "bob", "w", 1); err != nil {
		t.Fatalf("report: %v", err)
	}

	// Same party again: must wait for the opponent.
	if _, err := reports.Report("alice", "bob", "w", 1); !errors.Is(err, ErrAlreadyReported) {
		t.Fatalf("err = %v, want ErrAlreadyReported", err)
	}

	outcome, err := reports.Report("bob", "alice", "l", 1)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !outcome.Confirmed || outcome.Settled {
		t.Fatalf("outcome = %+v, want confirmed but unsettled", outcome)
	}

	var stored models.Pairing
	if err := reports.DB.First(&stored, "id = ?", pairing.ID).Error; err != nil {
		t.Fatalf("reading pairing: %v", err)
	}
	if stored.Result1 == nil || *stored.Result1 != 1.0 {
		t.Errorf("Result1 = %v, want 1.0 (player1 win)", stored.Result1)
	}
	if stored.Result2 != nil {
		t.Errorf("Result2 filled early")
	}

	// One slot down: no rating movement yet.
	alice, _ := players.Get("alice")
	if alice.Rating != reports.Cfg.BaselineRating || alice.TotalGames() != 0 {
		t.Errorf("partial pairing mutated alice: %+v", alice)
	}
}

func TestSeasonSettlementAveragesBothGames(t *testing.T) {
	reports, players := newReportFixture(t)
	activateSeason(t, reports, 1)
	seedSeasonPairing(t, reports, 1)

	// Game 1: alice (player1) wins. Game 2: draw.
	if _, err := reports.Report("alice", "bob", "w", 1); err != nil {
		t.Fatalf("game 1 report: %v", err)
	}
	if _, err := reports.Report("bob", "alice", "l", 1); err != nil {
		t.Fatalf("game 1 confirm: %v", err)
	}
	if _, err := reports.Report("bob", "alice", "d", 2); err != nil {
		t.Fatalf("game 2 report: %v", err)
	}
	outcome, err := reports.Report("alice", "bob", "d", 2)
	if err != nil {
		t.Fatalf("game 2 confirm: %v", err)
	}
	if !outcome.Settled {
		t.Fatalf("pairing not settled: %+v", outcome)
	}

	// Both games score against the same 1380/1380 start: win moves
	// 12.5, draw moves 0, averaged to 6.25 each way.
	alice, _ := players.Get("alice")
	bob, _ := players.Get("bob")
	if math.Abs(alice.Rating-1386.25) > 1e-9 {
		t.Errorf("alice rating = %v, want 1386.25", alice.Rating)
	}
	if math.Abs(bob.Rating-1373.75) > 1e-9 {
		t.Errorf("bob rating = %v, want 1373.75", bob.Rating)
	}
	if alice.Wins != 1 || alice.Draws != 1 || alice.Losses != 0 {
		t.Errorf("alice tally = %dW %dL %dD, want 1W 0L 1D", alice.Wins, alice.Losses, alice.Draws)
	}
	if bob.Wins != 0 || bob.Draws != 1 || bob.Losses != 1 {
		t.Errorf("bob tally = %dW %dL %dD, want 0W 1L 1D", bob.Wins, bob.Losses, bob.Draws)
	}

	// Replaying a settled slot fails cleanly.
	if _, err := reports.Report("alice", "bob", "w", 1); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("replay err = %v, want ErrAlreadySettled", err)
	}
}

func TestSeasonReportConflict(t *testing.T) {
	reports, _ := newReportFixture(t)
	activateSeason(t, reports, 1)
	pairing := seedSeasonPairing(t, reports, 1)

	if _, err := reports.Report("alice", "bob", "w", 1); err != nil {
		t.Fatalf("report: %v", err)
	}
	if _, err := reports.Report("bob", "alice", "w", 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	var stored models.Pairing
	reports.DB.First(&stored, "id = ?", pairing.ID)
	if stored.Result1 != nil {
		t.Errorf("conflict filled slot: %v", *stored.Result1)
	}
}

func TestFreeformIgnoresGameNumberWithoutActiveSeason(t *testing.T) {
	reports, _ := newReportFixture(t)

	outcome, err := reports.Report("alice", "bob", "w", 1)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if outcome.SeasonMatch {
		t.Errorf("season mode without an active season")
	}
	if outcome.Pending == nil || outcome.Pending.GameNumber != 0 {
		t.Errorf("pending = %+v, want freeform game 0", outcome.Pending)
	}
}
