package services

import (
	"fmt"
	"strings"
	"testing"

	"elo-ladder-system/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB gives each test its own shared in-memory database with a
// single connection, so concurrent transactions serialize the way the
// production store does.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrapping test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.Player{},
		&models.PendingReport{},
		&models.Pairing{},
		&models.Season{},
	); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

func testConfig() Config {
	return NewConfig(0, 0, 0, []models.Tier{
		{Name: "Masters", Key: "masters", MinRating: 1500, MaxRating: 3000},
		{Name: "Challengers", Key: "challengers", MinRating: 1000, MaxRating: 1499},
	})
}

// seedPlayer inserts a player at the given rating.
func seedPlayer(t *testing.T, db *gorm.DB, id string, rating float64, signedUp bool) {
	t.Helper()
	player := models.Player{ID: id, Rating: rating, SignedUp: signedUp}
	if err := db.Create(&player).Error; err != nil {
		t.Fatalf("seeding player %s: %v", id, err)
	}
}

// seedSeason inserts a season row.
func seedSeason(t *testing.T, db *gorm.DB, number int, active bool) {
	t.Helper()
	season := models.Season{Number: number, Active: active}
	if err := db.Create(&season).Error; err != nil {
		t.Fatalf("seeding season %d: %v", number, err)
	}
}
