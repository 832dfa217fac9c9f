package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"elo-ladder-system/handlers"
	"elo-ladder-system/middleware"
	"elo-ladder-system/models"
	"elo-ladder-system/services"
	"elo-ladder-system/utils"
	"elo-ladder-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		AppName: "elo-ladder-system",
	})

	// Only gateway requests allowed, no exceptions.
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID, X-User-Roles",
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Player{},
		&models.PendingReport{},
		&models.Pairing{},
		&models.Season{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	tiersFile := os.Getenv("TIERS_FILE")
	if tiersFile == "" {
		tiersFile = "elo_roles.csv"
	}
	tiers, err := utils.LoadTierRanges(tiersFile)
	if err != nil {
		log.Fatal("failed to load tier configuration:", err)
	}

	cfg := services.NewConfig(
		utils.FloatEnv("BASELINE_RATING", services.DefaultBaselineRating),
		utils.FloatEnv("K_FACTOR", services.DefaultKFactor),
		utils.DurationEnv("PENDING_REPORT_TTL", services.DefaultPendingTTL),
		tiers,
	)

	playerService := services.NewPlayerService(db, cfg)
	reportService := services.NewReportService(db, cfg)
	pairingService := services.NewPairingService(db, cfg)

	var roleSyncer services.RoleSyncer = services.NopRoleSyncer{}
	if gatewayURL := os.Getenv("GATEWAY_SYNC_URL"); gatewayURL != "" {
		roleSyncer = workers.NewGatewayRoleSyncer(gatewayURL, "/api/v1/internal/roles/sync",
			os.Getenv("LADDER_SERVICE_TOKEN"))
	} else {
		log.Println("GATEWAY_SYNC_URL not set, tier role sync disabled")
	}

	seasonService := services.NewSeasonService(db, cfg, pairingService, roleSyncer)
	if err := seasonService.EnsureInitialSeason(); err != nil {
		log.Fatal("failed to initialize season 1:", err)
	}

	archive, err := utils.NewSeasonArchiveFromEnv()
	if err != nil {
		log.Fatal("failed to initialize season archive:", err)
	}
	if archive != nil {
		seasonService.Archiver = archive
		log.Println("Season standings archive enabled")
	}

	stopCleanup, err := reportService.StartCleanupScheduler()
	if err != nil {
		log.Fatal("failed to start pending report sweeper:", err)
	}
	defer func() {
		if err := stopCleanup(); err != nil {
			log.Printf("Sweeper shutdown error: %v", err)
		}
	}()

	handlers.SetupLadderRoutes(app, playerService, reportService, pairingService, seasonService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":5300"
	}
	go func() {
		if err := app.Listen(addr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Ladder service running on %s", addr)
	log.Printf("Pending report TTL: %s, K-factor: %.0f, baseline rating: %.0f",
		cfg.PendingTTL, cfg.KFactor, cfg.BaselineRating)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
