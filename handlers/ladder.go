package handlers

import (
	"errors"
	"fmt"
	"strings"

	"elo-ladder-system/middleware"
	"elo-ladder-system/models"
	"elo-ladder-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupLadderRoutes wires the command surface the chat gateway calls.
// The invoking player comes from the gateway's X-User-ID header; admin
// commands additionally require the "admin" gateway role.
func SetupLadderRoutes(app *fiber.App,
	players *services.PlayerService,
	reports *services.ReportService,
	pairings *services.PairingService,
	seasons *services.SeasonService,
) {
	cmd := app.Group("/", middleware.UserContextMiddleware())

	cmd.Post("/register", func(c *fiber.Ctx) error {
		player, err := players.Register(callerID(c))
		if err != nil {
			return renderError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"player":  player,
			"message": fmt.Sprintf("Registered with an initial rating of %.0f!", player.Rating),
		})
	})

	cmd.Post("/report", func(c *fiber.Ctx) error {
		var req reportRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		outcome, err := reports.Report(callerID(c), req.OpponentID, strings.ToLower(req.Result), req.GameNumber)
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(reportResponse(outcome))
	})

	cmd.Post("/cancel", func(c *fiber.Ctx) error {
		var req reportRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		if err := reports.Cancel(callerID(c), req.OpponentID, strings.ToLower(req.Result)); err != nil {
			return renderError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Pending match report cancelled."})
	})

	cmd.Get("/stats", func(c *fiber.Ctx) error {
		playerID := c.Query("player_id", callerID(c))
		stats, err := players.GetStats(playerID)
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(stats)
	})

	cmd.Get("/leaderboard", func(c *fiber.Ctx) error {
		entries, err := players.GetLeaderboard(c.QueryInt("limit"), c.Query("role"))
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	cmd.Get("/pairings", func(c *fiber.Ctx) error {
		schedule, err := pairings.GetSchedule(c.QueryInt("season"), c.Query("group"), callerID(c))
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(schedule)
	})

	cmd.Post("/signup", func(c *fiber.Ctx) error {
		if err := seasons.Signup(callerID(c)); err != nil {
			return renderError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Signed up for the upcoming season!"})
	})

	admin := cmd.Group("/admin", requireRole("admin"))

	admin.Post("/seasons/start", func(c *fiber.Ctx) error {
		result, err := seasons.StartSeason(c.Context())
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(result)
	})

	admin.Post("/seasons/end", func(c *fiber.Ctx) error {
		result, err := seasons.EndSeason(c.Context())
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(result)
	})

	admin.Post("/roles/sync", func(c *fiber.Ctx) error {
		summary, err := seasons.UpdateRoles(c.Context())
		if err != nil {
			return renderError(c, err)
		}
		return c.JSON(summary)
	})
}

type reportRequest struct {
	Result     string `json:"result"`
	OpponentID string `json:"opponent_id"`
	GameNumber int    `json:"game_number,omitempty"`
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("player_id").(string)
	return id
}

func requireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !middleware.HasRole(c, role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": fmt.Sprintf("this command requires the %s role", role),
			})
		}
		return c.Next()
	}
}

// reportResponse shapes the gateway's reply text for each outcome of
// the reconciliation protocol.
func reportResponse(outcome *services.ReportOutcome) fiber.Map {
	resp := fiber.Map{"outcome": outcome}
	switch {
	case outcome.Pending != nil:
		confirm := models.ComplementResult(outcome.Pending.Result)
		if outcome.SeasonMatch {
			resp["message"] = fmt.Sprintf("Game %d reported! Waiting for the opponent to confirm with '%s'.",
				outcome.GameNumber, confirm)
		} else {
			resp["message"] = fmt.Sprintf("Match reported! Waiting for the opponent to confirm with '%s'.", confirm)
		}
	case outcome.Settled:
		resp["message"] = fmt.Sprintf("Both games confirmed! Ratings updated: %.0f -> %.0f, opponent %.0f -> %.0f.",
			outcome.Reporter.OldRating, outcome.Reporter.NewRating,
			outcome.Opponent.OldRating, outcome.Opponent.NewRating)
	case outcome.SeasonMatch:
		resp["message"] = fmt.Sprintf("Game %d confirmed! Ratings update once both games are in.", outcome.GameNumber)
	default:
		resp["message"] = fmt.Sprintf("Match confirmed! Ratings updated: %.0f -> %.0f, opponent %.0f -> %.0f.",
			outcome.Reporter.OldRating, outcome.Reporter.NewRating,
			outcome.Opponent.OldRating, outcome.Opponent.NewRating)
	}
	return resp
}

// renderError maps domain error kinds to HTTP statuses with a
// human-readable corrective message for the gateway to relay.
func renderError(c *fiber.Ctx, err error) error {
	var unknownGroup *services.UnknownGroupError
	if errors.As(err, &unknownGroup) {
		msg := fmt.Sprintf("Group '%s' not found in season %d.", unknownGroup.Group, unknownGroup.Season)
		if len(unknownGroup.Suggestions) > 0 {
			msg += " Did you mean: " + strings.Join(unknownGroup.Suggestions, ", ") + "?"
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
	}

	status := fiber.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, services.ErrAlreadyExists):
		status, message = fiber.StatusConflict, "You're already registered!"
	case errors.Is(err, services.ErrNotRegistered):
		status, message = fiber.StatusNotFound, "Both players must be registered. Use /register first."
	case errors.Is(err, services.ErrSelfReport):
		status, message = fiber.StatusBadRequest, "You can't report a match with yourself!"
	case errors.Is(err, services.ErrInvalidResult):
		status, message = fiber.StatusBadRequest, "Invalid result. Use 'w', 'l' or 'd'."
	case errors.Is(err, services.ErrInvalidGameNumber):
		status, message = fiber.StatusBadRequest, "Invalid game number. Use 1 or 2."
	case errors.Is(err, services.ErrNoPairing):
		status, message = fiber.StatusNotFound, "No valid season pairing found with that opponent."
	case errors.Is(err, services.ErrNoPendingReport):
		status, message = fiber.StatusNotFound, "No matching pending report found."
	case errors.Is(err, services.ErrAlreadyReported):
		status, message = fiber.StatusConflict, "Already reported! Waiting for your opponent's confirmation."
	case errors.Is(err, services.ErrConflict):
		status, message = fiber.StatusConflict, "Results don't match! Report the opposite result."
	case errors.Is(err, services.ErrAlreadySettled):
		status, message = fiber.StatusConflict, "That game is already settled."
	case errors.Is(err, services.ErrNoActiveSeason):
		status, message = fiber.StatusConflict, "No active season."
	case errors.Is(err, services.ErrSeasonAlreadyActive):
		status, message = fiber.StatusConflict, "The season is already active."
	case errors.Is(err, services.ErrEmptySignupList):
		status, message = fiber.StatusConflict, "No players have signed up for the season!"
	case errors.Is(err, services.ErrNoTierMatch):
		status, message = fiber.StatusConflict, "Couldn't group any signed-up player into a tier."
	case errors.Is(err, services.ErrNotFound):
		status, message = fiber.StatusNotFound, "Nothing found for that query."
	}

	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": message, "details": err.Error()})
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}
