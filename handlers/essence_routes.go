// handlers/essence_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"

	"essence-engine/middleware"
	"essence-engine/services"

	"github.com/gofiber/fiber/v2"
)

// EssenceDeps are the services behind the user-facing essence routes.
type EssenceDeps struct {
	Essence      *services.EssenceService
	Achievements *services.AchievementService
	Rewards      *services.RewardService
	Hub          *services.NotificationHub
}

func SetupEssenceRoutes(app *fiber.App, deps EssenceDeps) {
	// The gateway forwards /api/v1/essence/s/user/essence/... -> /user/essence/...
	securedGroup := app.Group("/user/essence", middleware.UserContextMiddleware())

	securedGroup.Get("/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		view, err := deps.Essence.GetProfileView(c.UserContext(), userID)
		if err != nil {
			return errorResponse(c, "failed to load profile", err)
		}
		equipped, err := deps.Rewards.EquippedRewards(c.UserContext(), userID)
		if err != nil {
			return errorResponse(c, "failed to load equipped rewards", err)
		}

		return c.JSON(fiber.Map{
			"id":                     view.ID,
			"user_id":                view.UserID,
			"total_essence":          view.TotalEssence,
			"current_level":          view.CurrentLevel,
			"current_title":          view.CurrentTitle,
			"last_essence_earned":    view.LastEssenceEarned,
			"essence_to_next_level":  view.EssenceToNextLevel,
			"progress_to_next_level": view.ProgressToNextLevel,
			"equipped":               equipped,
		})
	})

	securedGroup.Get("/transactions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		txs, err := deps.Essence.RecentTransactions(c.UserContext(), userID, limit)
		if err != nil {
			return errorResponse(c, "failed to get transactions", err)
		}
		return c.JSON(txs)
	})

	securedGroup.Get("/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		list, err := deps.Achievements.ListForUser(c.UserContext(), userID)
		if err != nil {
			return errorResponse(c, "failed to get achievements", err)
		}
		return c.JSON(list)
	})

	securedGroup.Get("/rewards", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		list, err := deps.Rewards.ListForUser(c.UserContext(), userID)
		if err != nil {
			return errorResponse(c, "failed to get rewards", err)
		}
		return c.JSON(list)
	})

	securedGroup.Post("/rewards/:id/equip", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		rewardID := c.Params("id")
		if err := deps.Rewards.EquipReward(c.UserContext(), userID, rewardID); err != nil {
			return errorResponse(c, "failed to equip reward", err)
		}
		return c.JSON(fiber.Map{
			"message":   "Reward equipped",
			"reward_id": rewardID,
		})
	})

	securedGroup.Get("/levels", func(c *fiber.Ctx) error {
		levels := deps.Essence.Levels
		table := make([]fiber.Map, 0, levels.Len()+1)
		for level := 1; level <= levels.Len()+1; level++ {
			table = append(table, fiber.Map{
				"level":            level,
				"title":            levels.Title(level),
				"required_essence": deps.Essence.RequiredEssenceForLevel(level),
			})
		}
		return c.JSON(table)
	})

	if deps.Hub != nil {
		securedGroup.Get("/notifications/stream", deps.Hub.StreamUserNotificationsSSE)
	}
}

// errorResponse maps engine errors onto HTTP statuses.
func errorResponse(c *fiber.Ctx, msg string, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotOwned):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrValidation):
		status = fiber.StatusNotFound
	default:
		log.Printf("❌ %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
