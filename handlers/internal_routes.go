// handlers/internal_routes.go
package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"essence-engine/middleware"
	"essence-engine/services"
	"essence-engine/utils"
	"essence-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SetupInternalRoutes exposes action ingestion to collaborator services.
func SetupInternalRoutes(app *fiber.App, essence *services.EssenceService, sink workers.Enqueuer) {
	internal := app.Group("/s/internal")

	internal.Post("/actions", func(c *fiber.Ctx) error {
		var evt services.ActionCompleted
		if err := c.BodyParser(&evt); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if evt.UserID == "" || evt.SourceID == "" || evt.SourceKind == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "user_id, source_id and source_kind are required",
			})
		}
		if _, ok := essence.Sources[evt.SourceKind]; !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("unknown source_kind %q", evt.SourceKind),
			})
		}

		if err := sink.Enqueue(evt); err != nil {
			if errors.Is(err, workers.ErrQueueFull) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "action queue full, retry later",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to enqueue action",
				"cause": err.Error(),
			})
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message":   "Action accepted",
			"source_id": evt.SourceID,
		})
	})
}

// SetupAdminRoutes exposes catalog maintenance. store may be nil when R2 is not configured.
func SetupAdminRoutes(app *fiber.App, rewards *services.RewardService, store *utils.ObjectStore) {
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	adminGroup.Post("/rewards/:id/icon", func(c *fiber.Ctx) error {
		if store == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "object storage not configured",
			})
		}
		rewardID := c.Params("id")

		fileHeader, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "icon file is required",
				"cause": err.Error(),
			})
		}
		if !strings.HasPrefix(fileHeader.Header.Get("Content-Type"), "image/") {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "icon must be an image",
			})
		}

		key := fmt.Sprintf("rewards/%s/%s%s", rewardID, uuid.NewString(), strings.ToLower(filepath.Ext(fileHeader.Filename)))
		url, err := store.UploadMultipart(c.UserContext(), fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "icon upload failed",
				"cause": err.Error(),
			})
		}
		if err := rewards.SetIcon(c.UserContext(), rewardID, url); err != nil {
			return errorResponse(c, "failed to save icon", err)
		}
		return c.JSON(fiber.Map{
			"message":   "Icon uploaded",
			"reward_id": rewardID,
			"icon_url":  url,
		})
	})
}
