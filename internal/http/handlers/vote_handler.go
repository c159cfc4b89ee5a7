package handlers

import (
	"dealdrop/internal/domain"
	applog "dealdrop/internal/log"
	"dealdrop/internal/services"
	"dealdrop/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type VoteHandler struct {
	Votes      *services.VoteService
	Engagement *services.EngagementService
}

// POST /api/v1/deals/:id/vote  body: direction=UP|DOWN
func (h *VoteHandler) Cast(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad deal id"})
	}
	dir, ok := validate.Direction(c.FormValue("direction"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "direction"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "direction must be UP or DOWN"})
	}

	u := currentUser(c)
	state, err := h.Votes.Cast(id, u, domain.VoteDirection(dir))
	if err != nil {
		applog.Info(c, "vote.cast.reject", map[string]any{"deal_id": id, "err": err.Error()})
		return apiError(c, err)
	}

	snap, err := h.Engagement.Snapshot(id)
	if err != nil {
		return apiError(c, err)
	}
	applog.Audit(c, "vote.cast", map[string]any{"deal_id": id, "state": string(state)})
	return c.JSON(fiber.Map{
		"state":     string(state),
		"upvotes":   snap.UpvoteCount,
		"downvotes": snap.DownvoteCount,
	})
}

// DELETE /api/v1/deals/:id/vote — explicit withdrawal, idempotent.
func (h *VoteHandler) Remove(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad deal id"})
	}
	u := currentUser(c)
	if err := h.Votes.Remove(id, u); err != nil {
		return apiError(c, err)
	}
	snap, err := h.Engagement.Snapshot(id)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{
		"state":     string(domain.NoVote),
		"upvotes":   snap.UpvoteCount,
		"downvotes": snap.DownvoteCount,
	})
}
