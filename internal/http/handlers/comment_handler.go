package handlers

import (
	applog "dealdrop/internal/log"
	"dealdrop/internal/services"
	"dealdrop/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CommentHandler struct {
	Engagement *services.EngagementService
}

// POST /deals/:id/comments
func (h *CommentHandler) Add(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(400).SendString("bad deal id")
	}
	body, ok := validate.Body(c.FormValue("body"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "comment"})
		return c.Status(400).SendString("invalid comment")
	}
	u := currentUser(c)
	if _, err := h.Engagement.AddComment(id, u, body); err != nil {
		applog.Error(c, "comment.add.fail", err, map[string]any{"deal_id": id})
		return apiError(c, err)
	}
	applog.Audit(c, "comment.add", map[string]any{"deal_id": id})
	return c.Redirect("/deal/" + id)
}

// POST /comments/:id/delete
func (h *CommentHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(400).SendString("bad comment id")
	}
	u := currentUser(c)
	if err := h.Engagement.DeleteComment(id, u); err != nil {
		applog.Error(c, "comment.delete.fail", err, map[string]any{"comment_id": id})
		return apiError(c, err)
	}
	applog.Audit(c, "comment.delete", map[string]any{"comment_id": id})
	ref := string(c.Context().Referer())
	if ref == "" {
		ref = "/"
	}
	return c.Redirect(ref)
}
