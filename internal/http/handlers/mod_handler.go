package handlers

import (
	"time"

	"dealdrop/internal/domain"

	applog "dealdrop/internal/log"
	"dealdrop/internal/repos"
	"dealdrop/internal/services"
	"dealdrop/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ModHandler struct {
	Moderation *services.ModerationService
	Deals      *repos.DealRepo
}

// GET /mod — review queue, oldest submissions first.
func (h *ModHandler) Queue(c *fiber.Ctx) error {
	deals, err := h.Moderation.Queue(100)
	if err != nil {
		applog.Error(c, "mod.queue.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load the queue"})
	}
	return render(c, "mod_queue", fiber.Map{"Deals": deals})
}

// POST /mod/deals/:id/approve
func (h *ModHandler) Approve(c *fiber.Ctx) error {
	return h.act(c, "approve", h.Moderation.Approve)
}

// POST /mod/deals/:id/reject
func (h *ModHandler) Reject(c *fiber.Ctx) error {
	return h.act(c, "reject", h.Moderation.Reject)
}

// POST /mod/deals/:id/expire — manual expiry by a moderator.
func (h *ModHandler) Expire(c *fiber.Ctx) error {
	return h.act(c, "expire", h.Moderation.Expire)
}

// POST /admin/deals/:id/takedown
func (h *ModHandler) Takedown(c *fiber.Ctx) error {
	return h.act(c, "takedown", h.Moderation.Takedown)
}

// POST /admin/deals/:id/reopen
func (h *ModHandler) Reopen(c *fiber.Ctx) error {
	return h.act(c, "reopen", h.Moderation.Reopen)
}

func (h *ModHandler) act(c *fiber.Ctx, name string, fn func(string, *domain.User) error) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(400).SendString("bad deal id")
	}
	u := currentUser(c)
	if err := fn(id, u); err != nil {
		applog.Error(c, "mod."+name+".fail", err, map[string]any{"deal_id": id})
		return apiError(c, err)
	}
	applog.Audit(c, "mod."+name, map[string]any{"deal_id": id})
	ref := string(c.Context().Referer())
	if ref == "" {
		ref = "/mod"
	}
	return c.Redirect(ref)
}

// POST /admin/deals/:id/expiry — set or clear a deal's expiry date.
func (h *ModHandler) SetExpiry(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(400).SendString("bad deal id")
	}
	expires := ""
	if raw := c.FormValue("expires_at"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.Status(400).SendString("invalid expiry date")
		}
		expires = t.UTC().Format(domain.TimeLayout)
	}
	if err := h.Deals.SetExpiry(id, expires); err != nil {
		applog.Error(c, "admin.expiry.fail", err, map[string]any{"deal_id": id})
		return apiError(c, err)
	}
	applog.Audit(c, "admin.expiry.set", map[string]any{"deal_id": id, "expires_at": expires})
	ref := string(c.Context().Referer())
	if ref == "" {
		ref = "/admin/deals"
	}
	return c.Redirect(ref)
}

// GET /admin/deals — full status overview for admins.
func (h *ModHandler) AdminDeals(c *fiber.Ctx) error {
	grouped := map[string]any{}
	for _, st := range []string{"PENDING_REVIEW", "PUBLISHED", "REJECTED", "EXPIRED", "REMOVED"} {
		ds, err := h.Deals.ListByStatus(domain.DealStatus(st), 100)
		if err != nil {
			applog.Error(c, "admin.deals.list.fail", err, map[string]any{"status": st})
			return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load deals"})
		}
		grouped[st] = ds
	}
	return render(c, "admin_deals", fiber.Map{"Grouped": grouped, "Now": time.Now().UTC().Format(time.RFC3339)})
}
