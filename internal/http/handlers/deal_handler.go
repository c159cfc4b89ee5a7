package handlers

import (
	"database/sql"
	"errors"
	"time"

	"dealdrop/internal/domain"
	applog "dealdrop/internal/log"
	"dealdrop/internal/repos"
	"dealdrop/internal/services"
	"dealdrop/internal/validate"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type DealHandler struct {
	Ranking    *services.RankingService
	Votes      *services.VoteService
	Engagement *services.EngagementService
	Moderation *services.ModerationService
	Deals      *repos.DealRepo
	Cats       *repos.CategoryRepo
	Shops      *repos.ShopRepo
	Comments   *repos.CommentRepo
}

// GET /, GET /newest and GET /category/:id
func (h *DealHandler) List(c *fiber.Ctx) error {
	sortMode := validate.Sort(c.Query("sort", defaultSort(c)))
	catID := ""
	raw := c.Params("id")
	if raw == "" {
		raw = c.Query("category")
	}
	if raw != "" {
		id, ok := validate.ID(raw)
		if !ok {
			return c.Status(404).Render("notfound", fiber.Map{"Message": "Unknown category"})
		}
		catID = id
	}
	page := validate.Page(c.Query("page"))
	size := validate.PageSize(c.Query("size"))

	deals, err := h.Ranking.List(sortMode, catID, page, size)
	if err != nil {
		applog.Error(c, "deals.list.fail", err, map[string]any{"sort": sortMode})
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load deals"})
	}
	cats, _ := h.Cats.List()
	return render(c, "home", fiber.Map{
		"Deals": deals, "Sort": sortMode, "Category": catID,
		"Categories": cats, "Page": page, "NextPage": page + 1,
	})
}

func defaultSort(c *fiber.Ctx) string {
	if c.Path() == "/newest" {
		return services.SortNewest
	}
	return services.SortHot
}

// GET /deal/:id — public detail view; records a deduplicated view.
func (h *DealHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "deal"})
		return c.Status(404).Render("notfound", fiber.Map{"Message": "This deal is no longer available"})
	}
	d, err := h.Deals.Get(id)
	if err != nil || d.ID == "" {
		return c.Status(404).Render("notfound", fiber.Map{"Message": "This deal is no longer available"})
	}

	u := currentUser(c)
	visible := d.Status == domain.StatusPublished && !d.Expired(time.Now())
	if !visible {
		// submitter and staff can still open a non-public deal
		if u == nil || (u.ID != d.SubmitterID && !u.CapabilityRole().AtLeast(domain.RoleModerator)) {
			return c.Status(404).Render("notfound", fiber.Map{"Message": "This deal is no longer available"})
		}
	}

	if visible {
		h.Engagement.RecordView(id, viewerFingerprint(c, u))
	}

	snap, err := h.Engagement.Snapshot(id)
	if err != nil {
		applog.Error(c, "deals.detail.snapshot.fail", err, map[string]any{"deal_id": id})
	}
	comments, _ := h.Comments.ListByDeal(id, 100)
	state, _ := h.Votes.State(id, u)

	return render(c, "deal", fiber.Map{
		"D": d, "Snap": snap, "Comments": comments, "VoteState": string(state),
	})
}

// viewerFingerprint dedups views per user when logged in, else per
// session cookie.
func viewerFingerprint(c *fiber.Ctx, u *domain.User) string {
	if u != nil {
		return "u:" + u.ID
	}
	if sid := c.Cookies("sid"); sid != "" {
		return "s:" + sid
	}
	return "ip:" + c.IP()
}

// GET /submit
func (h *DealHandler) SubmitForm(c *fiber.Ctx) error {
	cats, _ := h.Cats.List()
	shops, _ := h.Shops.List()
	return render(c, "submit", fiber.Map{"Categories": cats, "Shops": shops, "Err": ""})
}

// POST /deals — create a draft and submit it for review in one step.
func (h *DealHandler) Submit(c *fiber.Ctx) error {
	u := currentUser(c)
	title, okTitle := validate.Title(c.FormValue("title"))
	catID, okCat := validate.ID(c.FormValue("category_id"))
	shopID, okShop := validate.ID(c.FormValue("shop_id"))
	price, okPrice := validate.Price(c.FormValue("price"))
	if !okTitle || !okCat || !okShop || !okPrice {
		applog.Security(c, "validation.fail", map[string]any{"field": "deal_submit"})
		return c.Status(400).SendString("invalid input")
	}
	origPrice, _ := validate.Price(c.FormValue("original_price"))

	expiresAt := ""
	if raw := c.FormValue("expires_at"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil || t.Before(time.Now()) {
			return c.Status(400).SendString("invalid expiry")
		}
		expiresAt = t.UTC().Format(domain.TimeLayout)
	}

	d := domain.Deal{
		ID:            uuid.NewString(),
		CategoryID:    catID,
		ShopID:        shopID,
		Title:         title,
		Description:   c.FormValue("description"),
		Price:         price,
		OriginalPrice: origPrice,
		SubmitterID:   u.ID,
		Status:        domain.StatusDraft,
		CreatedAt:     time.Now().UTC().Format(domain.TimeLayout),
		ExpiresAt:     expiresAt,
	}
	if err := h.Deals.Create(d); err != nil {
		applog.Error(c, "deals.create.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not save the deal"})
	}
	if err := h.Moderation.Submit(d.ID, u); err != nil {
		applog.Error(c, "deals.submit.fail", err, map[string]any{"deal_id": d.ID})
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not submit the deal"})
	}
	applog.Audit(c, "deals.submit", map[string]any{"deal_id": d.ID})
	return c.Redirect("/deal/" + d.ID)
}

// apiError maps the engine taxonomy onto HTTP statuses for the JSON API.
func apiError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrUnauthenticated):
		status = fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrInvalidTransition):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
