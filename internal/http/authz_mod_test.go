package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"dealdrop/internal/config"
	"dealdrop/internal/domain"
	"dealdrop/internal/http/handlers"
	"dealdrop/internal/repos"
	"dealdrop/internal/services"
)

// Minimal app for role-gate testing on the moderation and admin groups.
func newModApp(t *testing.T) (*fiber.App, *repos.UserRepo) {
	t.Helper()
	db, err := repos.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	userRepo := repos.NewUserRepo(db)
	authSvc := &services.AuthService{Users: userRepo}

	engine := html.New("../../web/templates", ".html")
	app := fiber.New(fiber.Config{Views: engine})
	app.Use(requestid.New())

	deps := handlers.NewDeps(db, config.Config{}, authSvc)
	t.Cleanup(deps.Engagement.Close)

	mod := app.Group("/mod", handlers.RequireRole(authSvc, domain.RoleModerator))
	mod.Get("/", deps.ModHandler.Queue)
	mod.Post("/deals/:id/approve", deps.ModHandler.Approve)

	admin := app.Group("/admin", handlers.RequireRole(authSvc, domain.RoleAdmin))
	admin.Get("/deals", deps.ModHandler.AdminDeals)
	admin.Post("/deals/:id/takedown", deps.ModHandler.Takedown)
	return app, userRepo
}

func get(t *testing.T, app *fiber.App, path, sid string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestModQueueRequiresModerator(t *testing.T) {
	app, userRepo := newModApp(t)

	// Anonymous -> redirect to login
	if resp := get(t, app, "/mod/", ""); resp.StatusCode != http.StatusFound {
		t.Fatalf("want redirect for anonymous, got %d", resp.StatusCode)
	}

	// Member -> forbidden
	_ = userRepo.BindSession("sid-member", "u-mina")
	if resp := get(t, app, "/mod/", "sid-member"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("want 403 for member, got %d", resp.StatusCode)
	}

	// Moderator -> 200
	_ = userRepo.BindSession("sid-mod", "u-mod")
	if resp := get(t, app, "/mod/", "sid-mod"); resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200 for moderator, got %d", resp.StatusCode)
	}
}

func TestAdminGroupOutranksModerator(t *testing.T) {
	app, userRepo := newModApp(t)

	// Moderator stops at the admin gate
	_ = userRepo.BindSession("sid-mod", "u-mod")
	if resp := get(t, app, "/admin/deals", "sid-mod"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("want 403 for moderator on admin page, got %d", resp.StatusCode)
	}

	// Admin and root both pass (capability superset)
	_ = userRepo.BindSession("sid-admin", "u-admin")
	if resp := get(t, app, "/admin/deals", "sid-admin"); resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200 for admin, got %d", resp.StatusCode)
	}
	_ = userRepo.BindSession("sid-root", "u-root")
	if resp := get(t, app, "/admin/deals", "sid-root"); resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200 for root_admin, got %d", resp.StatusCode)
	}
}

func TestModeratorCanApproveSeededPendingDeal(t *testing.T) {
	app, userRepo := newModApp(t)
	_ = userRepo.BindSession("sid-mod", "u-mod")

	req := httptest.NewRequest("POST", "/mod/deals/deal-airfryer/approve", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "sid-mod"})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("want redirect after approve, got %d", resp.StatusCode)
	}

	// approving again conflicts: the state already moved
	again := httptest.NewRequest("POST", "/mod/deals/deal-airfryer/approve", nil)
	again.AddCookie(&http.Cookie{Name: "sid", Value: "sid-mod"})
	resp, err = app.Test(again)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409 on second approve, got %d", resp.StatusCode)
	}
}
