package main

import (
	"context"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"dealdrop/internal/config"
	"dealdrop/internal/domain"
	"dealdrop/internal/http/handlers"
	applog "dealdrop/internal/log"
	"dealdrop/internal/repos"
	"dealdrop/internal/services"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	// Auth wiring
	userRepo := repos.NewUserRepo(db)
	authSvc := &services.AuthService{Users: userRepo}
	authH := &handlers.AuthHandler{Auth: authSvc}

	// Templates & app
	engine := html.New("./web/templates", ".html")
	engine.Reload(true)

	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "server.error", err, nil)
			if rerr := c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{
				"Message": "Something went wrong. Please try again.",
			}); rerr != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("Something went wrong. Please try again.")
			}
			return nil
		},
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	// Attach user to context if logged in (for templates/guards)
	app.Use(func(c *fiber.Ctx) error {
		if sid := c.Cookies("sid"); sid != "" {
			if u, err := authSvc.CurrentUser(sid); err == nil && u != nil {
				c.Locals("user", u)
			}
		}
		return c.Next()
	})
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   false, // set true behind HTTPS
		Next: func(c *fiber.Ctx) bool {
			// The JSON vote API is called with fetch(); it carries its
			// own per-route limiter instead of the form token.
			return strings.HasPrefix(c.Path(), "/api/")
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"form": c.FormValue("csrf")})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok := c.Locals("csrf"); tok != nil {
			c.Locals("CSRFToken", tok.(string))
		}
		return c.Next()
	})

	// ---------- App handlers ----------
	deps := handlers.NewDeps(db, cfg, authSvc)

	// Public listing pages
	app.Get("/", deps.DealHandler.List)
	app.Get("/newest", deps.DealHandler.List)
	app.Get("/category/:id", deps.DealHandler.List)
	app.Get("/deal/:id", deps.DealHandler.Detail)

	// Member actions
	app.Get("/submit", handlers.RequireUser(authSvc), deps.DealHandler.SubmitForm)
	app.Post("/deals", handlers.RequireUser(authSvc), deps.DealHandler.Submit)
	app.Post("/deals/:id/comments", handlers.RequireUser(authSvc), deps.CommentHandler.Add)
	app.Post("/comments/:id/delete", handlers.RequireUser(authSvc), deps.CommentHandler.Delete)

	// Vote API (JSON)
	api := app.Group("/api/v1")
	voteLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|vote"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.vote.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Post("/deals/:id/vote", voteLimiter, deps.VoteHandler.Cast)
	api.Delete("/deals/:id/vote", voteLimiter, deps.VoteHandler.Remove)

	// Auth routes (login throttled)
	app.Get("/login", authH.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).Render("login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), authH.Login)
	app.Post("/logout", authH.Logout)

	// Moderation queue (moderator and up)
	mod := app.Group("/mod", handlers.RequireRole(authSvc, domain.RoleModerator))
	mod.Get("/", deps.ModHandler.Queue)
	mod.Post("/deals/:id/approve", deps.ModHandler.Approve)
	mod.Post("/deals/:id/reject", deps.ModHandler.Reject)
	mod.Post("/deals/:id/expire", deps.ModHandler.Expire)

	// Admin surface (admin and up)
	admin := app.Group("/admin", handlers.RequireRole(authSvc, domain.RoleAdmin))
	admin.Get("/deals", deps.ModHandler.AdminDeals)
	admin.Post("/deals/:id/takedown", deps.ModHandler.Takedown)
	admin.Post("/deals/:id/reopen", deps.ModHandler.Reopen)
	admin.Post("/deals/:id/expiry", deps.ModHandler.SetExpiry)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).Render("notfound", fiber.Map{"Message": "Page not found"})
	})

	// Timer-driven expiry runs for the life of the process.
	ctx, cancel := context.WithCancel(context.Background())
	go deps.Moderation.RunExpirySweeper(ctx, cfg.ExpirySweep)

	// log.Fatal would skip the queue drain, so stop the workers first.
	listenErr := app.Listen(":" + cfg.Port)
	cancel()
	deps.Engagement.Close()
	if listenErr != nil {
		log.Fatal(listenErr)
	}
}
