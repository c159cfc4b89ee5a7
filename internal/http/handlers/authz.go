package handlers

import (
	"dealdrop/internal/domain"
	applog "dealdrop/internal/log"
	"dealdrop/internal/services"

	"github.com/gofiber/fiber/v2"
)

// RequireRole gates a route group on the capability hierarchy: a
// higher role passes every gate a lower one does.
func RequireRole(auth *services.AuthService, min domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			return c.Redirect("/login")
		}
		role, u := auth.ResolveRole(sid)
		if u == nil {
			return c.Redirect("/login")
		}
		if !role.AtLeast(min) {
			applog.Security(c, "access.denied", map[string]any{"need": string(min), "have": string(role)})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Access denied"})
		}
		c.Locals("user", u)
		return c.Next()
	}
}

// RequireUser enforces that a member is logged in; otherwise redirect to login.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return RequireRole(auth, domain.RoleMember)
}

// currentUser pulls the session user attached by middleware, nil when anonymous.
func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}
