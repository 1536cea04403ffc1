package handlers

import (
	"github.com/gofiber/fiber/v2"

	"musicstore/internal/domain"
	applog "musicstore/internal/log"
	"musicstore/internal/services"
)

// AttachUser puts the session's user into Locals("user") when the sid cookie
// is bound. It never rejects a request.
func AttachUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sid := c.Cookies("sid"); sid != "" {
			if u, err := auth.CurrentUser(c.UserContext(), sid); err == nil && u != nil {
				c.Locals("user", u)
			}
		}
		return c.Next()
	}
}

func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			return c.Redirect("/login")
		}
		u, err := auth.CurrentUser(c.UserContext(), sid)
		if err != nil || !u.IsStaff() {
			applog.Security(c, "access.denied.admin", map[string]any{"sid": sid})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Access denied"})
		}
		c.Locals("user", u)
		return c.Next()
	}
}

// RequireUser enforces that a user is logged in; otherwise redirect to login.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		if sid == "" {
			return c.Redirect("/login")
		}
		u, err := auth.CurrentUser(c.UserContext(), sid)
		if err != nil || u == nil {
			return c.Redirect("/login")
		}
		c.Locals("user", u)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// Principal is the acting user as seen by the API permission checks.
// The zero value is anonymous.
type Principal struct {
	User *domain.User
}

func PrincipalOf(c *fiber.Ctx) Principal { return Principal{User: currentUser(c)} }

func (p Principal) Authenticated() bool { return p.User != nil }

func (p Principal) Staff() bool { return p.User.IsStaff() }

// Owner returns the user id rows must be filtered by: "" for staff (every
// row), the user's own id otherwise. ok is false for anonymous callers.
func (p Principal) Owner() (id string, ok bool) {
	switch {
	case p.User == nil:
		return "", false
	case p.Staff():
		return "", true
	}
	return p.User.ID, true
}

// CanAccess reports whether p may read or change a row owned by ownerID.
func (p Principal) CanAccess(ownerID string) bool {
	if p.User == nil {
		return false
	}
	return p.Staff() || p.User.ID == ownerID
}
