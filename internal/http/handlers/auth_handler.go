package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"musicstore/internal/log"
	"musicstore/internal/services"
	"musicstore/internal/validate"
)

type AuthHandler struct {
	Auth         *services.AuthService
	SecureCookie bool
}

func ensureSID(c *fiber.Ctx, secure bool) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   secure,
		})
	}
	return sid
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return render(c, "login", fiber.Map{"Err": ""})
}

func (h *AuthHandler) loginFailed(c *fiber.Ctx, email, reason string) error {
	fields := map[string]any{"email": email}
	if reason != "" {
		fields["reason"] = reason
	}
	log.Security(c, "auth.login.fail", fields)
	return c.Status(fiber.StatusUnauthorized).Render("login", fiber.Map{
		"Err": "Invalid email or password", "CSRFToken": c.Cookies(csrfCookie),
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sid := ensureSID(c, h.SecureCookie)
	email := c.FormValue("email")
	pass := c.FormValue("password")
	if _, ok := validate.Email(email); !ok {
		return h.loginFailed(c, email, "bad_format")
	}
	if !validate.Password(pass) {
		return h.loginFailed(c, email, "bad_password_format")
	}
	if _, err := h.Auth.Login(c.UserContext(), sid, email, pass); err != nil {
		if !errors.Is(err, services.ErrBadCreds) {
			return err
		}
		return h.loginFailed(c, email, "")
	}

	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.Redirect("/")
}

func (h *AuthHandler) SignupForm(c *fiber.Ctx) error {
	return render(c, "signup", fiber.Map{"Errors": map[string]string{}})
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	sid := ensureSID(c, h.SecureCookie)
	rawName, rawEmail, pass := c.FormValue("name"), c.FormValue("email"), c.FormValue("password")

	errs := map[string]string{}
	name, ok := validate.Text(rawName, 50)
	if !ok {
		errs["name"] = "Please enter your name (up to 50 characters)."
	}
	email, ok := validate.Email(rawEmail)
	if !ok {
		errs["email"] = "Please enter a valid email address."
	}
	if !validate.Password(pass) {
		errs["password"] = "8-20 characters with upper and lower case letters, a digit and a symbol."
	}
	if pass != c.FormValue("confirm") {
		errs["confirm"] = "Passwords do not match."
	}
	if len(errs) == 0 {
		_, err := h.Auth.Signup(c.UserContext(), sid, name, email, pass)
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			errs["email"] = "An account with this email already exists."
		case err != nil:
			return err
		default:
			log.Audit(c, "auth.signup", map[string]any{"email": email})
			return c.Redirect("/")
		}
	}
	log.Security(c, "auth.signup.fail", map[string]any{"email": rawEmail, "fields": len(errs)})
	return c.Status(fiber.StatusBadRequest).Render("signup", fiber.Map{
		"Errors": errs, "Name": rawName, "Email": rawEmail, "CSRFToken": c.Cookies(csrfCookie),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := ensureSID(c, h.SecureCookie)
	_ = h.Auth.Logout(c.UserContext(), sid)
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.SecureCookie,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.Redirect("/")
}
