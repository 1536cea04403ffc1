package handlers

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"musicstore/internal/config"
	"musicstore/internal/events"
	applog "musicstore/internal/log"
)

const csrfCookie = "csrf_"

// Limit is a request budget per client within Window.
type Limit struct {
	Max    int
	Window time.Duration
}

type AppOptions struct {
	Config       config.Config
	TemplatesDir string
	StaticDir    string
	Publisher    events.Publisher
	// Storage backs the rate limiters and csrf tokens. nil keeps them in
	// process memory.
	Storage fiber.Storage
	// ReloadTemplates re-parses templates on every render (development).
	ReloadTemplates bool

	GlobalLimit Limit
	LoginLimit  Limit
	SearchLimit Limit
	AvailLimit  Limit
}

func (o *AppOptions) defaults() {
	if o.TemplatesDir == "" {
		o.TemplatesDir = "./web/templates"
	}
	if o.StaticDir == "" {
		o.StaticDir = "./web/static"
	}
	if o.Publisher == nil {
		o.Publisher = events.Noop{}
	}
	def := func(l *Limit, max int, window time.Duration) {
		if l.Max <= 0 {
			l.Max = max
		}
		if l.Window <= 0 {
			l.Window = window
		}
	}
	def(&o.GlobalLimit, 120, time.Minute)
	def(&o.LoginLimit, 5, 10*time.Minute)
	def(&o.SearchLimit, 30, time.Minute)
	def(&o.AvailLimit, 15, 30*time.Second)
}

func isAPI(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/")
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	msg := "Something went wrong. Please try again."
	if code >= fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
	} else {
		msg = fe.Message
	}
	if isAPI(c) {
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

// NewApp builds the storefront: middleware chain, pages, admin and the
// /api/v1 resources.
func NewApp(db *sqlx.DB, opts AppOptions) *fiber.App {
	opts.defaults()
	cfg := opts.Config

	engine := html.New(opts.TemplatesDir, ".html")
	engine.Reload(opts.ReloadTemplates)

	app := fiber.New(fiber.Config{
		Views:                 engine,
		ErrorHandler:          errorHandler,
		BodyLimit:             1 << 20,
		DisableStartupMessage: true,
	})

	deps := NewDeps(db, cfg, opts.Publisher)
	auth := deps.Auth

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	if cfg.CartCookieKey != "" {
		app.Use(encryptcookie.New(encryptcookie.Config{
			Key:    cfg.CartCookieKey,
			Except: []string{"sid", csrfCookie},
		}))
	}
	app.Use(AttachUser(auth))
	app.Use(limiter.New(limiter.Config{
		Max:        opts.GlobalLimit.Max,
		Expiration: opts.GlobalLimit.Window,
		Storage:    opts.Storage,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/static/") || strings.HasPrefix(p, "/media/")
		},
	}))
	app.Use(csrf.New(csrf.Config{
		Extractor: func(c *fiber.Ctx) (string, error) {
			if tok := c.Get(csrf.HeaderName); tok != "" {
				return tok, nil
			}
			return csrf.CsrfFromForm("csrf")(c)
		},
		ContextKey:     "csrf",
		CookieName:     csrfCookie,
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		CookieHTTPOnly: true,
		Expiration:     time.Hour,
		Storage:        opts.Storage,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"reason": err.Error()})
			if isAPI(c) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "csrf token missing or invalid"})
			}
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	// ---------- Static assets ----------
	mediaDir := cfg.MediaDir
	if !filepath.IsAbs(mediaDir) {
		if abs, err := filepath.Abs(mediaDir); err == nil {
			mediaDir = abs
		}
	}
	applog.L().Info("static.mount", zap.String("static", opts.StaticDir), zap.String("media", mediaDir))

	app.Static("/static", opts.StaticDir)
	app.Get("/media/*", mediaHandler(mediaDir))

	// ---------- Storefront ----------
	searchLimiter := limiter.New(limiter.Config{
		Max:        opts.SearchLimit.Max,
		Expiration: opts.SearchLimit.Window,
		Storage:    opts.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|catalog"
		},
	})
	app.Get("/", deps.CatalogHandler.Home)
	app.Get("/catalog", searchLimiter, deps.CatalogHandler.Browse)

	app.Get("/product", func(c *fiber.Ctx) error {
		return notFound(c, "This item is no longer available")
	})
	app.Get("/product/:id", deps.ProductHandler.Detail)
	app.Post("/product/:id/reviews", RequireUser(auth), deps.ProductHandler.PostReview)

	app.Get("/cart", deps.CartHandler.View)
	app.Post("/cart", deps.CartHandler.Add)
	app.Post("/cart/update", deps.CartHandler.Update)
	app.Get("/order/:id", RequireUser(auth), deps.OrderHandler.View)
	app.Get("/account", RequireUser(auth), deps.OrderHandler.AccountPage)

	// ---------- Auth ----------
	app.Get("/login", deps.AuthHandler.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        opts.LoginLimit.Max,
		Expiration: opts.LoginLimit.Window,
		Storage:    opts.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|login"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			c.Status(fiber.StatusTooManyRequests)
			return render(c, "login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), deps.AuthHandler.Login)
	app.Get("/signup", deps.AuthHandler.SignupForm)
	app.Post("/signup", deps.AuthHandler.Signup)
	app.Post("/logout", deps.AuthHandler.Logout)

	// ---------- Admin ----------
	adminH := deps.AdminHandler
	admin := app.Group("/admin", RequireAdmin(auth))
	admin.Get("/", adminH.Dashboard)
	admin.Get("/orders", adminH.OrdersPage)
	admin.Post("/orders/:id/status", adminH.UpdateOrderStatus)
	admin.Get("/inventory", adminH.Inventory)
	admin.Post("/inventory", adminH.UpdateInventory)
	admin.Get("/coupons", adminH.CouponsPage)
	admin.Post("/coupons", adminH.CreateCoupon)
	admin.Post("/coupons/:id/toggle", adminH.ToggleCoupon)
	admin.Get("/users", adminH.UsersPage)
	admin.Post("/users/:id/delete", adminH.DeleteUser)

	// ---------- API ----------
	api := app.Group("/api/v1")
	api.Get("/availability", limiter.New(limiter.Config{
		Max:        opts.AvailLimit.Max,
		Expiration: opts.AvailLimit.Window,
		Storage:    opts.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|avail"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.availability.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}), deps.InventoryHandler.Check)
	deps.APIHandler.Mount(api)

	// ---------- Health & 404 ----------
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
		}
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Use(func(c *fiber.Ctx) error {
		if isAPI(c) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return notFound(c, "Page not found")
	})

	return app
}

// mediaHandler serves files under dir and refuses anything that could step
// outside it.
func mediaHandler(dir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Params("*")
		rawLower := strings.ToLower(path)
		if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		clean := filepath.Clean(path)
		if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendFile(filepath.Join(dir, clean), true)
	}
}
