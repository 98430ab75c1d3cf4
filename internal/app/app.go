package app

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/redis/go-redis/v9"

	"pdf2html/internal/config"
	"pdf2html/internal/http/handlers"
	"pdf2html/internal/http/middleware"
	"pdf2html/internal/infra/logging"
	"pdf2html/internal/tokens"
)

// Deps are the long-lived collaborators shared by every request.
type Deps struct {
	// Redis backs the optional result cache. May be nil.
	Redis *redis.Client
	// Tokens enables X-API-Key auth and per-token limits. May be nil.
	Tokens *tokens.Cache
	// Storage backs the rate limiters. Nil selects memory storage.
	Storage fiber.Storage
}

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		BodyLimit:             cfg.Server.BodyLimitBytes,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	// A nil *tokens.Cache must not become a non-nil interface.
	var store middleware.TokenStore
	if deps.Tokens != nil {
		store = deps.Tokens
	}
	middleware.Register(app, cfg, store, deps.Storage)
	RegisterRoutes(app, cfg, deps.Redis)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app. The slot pool of the
// returned service is closed when the app shuts down.
func RegisterRoutes(app *fiber.App, cfg config.Config, rdb *redis.Client) *handlers.ConvertService {
	// One service so both conversion routes share the converter slot pool.
	svc := handlers.NewConvertService(cfg, rdb)
	app.Hooks().OnShutdown(func() error {
		svc.Pool.Close()
		logging.Info("Converter pool closed")
		return nil
	})

	app.Get("/", handlers.Root)
	app.Get("/health", handlers.Health)
	app.Post("/pdf2html", svc.HandleConvert)
	app.Post("/pdf2htmlex", svc.HandleConvert)

	v1 := app.Group("/v1")
	v1.Get("/converter/stats", svc.HandleConverterStats)
	v1.Get("/monitor", monitor.New())
	return svc
}
