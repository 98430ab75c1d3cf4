package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/rs/xid"

	"pdf2html/internal/config"
	"pdf2html/internal/domain"
	"pdf2html/internal/infra/logging"
)

// APIKeyLocal is the fiber.Ctx local holding an authenticated token.
const APIKeyLocal = "api_key"

// TokenStore is the view of the token cache the middleware needs.
type TokenStore interface {
	Ready() bool
	Valid(token string) bool
	RateLimit(token string) int
}

// LimiterCache keeps one limiter handler per distinct token limit.
type LimiterCache struct {
	mu       sync.RWMutex
	handlers map[int]fiber.Handler
}

// NewLimiterCache returns an empty cache.
func NewLimiterCache() *LimiterCache {
	return &LimiterCache{handlers: make(map[int]fiber.Handler)}
}

func (lc *LimiterCache) get(limit int, build func() fiber.Handler) fiber.Handler {
	lc.mu.RLock()
	h, ok := lc.handlers[limit]
	lc.mu.RUnlock()
	if ok {
		return h
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if h, ok := lc.handlers[limit]; ok {
		return h
	}
	h = build()
	lc.handlers[limit] = h
	return h
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    fiber.StatusTooManyRequests,
			"message": "Too many requests",
		},
	})
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

// TokenRateLimit applies the per-token sliding window limit. Tokens with a
// limit of 0 are not limited.
func TokenRateLimit(interval time.Duration, store TokenStore, storage fiber.Storage, cache *LimiterCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(APIKeyLocal).(string)
		if !ok || token == "" || store == nil {
			return c.Next()
		}
		limit := store.RateLimit(token)
		if limit <= 0 {
			return c.Next()
		}
		h := cache.get(limit, func() fiber.Handler {
			return limiter.New(limiter.Config{
				Max:               limit,
				Expiration:        interval,
				LimiterMiddleware: limiter.SlidingWindow{},
				Storage:           storage,
				KeyGenerator: func(c *fiber.Ctx) string {
					t, _ := c.Locals(APIKeyLocal).(string)
					return "token:" + t
				},
				LimitReached: func(c *fiber.Ctx) error {
					t, _ := c.Locals(APIKeyLocal).(string)
					logging.Warn("Rate limit exceeded", "token", t, "path", c.Path())
					return tooManyRequests(c)
				},
			})
		})
		return h(c)
	}
}

// UserRateLimit limits anonymous callers by IP and User-Agent. Authenticated
// requests skip it; their token limit already applied.
func UserRateLimit(cfg config.Config, storage fiber.Storage) fiber.Handler {
	if cfg.RateLimiter.UserLimit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	userLimiter := limiter.New(limiter.Config{
		Max:               cfg.RateLimiter.UserLimit,
		Expiration:        cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "user:" + clientKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return tooManyRequests(c)
		},
	})
	return func(c *fiber.Ctx) error {
		if token, ok := c.Locals(APIKeyLocal).(string); ok && token != "" {
			return c.Next()
		}
		return userLimiter(c)
	}
}

// KeyAuth validates X-API-Key when the header is present. Requests without
// the header pass through as anonymous.
func KeyAuth(store TokenStore) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: APIKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !store.Ready() {
				return false, domain.ErrTokenStoreNotReady
			}
			if !store.Valid(key) {
				return false, domain.ErrInvalidAPIKey
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth can call ErrorHandler with a nil error.
			status := fiber.StatusUnauthorized
			if err == nil || errors.Is(err, keyauth.ErrMissingOrMalformedAPIKey) {
				err = domain.ErrInvalidAPIKey
			}
			if errors.Is(err, domain.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    status,
					"message": err.Error(),
				},
			})
		},
	})
}

// RequestLog logs every request once it completes.
func RequestLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		logging.Info("Request handled",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		)
		return err
	}
}

// Register attaches the global middleware chain. store may be nil, which
// disables API key handling; storage may be nil, which selects memory storage.
func Register(app *fiber.App, cfg config.Config, store TokenStore, storage fiber.Storage) {
	if storage == nil {
		storage = memoryStorage.New()
	}

	// Panics from in-process parsing become 500s instead of killing the server.
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			logging.Error("Recovered from panic", "path", c.Path(), "panic", fmt.Sprint(e), "stack", string(debug.Stack()))
		},
	}))

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(RequestLog())

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  "/ops/live",
		ReadinessEndpoint: "/ops/ready",
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return store == nil || store.Ready()
		},
	}))

	if store != nil {
		app.Use(KeyAuth(store))
		app.Use(TokenRateLimit(cfg.RateLimiter.Interval, store, storage, NewLimiterCache()))
	}

	if cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0 {
		app.Use(UserRateLimit(cfg, storage))
	}
}
