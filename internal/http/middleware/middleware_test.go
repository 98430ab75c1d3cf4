package middleware

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"

	"pdf2html/internal/config"
	"pdf2html/internal/tokens"
)

type fakeTokenStore struct {
	ready bool
	limit int
	known map[string]bool
}

func (f fakeTokenStore) Ready() bool                { return f.ready }
func (f fakeTokenStore) Valid(token string) bool    { return f.known[token] }
func (f fakeTokenStore) RateLimit(token string) int { return f.limit }

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RateLimiter.Interval = time.Hour
	return cfg
}

func TestRegister_AddsHealthAndRequestID(t *testing.T) {
	app := fiber.New()
	Register(app, testConfig(), nil, nil)
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for _, path := range []string{"/ops/live", "/ops/ready"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s request failed: %v", path, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected %s 200, got %d", path, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("ping request failed: %v", err)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id to be present")
	}
}

func TestRegister_RecoversFromPanics(t *testing.T) {
	app := fiber.New()
	Register(app, testConfig(), nil, nil)
	app.Get("/boom", func(c *fiber.Ctx) error {
		var m map[string]int
		m["x"] = 1
		return nil
	})

	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, "/ops/live", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected app to keep serving after panic, got %v / %v", resp, err)
	}
}

func TestRegister_ReadinessFollowsTokenStore(t *testing.T) {
	app := fiber.New()
	Register(app, testConfig(), tokens.NewCache(), memoryStorage.New())

	req, _ := http.NewRequest(http.MethodGet, "/ops/ready", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("ready request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 before tokens load, got %d", resp.StatusCode)
	}
}

func TestKeyAuth_Outcomes(t *testing.T) {
	tests := []struct {
		name   string
		store  fakeTokenStore
		header string
		code   int
	}{
		{name: "anonymous passes", store: fakeTokenStore{ready: true}, code: fiber.StatusOK},
		{name: "known key", store: fakeTokenStore{ready: true, known: map[string]bool{"abc": true}}, header: "abc", code: fiber.StatusOK},
		{name: "unknown key", store: fakeTokenStore{ready: true}, header: "nope", code: fiber.StatusUnauthorized},
		{name: "store not ready", store: fakeTokenStore{ready: false}, header: "abc", code: fiber.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(KeyAuth(tc.store))
			app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("X-API-Key", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, resp.StatusCode)
			}
		})
	}
}

func TestTokenRateLimit_Enforced(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(APIKeyLocal, "abc")
		return c.Next()
	})
	app.Use(TokenRateLimit(time.Hour, fakeTokenStore{limit: 1}, memoryStorage.New(), NewLimiterCache()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	resp1, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp1.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp1.StatusCode)
	}

	resp2, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp2.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.StatusCode)
	}
	body, _ := io.ReadAll(resp2.Body)
	if !strings.Contains(string(body), "Too many requests") {
		t.Fatalf("expected JSON body to mention rate limit, got %q", string(body))
	}
}

func TestTokenRateLimit_ZeroLimitDisables(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(APIKeyLocal, "abc")
		return c.Next()
	})
	app.Use(TokenRateLimit(time.Hour, fakeTokenStore{limit: 0}, memoryStorage.New(), NewLimiterCache()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	}
}

func TestUserRateLimit_PublicLimitedButTokenBypasses(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimiter.EnableUserLimiter = true
	cfg.RateLimiter.UserLimit = 1

	app := fiber.New()
	app.Use(UserRateLimit(cfg, memoryStorage.New()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	publicReq, _ := http.NewRequest(http.MethodGet, "/", nil)
	publicReq.Header.Set("User-Agent", "public-client")
	resp1, err := app.Test(publicReq)
	if err != nil {
		t.Fatalf("public request failed: %v", err)
	}
	if resp1.StatusCode != fiber.StatusOK {
		t.Fatalf("expected first public request to pass, got %d", resp1.StatusCode)
	}
	resp2, err := app.Test(publicReq)
	if err != nil {
		t.Fatalf("public request failed: %v", err)
	}
	if resp2.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected second public request to be rate limited, got %d", resp2.StatusCode)
	}

	appWithToken := fiber.New()
	appWithToken.Use(func(c *fiber.Ctx) error {
		c.Locals(APIKeyLocal, c.Get("X-API-Key"))
		return c.Next()
	})
	appWithToken.Use(UserRateLimit(cfg, memoryStorage.New()))
	appWithToken.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 3; i++ {
		tokenReq, _ := http.NewRequest(http.MethodGet, "/", nil)
		tokenReq.Header.Set("User-Agent", "public-client")
		tokenReq.Header.Set("X-API-Key", "abc")
		resp, err := appWithToken.Test(tokenReq)
		if err != nil {
			t.Fatalf("token request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected token-authenticated request to bypass user limiter, got %d", resp.StatusCode)
		}
	}
}

func TestUserRateLimit_DisabledWhenNoLimit(t *testing.T) {
	app := fiber.New()
	app.Use(UserRateLimit(testConfig(), memoryStorage.New()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	}
}
