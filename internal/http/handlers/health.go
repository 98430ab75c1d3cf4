package handlers

import "github.com/gofiber/fiber/v2"

// Health reports liveness for load balancers. It touches no state.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// Root describes the service.
func Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":   "pdf2html",
		"endpoints": []string{"GET /health", "POST /pdf2html", "POST /pdf2htmlex", "GET /v1/converter/stats"},
	})
}
