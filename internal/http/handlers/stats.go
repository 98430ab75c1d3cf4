package handlers

import "github.com/gofiber/fiber/v2"

// HandleConverterStats exposes the converter slot pool usage.
func (svc *ConvertService) HandleConverterStats(c *fiber.Ctx) error {
	s := svc.Pool.Stats()
	s.Binary = svc.Config.Converter.Binary
	return c.JSON(fiber.Map{
		"pool":             s,
		"timeout_secs":     svc.Config.Converter.TimeoutSecs,
		"max_timeout_secs": svc.Config.Converter.MaxTimeoutSecs,
		"result_cache":     svc.Cache != nil,
	})
}
