package httpserver

import (
	"strconv"
	"strings"
	"time"

	"emailer/pkg/config"
	"emailer/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func NewFiber(conf config.Config, m *metrics.Metrics) *fiber.App {
	appCfg := fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			return c.Status(code).JSON(fiber.Map{
				"status":  false,
				"message": err.Error(),
			})
		},
	}
	// письма с вложениями заметно больше дефолтного лимита тела
	if conf.Server.BodyLimit > 0 {
		appCfg.BodyLimit = conf.Server.BodyLimit
	}

	app := fiber.New(appCfg)

	app.Use(
		cors.New(cors.Config{
			AllowOrigins:  "*",
			ExposeHeaders: "Authorization",
		}),
		recover.New(),
		logger.New(),
	)

	// Prometheus middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// Путь берём из роута, чтобы не плодить метрики по конкретным id
		path := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			path = r.Path
		}

		method := strings.ToUpper(c.Method())
		status := strconv.Itoa(c.Response().StatusCode())

		m.API.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.API.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		return err
	})

	return app
}
