package httpserver

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// scope gives the request a context derived from the server context and
// bounded by the request timeout. Handlers pass it to every store call.
func (s *HTTPServer) scope(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.requestTimeout)
	defer cancel()

	c.SetUserContext(ctx)
	return c.Next()
}

// observe records request metrics and writes one access log line per
// request. Query strings are not logged since they carry emails and tokens.
func (s *HTTPServer) observe(c *fiber.Ctx) error {
	start := time.Now()

	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}

	route := c.Route().Path
	if err != nil && status == fiber.StatusNotFound {
		route = "unmatched"
	}

	elapsed := time.Since(start)
	s.metrics.requests.WithLabelValues(route, c.Method(), strconv.Itoa(status)).Inc()
	s.metrics.duration.WithLabelValues(route).Observe(elapsed.Seconds())

	s.logger.Info(c.UserContext(), "request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", elapsed,
	)

	return err
}
