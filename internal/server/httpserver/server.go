// Package httpserver exposes the token and user services over HTTP using
// Fiber, together with liveness/readiness probes and Prometheus metrics.
package httpserver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/mailtoken/internal/logging"
	"github.com/dmitrijs2005/mailtoken/internal/server/config"
	"github.com/dmitrijs2005/mailtoken/internal/server/models"
	"github.com/dmitrijs2005/mailtoken/internal/server/services"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// server context is cancelled.
const shutdownTimeout = 5 * time.Second

// TokenService is the subset of services.TokenService used by handlers.
type TokenService interface {
	ExpireAt() time.Time
	Info(ctx context.Context, email string, expiresAt time.Time) (*services.TokenInfo, error)
	ValidateAt(ctx context.Context, token string, now time.Time) (bool, error)
}

// UserService is the subset of services.UserService used by handlers.
type UserService interface {
	Exists(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, req models.NewUserRequest) (bool, error)
}

// Pinger reports store reachability for the readiness probe. *sql.DB
// satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HTTPServer struct {
	address string
	app     *fiber.App
	logger  logging.Logger
	tokens  TokenService
	users   UserService
	store   Pinger
	metrics *metrics
	now     func() time.Time

	// baseCtx parents every request context; Run replaces it with its own
	// ctx before serving so shutdown cancels in-flight store work.
	baseCtx        context.Context
	requestTimeout time.Duration
}

// NewHTTPServer builds the Fiber app and registers all routes. Store work of
// each request is bounded by requestTimeout (config.DefaultRequestTimeout
// when not positive). Metrics are registered on reg; a nil reg gets a
// private registry.
func NewHTTPServer(addr string, l logging.Logger, us UserService, ts TokenService, store Pinger, reg *prometheus.Registry, requestTimeout time.Duration) *HTTPServer {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if requestTimeout <= 0 {
		requestTimeout = config.DefaultRequestTimeout
	}

	s := &HTTPServer{
		address: addr,
		logger:  l.With("module", "http_server"),
		tokens:  ts,
		users:   us,
		store:   store,
		metrics: newMetrics(reg),
		now:     time.Now,

		baseCtx:        context.Background(),
		requestTimeout: requestTimeout,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "mailtoken",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(cors.New())
	s.app.Use(s.observe)
	s.app.Use(s.scope)

	s.app.Get("/", s.Root)
	s.app.Get("/health", s.Health)
	s.app.Get("/ready", s.Ready)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	s.app.Get("/user_exists", s.UserExists)
	s.app.Post("/users", s.CreateUser)
	s.app.Post("/get_token", s.GetToken)
	s.app.Post("/validate_token", s.ValidateToken)

	return s
}

// App returns the underlying Fiber app.
func (s *HTTPServer) App() *fiber.App {
	return s.app
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.baseCtx = ctx

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.app.ShutdownWithContext(sctx); err != nil {
			s.logger.Error(sctx, "HTTP shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	return s.app.Listener(listen)
}

func (s *HTTPServer) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		s.logger.Error(c.UserContext(), "unhandled error", "error", err)
	}

	return c.Status(code).JSON(fiber.Map{"error": msg})
}
