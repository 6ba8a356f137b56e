package httpserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/mailtoken/internal/common"
	"github.com/dmitrijs2005/mailtoken/internal/server/models"
	"github.com/dmitrijs2005/mailtoken/internal/server/tokens"
)

const readyTimeout = time.Second

type tokenInfoResponse struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	ExpireAt string `json:"expireAt"`
}

type getTokenResponse struct {
	Success   bool               `json:"success"`
	TokenInfo *tokenInfoResponse `json:"tokenInfo,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

type validateTokenResponse struct {
	Valid   bool   `json:"valid"`
	Expired bool   `json:"expired"`
	Error   string `json:"error,omitempty"`
}

func (s *HTTPServer) Root(c *fiber.Ctx) error {
	return c.SendString("API is running...")
}

// Health is the liveness probe.
func (s *HTTPServer) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "UP"})
}

// Ready pings the store.
func (s *HTTPServer) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
	defer cancel()

	if err := s.store.PingContext(ctx); err != nil {
		s.logger.Warn(ctx, "store not ready", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "DOWN"})
	}
	return c.JSON(fiber.Map{"status": "READY"})
}

func (s *HTTPServer) UserExists(c *fiber.Ctx) error {
	ctx := c.UserContext()

	email := c.Query("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}

	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		code, label := errorClass(err)
		s.logger.Error(ctx, "user lookup failed", "class", label, "error", err)
		return c.Status(code).JSON(fiber.Map{"error": label})
	}

	return c.JSON(fiber.Map{"exists": exists})
}

func (s *HTTPServer) CreateUser(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req models.NewUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request"})
	}

	if _, err := s.users.Register(ctx, req); err != nil {
		code, label := errorClass(err)
		if code >= fiber.StatusInternalServerError {
			s.logger.Error(ctx, "user registration failed", "class", label, "error", err)
		} else {
			s.logger.Debug(ctx, "user registration rejected", "class", label, "email", req.Email)
		}
		return c.Status(code).JSON(fiber.Map{"success": false, "error": label})
	}

	s.logger.Info(ctx, "user registered")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
}

// GetToken issues a token for the email in the query string, expiring one
// TTL from now.
func (s *HTTPServer) GetToken(c *fiber.Ctx) error {
	ctx := c.UserContext()

	email := c.Query("email")
	if email == "" {
		s.metrics.outcome("issue", "invalid request")
		return c.Status(fiber.StatusBadRequest).JSON(getTokenResponse{Error: "email is required"})
	}

	info, err := s.tokens.Info(ctx, email, s.tokens.ExpireAt())
	if err != nil {
		code, label := errorClass(err)
		s.metrics.outcome("issue", label)
		if code >= fiber.StatusInternalServerError {
			s.logger.Error(ctx, "token issuance failed", "class", label, "error", err)
		} else {
			s.logger.Debug(ctx, "token issuance rejected", "class", label, "email", email)
		}
		return c.Status(code).JSON(getTokenResponse{Error: label})
	}

	s.metrics.outcome("issue", "issued")
	return c.JSON(getTokenResponse{
		Success: true,
		TokenInfo: &tokenInfoResponse{
			Token:    info.Token,
			Email:    info.Email,
			ExpireAt: tokens.FormatExpiry(info.ExpiresAt),
		},
	})
}

// ValidateToken checks a token passed in a JSON body or as ?token=, and
// reports expiry separately from digest validity.
func (s *HTTPServer) ValidateToken(c *fiber.Ctx) error {
	ctx := c.UserContext()

	// an unescaped '+' in the query arrives as a space; base64 has no spaces
	token := strings.ReplaceAll(c.Query("token"), " ", "+")
	if token == "" && len(c.Body()) > 0 {
		var req validateTokenRequest
		if err := c.BodyParser(&req); err != nil {
			s.metrics.outcome("validate", "invalid request")
			return c.Status(fiber.StatusBadRequest).JSON(validateTokenResponse{Error: "invalid request"})
		}
		token = req.Token
	}
	if token == "" {
		s.metrics.outcome("validate", "invalid request")
		return c.Status(fiber.StatusBadRequest).JSON(validateTokenResponse{Error: "token is required"})
	}

	valid, err := s.tokens.ValidateAt(ctx, token, s.now())
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		s.metrics.outcome("validate", "expired")
		return c.JSON(validateTokenResponse{Expired: true})
	case err != nil:
		code, label := errorClass(err)
		s.metrics.outcome("validate", label)
		if code >= fiber.StatusInternalServerError {
			s.logger.Error(ctx, "token validation failed", "class", label, "error", err)
		}
		return c.Status(code).JSON(validateTokenResponse{Error: label})
	}

	if valid {
		s.metrics.outcome("validate", "valid")
	} else {
		s.metrics.outcome("validate", "invalid")
	}
	return c.JSON(validateTokenResponse{Valid: valid})
}
