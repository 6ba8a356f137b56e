// Package services contains server-side business logic. This file implements
// TokenService, which issues and re-verifies stateless user tokens.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mailtoken/internal/common"
	"github.com/dmitrijs2005/mailtoken/internal/server/config"
	"github.com/dmitrijs2005/mailtoken/internal/server/repositories/users"
	"github.com/dmitrijs2005/mailtoken/internal/server/tokens"
)

// TokenInfo is the result of a successful issuance.
type TokenInfo struct {
	Token     string
	Email     string
	ExpiresAt time.Time
	Digest    string
}

// TokenService issues tokens for known users and validates them by
// re-deriving the digest from the current store state. It keeps no state
// between calls and is safe for concurrent use.
type TokenService struct {
	users    users.Repository
	secret   string
	tokenTTL time.Duration
	now      func() time.Time
}

// NewTokenService constructs a TokenService. The secret and TTL are copied
// out of cfg once; later changes to cfg are not observed.
func NewTokenService(repo users.Repository, cfg *config.Config) *TokenService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}
	return &TokenService{
		users:    repo,
		secret:   cfg.AuthSecret,
		tokenTTL: ttl,
		now:      time.Now,
	}
}

// ExpireAt returns now + TTL at second precision in UTC.
func (s *TokenService) ExpireAt() time.Time {
	return s.now().Add(s.tokenTTL).UTC().Truncate(time.Second)
}

// Info derives the token for email expiring at expiresAt.
//
// Fails with common.ErrUnknownUser when the email is not in the store
// (including when the row disappears between the existence check and the
// lookup) and with common.ErrConfig when the server secret is empty.
// Repository errors are returned unchanged.
func (s *TokenService) Info(ctx context.Context, email string, expiresAt time.Time) (*TokenInfo, error) {
	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, common.ErrUnknownUser
	}

	if s.secret == "" {
		return nil, fmt.Errorf("%w: server secret is empty", common.ErrConfig)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownUser
		}
		return nil, err
	}

	expiresAt = expiresAt.UTC().Truncate(time.Second)
	digest := tokens.Digest(tokens.Claim{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		ServerSecret: s.secret,
		ExpiresAt:    expiresAt,
	})

	token := tokens.Encode(tokens.Envelope{Email: email, ExpiresAt: expiresAt, Digest: digest})

	return &TokenInfo{Token: token, Email: email, ExpiresAt: expiresAt, Digest: digest}, nil
}

// Issue returns the wire token for email expiring at expiresAt.
func (s *TokenService) Issue(ctx context.Context, email string, expiresAt time.Time) (string, error) {
	info, err := s.Info(ctx, email, expiresAt)
	if err != nil {
		return "", err
	}
	return info.Token, nil
}

// Validate decodes token and checks its digest against one re-derived from
// the store. It does not look at the expiry; see ValidateAt.
//
// A token for a user that no longer exists is (false, nil). Malformed
// tokens, configuration and store errors are returned as errors.
func (s *TokenService) Validate(ctx context.Context, token string) (bool, error) {
	_, ok, err := s.verify(ctx, token)
	return ok, err
}

// ValidateAt is Validate followed by an expiry check against now. A token
// with a correct digest whose expiry is not after now yields
// common.ErrTokenExpired.
func (s *TokenService) ValidateAt(ctx context.Context, token string, now time.Time) (bool, error) {
	env, ok, err := s.verify(ctx, token)
	if err != nil || !ok {
		return false, err
	}
	if !now.Before(env.ExpiresAt) {
		return false, common.ErrTokenExpired
	}
	return true, nil
}

func (s *TokenService) verify(ctx context.Context, token string) (tokens.Envelope, bool, error) {
	env, err := tokens.Decode(token)
	if err != nil {
		return tokens.Envelope{}, false, err
	}

	expected, err := s.Info(ctx, env.Email, env.ExpiresAt)
	if err != nil {
		if errors.Is(err, common.ErrUnknownUser) {
			return env, false, nil
		}
		return env, false, err
	}

	return env, tokens.Equal(env.Digest, expected.Digest), nil
}
