// Package users provides the user store used by the token and user
// services. Repository is the capability set; PostgresRepository is the
// relational variant.
package users

import (
	"context"

	"github.com/dmitrijs2005/mailtoken/internal/server/models"
)

// Repository mediates every persistent user lookup.
//
// Exists reports absence as (false, nil). GetByEmail returns
// common.ErrorNotFound when no row matches. Create returns true iff exactly
// one row was inserted and fails with common.ErrConstraintViolation when the
// email is taken. Connectivity problems surface as common.ErrStoreUnavailable.
type Repository interface {
	Exists(ctx context.Context, email string) (bool, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, req models.NewUserRequest) (bool, error)
}
