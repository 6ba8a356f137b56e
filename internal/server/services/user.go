// This file implements UserService: existence checks and registration.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/mailtoken/internal/common"
	"github.com/dmitrijs2005/mailtoken/internal/dbx"
	"github.com/dmitrijs2005/mailtoken/internal/server/models"
	"github.com/dmitrijs2005/mailtoken/internal/server/repositories/repomanager"
)

// UserService fronts the user repository for the transport layer.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewUserService constructs a UserService over the pool and repository manager.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repomanager: m}
}

// Exists reports whether a user with the given email is present.
func (s *UserService) Exists(ctx context.Context, email string) (bool, error) {
	return s.repomanager.Users(s.db).Exists(ctx, email)
}

// Register validates req and inserts the user inside one transaction,
// checking for an existing email first. A taken email yields
// common.ErrConstraintViolation.
func (s *UserService) Register(ctx context.Context, req models.NewUserRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}

	var created bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		exists, err := repo.Exists(ctx, req.Email)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: email already registered", common.ErrConstraintViolation)
		}

		created, err = repo.Create(ctx, req)
		return err
	})
	if err != nil {
		return false, err
	}

	return created, nil
}
