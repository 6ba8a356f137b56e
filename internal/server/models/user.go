// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/dmitrijs2005/mailtoken/internal/common"
)

// User is the canonical user row. Email is the unique lookup key and ID
// never changes once assigned.
type User struct {
	ID        string
	Name      string
	Email     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserRequest is the input for user creation. The id is assigned by
// the repository.
type NewUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Validate checks the request and returns an error wrapping
// common.ErrValidation when a field is missing or malformed.
func (r NewUserRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 320), is.Email),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}
