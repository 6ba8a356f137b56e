// Package common defines the sentinel errors shared by the repository,
// service and transport layers. Callers should use errors.Is to match them.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound          = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrRowMapping          = errors.New("row mapping error")

	// Service-level errors.
	ErrUnknownUser = errors.New("unknown user")
	ErrConfig      = errors.New("configuration error")
	ErrValidation  = errors.New("validation error")

	// Token errors.
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
)
