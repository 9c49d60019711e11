// Package service provides the business logic for the GraphRAG portal.
package service

import "errors"

// Common service errors.
var (
	// Validation errors (surfaced to trusted operators only)
	ErrInvalidUsername = errors.New("invalid username: must be 3-64 characters")
	ErrInvalidPassword = errors.New("invalid password: must not be empty")
	ErrInvalidEmail    = errors.New("invalid email format")

	// General errors
	ErrInternalError = errors.New("internal server error")
)
