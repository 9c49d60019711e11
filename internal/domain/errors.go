// Package domain contains the core business entities for the GraphRAG portal.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (filesystem, database, etc.).

var (
	// ===========================================
	// Account Errors
	// ===========================================

	// ErrAccountNotFound indicates the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateUsername indicates an account with the same username exists.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrAccountDisabled indicates the account is deactivated.
	// Disabled accounts fail login but keep their workspace data.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrInvalidCredentials indicates authentication failed.
	// Deliberately covers both unknown-user and wrong-password so the
	// login endpoint cannot be used for username enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// Token Errors
	// ===========================================

	// ErrUnauthorized indicates a protected request carried no usable proof
	// of identity (missing, invalid, or expired token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the session token is past its expiry.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenSignature indicates the token signature does not verify
	// against the current signing secret.
	ErrTokenSignature = errors.New("token signature is invalid")

	// ErrTokenMalformed indicates the token could not be parsed at all.
	ErrTokenMalformed = errors.New("token is malformed")

	// ===========================================
	// Store Errors
	// ===========================================

	// ErrStoreCorrupt indicates the persisted credential store could not be
	// decoded. Fatal at startup: refusing to start is preferable to silently
	// losing account data.
	ErrStoreCorrupt = errors.New("credential store is corrupt")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., username, workspace).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
