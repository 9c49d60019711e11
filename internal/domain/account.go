// Package domain contains the core business entities for the GraphRAG portal.
// These are pure Go structs with no external dependencies beyond the password
// hasher, representing the identity and workspace concepts of the gateway.
package domain

import (
	"time"
)

// WorkspacePrefix is the fixed prefix used to derive a workspace ID from a
// username. The mapping is a documented contract: workspace = "user_" + username.
const WorkspacePrefix = "user_"

// Account represents a registered user of the portal.
// Exactly one workspace belongs to each account.
type Account struct {
	// Username is the unique, case-sensitive identifier for login.
	// Immutable after creation.
	Username string `json:"username"`

	// Email is the contact address for the account.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the account's password.
	// This must never be exposed in API responses or logs.
	PasswordHash string `json:"password_hash"`

	// Active indicates whether the account may authenticate.
	// Inactive accounts fail login but retain all workspace data.
	Active bool `json:"active"`

	// CreatedAt is the timestamp when the account was created. Immutable.
	CreatedAt time.Time `json:"created_at"`

	// LastLoginAt is the timestamp of the most recent successful login.
	// Nil until the first login.
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Workspace is the storage namespace owned by this account.
	// Derived deterministically from the username and immutable.
	Workspace string `json:"workspace"`
}

// NewAccount creates a new active Account with its workspace derived
// from the username.
func NewAccount(username, email, passwordHash string) *Account {
	return &Account{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
		Workspace:    WorkspaceID(username),
	}
}

// WorkspaceID returns the workspace identifier for a username.
// Distinct usernames always map to distinct workspace IDs.
func WorkspaceID(username string) string {
	return WorkspacePrefix + username
}

// CanAuthenticate returns true if the account is allowed to log in.
func (a *Account) CanAuthenticate() bool {
	return a.Active
}
