package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceID(t *testing.T) {
	assert.Equal(t, "user_admin", WorkspaceID("admin"))
	assert.Equal(t, "user_Admin", WorkspaceID("Admin"), "usernames are case-sensitive")
	assert.NotEqual(t, WorkspaceID("alice"), WorkspaceID("bob"))
}

func TestNewAccount(t *testing.T) {
	acct := NewAccount("john", "j@x.com", "$2a$10$hash")

	assert.Equal(t, "john", acct.Username)
	assert.Equal(t, "user_john", acct.Workspace)
	assert.True(t, acct.Active)
	assert.False(t, acct.CreatedAt.IsZero())
	assert.Nil(t, acct.LastLoginAt)
	assert.True(t, acct.CanAuthenticate())

	acct.Active = false
	assert.False(t, acct.CanAuthenticate())
}

func TestPasswordHashing(t *testing.T) {
	h1, err := HashPassword("secret123")
	require.NoError(t, err)
	h2, err := HashPassword("secret123")
	require.NoError(t, err)

	// Fresh salt per call: identical inputs produce distinct hashes.
	assert.NotEqual(t, h1, h2)

	assert.True(t, VerifyPassword("secret123", h1))
	assert.True(t, VerifyPassword("secret123", h2))
	assert.False(t, VerifyPassword("wrong", h1))
	assert.False(t, VerifyPassword("secret123", "not-a-hash"))
}
