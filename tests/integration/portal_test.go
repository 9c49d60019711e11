// Package integration provides end-to-end tests for the GraphRAG portal.
// The whole stack runs in-process against a temp directory: config from
// environment variables, credential store seeding, login, and a protected
// request through the workspace middleware.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/graphrag-portal/internal/auth"
	"github.com/prn-tf/graphrag-portal/internal/config"
	"github.com/prn-tf/graphrag-portal/internal/content"
	"github.com/prn-tf/graphrag-portal/internal/domain"
	"github.com/prn-tf/graphrag-portal/internal/handler"
	"github.com/prn-tf/graphrag-portal/internal/lock"
	"github.com/prn-tf/graphrag-portal/internal/repository/jsonfile"
	"github.com/prn-tf/graphrag-portal/internal/service"
	"github.com/prn-tf/graphrag-portal/internal/workspace"
)

// startPortal assembles the server the same way cmd/portal-server does,
// driven by the documented environment variables.
func startPortal(t *testing.T, envVars map[string]string) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("USERS_FILE", filepath.Join(dir, "users.json"))
	t.Setenv("WORKSPACE_ROOT", filepath.Join(dir, "workspaces"))
	t.Setenv("TOKEN_SECRET", "integration-test-secret")
	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := config.Load("")
	require.NoError(t, err)

	logger := zerolog.Nop()
	store, err := jsonfile.New(cfg.Store.UsersFile, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	locker := lock.NewMemoryLocker()
	tokens := auth.NewTokenService(auth.Config{
		Secret: []byte(cfg.Auth.TokenSecret),
		TTL:    cfg.Auth.TokenTTL(),
	})
	resolver := workspace.NewResolver(cfg.Workspace.Root, locker, logger)

	accountService := service.NewAccountService(store, locker, logger)
	authService := service.NewAuthService(store, tokens, logger)

	require.NoError(t, accountService.Bootstrap(context.Background(), cfg.Auth.SeedAccounts))

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(authService, accountService, logger),
		ContentHandler: handler.NewContentHandler(content.NewLocalService(logger), cfg.Server.MaxBodySize, logger),
		AuthMiddleware: auth.Middleware(tokens, resolver, auth.MiddlewareConfig{
			Enabled:          cfg.Auth.Enabled,
			DefaultWorkspace: cfg.Workspace.Default,
			SkipPaths:        auth.DefaultSkipPaths(),
		}, logger),
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         logger,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// TestLoginFlow covers the canonical deployment path: a store seeded
// with admin:admin123, a login, and a protected request scoped to the
// user_admin workspace.
func TestLoginFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := startPortal(t, map[string]string{
		"AUTH_ACCOUNTS": "admin:admin123",
	})
	client := server.Client()

	// Login with the seeded credentials.
	resp := postJSON(t, client, server.URL+"/auth/login", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, "admin", body["username"])
	assert.Equal(t, "user_admin", body["workspace"])

	// A protected request without the token is rejected before the
	// content service is reached.
	noToken := postJSON(t, client, server.URL+"/query", "", map[string]string{"query": "graphs"})
	noToken.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, noToken.StatusCode)

	// With the token, the request runs inside user_admin.
	queryResp := postJSON(t, client, server.URL+"/query", token, map[string]string{"query": "graphs"})
	require.Equal(t, http.StatusOK, queryResp.StatusCode)
	result := decodeBody(t, queryResp)
	assert.Equal(t, "user_admin", result["workspace"])
}

// TestAuthDisabledFallback verifies the single-tenant mode: with
// ENABLE_USER_AUTH=false, unauthenticated requests land in the default
// workspace instead of failing.
func TestAuthDisabledFallback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	server := startPortal(t, map[string]string{
		"ENABLE_USER_AUTH": "false",
	})

	resp := postJSON(t, server.Client(), server.URL+"/query", "", map[string]string{"query": "anything"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody(t, resp)
	assert.Equal(t, "default", result["workspace"])
}

// TestSeedingIsIdempotent restarts the stack against the same store file
// and checks the seed list is not re-applied over existing accounts.
func TestSeedingIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	usersFile := filepath.Join(dir, "users.json")
	logger := zerolog.Nop()

	seed := func() {
		store, err := jsonfile.New(usersFile, logger)
		require.NoError(t, err)
		defer store.Close()

		svc := service.NewAccountService(store, lock.NewMemoryLocker(), logger)
		require.NoError(t, svc.Bootstrap(context.Background(), "admin:admin123"))
	}

	seed()

	// Change the stored password, then seed again: the account must keep
	// the changed password rather than reverting to the seed value.
	store, err := jsonfile.New(usersFile, logger)
	require.NoError(t, err)
	svc := service.NewAccountService(store, lock.NewMemoryLocker(), logger)
	require.NoError(t, svc.ResetPassword(context.Background(), "admin", "rotated"))
	require.NoError(t, store.Close())

	seed()

	store, err = jsonfile.New(usersFile, logger)
	require.NoError(t, err)
	defer store.Close()
	account, err := store.Get(context.Background(), "admin")
	require.NoError(t, err)
	assert.False(t, domain.VerifyPassword("admin123", account.PasswordHash))
	assert.True(t, domain.VerifyPassword("rotated", account.PasswordHash))
}

// TestTokenExpiry issues a token with a short TTL and checks the 401 after expiry.
func TestTokenExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tokens := auth.NewTokenService(auth.Config{
		Secret: []byte("integration-test-secret"),
		TTL:    -time.Minute,
	})

	dir := t.TempDir()
	logger := zerolog.Nop()
	store, err := jsonfile.New(filepath.Join(dir, "users.json"), logger)
	require.NoError(t, err)
	defer store.Close()

	locker := lock.NewMemoryLocker()
	resolver := workspace.NewResolver(filepath.Join(dir, "workspaces"), locker, logger)
	accountService := service.NewAccountService(store, locker, logger)
	authService := service.NewAuthService(store, tokens, logger)
	require.NoError(t, accountService.Bootstrap(context.Background(), "admin:admin123"))

	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(authService, accountService, logger),
		ContentHandler: handler.NewContentHandler(content.NewLocalService(logger), 0, logger),
		AuthMiddleware: auth.Middleware(tokens, resolver, auth.MiddlewareConfig{
			Enabled:          true,
			DefaultWorkspace: "default",
			SkipPaths:        auth.DefaultSkipPaths(),
		}, logger),
		MetricsEnabled: true,
		Logger:         logger,
	})
	server := httptest.NewServer(router)
	defer server.Close()

	loginResp := postJSON(t, server.Client(), server.URL+"/auth/login", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	token := decodeBody(t, loginResp)["access_token"].(string)

	resp := postJSON(t, server.Client(), server.URL+"/query", token, map[string]string{"query": "x"})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
