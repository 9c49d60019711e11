package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/graphrag-portal/internal/auth"
	"github.com/prn-tf/graphrag-portal/internal/content"
	"github.com/prn-tf/graphrag-portal/internal/lock"
	"github.com/prn-tf/graphrag-portal/internal/repository/jsonfile"
	"github.com/prn-tf/graphrag-portal/internal/service"
	"github.com/prn-tf/graphrag-portal/internal/workspace"
)

// testPortal wires the full HTTP stack against a temp directory.
type testPortal struct {
	server   *httptest.Server
	accounts *service.AccountService
}

// portalConfig tunes the test stack; the zero value matches production
// defaults except for authentication, which callers pick explicitly.
type portalConfig struct {
	authEnabled    bool
	metricsEnabled bool
	metricsPath    string
	maxUploadBytes int64
}

func newTestPortal(t *testing.T, authEnabled bool) *testPortal {
	t.Helper()
	return newCustomPortal(t, portalConfig{authEnabled: authEnabled, metricsEnabled: true})
}

func newCustomPortal(t *testing.T, cfg portalConfig) *testPortal {
	t.Helper()
	logger := zerolog.Nop()
	dir := t.TempDir()

	store, err := jsonfile.New(filepath.Join(dir, "users.json"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	locker := lock.NewMemoryLocker()
	tokens := auth.NewTokenService(auth.Config{Secret: []byte("test-secret"), TTL: time.Hour})
	resolver := workspace.NewResolver(filepath.Join(dir, "workspaces"), locker, logger)

	accountService := service.NewAccountService(store, locker, logger)
	authService := service.NewAuthService(store, tokens, logger)

	skipPaths := auth.DefaultSkipPaths()
	if cfg.metricsPath != "" {
		skipPaths = append(skipPaths, cfg.metricsPath)
	}

	middleware := auth.Middleware(tokens, resolver, auth.MiddlewareConfig{
		Enabled:          cfg.authEnabled,
		DefaultWorkspace: "default",
		SkipPaths:        skipPaths,
	}, logger)

	router := NewRouter(RouterConfig{
		AuthHandler:    NewAuthHandler(authService, accountService, logger),
		ContentHandler: NewContentHandler(content.NewLocalService(logger), cfg.maxUploadBytes, logger),
		AuthMiddleware: middleware,
		MetricsEnabled: cfg.metricsEnabled,
		MetricsPath:    cfg.metricsPath,
		Logger:         logger,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testPortal{server: server, accounts: accountService}
}

func (p *testPortal) seedAccount(t *testing.T, username, password string) {
	t.Helper()
	_, err := p.accounts.Create(context.Background(), service.CreateAccountInput{
		Username: username,
		Password: password,
	})
	require.NoError(t, err)
}

func (p *testPortal) postJSON(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, p.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := p.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (p *testPortal) login(t *testing.T, username, password string) (*http.Response, map[string]any) {
	t.Helper()
	resp := p.postJSON(t, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	return resp, body
}

func TestLogin_Success(t *testing.T) {
	portal := newTestPortal(t, true)
	portal.seedAccount(t, "admin", "admin123")

	resp, body := portal.login(t, "admin", "admin123")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, "admin", body["username"])
	assert.Equal(t, "user_admin", body["workspace"])
}

func TestLogin_Failures(t *testing.T) {
	portal := newTestPortal(t, true)
	portal.seedAccount(t, "admin", "admin123")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"unknown username", "ghost", "admin123"},
		{"wrong password", "admin", "wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := portal.login(t, tt.username, tt.password)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			// Identical body regardless of failure cause.
			assert.Equal(t, "invalid credentials", body["error"])
		})
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	portal := newTestPortal(t, true)
	portal.seedAccount(t, "admin", "admin123")
	_, err := portal.accounts.Toggle(context.Background(), "admin")
	require.NoError(t, err)

	resp, body := portal.login(t, "admin", "admin123")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "account is disabled", body["error"])
}

func TestRegister(t *testing.T) {
	portal := newTestPortal(t, true)

	resp := portal.postJSON(t, "/auth/register", "", map[string]string{
		"username": "john",
		"email":    "john@example.com",
		"password": "pw",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "user_john", body["workspace"])
	assert.NotContains(t, body, "password_hash")

	// Same username again conflicts.
	dup := portal.postJSON(t, "/auth/register", "", map[string]string{
		"username": "john",
		"password": "other",
	})
	dup.Body.Close()
	assert.Equal(t, http.StatusConflict, dup.StatusCode)
}

func TestProtectedEndpoint_RequiresToken(t *testing.T) {
	portal := newTestPortal(t, true)

	resp := portal.postJSON(t, "/query", "", map[string]string{"query": "anything"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bad := portal.postJSON(t, "/query", "not-a-token", map[string]string{"query": "anything"})
	bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)
}

func TestProtectedEndpoint_ResolvesUserWorkspace(t *testing.T) {
	portal := newTestPortal(t, true)
	portal.seedAccount(t, "admin", "admin123")

	resp, body := portal.login(t, "admin", "admin123")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["access_token"].(string)

	queryResp := portal.postJSON(t, "/query", token, map[string]string{"query": "anything"})
	defer queryResp.Body.Close()
	require.Equal(t, http.StatusOK, queryResp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(queryResp.Body).Decode(&result))
	assert.Equal(t, "user_admin", result["workspace"])
}

func TestProtectedEndpoint_AnonymousFallbackWhenAuthDisabled(t *testing.T) {
	portal := newTestPortal(t, false)

	resp := portal.postJSON(t, "/query", "", map[string]string{"query": "anything"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "default", result["workspace"])
}

func TestMe(t *testing.T) {
	portal := newTestPortal(t, true)
	portal.seedAccount(t, "admin", "admin123")

	_, loginBody := portal.login(t, "admin", "admin123")
	token := loginBody["access_token"].(string)

	req, err := http.NewRequest(http.MethodGet, portal.server.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := portal.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "admin", body["username"])
	assert.Equal(t, "user_admin", body["workspace"])
	assert.NotEmpty(t, body["last_login_at"])
}

func TestChangePassword(t *testing.T) {
	portal := newTestPortal(t, true)
	portal.seedAccount(t, "admin", "admin123")

	_, loginBody := portal.login(t, "admin", "admin123")
	token := loginBody["access_token"].(string)

	payload, _ := json.Marshal(map[string]string{
		"old_password": "admin123",
		"new_password": "rotated456",
	})
	req, err := http.NewRequest(http.MethodPut, portal.server.URL+"/auth/change-password", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := portal.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	oldResp, _ := portal.login(t, "admin", "admin123")
	assert.Equal(t, http.StatusUnauthorized, oldResp.StatusCode)
	newResp, _ := portal.login(t, "admin", "rotated456")
	assert.Equal(t, http.StatusOK, newResp.StatusCode)
}

func TestUpload_ScopedToWorkspace(t *testing.T) {
	portal := newTestPortal(t, true)
	portal.seedAccount(t, "admin", "admin123")
	portal.seedAccount(t, "john", "pw")

	_, adminLogin := portal.login(t, "admin", "admin123")
	adminToken := adminLogin["access_token"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	fmt.Fprint(part, "graph databases are useful")
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, portal.server.URL+"/documents/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := portal.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Admin's graph lists the document.
	graphReq, err := http.NewRequest(http.MethodGet, portal.server.URL+"/graphs", nil)
	require.NoError(t, err)
	graphReq.Header.Set("Authorization", "Bearer "+adminToken)
	graphResp, err := portal.server.Client().Do(graphReq)
	require.NoError(t, err)
	defer graphResp.Body.Close()

	var adminGraph content.Graph
	require.NoError(t, json.NewDecoder(graphResp.Body).Decode(&adminGraph))
	assert.Equal(t, []string{"notes.txt"}, adminGraph.Documents)

	// Another user's workspace stays empty.
	_, johnLogin := portal.login(t, "john", "pw")
	johnToken := johnLogin["access_token"].(string)

	johnReq, err := http.NewRequest(http.MethodGet, portal.server.URL+"/graphs", nil)
	require.NoError(t, err)
	johnReq.Header.Set("Authorization", "Bearer "+johnToken)
	johnResp, err := portal.server.Client().Do(johnReq)
	require.NoError(t, err)
	defer johnResp.Body.Close()

	var johnGraph content.Graph
	require.NoError(t, json.NewDecoder(johnResp.Body).Decode(&johnGraph))
	assert.Empty(t, johnGraph.Documents)
}

func TestUpload_RejectsOversizedDocument(t *testing.T) {
	portal := newCustomPortal(t, portalConfig{
		authEnabled:    true,
		metricsEnabled: true,
		maxUploadBytes: 512,
	})
	portal.seedAccount(t, "admin", "admin123")

	_, loginBody := portal.login(t, "admin", "admin123")
	token := loginBody["access_token"].(string)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "big.txt")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 2048))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, portal.server.URL+"/documents/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := portal.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "document too large", body["error"])
}

func TestHealthAndMetrics_NoAuth(t *testing.T) {
	portal := newTestPortal(t, true)

	for _, path := range []string{"/health", "/metrics"} {
		resp, err := portal.server.Client().Get(portal.server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equalf(t, http.StatusOK, resp.StatusCode, "path %s", path)
	}
}

func TestMetricsRouting(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		portal := newCustomPortal(t, portalConfig{authEnabled: false})

		resp, err := portal.server.Client().Get(portal.server.URL + "/metrics")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("custom path", func(t *testing.T) {
		portal := newCustomPortal(t, portalConfig{
			authEnabled:    false,
			metricsEnabled: true,
			metricsPath:    "/internal/metrics",
		})

		resp, err := portal.server.Client().Get(portal.server.URL + "/internal/metrics")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		old, err := portal.server.Client().Get(portal.server.URL + "/metrics")
		require.NoError(t, err)
		old.Body.Close()
		assert.Equal(t, http.StatusNotFound, old.StatusCode)
	})
}
