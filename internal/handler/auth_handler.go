package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/graphrag-portal/internal/auth"
	"github.com/prn-tf/graphrag-portal/internal/domain"
	"github.com/prn-tf/graphrag-portal/internal/service"
)

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	authService    *service.AuthService
	accountService *service.AccountService
	logger         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, accountService *service.AccountService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		accountService: accountService,
		logger:         logger.With().Str("handler", "auth").Logger(),
	}
}

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the body of a successful login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Workspace   string `json:"workspace"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	output, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: output.Token,
		TokenType:   output.TokenType,
		Username:    output.Username,
		Email:       output.Email,
		Workspace:   output.Workspace,
	})
}

// registerRequest is the body of POST /auth/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// accountResponse is the public view of an account. Password hashes
// never leave the server.
type accountResponse struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Active      bool   `json:"active"`
	Workspace   string `json:"workspace"`
	CreatedAt   string `json:"created_at"`
	LastLoginAt string `json:"last_login_at,omitempty"`
}

func newAccountResponse(account *domain.Account) accountResponse {
	resp := accountResponse{
		Username:  account.Username,
		Email:     account.Email,
		Active:    account.Active,
		Workspace: account.Workspace,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}
	if account.LastLoginAt != nil {
		resp.LastLoginAt = account.LastLoginAt.Format(time.RFC3339)
	}
	return resp
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	account, err := h.accountService.Create(r.Context(), service.CreateAccountInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

// Me handles GET /auth/me. The identity comes from the validated token;
// the account record is re-read so clients see current state.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity.Username == auth.AnonymousUser {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	account, err := h.authService.Me(r.Context(), identity.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

// Logout handles POST /auth/logout. Tokens are stateless so there is
// nothing to revoke server-side; the endpoint exists so clients have a
// uniform logout call.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// changePasswordRequest is the body of PUT /auth/change-password.
type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword handles PUT /auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity.Username == auth.AnonymousUser {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	if err := h.authService.ChangePassword(r.Context(), identity.Username, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
