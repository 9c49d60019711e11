package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/graphrag-portal/internal/metrics"
	"github.com/prn-tf/graphrag-portal/internal/workspace"
)

// AnonymousUser is the identity assigned when authentication is disabled
// process-wide and requests fall through to the default workspace.
const AnonymousUser = "anonymous"

// Identity is the workspace binding attached to every protected request.
// The content service never sees a request without one.
type Identity struct {
	// Username is the authenticated username, or AnonymousUser when
	// authentication is disabled.
	Username string

	// Workspace is the resolved workspace identifier.
	Workspace string

	// Handle is the storage namespace backing the workspace.
	Handle workspace.Handle
}

// identityContextKey is the context key for Identity.
type identityContextKey struct{}

// MiddlewareConfig contains configuration for the request middleware.
type MiddlewareConfig struct {
	// Enabled enforces authentication. When false, every request without
	// credentials is routed to DefaultWorkspace (single-tenant fallback).
	Enabled bool

	// DefaultWorkspace is the namespace used when authentication is disabled.
	DefaultWorkspace string

	// SkipPaths are path prefixes that bypass authentication entirely
	// (health checks, metrics, and the auth endpoints themselves).
	SkipPaths []string
}

// DefaultSkipPaths returns the paths that never require a token.
func DefaultSkipPaths() []string {
	return []string{"/health", "/metrics", "/auth/login", "/auth/register"}
}

// Middleware validates bearer tokens and binds the resolved workspace to
// the request context before the content service is reached.
func Middleware(tokens *TokenService, resolver *workspace.Resolver, cfg MiddlewareConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range cfg.SkipPaths {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			token, ok := bearerToken(r)
			if !ok {
				if cfg.Enabled {
					metrics.TokenValidationFailures.WithLabelValues("missing").Inc()
					writeUnauthorized(w)
					return
				}

				// Single-tenant fallback: no credentials required, all
				// requests share the default workspace.
				handle, err := resolver.Resolve(r.Context(), cfg.DefaultWorkspace)
				if err != nil {
					log.Error().Err(err).Msg("failed to resolve default workspace")
					writeInternalError(w)
					return
				}
				metrics.WorkspacesResolved.Inc()
				identity := &Identity{
					Username:  AnonymousUser,
					Workspace: cfg.DefaultWorkspace,
					Handle:    handle,
				}
				next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
				metrics.TokenValidationFailures.WithLabelValues("invalid").Inc()
				writeUnauthorized(w)
				return
			}

			handle, err := resolver.Resolve(r.Context(), claims.Workspace)
			if err != nil {
				log.Error().Err(err).Str("workspace", claims.Workspace).Msg("failed to resolve workspace")
				writeInternalError(w)
				return
			}

			metrics.WorkspacesResolved.Inc()
			identity := &Identity{
				Username:  claims.Username(),
				Workspace: claims.Workspace,
				Handle:    handle,
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("bearer "):])
	return token, token != ""
}

// withIdentity attaches an Identity to a context.
func withIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the Identity from a request context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok
}

// writeUnauthorized writes the generic rejection for credential and token
// failures. No internal detail leaks to the client.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

func writeInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"internal server error"}`))
}
