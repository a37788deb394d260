package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// AdminKey is set in the request context once the admin token was verified
	AdminKey ContextKey = "admin"
)

// Guard protects mutating routes with a single admin bearer token whose bcrypt
// hash comes from configuration. A Guard without a hash lets every request through.
type Guard struct {
	tokenHash []byte
}

// NewGuard creates a guard for the given bcrypt hash. An empty hash disables the guard.
func NewGuard(tokenHash string) (*Guard, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		log.Warn().Msg("ADMIN_TOKEN_HASH not set, mutating routes are unauthenticated")
		return &Guard{}, nil
	}
	if _, err := bcrypt.Cost([]byte(tokenHash)); err != nil {
		return nil, fmt.Errorf("invalid admin token hash: %w", err)
	}
	return &Guard{tokenHash: []byte(tokenHash)}, nil
}

// Enabled reports whether a token is required.
func (g *Guard) Enabled() bool {
	return len(g.tokenHash) > 0
}

// Middleware creates an authentication middleware
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		token := parts[1]
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "empty token")
			return
		}

		if err := g.Verify(token); err != nil {
			log.Debug().Str("path", r.URL.Path).Msg("Admin token rejected")
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), AdminKey, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify checks token against the configured hash in constant time.
func (g *Guard) Verify(token string) error {
	if !g.Enabled() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(g.tokenHash, []byte(token)); err != nil {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// IsAdmin reports whether the request passed an enabled guard.
func IsAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(AdminKey).(bool)
	return ok
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
