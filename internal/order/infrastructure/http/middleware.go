package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/museo-app/marketplace/internal/auth/supabase"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type requesterKey struct{}

// WithRequester stores the authenticated user id on ctx.
func WithRequester(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, requesterKey{}, userID)
}

// Requester returns the authenticated user id, or "" for anonymous calls.
func Requester(ctx context.Context) string {
	id, _ := ctx.Value(requesterKey{}).(string)
	return id
}

// Authenticate resolves the session token to a requester id. A missing or
// rejected token leaves the request anonymous; handlers decide what that
// means. If the token cannot be checked at all the request is answered with
// 503 rather than treated as anonymous.
func Authenticate(log *slog.Logger, v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := v.Verify(r.Context(), token)
			if errors.Is(err, supabase.ErrInvalidToken) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				log.Error("token verification failed", "path", r.URL.Path, "err", err)
				writeJSON(w, http.StatusServiceUnavailable, errResponse{Error: "Authentication service unavailable"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie("access_token"); err == nil {
		return c.Value
	}
	return ""
}
