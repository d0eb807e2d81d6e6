// Package supabase resolves Supabase access tokens to user ids by asking the
// project's auth API.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Verifier struct {
	baseURL string
	anonKey string
	http    *http.Client
}

func NewVerifier(baseURL, anonKey string) *Verifier {
	return &Verifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type user struct {
	ID string `json:"id"`
}

// Verify returns the id of the user owning token.
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("supabase: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("supabase: unexpected status %d", resp.StatusCode)
	}

	var u user
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return "", fmt.Errorf("supabase: decode user: %w", err)
	}
	if u.ID == "" {
		return "", ErrInvalidToken
	}
	return u.ID, nil
}
