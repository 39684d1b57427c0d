// Package auth validates identity-provider bearer tokens and carries the
// resulting claims through request contexts.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds token verification parameters. RealmID, when set, pins tokens
// to one realm: a token minted for any other realm is rejected outright, so
// nothing downstream ever writes under a realm the token does not name.
type Config struct {
	Secret  string
	Issuer  string
	RealmID string
}

// Claims is the validated payload of a bearer token.
type Claims struct {
	Subject   string
	RealmID   string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	// ErrMissingToken is returned when no credential is presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps parsing and validation failures.
	ErrInvalidToken = errors.New("invalid bearer token")
	// ErrForeignRealm is returned when the token names a realm other than the
	// one this service is configured for.
	ErrForeignRealm = errors.New("token issued for another realm")
)

// tokenClaims is the raw JWT payload. Scopes stay untyped until
// normalization because identity providers emit them either as a
// space-separated string or as a JSON array.
type tokenClaims struct {
	jwt.RegisteredClaims
	RealmID   string          `json:"realm_id"`
	RawScopes json.RawMessage `json:"scopes,omitempty"`
}

// Parse validates a bearer token and returns normalized claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var raw tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || raw.Subject == "" || raw.RealmID == "" {
		return nil, ErrInvalidToken
	}
	if cfg.RealmID != "" && raw.RealmID != cfg.RealmID {
		return nil, ErrForeignRealm
	}

	return &Claims{
		Subject:   raw.Subject,
		RealmID:   raw.RealmID,
		Scopes:    normalizeScopes(raw.RawScopes),
		ExpiresAt: raw.ExpiresAt.Time,
	}, nil
}

func normalizeScopes(raw json.RawMessage) map[string]struct{} {
	out := make(map[string]struct{})
	if len(raw) == 0 {
		return out
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, scope := range list {
			if scope != "" {
				out[scope] = struct{}{}
			}
		}
		return out
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		for _, scope := range strings.Fields(joined) {
			out[scope] = struct{}{}
		}
	}
	return out
}

// HasScope reports whether the claim set includes the provided scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}
