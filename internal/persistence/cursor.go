// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dhiryansd999-cell/runrealm/internal/domain"
)

// cursorToken is the wire shape of a pagination cursor. Tokens are opaque to
// clients; the JSON body is base64url-encoded so they survive query strings.
type cursorToken struct {
	At time.Time `json:"at"`
	ID string    `json:"id"`
}

// EncodeCursor serialises the cursor to an opaque token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw, err := json.Marshal(cursorToken{At: c.At.UTC(), ID: c.ID})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means
// first page and yields a nil cursor.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor token: %w", err)
	}
	var tok cursorToken
	if err := json.Unmarshal(decoded, &tok); err != nil {
		return nil, fmt.Errorf("invalid cursor token: %w", err)
	}
	if tok.At.IsZero() || tok.ID == "" {
		return nil, fmt.Errorf("invalid cursor token: missing fields")
	}
	return &domain.Cursor{At: tok.At, ID: tok.ID}, nil
}
