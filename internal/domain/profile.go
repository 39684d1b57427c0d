// Package domain defines the core data model for the territory-running realm.
package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrProfileNotFound is returned when no profile document exists for a user.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrHandleConflict indicates the normalized handle is already taken.
	// Uniqueness is enforced store-side; this error only surfaces it.
	ErrHandleConflict = errors.New("handle already taken")
	// ErrStoreUnavailable wraps document read/write failures. Callers fall
	// back to the last cached snapshot where one exists.
	ErrStoreUnavailable = errors.New("profile store unavailable")
)

// Profile is the per-user identity and progression document. It exists if and
// only if the user completed onboarding, and is replaced whole on every write.
type Profile struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"display_name"`
	Handle      string    `json:"handle"`
	Bio         string    `json:"bio"`
	Level       int       `json:"level"`
	XP          int64     `json:"xp"`
	CreatedAt   time.Time `json:"created_at"`
}

// NormalizeHandle lower-cases a handle and strips all whitespace.
func NormalizeHandle(handle string) string {
	lowered := strings.ToLower(handle)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, lowered)
}

// NewProfile builds a fresh level-1 profile with a normalized handle.
func NewProfile(uid, displayName, handle, bio string, now time.Time) Profile {
	return Profile{
		UID:         uid,
		DisplayName: displayName,
		Handle:      NormalizeHandle(handle),
		Bio:         bio,
		Level:       1,
		XP:          0,
		CreatedAt:   now.UTC(),
	}
}
