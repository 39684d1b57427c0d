package domain

import (
	"context"
	"time"
)

// Cursor models the pagination token for time-ordered listings.
type Cursor struct {
	At time.Time
	ID string
}

// Repository captures persistence operations for profiles, territories,
// moments and the reward ledger. Implementations scope every operation to a
// realm; profile writes replace the whole document.
type Repository interface {
	GetProfile(ctx context.Context, realmID, uid string) (*Profile, error)
	CreateProfile(ctx context.Context, realmID string, profile Profile) error
	PutProfile(ctx context.Context, realmID string, profile Profile) error

	// SaveClaim persists a territory and its moment atomically.
	SaveClaim(ctx context.Context, territory Territory, moment Moment) error

	// ApplyReward credits the moment's XP to the profile and recomputes the
	// level, exactly once per moment ID. The bool result reports whether the
	// reward was applied (false on replay).
	ApplyReward(ctx context.Context, realmID, uid string, moment Moment) (*Profile, bool, error)

	ListTerritories(ctx context.Context, realmID, uid string, cursor *Cursor, limit int) ([]Territory, *Cursor, error)
	ListMoments(ctx context.Context, realmID, uid string, cursor *Cursor, limit int) ([]Moment, *Cursor, error)
}
