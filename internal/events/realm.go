// Package events defines the event payloads published by the realm backend.
package events

import "time"

// TerritoryClaimed is emitted when a completed run encloses a new territory.
type TerritoryClaimed struct {
	TerritoryID string    `json:"territory_id"`
	RealmID     string    `json:"realm_id"`
	OwnerUID    string    `json:"owner_uid"`
	AreaSqM     float64   `json:"area_sq_m"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

// MomentRecorded summarises a completed run for downstream projections such
// as feeds and leaderboards.
type MomentRecorded struct {
	MomentID       string    `json:"moment_id"`
	RealmID        string    `json:"realm_id"`
	OwnerUID       string    `json:"owner_uid"`
	TerritoryID    string    `json:"territory_id"`
	DistanceMeters float64   `json:"distance_meters"`
	DurationSec    float64   `json:"duration_sec"`
	XPAwarded      int64     `json:"xp_awarded"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// ProfileLevelChanged is emitted when a reward pushes a profile across a
// level boundary.
type ProfileLevelChanged struct {
	RealmID    string    `json:"realm_id"`
	UID        string    `json:"uid"`
	Level      int       `json:"level"`
	XP         int64     `json:"xp"`
	OccurredAt time.Time `json:"occurred_at"`
}
