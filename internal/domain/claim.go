package domain

import (
	"time"

	"github.com/dhiryansd999-cell/runrealm/internal/geo"
)

// Territory is a closed polygonal region claimed by one user. Immutable once
// created; overlap and contention between users is resolved elsewhere.
type Territory struct {
	ID          string      `json:"territory_id"`
	RealmID     string      `json:"realm_id"`
	OwnerUID    string      `json:"owner_uid"`
	Vertices    []geo.Point `json:"vertices"`
	AreaSqM     float64     `json:"area_sq_m"`
	ClaimedAt   time.Time   `json:"claimed_at"`
}

// Moment is the immutable summary of one completed run.
type Moment struct {
	ID             string        `json:"moment_id"`
	RealmID        string        `json:"realm_id"`
	OwnerUID       string        `json:"owner_uid"`
	TerritoryID    string        `json:"territory_id"`
	DistanceMeters float64       `json:"distance_meters"`
	Duration       time.Duration `json:"duration"`
	XPAwarded      int64         `json:"xp_awarded"`
	RecordedAt     time.Time     `json:"recorded_at"`
}
