package track

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dhiryansd999-cell/runrealm/internal/domain"
	"github.com/dhiryansd999-cell/runrealm/internal/geo"
)

// ErrDegenerateTerritory is returned when the closed path encloses less than
// the minimum claimable area, e.g. the runner looped the same short segment.
var ErrDegenerateTerritory = errors.New("degenerate territory")

// DefaultMinAreaSqM is the minimum enclosed area a claim must cover.
const DefaultMinAreaSqM = 25.0

// Builder converts finalized paths into territory claims. It performs no I/O.
type Builder struct {
	minAreaSqM float64
}

// NewBuilder constructs a Builder with the given minimum claimable area.
// Non-positive values fall back to DefaultMinAreaSqM.
func NewBuilder(minAreaSqM float64) *Builder {
	if minAreaSqM <= 0 {
		minAreaSqM = DefaultMinAreaSqM
	}
	return &Builder{minAreaSqM: minAreaSqM}
}

// BuildClaim closes the path into a polygon, derives its area, distance and
// XP award, and returns the resulting immutable Territory and Moment pair.
func (b *Builder) BuildClaim(path []geo.Point, realmID, ownerUID string, now time.Time) (domain.Territory, domain.Moment, error) {
	if len(path) < 2 {
		return domain.Territory{}, domain.Moment{}, ErrPathTooShort
	}

	area := geo.SphericalArea(path)
	if area < b.minAreaSqM {
		return domain.Territory{}, domain.Moment{}, ErrDegenerateTerritory
	}

	var distance float64
	for i := 1; i < len(path); i++ {
		distance += geo.Haversine(path[i-1], path[i])
	}

	vertices := make([]geo.Point, len(path))
	copy(vertices, path)

	territory := domain.Territory{
		ID:        uuid.NewString(),
		RealmID:   realmID,
		OwnerUID:  ownerUID,
		Vertices:  vertices,
		AreaSqM:   area,
		ClaimedAt: now.UTC(),
	}
	moment := domain.Moment{
		ID:             uuid.NewString(),
		RealmID:        realmID,
		OwnerUID:       ownerUID,
		TerritoryID:    territory.ID,
		DistanceMeters: distance,
		Duration:       path[len(path)-1].At.Sub(path[0].At),
		XPAwarded:      domain.XPForRun(distance, area),
		RecordedAt:     now.UTC(),
	}
	return territory, moment, nil
}
