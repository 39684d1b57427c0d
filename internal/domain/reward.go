package domain

import "math"

// Reward tuning. The exact curve is policy; callers rely only on the award
// being non-negative and monotonic in both distance and area.
const (
	xpPerTenMeters  = 1.0
	levelXPBaseline = 100.0
)

// XPForRun converts run distance and claimed area into an XP award.
func XPForRun(distanceMeters, areaSqM float64) int64 {
	if distanceMeters < 0 {
		distanceMeters = 0
	}
	if areaSqM < 0 {
		areaSqM = 0
	}
	award := xpPerTenMeters*(distanceMeters/10) + math.Sqrt(areaSqM)
	return int64(math.Floor(award))
}

// LevelForXP maps accumulated XP onto a level. The curve is deterministic and
// non-decreasing, with level 1 at zero XP.
func LevelForXP(xp int64) int {
	if xp <= 0 {
		return 1
	}
	return 1 + int(math.Floor(math.Sqrt(float64(xp)/levelXPBaseline)))
}
