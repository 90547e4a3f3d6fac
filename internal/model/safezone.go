package model

import "time"

// SafeZoneType determines who a zone protects and when.
type SafeZoneType string

const (
	ZonePublic      SafeZoneType = "PUBLIC"
	ZonePrivate     SafeZoneType = "PRIVATE"
	ZoneTimed       SafeZoneType = "TIMED"
	ZoneRelocatable SafeZoneType = "RELOCATABLE"
)

// SafeZone radius limits in meters.
const (
	MinSafeZoneRadiusM = 5.0
	MaxSafeZoneRadiusM = 10000.0
)

// SafeZone is a circle on Earth's surface where eliminations are forbidden
// for authorized players while the zone is active.
type SafeZone struct {
	ID          string       `json:"id"`
	GameID      string       `json:"gameId"`
	Type        SafeZoneType `json:"type"`
	Center      Coordinate   `json:"center"`
	RadiusM     float64      `json:"radiusMeters"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedBy   string       `json:"createdBy"`

	// AuthorizedPlayerIDs lists players a PRIVATE zone protects.
	// Never nil after construction so serialization round-trips keep [].
	AuthorizedPlayerIDs []string `json:"authorizedPlayerIds"`

	// StartTime/EndTime bound a TIMED zone: active while start <= t < end.
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	// RelocationCooldownUntil throttles moves of a RELOCATABLE zone.
	RelocationCooldownUntil *time.Time `json:"relocationCooldownUntil,omitempty"`
}

// ActiveAt reports whether the zone's type and time window permit it at t.
// Game status gating is the caller's concern.
func (z *SafeZone) ActiveAt(t time.Time) bool {
	if z.Type != ZoneTimed {
		return true
	}
	if z.StartTime == nil || z.EndTime == nil {
		return false
	}
	return !t.Before(*z.StartTime) && t.Before(*z.EndTime)
}

// Protects reports whether the zone shields playerID when active.
func (z *SafeZone) Protects(playerID string) bool {
	switch z.Type {
	case ZonePublic, ZoneTimed:
		return true
	case ZonePrivate:
		for _, id := range z.AuthorizedPlayerIDs {
			if id == playerID {
				return true
			}
		}
		return false
	case ZoneRelocatable:
		return z.CreatedBy == playerID
	}
	return false
}
