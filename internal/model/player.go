package model

import "time"

// PlayerStatus is a player's participation state.
type PlayerStatus string

const (
	PlayerInvited   PlayerStatus = "INVITED"
	PlayerActive    PlayerStatus = "ACTIVE"
	PlayerDead      PlayerStatus = "DEAD"
	PlayerSpectator PlayerStatus = "SPECTATOR"
)

// LocationVisibility controls who may see a player's position.
type LocationVisibility string

const (
	VisibilityGameOnly    LocationVisibility = "GAME_ONLY"
	VisibilityTeamOnly    LocationVisibility = "TEAM_ONLY"
	VisibilityFriendsOnly LocationVisibility = "FRIENDS_ONLY"
	VisibilityPrivate     LocationVisibility = "PRIVATE"
)

// LocationPrecision controls how precisely a position is shared.
type LocationPrecision string

const (
	PrecisionExact       LocationPrecision = "EXACT"
	PrecisionApproximate LocationPrecision = "APPROXIMATE"
	PrecisionZone        LocationPrecision = "ZONE"
)

// Player is a participant. A player is ACTIVE in at most one game at a time;
// DEAD players keep their gameId but never a target.
type Player struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Email      string       `json:"email,omitempty"`
	Status     PlayerStatus `json:"status"`
	GameID     string       `json:"gameId,omitempty"`
	TargetID   string       `json:"targetId,omitempty"`
	TargetName string       `json:"targetName,omitempty"`
	KillCount  int          `json:"killCount"`

	// Health is the remaining damage pool against the shrinking zone.
	// Reset to the game's player health on start.
	Health float64 `json:"health"`

	Location          *Coordinate `json:"location,omitempty"`
	AccuracyM         *float64    `json:"accuracy,omitempty"`
	LocationTimestamp *time.Time  `json:"locationTimestamp,omitempty"`

	LocationSharingEnabled     bool               `json:"locationSharingEnabled"`
	LocationVisibility         LocationVisibility `json:"locationVisibility,omitempty"`
	LocationPrecision          LocationPrecision  `json:"locationPrecision,omitempty"`
	LocationPauseCooldownUntil *time.Time         `json:"locationPauseCooldownUntil,omitempty"`
}

// HasRecentLocation reports whether the player's last sample is no older
// than maxAge relative to now.
func (p *Player) HasRecentLocation(now time.Time, maxAge time.Duration) bool {
	if p.Location == nil || p.LocationTimestamp == nil {
		return false
	}
	return now.Sub(*p.LocationTimestamp) <= maxAge
}
