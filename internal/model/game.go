package model

import (
	"fmt"
	"time"
)

// GameStatus is the lifecycle state of a game.
type GameStatus string

const (
	GamePending   GameStatus = "PENDING"
	GameActive    GameStatus = "ACTIVE"
	GameCompleted GameStatus = "COMPLETED"
	GameCancelled GameStatus = "CANCELLED"
)

// AssignmentStrategy selects how the elimination cycle is built on game start.
type AssignmentStrategy string

const (
	StrategyCircular AssignmentStrategy = "CIRCULAR"
	StrategyRandom   AssignmentStrategy = "RANDOM"
)

// CenterPolicy controls where the shrinking zone moves between stages.
type CenterPolicy string

const (
	CenterKeep                 CenterPolicy = "KEEP"
	CenterRandomWithinPrevious CenterPolicy = "RANDOM_WITHIN_PREVIOUS"
	CenterFixed                CenterPolicy = "FIXED"
)

// ZoneStage is one step of the shrinking-zone schedule.
type ZoneStage struct {
	WaitSec         int          `json:"waitSec"`
	ShrinkSec       int          `json:"shrinkSec"`
	HoldSec         int          `json:"holdSec"`
	TargetRadiusM   float64      `json:"targetRadiusMeters"`
	NewCenterPolicy CenterPolicy `json:"newCenterPolicy"`
	FixedCenter     *Coordinate  `json:"fixedCenter,omitempty"`
}

// ShrinkingZoneConfig configures the optional shrinking zone for a game.
type ShrinkingZoneConfig struct {
	InitialCenter         Coordinate  `json:"initialCenter"`
	InitialRadiusM        float64     `json:"initialRadiusMeters"`
	DamagePerTickPerMeter float64     `json:"damagePerTickPerMeterOutside"`
	MaxDamagePerTick      float64     `json:"maxDamagePerTick"`
	Stages                []ZoneStage `json:"stages"`
}

// Validate checks stage durations and radii are sane.
func (c *ShrinkingZoneConfig) Validate() error {
	if len(c.Stages) == 0 {
		return fmt.Errorf("shrinking zone config has no stages")
	}
	if c.InitialRadiusM <= 0 {
		return fmt.Errorf("initial radius must be positive, got %f", c.InitialRadiusM)
	}
	if err := c.InitialCenter.Validate(); err != nil {
		return fmt.Errorf("initial center: %w", err)
	}
	prev := c.InitialRadiusM
	for i, st := range c.Stages {
		if st.WaitSec < 0 || st.ShrinkSec <= 0 || st.HoldSec < 0 {
			return fmt.Errorf("stage %d has invalid durations", i)
		}
		if st.TargetRadiusM <= 0 || st.TargetRadiusM >= prev {
			return fmt.Errorf("stage %d target radius %f must be in (0, %f)", i, st.TargetRadiusM, prev)
		}
		if st.NewCenterPolicy == CenterFixed && st.FixedCenter == nil {
			return fmt.Errorf("stage %d uses FIXED center policy without a center", i)
		}
		prev = st.TargetRadiusM
	}
	return nil
}

// GameSettings holds per-game tunables. Zero values fall back to defaults
// via the accessor methods.
type GameSettings struct {
	WeaponDistanceM    float64              `json:"weaponDistanceMeters,omitempty"`
	PlayerHealth       float64              `json:"playerHealth,omitempty"`
	AssignmentStrategy AssignmentStrategy   `json:"assignmentStrategy,omitempty"`
	ShrinkingZone      *ShrinkingZoneConfig `json:"shrinkingZoneConfig,omitempty"`
}

const (
	// DefaultWeaponDistanceM is the maximum kill range when a game does not override it.
	DefaultWeaponDistanceM = 10.0
	// DefaultPlayerHealth is the damage pool a player has against the shrinking zone.
	DefaultPlayerHealth = 100.0
)

// WeaponDistance returns the configured kill range or the default.
func (s GameSettings) WeaponDistance() float64 {
	if s.WeaponDistanceM > 0 {
		return s.WeaponDistanceM
	}
	return DefaultWeaponDistanceM
}

// Health returns the configured player health or the default.
func (s GameSettings) Health() float64 {
	if s.PlayerHealth > 0 {
		return s.PlayerHealth
	}
	return DefaultPlayerHealth
}

// Strategy returns the configured assignment strategy or CIRCULAR.
func (s GameSettings) Strategy() AssignmentStrategy {
	if s.AssignmentStrategy != "" {
		return s.AssignmentStrategy
	}
	return StrategyCircular
}

// EmergencyPause freezes gameplay actions without changing game status.
type EmergencyPause struct {
	Active      bool       `json:"active"`
	Reason      string     `json:"reason,omitempty"`
	TriggeredBy string     `json:"triggeredBy,omitempty"`
	At          *time.Time `json:"at,omitempty"`
}

// Game is a single elimination match.
type Game struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Status         GameStatus     `json:"status"`
	AdminPlayerID  string         `json:"adminPlayerId"`
	CreatedAt      time.Time      `json:"createdAt"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	EndedAt        *time.Time     `json:"endedAt,omitempty"`
	Boundary       []Coordinate   `json:"boundary,omitempty"`
	Settings       GameSettings   `json:"settings"`
	EmergencyPause EmergencyPause `json:"emergencyPause"`
	MapID          string         `json:"mapId,omitempty"`
	WinnerID       string         `json:"winnerId,omitempty"`

	// Version is the optimistic-concurrency attribute; bumped on every
	// conditional transaction touching this game.
	Version int64 `json:"-"`
}

// Paused reports whether gameplay actions are frozen by an emergency pause.
func (g *Game) Paused() bool {
	return g.EmergencyPause.Active
}
