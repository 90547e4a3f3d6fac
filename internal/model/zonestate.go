package model

import "time"

// ZonePhase is the current phase of the shrinking zone.
type ZonePhase string

const (
	PhaseWaiting   ZonePhase = "WAITING"
	PhaseShrinking ZonePhase = "SHRINKING"
	PhaseHolding   ZonePhase = "HOLDING"
	PhaseFinal     ZonePhase = "FINAL"
)

// GameZoneState is the singleton shrinking-zone state for one game,
// created on the first ACTIVE tick.
type GameZoneState struct {
	GameID            string     `json:"gameId"`
	CurrentStageIndex int        `json:"currentStageIndex"`
	CurrentPhase      ZonePhase  `json:"currentPhase"`
	CurrentCenter     Coordinate `json:"currentCenter"`
	CurrentRadiusM    float64    `json:"currentRadiusMeters"`
	NextRadiusM       *float64   `json:"nextRadiusMeters,omitempty"`
	PhaseEndTime      time.Time  `json:"phaseEndTime"`
	LastUpdated       time.Time  `json:"lastUpdated"`
}

// Equal reports whether two states describe the same zone snapshot,
// ignoring LastUpdated. Used to keep advance idempotent writes-wise.
func (s *GameZoneState) Equal(o *GameZoneState) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.GameID != o.GameID ||
		s.CurrentStageIndex != o.CurrentStageIndex ||
		s.CurrentPhase != o.CurrentPhase ||
		s.CurrentCenter != o.CurrentCenter ||
		s.CurrentRadiusM != o.CurrentRadiusM ||
		!s.PhaseEndTime.Equal(o.PhaseEndTime) {
		return false
	}
	if (s.NextRadiusM == nil) != (o.NextRadiusM == nil) {
		return false
	}
	if s.NextRadiusM != nil && *s.NextRadiusM != *o.NextRadiusM {
		return false
	}
	return true
}
