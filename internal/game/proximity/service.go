// Package proximity derives hunter-to-target distance from location
// updates: kill eligibility, banded alerts with hysteresis, and a short
// lived per-player cache for the API.
package proximity

import (
	"context"
	"sync"
	"time"

	"github.com/antozhu/manhunt/internal/events"
	"github.com/antozhu/manhunt/internal/game/safezone"
	"github.com/antozhu/manhunt/internal/geo"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

const (
	// CacheTTL bounds how long a computed result answers RecentProximity.
	CacheTTL = 30 * time.Second
	// IdleEviction drops per-player state untouched for this long.
	IdleEviction = 5 * time.Minute
	// BandExitHysteresis is how long a player must stay outside a band
	// before crossing it alerts again.
	BandExitHysteresis = 60 * time.Second
)

// Alert bands in meters, widest first. The innermost band is the game's
// weapon distance and is appended per game.
var outerBands = []float64{100, 50}

// Result is one computed hunter-to-target distance.
type Result struct {
	PlayerID        string    `json:"playerId"`
	TargetID        string    `json:"targetId"`
	DistanceM       float64   `json:"distanceMeters"`
	EligibleForKill bool      `json:"eligibleForKill"`
	ComputedAt      time.Time `json:"computedAt"`
}

// bandState arms and disarms one alert band for one player.
type bandState struct {
	inside bool
	leftAt time.Time
}

type entry struct {
	mu      sync.Mutex
	result  Result
	hasRes  bool
	bands   map[float64]*bandState
	touched time.Time
}

// Service computes proximity per location update. State is per-process;
// a fine-grained mutex per player key keeps updates for different players
// concurrent.
type Service struct {
	store store.Store
	zones *safezone.Service
	hub   *events.Hub

	mu      sync.Mutex
	entries map[string]*entry
}

// NewService returns a Service publishing alerts to hub.
func NewService(st store.Store, zones *safezone.Service, hub *events.Hub) *Service {
	return &Service{
		store:   st,
		zones:   zones,
		hub:     hub,
		entries: make(map[string]*entry),
	}
}

func (s *Service) entryFor(playerID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[playerID]
	if !ok {
		e = &entry{bands: make(map[float64]*bandState)}
		s.entries[playerID] = e
	}
	return e
}

// OnLocationUpdate recomputes proximity for player after a location change.
// Returns nil when the player has no target or the target has no location.
func (s *Service) OnLocationUpdate(ctx context.Context, player *model.Player, now time.Time) (*Result, error) {
	if player.TargetID == "" || player.Location == nil {
		return nil, nil
	}
	game, err := s.store.GetGame(ctx, player.GameID)
	if err != nil {
		return nil, err
	}
	if game == nil || game.Status != model.GameActive {
		return nil, nil
	}
	target, err := s.store.GetPlayer(ctx, player.TargetID)
	if err != nil {
		return nil, err
	}
	if target == nil || target.Location == nil {
		return nil, nil
	}

	d := geo.HaversineMeters(*player.Location, *target.Location)
	weapon := game.Settings.WeaponDistance()

	eligible := false
	if d <= weapon && !game.Paused() {
		playerSafe, err := s.zones.IsPointSafe(ctx, game.ID, player.ID, *player.Location, now)
		if err != nil {
			return nil, err
		}
		targetSafe, err := s.zones.IsPointSafe(ctx, game.ID, target.ID, *target.Location, now)
		if err != nil {
			return nil, err
		}
		eligible = !playerSafe && !targetSafe
	}

	res := Result{
		PlayerID:        player.ID,
		TargetID:        target.ID,
		DistanceM:       d,
		EligibleForKill: eligible,
		ComputedAt:      now,
	}

	e := s.entryFor(player.ID)
	e.mu.Lock()
	e.result = res
	e.hasRes = true
	e.touched = now
	if !game.Paused() {
		s.updateBands(e, game.ID, player.ID, target.ID, d, weapon, now)
	}
	e.mu.Unlock()

	return &res, nil
}

// updateBands fires one alert per band crossing. A band re-arms only
// after the player has been outside it for BandExitHysteresis.
// Caller holds e.mu.
func (s *Service) updateBands(e *entry, gameID, playerID, targetID string, d, weapon float64, now time.Time) {
	bands := append(append([]float64{}, outerBands...), weapon)
	for _, b := range bands {
		st, ok := e.bands[b]
		if !ok {
			st = &bandState{}
			e.bands[b] = st
		}
		switch {
		case d <= b && !st.inside:
			st.inside = true
			if st.leftAt.IsZero() || now.Sub(st.leftAt) >= BandExitHysteresis {
				s.hub.Publish(events.Event{
					Type:     events.TypeProximityAlert,
					GameID:   gameID,
					PlayerID: playerID,
					At:       now,
					Payload: map[string]any{
						"targetId":       targetID,
						"bandMeters":     b,
						"distanceMeters": d,
					},
				})
			}
		case d > b && st.inside:
			st.inside = false
			st.leftAt = now
		}
	}
}

// RecentProximity returns the cached result for playerID when it is
// younger than CacheTTL.
func (s *Service) RecentProximity(playerID string, now time.Time) (Result, bool) {
	s.mu.Lock()
	e, ok := s.entries[playerID]
	s.mu.Unlock()
	if !ok {
		return Result{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasRes || now.Sub(e.result.ComputedAt) > CacheTTL {
		return Result{}, false
	}
	return e.result, true
}

// EvictStale drops per-player state idle for longer than IdleEviction.
// Called from the scheduler tick.
func (s *Service) EvictStale(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.entries {
		e.mu.Lock()
		idle := now.Sub(e.touched) > IdleEviction
		e.mu.Unlock()
		if idle {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}

// Forget drops a single player's state, used when a player dies or leaves.
func (s *Service) Forget(playerID string) {
	s.mu.Lock()
	delete(s.entries, playerID)
	s.mu.Unlock()
}
