// Package memstore is an in-memory implementation of store.Store used by
// unit and scenario tests and by dev mode. It mirrors the PostgreSQL
// implementation's semantics, including conditional transactions.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

// Store holds all entities behind one mutex. Writes copy on the way in and
// reads copy on the way out so callers never alias stored state.
type Store struct {
	mu          sync.RWMutex
	games       map[string]*model.Game
	players     map[string]*model.Player
	assignments map[string]*model.TargetAssignment
	kills       map[killKey]*model.Kill
	safezones   map[string]*model.SafeZone
	zoneStates  map[string]*model.GameZoneState
	leases      map[string]time.Time
}

type killKey struct {
	killerID string
	killTime int64 // unix nanos
}

var _ store.Store = (*Store)(nil)

// New returns an empty memory store.
func New() *Store {
	return &Store{
		games:       make(map[string]*model.Game),
		players:     make(map[string]*model.Player),
		assignments: make(map[string]*model.TargetAssignment),
		kills:       make(map[killKey]*model.Kill),
		safezones:   make(map[string]*model.SafeZone),
		zoneStates:  make(map[string]*model.GameZoneState),
		leases:      make(map[string]time.Time),
	}
}

func copyGame(g *model.Game) *model.Game {
	c := *g
	c.Boundary = append([]model.Coordinate(nil), g.Boundary...)
	if g.Settings.ShrinkingZone != nil {
		sz := *g.Settings.ShrinkingZone
		sz.Stages = append([]model.ZoneStage(nil), g.Settings.ShrinkingZone.Stages...)
		c.Settings.ShrinkingZone = &sz
	}
	return &c
}

func copyPlayer(p *model.Player) *model.Player {
	c := *p
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	return &c
}

func copyZone(z *model.SafeZone) *model.SafeZone {
	c := *z
	c.AuthorizedPlayerIDs = append([]string{}, z.AuthorizedPlayerIDs...)
	return &c
}

// GetGame returns the game or nil, nil.
func (s *Store) GetGame(_ context.Context, id string) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, nil
	}
	return copyGame(g), nil
}

// PutGame upserts the game.
func (s *Store) PutGame(_ context.Context, g *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = copyGame(g)
	return nil
}

// DeleteGame removes the game.
func (s *Store) DeleteGame(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
	return nil
}

// ListGamesByStatus returns games in creation order.
func (s *Store) ListGamesByStatus(_ context.Context, status model.GameStatus) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Game
	for _, g := range s.games {
		if g.Status == status {
			out = append(out, copyGame(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetPlayer returns the player or nil, nil.
func (s *Store) GetPlayer(_ context.Context, id string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, nil
	}
	return copyPlayer(p), nil
}

// PutPlayer upserts the player.
func (s *Store) PutPlayer(_ context.Context, p *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = copyPlayer(p)
	return nil
}

// DeletePlayer removes the player.
func (s *Store) DeletePlayer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

// PlayersByGame returns the roster ordered by name.
func (s *Store) PlayersByGame(_ context.Context, gameID string) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Player
	for _, p := range s.players {
		if p.GameID == gameID {
			out = append(out, copyPlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Leaderboard returns players by descending kill count.
func (s *Store) Leaderboard(_ context.Context, status model.PlayerStatus, limit int) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Player
	for _, p := range s.players {
		if p.Status == status {
			out = append(out, copyPlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].KillCount != out[j].KillCount {
			return out[i].KillCount > out[j].KillCount
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PutAssignment upserts the assignment.
func (s *Store) PutAssignment(_ context.Context, a *model.TargetAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *a
	s.assignments[a.ID] = &c
	return nil
}

// ActiveAssignmentsForGame returns the current cycle edges.
func (s *Store) ActiveAssignmentsForGame(_ context.Context, gameID string) ([]*model.TargetAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.TargetAssignment
	for _, a := range s.assignments {
		if a.GameID == gameID && a.Status == model.AssignmentActive {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentDate.Before(out[j].AssignmentDate) })
	return out, nil
}

// AssignmentHistoryForPlayer returns the hunter's assignments newest first.
func (s *Store) AssignmentHistoryForPlayer(_ context.Context, gameID, playerID string) ([]*model.TargetAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.TargetAssignment
	for _, a := range s.assignments {
		if a.GameID == gameID && a.AssignerID == playerID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentDate.After(out[j].AssignmentDate) })
	return out, nil
}

// CurrentAssignmentForPlayer returns the hunter's ACTIVE edge or nil, nil.
func (s *Store) CurrentAssignmentForPlayer(_ context.Context, gameID, playerID string) (*model.TargetAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.GameID == gameID && a.AssignerID == playerID && a.Status == model.AssignmentActive {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

// GetKill returns the kill or nil, nil.
func (s *Store) GetKill(_ context.Context, killerID string, killTime time.Time) (*model.Kill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.kills[killKey{killerID, killTime.UnixNano()}]
	if !ok {
		return nil, nil
	}
	c := *k
	return &c, nil
}

// PutKill upserts the kill.
func (s *Store) PutKill(_ context.Context, k *model.Kill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *k
	s.kills[killKey{k.KillerID, k.KillTime.UnixNano()}] = &c
	return nil
}

// KillsByGame returns kills ordered by time.
func (s *Store) KillsByGame(_ context.Context, gameID string) ([]*model.Kill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Kill
	for _, k := range s.kills {
		if k.GameID == gameID {
			c := *k
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KillTime.Before(out[j].KillTime) })
	return out, nil
}

// CountDeathsByVictim counts VERIFIED kills against the victim.
func (s *Store) CountDeathsByVictim(_ context.Context, victimID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, k := range s.kills {
		if k.VictimID == victimID && k.Status == model.KillVerified {
			n++
		}
	}
	return n, nil
}

// GetSafeZone returns the zone or nil, nil.
func (s *Store) GetSafeZone(_ context.Context, id string) (*model.SafeZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.safezones[id]
	if !ok {
		return nil, nil
	}
	return copyZone(z), nil
}

// PutSafeZone upserts the zone.
func (s *Store) PutSafeZone(_ context.Context, z *model.SafeZone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.safezones[z.ID] = copyZone(z)
	return nil
}

// DeleteSafeZone removes the zone.
func (s *Store) DeleteSafeZone(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.safezones, id)
	return nil
}

// SafeZonesByGame returns a game's zones ordered by name.
func (s *Store) SafeZonesByGame(_ context.Context, gameID string) ([]*model.SafeZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.SafeZone
	for _, z := range s.safezones {
		if z.GameID == gameID {
			out = append(out, copyZone(z))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SafeZonesByOwner returns zones created by ownerID.
func (s *Store) SafeZonesByOwner(_ context.Context, gameID, ownerID string) ([]*model.SafeZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.SafeZone
	for _, z := range s.safezones {
		if z.GameID == gameID && z.CreatedBy == ownerID {
			out = append(out, copyZone(z))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetZoneState returns the zone state or nil, nil.
func (s *Store) GetZoneState(_ context.Context, gameID string) (*model.GameZoneState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zs, ok := s.zoneStates[gameID]
	if !ok {
		return nil, nil
	}
	c := *zs
	return &c, nil
}

// PutZoneState upserts the zone state.
func (s *Store) PutZoneState(_ context.Context, zs *model.GameZoneState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *zs
	s.zoneStates[zs.GameID] = &c
	return nil
}

// AcquireLease takes the lease when free or expired.
func (s *Store) AcquireLease(_ context.Context, key string, ttl time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exp, held := s.leases[key]; held && exp.After(now) {
		return false, nil
	}
	s.leases[key] = now.Add(ttl)
	return true, nil
}

// ReleaseLease frees the lease.
func (s *Store) ReleaseLease(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, key)
	return nil
}
