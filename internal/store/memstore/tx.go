package memstore

import (
	"context"
	"sort"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

// memTx stages writes; they land only if fn succeeds, matching the
// all-or-nothing semantics of the PostgreSQL transaction. Reads overlay the
// staged writes on the store maps, so the callback observes its own writes.
// The store lock is held for the whole transaction; methods must not lock.
type memTx struct {
	s *Store

	games       []*model.Game
	players     []*model.Player
	assignments []*model.TargetAssignment
	kills       []*model.Kill
	zoneStates  []*model.GameZoneState
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) PutGame(_ context.Context, g *model.Game) error {
	t.games = append(t.games, copyGame(g))
	return nil
}

func (t *memTx) PutPlayer(_ context.Context, p *model.Player) error {
	t.players = append(t.players, copyPlayer(p))
	return nil
}

func (t *memTx) PutAssignment(_ context.Context, a *model.TargetAssignment) error {
	c := *a
	t.assignments = append(t.assignments, &c)
	return nil
}

func (t *memTx) PutKill(_ context.Context, k *model.Kill) error {
	c := *k
	t.kills = append(t.kills, &c)
	return nil
}

func (t *memTx) PutZoneState(_ context.Context, zs *model.GameZoneState) error {
	c := *zs
	t.zoneStates = append(t.zoneStates, &c)
	return nil
}

func (t *memTx) GetGame(_ context.Context, id string) (*model.Game, error) {
	for i := len(t.games) - 1; i >= 0; i-- {
		if t.games[i].ID == id {
			return copyGame(t.games[i]), nil
		}
	}
	if g, ok := t.s.games[id]; ok {
		return copyGame(g), nil
	}
	return nil, nil
}

func (t *memTx) GetPlayer(_ context.Context, id string) (*model.Player, error) {
	for i := len(t.players) - 1; i >= 0; i-- {
		if t.players[i].ID == id {
			return copyPlayer(t.players[i]), nil
		}
	}
	if p, ok := t.s.players[id]; ok {
		return copyPlayer(p), nil
	}
	return nil, nil
}

// effectivePlayers is the player map with staged writes applied,
// last write wins.
func (t *memTx) effectivePlayers() map[string]*model.Player {
	merged := make(map[string]*model.Player, len(t.s.players)+len(t.players))
	for id, p := range t.s.players {
		merged[id] = p
	}
	for _, p := range t.players {
		merged[p.ID] = p
	}
	return merged
}

func (t *memTx) effectiveAssignments() map[string]*model.TargetAssignment {
	merged := make(map[string]*model.TargetAssignment, len(t.s.assignments)+len(t.assignments))
	for id, a := range t.s.assignments {
		merged[id] = a
	}
	for _, a := range t.assignments {
		merged[a.ID] = a
	}
	return merged
}

func (t *memTx) PlayersByGame(_ context.Context, gameID string) ([]*model.Player, error) {
	var out []*model.Player
	for _, p := range t.effectivePlayers() {
		if p.GameID == gameID {
			out = append(out, copyPlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) ActiveAssignmentsForGame(_ context.Context, gameID string) ([]*model.TargetAssignment, error) {
	var out []*model.TargetAssignment
	for _, a := range t.effectiveAssignments() {
		if a.GameID == gameID && a.Status == model.AssignmentActive {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentDate.Before(out[j].AssignmentDate) })
	return out, nil
}

func (t *memTx) CurrentAssignmentForPlayer(_ context.Context, gameID, playerID string) (*model.TargetAssignment, error) {
	for _, a := range t.effectiveAssignments() {
		if a.GameID == gameID && a.AssignerID == playerID && a.Status == model.AssignmentActive {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

// Transact checks the game version under the store lock, runs fn against a
// staging buffer, and commits the staged writes with a version bump.
func (s *Store) Transact(ctx context.Context, gameID string, expectedVersion int64, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[gameID]
	if !ok {
		return errs.NotFound("game %s not found", gameID)
	}
	if g.Version != expectedVersion {
		return errs.Conflict(errs.CodeVersionConflict,
			"game %s version changed (expected %d, have %d)", gameID, expectedVersion, g.Version)
	}

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		return err
	}

	for _, w := range tx.games {
		w.Version = g.Version
		s.games[w.ID] = w
	}
	for _, w := range tx.players {
		s.players[w.ID] = w
	}
	for _, w := range tx.assignments {
		s.assignments[w.ID] = w
	}
	for _, w := range tx.kills {
		s.kills[killKey{w.KillerID, w.KillTime.UnixNano()}] = w
	}
	for _, w := range tx.zoneStates {
		s.zoneStates[w.GameID] = w
	}

	// Bump the version on the stored row, whether or not fn rewrote it.
	s.games[gameID].Version = g.Version + 1
	return nil
}
