// Package assign builds and maintains the elimination cycle: the single
// directed ring of ACTIVE hunter→target edges covering all ACTIVE players.
package assign

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

// Engine creates and repairs target assignments.
type Engine struct {
	store store.Store
}

// NewEngine returns an Engine backed by the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// Seed derives the deterministic shuffle seed from gameID and start time,
// so replays are reproducible in tests.
func Seed(gameID string, startedAt time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(gameID))
	return int64(h.Sum64()) ^ startedAt.UnixMilli()
}

// secureSeed mixes fresh entropy into RANDOM strategy rings so they cannot
// be reproduced from public game attributes.
func secureSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// BuildCycle writes the initial cycle over players through tx. Order is a
// seeded shuffle; each player hunts the next, the last hunts the first.
// CIRCULAR seeds from gameId and start time so replays are reproducible;
// RANDOM additionally mixes in entropy per build.
func (e *Engine) BuildCycle(ctx context.Context, tx store.Tx, game *model.Game, players []*model.Player, now time.Time) error {
	if len(players) < 2 {
		return errs.Validation("TOO_FEW_PLAYERS", "cycle needs at least 2 players, got %d", len(players))
	}

	startedAt := now
	if game.StartedAt != nil {
		startedAt = *game.StartedAt
	}
	seed := Seed(game.ID, startedAt)
	if game.Settings.Strategy() == model.StrategyRandom {
		seed ^= secureSeed()
	}
	rng := rand.New(rand.NewSource(seed))

	order := make([]*model.Player, len(players))
	copy(order, players)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for i, hunter := range order {
		target := order[(i+1)%len(order)]
		a := &model.TargetAssignment{
			ID:             uuid.NewString(),
			GameID:         game.ID,
			AssignerID:     hunter.ID,
			TargetID:       target.ID,
			Status:         model.AssignmentActive,
			AssignmentDate: now,
		}
		if err := tx.PutAssignment(ctx, a); err != nil {
			return err
		}
		hunter.TargetID = target.ID
		hunter.TargetName = target.Name
		if err := tx.PutPlayer(ctx, hunter); err != nil {
			return err
		}
	}
	return nil
}

// Reassignment is the outcome of closing the ring after an elimination.
type Reassignment struct {
	// NewTargetID is the killer's next prey, empty when the game ended.
	NewTargetID string
	// WinnerID is set when the killer is the last player standing.
	WinnerID string
}

// Reassign closes the ring after killer eliminated victim: the victim's
// outgoing edge is cancelled, the killer's completed, and a new edge
// killer→(victim's old target) written. When that target is the killer
// the game is over and WinnerID is set instead.
//
// Reads and writes both go through tx, so the repair sees edges staged
// earlier in the same transaction and commits with the rest of the kill
// application.
func (e *Engine) Reassign(ctx context.Context, tx store.Tx, gameID string, killer, victim *model.Player, now time.Time) (Reassignment, error) {
	victimEdge, err := tx.CurrentAssignmentForPlayer(ctx, gameID, victim.ID)
	if err != nil {
		return Reassignment{}, err
	}
	killerEdge, err := tx.CurrentAssignmentForPlayer(ctx, gameID, killer.ID)
	if err != nil {
		return Reassignment{}, err
	}

	if killerEdge != nil {
		killerEdge.Status = model.AssignmentCompleted
		killerEdge.CompletedDate = &now
		if err := tx.PutAssignment(ctx, killerEdge); err != nil {
			return Reassignment{}, err
		}
	}
	if victimEdge != nil {
		victimEdge.Status = model.AssignmentCancelled
		victimEdge.CompletedDate = &now
		if err := tx.PutAssignment(ctx, victimEdge); err != nil {
			return Reassignment{}, err
		}
	}

	if victimEdge == nil {
		// The cycle invariant should make this unreachable; repair rather
		// than guess a single edge.
		return e.rebuild(ctx, tx, gameID, killer, victim, now)
	}

	next := victimEdge.TargetID
	if next == killer.ID {
		killer.TargetID = ""
		killer.TargetName = ""
		if err := tx.PutPlayer(ctx, killer); err != nil {
			return Reassignment{}, err
		}
		return Reassignment{WinnerID: killer.ID}, nil
	}

	nextPlayer, err := tx.GetPlayer(ctx, next)
	if err != nil {
		return Reassignment{}, err
	}
	if nextPlayer == nil {
		return Reassignment{}, errs.NotFound("player %s (victim's target) not found", next)
	}

	a := &model.TargetAssignment{
		ID:             uuid.NewString(),
		GameID:         gameID,
		AssignerID:     killer.ID,
		TargetID:       next,
		Status:         model.AssignmentActive,
		AssignmentDate: now,
	}
	if err := tx.PutAssignment(ctx, a); err != nil {
		return Reassignment{}, err
	}
	killer.TargetID = next
	killer.TargetName = nextPlayer.Name
	if err := tx.PutPlayer(ctx, killer); err != nil {
		return Reassignment{}, err
	}
	return Reassignment{NewTargetID: next}, nil
}

// RemoveFromCycle takes victim out of the ring after a death with no
// killer, such as zone damage. Both edges touching the victim are
// cancelled and the victim's hunter is rewired to the victim's old
// target. When hunter and old target coincide the hunter wins.
func (e *Engine) RemoveFromCycle(ctx context.Context, tx store.Tx, gameID string, victim *model.Player, now time.Time) (Reassignment, error) {
	victimEdge, err := tx.CurrentAssignmentForPlayer(ctx, gameID, victim.ID)
	if err != nil {
		return Reassignment{}, err
	}

	edges, err := tx.ActiveAssignmentsForGame(ctx, gameID)
	if err != nil {
		return Reassignment{}, err
	}
	var hunterEdge *model.TargetAssignment
	for _, a := range edges {
		if a.TargetID == victim.ID {
			hunterEdge = a
			break
		}
	}

	if victimEdge != nil {
		victimEdge.Status = model.AssignmentCancelled
		victimEdge.CompletedDate = &now
		if err := tx.PutAssignment(ctx, victimEdge); err != nil {
			return Reassignment{}, err
		}
	}
	if hunterEdge == nil || victimEdge == nil {
		return Reassignment{}, nil
	}

	hunterEdge.Status = model.AssignmentCancelled
	hunterEdge.CompletedDate = &now
	if err := tx.PutAssignment(ctx, hunterEdge); err != nil {
		return Reassignment{}, err
	}

	hunter, err := tx.GetPlayer(ctx, hunterEdge.AssignerID)
	if err != nil {
		return Reassignment{}, err
	}
	if hunter == nil {
		return Reassignment{}, errs.NotFound("player %s (victim's hunter) not found", hunterEdge.AssignerID)
	}

	next := victimEdge.TargetID
	if next == hunter.ID {
		hunter.TargetID = ""
		hunter.TargetName = ""
		if err := tx.PutPlayer(ctx, hunter); err != nil {
			return Reassignment{}, err
		}
		return Reassignment{WinnerID: hunter.ID}, nil
	}

	nextPlayer, err := tx.GetPlayer(ctx, next)
	if err != nil {
		return Reassignment{}, err
	}
	if nextPlayer == nil {
		return Reassignment{}, errs.NotFound("player %s (victim's target) not found", next)
	}

	a := &model.TargetAssignment{
		ID:             uuid.NewString(),
		GameID:         gameID,
		AssignerID:     hunter.ID,
		TargetID:       next,
		Status:         model.AssignmentActive,
		AssignmentDate: now,
	}
	if err := tx.PutAssignment(ctx, a); err != nil {
		return Reassignment{}, err
	}
	hunter.TargetID = next
	hunter.TargetName = nextPlayer.Name
	if err := tx.PutPlayer(ctx, hunter); err != nil {
		return Reassignment{}, err
	}
	return Reassignment{NewTargetID: next}, nil
}

// rebuild reconstructs the whole cycle from the surviving ACTIVE players.
// The caller's killer carries uncommitted state (kill count); it replaces
// the stored row in the rebuilt ring so BuildCycle persists it.
func (e *Engine) rebuild(ctx context.Context, tx store.Tx, gameID string, killer, victim *model.Player, now time.Time) (Reassignment, error) {
	// The old ring is unsalvageable; cancel every surviving edge before
	// laying down the new one.
	edges, err := tx.ActiveAssignmentsForGame(ctx, gameID)
	if err != nil {
		return Reassignment{}, err
	}
	for _, a := range edges {
		a.Status = model.AssignmentCancelled
		a.CompletedDate = &now
		if err := tx.PutAssignment(ctx, a); err != nil {
			return Reassignment{}, err
		}
	}

	players, err := tx.PlayersByGame(ctx, gameID)
	if err != nil {
		return Reassignment{}, err
	}
	var alive []*model.Player
	for _, p := range players {
		if p.Status != model.PlayerActive || p.ID == victim.ID {
			continue
		}
		if p.ID == killer.ID {
			p = killer
		}
		alive = append(alive, p)
	}
	if len(alive) <= 1 {
		killer.TargetID = ""
		killer.TargetName = ""
		if err := tx.PutPlayer(ctx, killer); err != nil {
			return Reassignment{}, err
		}
		return Reassignment{WinnerID: killer.ID}, nil
	}

	game, err := tx.GetGame(ctx, gameID)
	if err != nil {
		return Reassignment{}, err
	}
	if game == nil {
		return Reassignment{}, errs.NotFound("game %s not found", gameID)
	}
	if err := e.BuildCycle(ctx, tx, game, alive, now); err != nil {
		return Reassignment{}, err
	}
	return Reassignment{NewTargetID: killer.TargetID}, nil
}

// VerifyCycle checks that the ACTIVE assignments of a game form exactly one
// cycle covering all ACTIVE players. Used by tests and admin diagnostics.
func (e *Engine) VerifyCycle(ctx context.Context, gameID string) error {
	players, err := e.store.PlayersByGame(ctx, gameID)
	if err != nil {
		return err
	}
	active := make(map[string]bool)
	for _, p := range players {
		if p.Status == model.PlayerActive {
			active[p.ID] = true
		}
	}
	edges, err := e.store.ActiveAssignmentsForGame(ctx, gameID)
	if err != nil {
		return err
	}
	if len(edges) != len(active) {
		return errs.Conflict("BROKEN_CYCLE",
			"game %s has %d active edges for %d active players", gameID, len(edges), len(active))
	}
	next := make(map[string]string, len(edges))
	for _, a := range edges {
		if !active[a.AssignerID] || !active[a.TargetID] {
			return errs.Conflict("BROKEN_CYCLE",
				"edge %s→%s references a non-active player", a.AssignerID, a.TargetID)
		}
		if _, dup := next[a.AssignerID]; dup {
			return errs.Conflict("BROKEN_CYCLE", "player %s has two active edges", a.AssignerID)
		}
		next[a.AssignerID] = a.TargetID
	}
	if len(next) == 0 {
		return nil
	}
	// Walk the ring: the first return to start must take exactly len(next)
	// hops, otherwise the edges split into multiple cycles.
	var start string
	for id := range next {
		start = id
		break
	}
	steps := 0
	cur := start
	for {
		cur = next[cur]
		steps++
		if cur == start || steps > len(next) {
			break
		}
	}
	if steps != len(next) {
		return errs.Conflict("BROKEN_CYCLE", "active edges of game %s do not form one cycle", gameID)
	}
	return nil
}
