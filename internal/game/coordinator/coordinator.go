// Package coordinator owns the game lifecycle: creation, membership,
// boundary management, start, pause, and termination. All multi-entity
// transitions run through conditional store transactions.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/events"
	"github.com/antozhu/manhunt/internal/game/anticheat"
	"github.com/antozhu/manhunt/internal/game/assign"
	"github.com/antozhu/manhunt/internal/game/proximity"
	"github.com/antozhu/manhunt/internal/geo"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

// Coordinator drives game lifecycle transitions.
type Coordinator struct {
	store  store.Store
	assign *assign.Engine
	cheat  *anticheat.Validator
	prox   *proximity.Service
	hub    *events.Hub
	log    *slog.Logger
}

// New wires a Coordinator.
func New(st store.Store, eng *assign.Engine, cheat *anticheat.Validator, prox *proximity.Service, hub *events.Hub, log *slog.Logger) *Coordinator {
	return &Coordinator{store: st, assign: eng, cheat: cheat, prox: prox, hub: hub, log: log}
}

// CreateGame registers a PENDING game owned by adminID.
func (c *Coordinator) CreateGame(ctx context.Context, name, adminID string, settings model.GameSettings, now time.Time) (*model.Game, error) {
	if name == "" {
		return nil, errs.Validation("MISSING_NAME", "game name is required")
	}
	if adminID == "" {
		return nil, errs.Validation("MISSING_ADMIN", "admin player id is required")
	}
	if zc := settings.ShrinkingZone; zc != nil {
		if err := zc.Validate(); err != nil {
			return nil, errs.Validation("INVALID_ZONE_CONFIG", "%v", err)
		}
	}
	g := &model.Game{
		ID:            uuid.NewString(),
		Name:          name,
		Status:        model.GamePending,
		AdminPlayerID: adminID,
		CreatedAt:     now,
		Settings:      settings,
	}
	if err := c.store.PutGame(ctx, g); err != nil {
		return nil, err
	}
	c.log.Info("game created", "game_id", g.ID, "admin", adminID)
	return g, nil
}

// Get returns a game or NotFound.
func (c *Coordinator) Get(ctx context.Context, id string) (*model.Game, error) {
	g, err := c.store.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errs.NotFound("game %s not found", id)
	}
	return g, nil
}

// List returns games filtered by status; all when status is empty.
func (c *Coordinator) List(ctx context.Context, status model.GameStatus) ([]*model.Game, error) {
	return c.store.ListGamesByStatus(ctx, status)
}

// JoinGame adds a player to a PENDING game. A player is in at most one
// unfinished game at a time.
func (c *Coordinator) JoinGame(ctx context.Context, gameID, playerID, playerName string) (*model.Player, error) {
	g, err := c.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.Status != model.GamePending {
		return nil, errs.Conflict(errs.CodeWrongStatus, "game %s is %s, join requires PENDING", gameID, g.Status)
	}

	p, err := c.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		// Sharing defaults on; players opt out through the privacy patch.
		p = &model.Player{ID: playerID, Name: playerName, LocationSharingEnabled: true}
	}
	if p.GameID != "" && p.GameID != gameID {
		other, err := c.store.GetGame(ctx, p.GameID)
		if err != nil {
			return nil, err
		}
		if other != nil && (other.Status == model.GamePending || other.Status == model.GameActive) {
			return nil, errs.Conflict(errs.CodeWrongStatus, "player %s is already in game %s", playerID, p.GameID)
		}
	}
	if playerName != "" {
		p.Name = playerName
	}
	p.GameID = gameID
	p.Status = model.PlayerActive
	p.TargetID = ""
	p.TargetName = ""
	p.KillCount = 0
	if err := c.store.PutPlayer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LeaveGame removes a player. In a PENDING game the membership is simply
// dropped; in an ACTIVE game the player becomes SPECTATOR and the cycle is
// repaired, completing the game when one hunter remains.
func (c *Coordinator) LeaveGame(ctx context.Context, gameID, playerID string, now time.Time) error {
	g, err := c.Get(ctx, gameID)
	if err != nil {
		return err
	}
	p, err := c.store.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	if p == nil || p.GameID != gameID {
		return errs.NotFound("player %s is not in game %s", playerID, gameID)
	}

	switch g.Status {
	case model.GamePending:
		p.GameID = ""
		p.Status = model.PlayerInvited
		return c.store.PutPlayer(ctx, p)
	case model.GameActive:
		wasActive := p.Status == model.PlayerActive
		return c.store.Transact(ctx, gameID, g.Version, func(tx store.Tx) error {
			p.Status = model.PlayerSpectator
			p.TargetID = ""
			p.TargetName = ""
			if err := tx.PutPlayer(ctx, p); err != nil {
				return err
			}
			if !wasActive {
				return nil
			}
			res, err := c.assign.RemoveFromCycle(ctx, tx, gameID, p, now)
			if err != nil {
				return err
			}
			if res.WinnerID != "" {
				return c.complete(ctx, tx, g, res.WinnerID, now)
			}
			return nil
		})
	default:
		return errs.Conflict(errs.CodeWrongStatus, "game %s is %s", gameID, g.Status)
	}
}

// UpdateBoundary replaces the game polygon. Admin only; on an ACTIVE game
// every player with a known location must already be inside the new polygon.
func (c *Coordinator) UpdateBoundary(ctx context.Context, gameID string, poly []model.Coordinate, requesterID string) (*model.Game, error) {
	g, err := c.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.AdminPlayerID != requesterID {
		return nil, errs.Unauthorized(errs.CodeNotAdmin, "only the admin updates the boundary")
	}
	boundary, err := geo.NewBoundary(poly)
	if err != nil {
		return nil, err
	}

	if g.Status == model.GameActive {
		players, err := c.store.PlayersByGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		for _, p := range players {
			if p.Status != model.PlayerActive || p.Location == nil {
				continue
			}
			if !boundary.Contains(*p.Location) {
				return nil, errs.Validation("PLAYER_OUTSIDE_BOUNDARY",
					"player %s is outside the new boundary", p.ID)
			}
		}
	}

	g.Boundary = poly
	if err := c.store.PutGame(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// StartGame moves PENDING to ACTIVE: needs a valid boundary and at least
// two ACTIVE players; resets health and builds the elimination cycle.
func (c *Coordinator) StartGame(ctx context.Context, gameID, requesterID string, now time.Time) (*model.Game, error) {
	g, err := c.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.AdminPlayerID != requesterID {
		return nil, errs.Unauthorized(errs.CodeNotAdmin, "only the admin starts the game")
	}
	if g.Status != model.GamePending {
		return nil, errs.Conflict(errs.CodeWrongStatus, "game %s is %s, start requires PENDING", gameID, g.Status)
	}
	if _, err := geo.NewBoundary(g.Boundary); err != nil {
		return nil, errs.Validation("MISSING_BOUNDARY", "game %s has no valid boundary", gameID)
	}

	players, err := c.store.PlayersByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var active []*model.Player
	for _, p := range players {
		if p.Status == model.PlayerActive {
			active = append(active, p)
		}
	}
	if len(active) < 2 {
		return nil, errs.Validation("TOO_FEW_PLAYERS", "start requires at least 2 players, got %d", len(active))
	}

	err = c.store.Transact(ctx, gameID, g.Version, func(tx store.Tx) error {
		g.Status = model.GameActive
		started := now
		g.StartedAt = &started
		if err := tx.PutGame(ctx, g); err != nil {
			return err
		}
		for _, p := range active {
			p.Health = g.Settings.Health()
		}
		return c.assign.BuildCycle(ctx, tx, g, active, now)
	})
	if err != nil {
		return nil, err
	}

	c.hub.Publish(events.Event{Type: events.TypeGameStarted, GameID: gameID, At: now})
	c.log.Info("game started", "game_id", gameID, "players", len(active))
	return g, nil
}

// ForceEndGame terminates an unfinished game without a winner. Admin only.
func (c *Coordinator) ForceEndGame(ctx context.Context, gameID, requesterID string, now time.Time) (*model.Game, error) {
	g, err := c.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.AdminPlayerID != requesterID {
		return nil, errs.Unauthorized(errs.CodeNotAdmin, "only the admin ends the game")
	}
	switch g.Status {
	case model.GameCompleted, model.GameCancelled:
		return nil, errs.Conflict(errs.CodeWrongStatus, "game %s already ended", gameID)
	}

	err = c.store.Transact(ctx, gameID, g.Version, func(tx store.Tx) error {
		if g.Status == model.GamePending {
			g.Status = model.GameCancelled
		} else {
			g.Status = model.GameCompleted
		}
		ended := now
		g.EndedAt = &ended
		return tx.PutGame(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	c.hub.Publish(events.Event{Type: events.TypeGameCompleted, GameID: gameID, At: now})
	return g, nil
}

// CancelGame deletes a PENDING game. Admin only.
func (c *Coordinator) CancelGame(ctx context.Context, gameID, requesterID string) error {
	g, err := c.Get(ctx, gameID)
	if err != nil {
		return err
	}
	if g.AdminPlayerID != requesterID {
		return errs.Unauthorized(errs.CodeNotAdmin, "only the admin cancels the game")
	}
	if g.Status != model.GamePending {
		return errs.Conflict(errs.CodeWrongStatus, "game %s is %s, cancel requires PENDING", gameID, g.Status)
	}
	return c.store.DeleteGame(ctx, gameID)
}

// EmergencyPause freezes gameplay without changing status. Admin only.
func (c *Coordinator) EmergencyPause(ctx context.Context, gameID, reason, requesterID string, now time.Time) (*model.Game, error) {
	g, err := c.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.AdminPlayerID != requesterID {
		return nil, errs.Unauthorized(errs.CodeNotAdmin, "only the admin pauses the game")
	}
	if g.Status != model.GameActive {
		return nil, errs.Conflict(errs.CodeWrongStatus, "game %s is %s", gameID, g.Status)
	}
	if g.Paused() {
		return nil, errs.Conflict(errs.CodeEmergencyPaused, "game %s is already paused", gameID)
	}

	at := now
	g.EmergencyPause = model.EmergencyPause{Active: true, Reason: reason, TriggeredBy: requesterID, At: &at}
	err = c.store.Transact(ctx, gameID, g.Version, func(tx store.Tx) error {
		return tx.PutGame(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	c.hub.Publish(events.Event{Type: events.TypeGamePaused, GameID: gameID, At: now,
		Payload: map[string]any{"reason": reason}})
	c.log.Warn("game paused", "game_id", gameID, "reason", reason)
	return g, nil
}

// EmergencyResume lifts an emergency pause. Admin only.
func (c *Coordinator) EmergencyResume(ctx context.Context, gameID, requesterID string, now time.Time) (*model.Game, error) {
	g, err := c.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.AdminPlayerID != requesterID {
		return nil, errs.Unauthorized(errs.CodeNotAdmin, "only the admin resumes the game")
	}
	if !g.Paused() {
		return nil, errs.Conflict(errs.CodeWrongStatus, "game %s is not paused", gameID)
	}

	g.EmergencyPause = model.EmergencyPause{}
	err = c.store.Transact(ctx, gameID, g.Version, func(tx store.Tx) error {
		return tx.PutGame(ctx, g)
	})
	if err != nil {
		return nil, err
	}
	c.hub.Publish(events.Event{Type: events.TypeGameResumed, GameID: gameID, At: now})
	return g, nil
}

// Roster returns the game's players.
func (c *Coordinator) Roster(ctx context.Context, gameID string) ([]*model.Player, error) {
	if _, err := c.Get(ctx, gameID); err != nil {
		return nil, err
	}
	return c.store.PlayersByGame(ctx, gameID)
}

// ActiveAssignments returns the live cycle. Admin only.
func (c *Coordinator) ActiveAssignments(ctx context.Context, gameID, requesterID string) ([]*model.TargetAssignment, error) {
	g, err := c.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.AdminPlayerID != requesterID {
		return nil, errs.Unauthorized(errs.CodeNotAdmin, "only the admin reads the cycle")
	}
	return c.store.ActiveAssignmentsForGame(ctx, gameID)
}

func (c *Coordinator) complete(ctx context.Context, tx store.Tx, g *model.Game, winnerID string, now time.Time) error {
	g.Status = model.GameCompleted
	g.WinnerID = winnerID
	ended := now
	g.EndedAt = &ended
	if err := tx.PutGame(ctx, g); err != nil {
		return err
	}
	c.hub.Publish(events.Event{Type: events.TypeGameCompleted, GameID: g.ID, PlayerID: winnerID, At: now})
	return nil
}
