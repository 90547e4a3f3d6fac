// Package store defines the typed persistence contract and its PostgreSQL
// implementation. Single-entity writes are atomic; multi-entity changes go
// through Transact, which aborts on a game-version mismatch.
package store

import (
	"context"
	"time"

	"github.com/antozhu/manhunt/internal/model"
)

// Games is the game-entity contract.
type Games interface {
	// GetGame returns nil, nil when the game does not exist.
	GetGame(ctx context.Context, id string) (*model.Game, error)
	PutGame(ctx context.Context, g *model.Game) error
	DeleteGame(ctx context.Context, id string) error
	ListGamesByStatus(ctx context.Context, status model.GameStatus) ([]*model.Game, error)
}

// Players is the player-entity contract.
type Players interface {
	// GetPlayer returns nil, nil when the player does not exist.
	GetPlayer(ctx context.Context, id string) (*model.Player, error)
	PutPlayer(ctx context.Context, p *model.Player) error
	DeletePlayer(ctx context.Context, id string) error
	PlayersByGame(ctx context.Context, gameID string) ([]*model.Player, error)
	// Leaderboard returns players with the given status ordered by
	// descending kill count.
	Leaderboard(ctx context.Context, status model.PlayerStatus, limit int) ([]*model.Player, error)
}

// Assignments is the target-assignment contract. Rows are append-only.
type Assignments interface {
	PutAssignment(ctx context.Context, a *model.TargetAssignment) error
	ActiveAssignmentsForGame(ctx context.Context, gameID string) ([]*model.TargetAssignment, error)
	AssignmentHistoryForPlayer(ctx context.Context, gameID, playerID string) ([]*model.TargetAssignment, error)
	// CurrentAssignmentForPlayer returns the single ACTIVE assignment where
	// playerID is the assigner, or nil, nil.
	CurrentAssignmentForPlayer(ctx context.Context, gameID, playerID string) (*model.TargetAssignment, error)
}

// Kills is the kill-entity contract, keyed by (killerID, killTime).
type Kills interface {
	GetKill(ctx context.Context, killerID string, killTime time.Time) (*model.Kill, error)
	PutKill(ctx context.Context, k *model.Kill) error
	KillsByGame(ctx context.Context, gameID string) ([]*model.Kill, error)
	CountDeathsByVictim(ctx context.Context, victimID string) (int, error)
}

// SafeZones is the safe-zone contract.
type SafeZones interface {
	GetSafeZone(ctx context.Context, id string) (*model.SafeZone, error)
	PutSafeZone(ctx context.Context, z *model.SafeZone) error
	DeleteSafeZone(ctx context.Context, id string) error
	SafeZonesByGame(ctx context.Context, gameID string) ([]*model.SafeZone, error)
	SafeZonesByOwner(ctx context.Context, gameID, ownerID string) ([]*model.SafeZone, error)
}

// ZoneStates is the per-game shrinking-zone state contract.
type ZoneStates interface {
	// GetZoneState returns nil, nil before the first ACTIVE tick.
	GetZoneState(ctx context.Context, gameID string) (*model.GameZoneState, error)
	PutZoneState(ctx context.Context, s *model.GameZoneState) error
}

// Leases serializes scheduler ticks per game across processes.
type Leases interface {
	// AcquireLease returns true when the caller now holds key until now+ttl.
	AcquireLease(ctx context.Context, key string, ttl time.Duration, now time.Time) (bool, error)
	ReleaseLease(ctx context.Context, key string) error
}

// Tx is the read/write surface available inside a conditional transaction.
// All writes commit atomically or not at all. Reads observe writes staged
// earlier in the same transaction; callbacks must not reach back into the
// Store for entities they may have written.
type Tx interface {
	PutGame(ctx context.Context, g *model.Game) error
	PutPlayer(ctx context.Context, p *model.Player) error
	PutAssignment(ctx context.Context, a *model.TargetAssignment) error
	PutKill(ctx context.Context, k *model.Kill) error
	PutZoneState(ctx context.Context, s *model.GameZoneState) error

	GetGame(ctx context.Context, id string) (*model.Game, error)
	GetPlayer(ctx context.Context, id string) (*model.Player, error)
	PlayersByGame(ctx context.Context, gameID string) ([]*model.Player, error)
	ActiveAssignmentsForGame(ctx context.Context, gameID string) ([]*model.TargetAssignment, error)
	CurrentAssignmentForPlayer(ctx context.Context, gameID, playerID string) (*model.TargetAssignment, error)
}

// Store is the full persistence contract.
type Store interface {
	Games
	Players
	Assignments
	Kills
	SafeZones
	ZoneStates
	Leases

	// Transact runs fn atomically, conditioned on the game's version still
	// being expectedVersion. On success the version is bumped by one.
	// A mismatch aborts with a ConflictError (errs.KindConflict); the caller
	// must re-read before retrying.
	Transact(ctx context.Context, gameID string, expectedVersion int64, fn func(tx Tx) error) error
}
