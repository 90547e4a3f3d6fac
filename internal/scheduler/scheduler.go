// Package scheduler is the periodic driver for time-based game mechanics:
// zone advancement, out-of-zone damage, and cache hygiene. Ticks are
// at-least-once; everything invoked here is idempotent with respect to now.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/antozhu/manhunt/internal/events"
	"github.com/antozhu/manhunt/internal/game/proximity"
	"github.com/antozhu/manhunt/internal/game/shrink"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

const (
	// DefaultInterval is the tick period.
	DefaultInterval = 30 * time.Second
	// TickDeadline is the hard per-tick budget.
	TickDeadline = 25 * time.Second
	// LeaseTTL serializes ticks per game across processes; a crashed
	// holder frees the game after this long.
	LeaseTTL = 60 * time.Second

	maxConcurrentGames = 8
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Scheduler runs the periodic tick over all ACTIVE games.
type Scheduler struct {
	store    store.Store
	zone     *shrink.Engine
	damage   *shrink.Damager
	prox     *proximity.Service
	hub      *events.Hub
	clock    Clock
	interval time.Duration
	log      *slog.Logger
}

// New wires a Scheduler. A nil clock means wall time; a zero interval
// means DefaultInterval.
func New(st store.Store, zone *shrink.Engine, damage *shrink.Damager, prox *proximity.Service, hub *events.Hub, clock Clock, interval time.Duration, log *slog.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store: st, zone: zone, damage: damage, prox: prox, hub: hub,
		clock: clock, interval: interval, log: log,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx, s.clock.Now())
		}
	}
}

// Tick processes every ACTIVE game once. Per-game failures are logged and
// skipped; one bad game cannot stall the loop.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, TickDeadline)
	defer cancel()

	games, err := s.store.ListGamesByStatus(ctx, model.GameActive)
	if err != nil {
		s.log.Error("tick: listing active games failed", "error", err)
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentGames)
	for _, game := range games {
		game := game
		g.Go(func() error {
			if err := s.tickGame(ctx, game, now); err != nil {
				s.log.Error("tick: game failed", "game_id", game.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if s.prox != nil {
		if n := s.prox.EvictStale(now); n > 0 {
			s.log.Debug("tick: evicted stale proximity entries", "count", n)
		}
	}
}

// tickGame advances one game under its tick lease.
func (s *Scheduler) tickGame(ctx context.Context, game *model.Game, now time.Time) error {
	if game.Paused() {
		return nil
	}

	key := "tick:" + game.ID
	held, err := s.store.AcquireLease(ctx, key, LeaseTTL, now)
	if err != nil {
		return err
	}
	if !held {
		return nil
	}
	defer func() {
		if err := s.store.ReleaseLease(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn("tick: lease release failed", "game_id", game.ID, "error", err)
		}
	}()

	before, err := s.store.GetZoneState(ctx, game.ID)
	if err != nil {
		return err
	}
	state, err := s.zone.Advance(ctx, game, now)
	if err != nil {
		return err
	}
	if state != nil && (before == nil || !state.Equal(before)) {
		s.hub.Publish(events.Event{
			Type: events.TypeZoneUpdate, GameID: game.ID, At: now,
			Payload: state,
		})
	}

	report, err := s.damage.Tick(ctx, game, state, now)
	if err != nil {
		return err
	}
	for _, d := range report.Damaged {
		s.hub.Publish(events.Event{
			Type: events.TypeZoneDamage, GameID: game.ID, PlayerID: d.PlayerID, At: now,
			Payload: map[string]any{"amount": d.Amount, "health": d.Health, "died": d.Died},
		})
		if d.Died && s.prox != nil {
			s.prox.Forget(d.PlayerID)
		}
	}
	if report.WinnerID != "" {
		s.hub.Publish(events.Event{
			Type: events.TypeGameCompleted, GameID: game.ID, PlayerID: report.WinnerID, At: now,
		})
	}
	return nil
}
