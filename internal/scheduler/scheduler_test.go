package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antozhu/manhunt/internal/events"
	"github.com/antozhu/manhunt/internal/game/assign"
	"github.com/antozhu/manhunt/internal/game/proximity"
	"github.com/antozhu/manhunt/internal/game/safezone"
	"github.com/antozhu/manhunt/internal/game/shrink"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store/memstore"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newScheduler(t *testing.T) (*Scheduler, *memstore.Store, *events.Hub) {
	t.Helper()
	st := memstore.New()
	hub := events.NewHub()
	prox := proximity.NewService(st, safezone.NewService(st), hub)
	eng := shrink.NewEngine(st)
	dmg := shrink.NewDamager(st, assign.NewEngine(st))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, eng, dmg, prox, hub, &fakeClock{now: t0}, time.Second, log), st, hub
}

func zoneGame(id string) *model.Game {
	started := t0
	return &model.Game{
		ID: id, Status: model.GameActive, StartedAt: &started,
		Settings: model.GameSettings{ShrinkingZone: &model.ShrinkingZoneConfig{
			InitialCenter:         model.Coordinate{Latitude: 40.5, Longitude: -79.5},
			InitialRadiusM:        2000,
			DamagePerTickPerMeter: 0.05,
			MaxDamagePerTick:      50,
			Stages: []model.ZoneStage{
				{WaitSec: 0, ShrinkSec: 60, HoldSec: 30, TargetRadiusM: 500, NewCenterPolicy: model.CenterKeep},
			},
		}},
	}
}

func TestTick_AdvancesZoneAndAppliesDamage(t *testing.T) {
	s, st, hub := newScheduler(t)
	ctx := context.Background()
	require.NoError(t, st.PutGame(ctx, zoneGame("g1")))

	at := t0.Add(90 * time.Second)
	ts := at
	p := &model.Player{
		ID: "p1", Name: "runner", Status: model.PlayerActive, GameID: "g1", Health: 100,
		Location:          &model.Coordinate{Latitude: 40.510, Longitude: -79.5},
		LocationTimestamp: &ts,
	}
	require.NoError(t, st.PutPlayer(ctx, p))

	ch, cancel := hub.Subscribe("g1")
	defer cancel()

	s.Tick(ctx, at)

	state, err := st.GetZoneState(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 500.0, state.CurrentRadiusM)

	damaged, err := st.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Less(t, damaged.Health, 100.0)

	types := map[string]bool{}
	for len(ch) > 0 {
		types[(<-ch).Type] = true
	}
	assert.True(t, types[events.TypeZoneUpdate])
	assert.True(t, types[events.TypeZoneDamage])
}

// A lease held by another process skips the game; the tick still returns.
func TestTick_SkipsLeasedGame(t *testing.T) {
	s, st, _ := newScheduler(t)
	ctx := context.Background()
	require.NoError(t, st.PutGame(ctx, zoneGame("g1")))

	held, err := st.AcquireLease(ctx, "tick:g1", LeaseTTL, t0)
	require.NoError(t, err)
	require.True(t, held)

	s.Tick(ctx, t0.Add(90*time.Second))

	state, err := st.GetZoneState(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, state, "leased game untouched")
}

// Paused games are frozen in place: no advancement, no damage.
func TestTick_SkipsPausedGame(t *testing.T) {
	s, st, _ := newScheduler(t)
	ctx := context.Background()
	g := zoneGame("g1")
	g.EmergencyPause = model.EmergencyPause{Active: true, Reason: "weather"}
	require.NoError(t, st.PutGame(ctx, g))

	s.Tick(ctx, t0.Add(90*time.Second))

	state, err := st.GetZoneState(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

// Each tick applies one round of damage; a player staying outside keeps
// losing health until dead.
func TestTick_DamageAccumulates(t *testing.T) {
	s, st, _ := newScheduler(t)
	ctx := context.Background()
	require.NoError(t, st.PutGame(ctx, zoneGame("g1")))

	at := t0.Add(90 * time.Second)
	ts := at
	p := &model.Player{
		ID: "p1", Name: "runner", Status: model.PlayerActive, GameID: "g1", Health: 100,
		Location:          &model.Coordinate{Latitude: 40.510, Longitude: -79.5},
		LocationTimestamp: &ts,
	}
	require.NoError(t, st.PutPlayer(ctx, p))

	for i := 0; i < 4; i++ {
		at = at.Add(30 * time.Second)
		cur, _ := st.GetPlayer(ctx, "p1")
		if cur.Status == model.PlayerActive {
			cur.LocationTimestamp = &at
			require.NoError(t, st.PutPlayer(ctx, cur))
		}
		s.Tick(ctx, at)
	}

	dead, err := st.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PlayerDead, dead.Status)
	assert.Zero(t, dead.Health)
}
