package shrink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antozhu/manhunt/internal/game/assign"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
	"github.com/antozhu/manhunt/internal/store/memstore"
)

func damageFixture(t *testing.T) (*Engine, *Damager, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return NewEngine(st), NewDamager(st, assign.NewEngine(st)), st
}

func placePlayer(t *testing.T, st *memstore.Store, id string, lat, lng float64, at time.Time) *model.Player {
	t.Helper()
	p := &model.Player{
		ID: id, Name: "player-" + id, Status: model.PlayerActive, GameID: "g1",
		Health:   100,
		Location: &model.Coordinate{Latitude: lat, Longitude: lng},
	}
	p.LocationTimestamp = &at
	require.NoError(t, st.PutPlayer(context.Background(), p))
	return p
}

func tick(t *testing.T, e *Engine, d *Damager, st *memstore.Store, at time.Time) DamageReport {
	t.Helper()
	ctx := context.Background()
	game, err := st.GetGame(ctx, "g1")
	require.NoError(t, err)
	state, err := e.Advance(ctx, game, at)
	require.NoError(t, err)
	report, err := d.Tick(ctx, game, state, at)
	require.NoError(t, err)
	return report
}

// One stage, wait 0: shrink 2000m to 500m over 60s then hold. A player
// ~1.1km from the center starts taking damage once the zone passes them
// and dies after a few ticks.
func TestTick_DamageUntilDeath(t *testing.T) {
	e, d, st := damageFixture(t)
	ctx := context.Background()

	cfg := singleStageConfig()
	cfg.Stages[0].WaitSec = 0
	game := zoneGame(cfg)
	require.NoError(t, st.PutGame(ctx, game))

	placePlayer(t, st, "p1", 40.5, -79.5, t0)
	placePlayer(t, st, "p2", 40.510, -79.5, t0)
	placePlayer(t, st, "p3", 40.501, -79.5, t0)

	// While the zone is still wide nobody is outside.
	report := tick(t, e, d, st, t0)
	assert.Empty(t, report.Damaged)

	// At t+90s the zone has settled at 500m; p2 is ~612m outside.
	at := t0.Add(90 * time.Second)
	refresh := func() {
		for _, id := range []string{"p1", "p2", "p3"} {
			p, _ := st.GetPlayer(ctx, id)
			if p.Status != model.PlayerActive {
				continue
			}
			p.LocationTimestamp = &at
			require.NoError(t, st.PutPlayer(ctx, p))
		}
	}

	refresh()
	report = tick(t, e, d, st, at)
	require.Len(t, report.Damaged, 1)
	assert.Equal(t, "p2", report.Damaged[0].PlayerID)
	assert.InDelta(t, 30.6, report.Damaged[0].Amount, 1.0)
	assert.False(t, report.Damaged[0].Died)

	for i := 0; i < 3; i++ {
		at = at.Add(30 * time.Second)
		refresh()
		report = tick(t, e, d, st, at)
	}
	require.Len(t, report.Damaged, 1)
	assert.True(t, report.Damaged[0].Died)

	dead, err := st.GetPlayer(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, model.PlayerDead, dead.Status)
	assert.Zero(t, dead.Health)
	assert.Empty(t, dead.TargetID)

	updated, err := st.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, model.GameActive, updated.Status, "two players remain")
}

func TestTick_ToleranceAbsorbsJitter(t *testing.T) {
	e, d, st := damageFixture(t)
	ctx := context.Background()

	cfg := singleStageConfig()
	cfg.Stages[0].WaitSec = 0
	game := zoneGame(cfg)
	require.NoError(t, st.PutGame(ctx, game))

	at := t0.Add(90 * time.Second)
	// ~505m from the center: outside the 500m radius, inside the 10m band.
	placePlayer(t, st, "p1", 40.50454, -79.5, at)
	placePlayer(t, st, "p2", 40.5, -79.5, at)

	report := tick(t, e, d, st, at)
	assert.Empty(t, report.Damaged)
}

func TestTick_StaleLocationSkipped(t *testing.T) {
	e, d, st := damageFixture(t)
	ctx := context.Background()

	cfg := singleStageConfig()
	cfg.Stages[0].WaitSec = 0
	game := zoneGame(cfg)
	require.NoError(t, st.PutGame(ctx, game))

	at := t0.Add(90 * time.Second)
	placePlayer(t, st, "p1", 40.510, -79.5, at.Add(-10*time.Minute))
	placePlayer(t, st, "p2", 40.5, -79.5, at)

	report := tick(t, e, d, st, at)
	assert.Empty(t, report.Damaged, "sample older than 5 minutes is skipped")
}

// Two players die in the same tick. The second removal must see the first
// one's cancellations and rewiring, leaving the survivors on a clean
// two-cycle instead of hunting the dead.
func TestTick_TwoDeathsOneTick(t *testing.T) {
	e, d, st := damageFixture(t)
	ctx := context.Background()

	cfg := singleStageConfig()
	cfg.Stages[0].WaitSec = 0
	cfg.DamagePerTickPerMeter = 1
	cfg.MaxDamagePerTick = 1000
	game := zoneGame(cfg)
	require.NoError(t, st.PutGame(ctx, game))

	at := t0.Add(90 * time.Second)
	placePlayer(t, st, "p1", 40.5, -79.5, at)
	placePlayer(t, st, "p2", 40.501, -79.5, at)
	placePlayer(t, st, "p3", 40.510, -79.5, at)
	placePlayer(t, st, "p4", 40.511, -79.5, at)

	players, err := st.PlayersByGame(ctx, "g1")
	require.NoError(t, err)
	eng := assign.NewEngine(st)
	require.NoError(t, st.Transact(ctx, "g1", game.Version, func(tx store.Tx) error {
		return eng.BuildCycle(ctx, tx, game, players, t0)
	}))

	report := tick(t, e, d, st, at)
	require.Len(t, report.Damaged, 2)
	for _, dmg := range report.Damaged {
		assert.True(t, dmg.Died)
	}
	assert.Empty(t, report.WinnerID, "two players remain inside")

	require.NoError(t, eng.VerifyCycle(ctx, "g1"))
	edges, err := st.ActiveAssignmentsForGame(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, a := range edges {
		assert.NotContains(t, []string{"p3", "p4"}, a.AssignerID, "no edge from a dead player")
		assert.NotContains(t, []string{"p3", "p4"}, a.TargetID, "no edge onto a dead player")
	}

	still, err := st.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, model.GameActive, still.Status)
}

func TestTick_ZoneDeathEndsGame(t *testing.T) {
	e, d, st := damageFixture(t)
	ctx := context.Background()

	cfg := singleStageConfig()
	cfg.Stages[0].WaitSec = 0
	cfg.DamagePerTickPerMeter = 1 // one tick outside is lethal at this range
	cfg.MaxDamagePerTick = 1000
	game := zoneGame(cfg)
	require.NoError(t, st.PutGame(ctx, game))

	at := t0.Add(90 * time.Second)
	placePlayer(t, st, "p1", 40.5, -79.5, at)
	placePlayer(t, st, "p2", 40.510, -79.5, at)

	players, err := st.PlayersByGame(ctx, "g1")
	require.NoError(t, err)
	eng := assign.NewEngine(st)
	require.NoError(t, st.Transact(ctx, "g1", game.Version, func(tx store.Tx) error {
		return eng.BuildCycle(ctx, tx, game, players, t0)
	}))

	report := tick(t, e, d, st, at)
	require.Len(t, report.Damaged, 1)
	assert.True(t, report.Damaged[0].Died)
	assert.Equal(t, "p1", report.WinnerID)

	ended, err := st.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, model.GameCompleted, ended.Status)
	assert.Equal(t, "p1", ended.WinnerID)
	assert.NotNil(t, ended.EndedAt)

	active, err := st.ActiveAssignmentsForGame(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, active)
}
