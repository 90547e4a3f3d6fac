package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
	"github.com/antozhu/manhunt/internal/testutil"
)

// StoreSuite exercises the PostgreSQL Store implementation against a real
// database started via testcontainers. All suites in the package share the
// container; ids are prefixed per test to keep data disjoint.
type StoreSuite struct {
	suite.Suite
	ctx context.Context
	st  *store.Postgres
}

func TestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed store tests in short mode")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.st = store.NewFromPool(testutil.SetupTestDB(s.T()))
}

func (s *StoreSuite) TestGameRoundTrip() {
	ctx := s.ctx
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	started := created.Add(time.Hour)
	g := &model.Game{
		ID:            "rt-game",
		Name:          "Downtown Manhunt",
		Status:        model.GameActive,
		AdminPlayerID: "rt-admin",
		CreatedAt:     created,
		StartedAt:     &started,
		MapID:         "campus",
		Boundary: []model.Coordinate{
			{Latitude: 40.50, Longitude: -79.50},
			{Latitude: 40.52, Longitude: -79.50},
			{Latitude: 40.52, Longitude: -79.48},
			{Latitude: 40.50, Longitude: -79.48},
		},
		Settings: model.GameSettings{
			WeaponDistanceM:    25,
			PlayerHealth:       150,
			AssignmentStrategy: model.StrategyCircular,
			ShrinkingZone: &model.ShrinkingZoneConfig{
				InitialCenter:         model.Coordinate{Latitude: 40.51, Longitude: -79.49},
				InitialRadiusM:        2000,
				DamagePerTickPerMeter: 0.05,
				MaxDamagePerTick:      50,
				Stages: []model.ZoneStage{
					{WaitSec: 60, ShrinkSec: 120, HoldSec: 30, TargetRadiusM: 500, NewCenterPolicy: model.CenterKeep},
				},
			},
		},
		EmergencyPause: model.EmergencyPause{Active: true, Reason: "injury", TriggeredBy: "rt-admin", At: &started},
	}
	s.Require().NoError(s.st.PutGame(ctx, g))

	got, err := s.st.GetGame(ctx, "rt-game")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(g.Name, got.Name)
	s.Equal(model.GameActive, got.Status)
	s.Equal(g.Boundary, got.Boundary)
	s.Equal(25.0, got.Settings.WeaponDistance())
	s.Require().NotNil(got.Settings.ShrinkingZone)
	s.Equal(2000.0, got.Settings.ShrinkingZone.InitialRadiusM)
	s.Len(got.Settings.ShrinkingZone.Stages, 1)
	s.True(got.Paused())
	s.Equal("injury", got.EmergencyPause.Reason)
	s.True(got.StartedAt.Equal(started))

	// Upsert updates in place.
	got.Status = model.GameCompleted
	got.WinnerID = "rt-p1"
	s.Require().NoError(s.st.PutGame(ctx, got))
	again, err := s.st.GetGame(ctx, "rt-game")
	s.Require().NoError(err)
	s.Equal(model.GameCompleted, again.Status)
	s.Equal("rt-p1", again.WinnerID)

	s.Require().NoError(s.st.DeleteGame(ctx, "rt-game"))
	gone, err := s.st.GetGame(ctx, "rt-game")
	s.Require().NoError(err)
	s.Nil(gone)
}

func (s *StoreSuite) TestGetGameMissing() {
	g, err := s.st.GetGame(s.ctx, "no-such-game")
	s.Require().NoError(err)
	s.Nil(g)
}

func (s *StoreSuite) TestListGamesByStatus() {
	ctx := s.ctx
	base := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"ls-a", "ls-b"} {
		s.Require().NoError(s.st.PutGame(ctx, &model.Game{
			ID: id, Name: id, Status: model.GamePending, AdminPlayerID: "ls-admin",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	s.Require().NoError(s.st.PutGame(ctx, &model.Game{
		ID: "ls-c", Name: "ls-c", Status: model.GameCancelled, AdminPlayerID: "ls-admin", CreatedAt: base,
	}))

	games, err := s.st.ListGamesByStatus(ctx, model.GamePending)
	s.Require().NoError(err)
	var ids []string
	for _, g := range games {
		if g.ID == "ls-a" || g.ID == "ls-b" {
			ids = append(ids, g.ID)
		}
		s.Equal(model.GamePending, g.Status)
	}
	s.Equal([]string{"ls-a", "ls-b"}, ids, "ordered by creation time")
}

func (s *StoreSuite) TestPlayerRoundTripAndLeaderboard() {
	ctx := s.ctx
	now := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	acc := 8.5
	cooldown := now.Add(10 * time.Minute)
	p := &model.Player{
		ID:                         "pl-1",
		Name:                       "Alice",
		Email:                      "alice@example.com",
		Status:                     model.PlayerActive,
		GameID:                     "pl-game",
		TargetID:                   "pl-2",
		TargetName:                 "Bob",
		KillCount:                  3,
		Health:                     87.5,
		Location:                   &model.Coordinate{Latitude: 40.505, Longitude: -79.495},
		AccuracyM:                  &acc,
		LocationTimestamp:          &now,
		LocationSharingEnabled:     true,
		LocationVisibility:         model.VisibilityGameOnly,
		LocationPrecision:          model.PrecisionApproximate,
		LocationPauseCooldownUntil: &cooldown,
	}
	s.Require().NoError(s.st.PutPlayer(ctx, p))

	got, err := s.st.GetPlayer(ctx, "pl-1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("Alice", got.Name)
	s.Equal("pl-2", got.TargetID)
	s.Equal(87.5, got.Health)
	s.Require().NotNil(got.Location)
	s.InDelta(40.505, got.Location.Latitude, 1e-9)
	s.Require().NotNil(got.AccuracyM)
	s.Equal(8.5, *got.AccuracyM)
	s.True(got.LocationTimestamp.Equal(now))
	s.True(got.LocationSharingEnabled)
	s.Equal(model.PrecisionApproximate, got.LocationPrecision)

	// Two more players for the game-scoped queries.
	s.Require().NoError(s.st.PutPlayer(ctx, &model.Player{
		ID: "pl-2", Name: "Bob", Status: model.PlayerActive, GameID: "pl-game", KillCount: 5, Health: 100,
	}))
	s.Require().NoError(s.st.PutPlayer(ctx, &model.Player{
		ID: "pl-3", Name: "Carol", Status: model.PlayerDead, GameID: "pl-game", KillCount: 1,
	}))

	roster, err := s.st.PlayersByGame(ctx, "pl-game")
	s.Require().NoError(err)
	s.Len(roster, 3)

	board, err := s.st.Leaderboard(ctx, model.PlayerActive, 10)
	s.Require().NoError(err)
	var order []string
	for _, pl := range board {
		if pl.GameID == "pl-game" {
			order = append(order, pl.ID)
		}
	}
	s.Equal([]string{"pl-2", "pl-1"}, order, "descending kill count, DEAD excluded")

	s.Require().NoError(s.st.DeletePlayer(ctx, "pl-3"))
	gone, err := s.st.GetPlayer(ctx, "pl-3")
	s.Require().NoError(err)
	s.Nil(gone)
}

func (s *StoreSuite) TestAssignmentQueries() {
	ctx := s.ctx
	t0 := time.Date(2026, 8, 4, 8, 0, 0, 0, time.UTC)
	edges := []*model.TargetAssignment{
		{ID: "as-1", GameID: "as-game", AssignerID: "as-a", TargetID: "as-b", Status: model.AssignmentActive, AssignmentDate: t0},
		{ID: "as-2", GameID: "as-game", AssignerID: "as-b", TargetID: "as-c", Status: model.AssignmentActive, AssignmentDate: t0},
		{ID: "as-3", GameID: "as-game", AssignerID: "as-c", TargetID: "as-a", Status: model.AssignmentActive, AssignmentDate: t0},
	}
	for _, e := range edges {
		s.Require().NoError(s.st.PutAssignment(ctx, e))
	}

	active, err := s.st.ActiveAssignmentsForGame(ctx, "as-game")
	s.Require().NoError(err)
	s.Len(active, 3)

	cur, err := s.st.CurrentAssignmentForPlayer(ctx, "as-game", "as-a")
	s.Require().NoError(err)
	s.Require().NotNil(cur)
	s.Equal("as-b", cur.TargetID)

	// Completing an edge and issuing a replacement preserves history.
	done := t0.Add(30 * time.Minute)
	edges[0].Status = model.AssignmentCompleted
	edges[0].CompletedDate = &done
	s.Require().NoError(s.st.PutAssignment(ctx, edges[0]))
	s.Require().NoError(s.st.PutAssignment(ctx, &model.TargetAssignment{
		ID: "as-4", GameID: "as-game", AssignerID: "as-a", TargetID: "as-c",
		Status: model.AssignmentActive, AssignmentDate: done,
	}))

	cur, err = s.st.CurrentAssignmentForPlayer(ctx, "as-game", "as-a")
	s.Require().NoError(err)
	s.Require().NotNil(cur)
	s.Equal("as-c", cur.TargetID)

	hist, err := s.st.AssignmentHistoryForPlayer(ctx, "as-game", "as-a")
	s.Require().NoError(err)
	s.Len(hist, 2)

	none, err := s.st.CurrentAssignmentForPlayer(ctx, "as-game", "as-zzz")
	s.Require().NoError(err)
	s.Nil(none)
}

func (s *StoreSuite) TestKillQueries() {
	ctx := s.ctx
	kt := time.Date(2026, 8, 5, 14, 30, 0, 0, time.UTC)
	verified := kt.Add(time.Minute)
	k := &model.Kill{
		KillerID: "kl-hunter",
		KillTime: kt,
		GameID:   "kl-game",
		VictimID: "kl-victim",
		Location: model.Coordinate{Latitude: 40.51, Longitude: -79.49},
		Method:   model.VerifyPhoto,
		Status:   model.KillVerified,
		Data: model.VerificationData{
			PhotoHash: "deadbeef",
			PhotoURL:  "https://photos.example/1.jpg",
			Note:      "clean tag",
		},
		VerifiedBy: "kl-admin",
		VerifiedAt: &verified,
	}
	s.Require().NoError(s.st.PutKill(ctx, k))

	got, err := s.st.GetKill(ctx, "kl-hunter", kt)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("kl-victim", got.VictimID)
	s.Equal(model.KillVerified, got.Status)
	s.Equal("deadbeef", got.Data.PhotoHash)
	s.Equal("kl-admin", got.VerifiedBy)
	s.True(got.VerifiedAt.Equal(verified))

	// A rejected attempt against the same victim does not count as a death.
	s.Require().NoError(s.st.PutKill(ctx, &model.Kill{
		KillerID: "kl-other", KillTime: kt.Add(time.Second), GameID: "kl-game",
		VictimID: "kl-victim", Method: model.VerifyButton, Status: model.KillRejected,
		Data: model.VerificationData{Note: "OUT_OF_RANGE"},
	}))

	byGame, err := s.st.KillsByGame(ctx, "kl-game")
	s.Require().NoError(err)
	s.Len(byGame, 2)

	deaths, err := s.st.CountDeathsByVictim(ctx, "kl-victim")
	s.Require().NoError(err)
	s.Equal(1, deaths)
}

func (s *StoreSuite) TestSafeZoneRoundTrip() {
	ctx := s.ctx
	start := time.Date(2026, 8, 6, 22, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	private := &model.SafeZone{
		ID:                  "sz-priv",
		GameID:              "sz-game",
		Type:                model.ZonePrivate,
		Center:              model.Coordinate{Latitude: 40.515, Longitude: -79.485},
		RadiusM:             120,
		Name:                "Home Base",
		Description:         "owner's porch",
		CreatedBy:           "sz-owner",
		AuthorizedPlayerIDs: []string{"sz-owner", "sz-friend"},
	}
	timed := &model.SafeZone{
		ID:        "sz-night",
		GameID:    "sz-game",
		Type:      model.ZoneTimed,
		Center:    model.Coordinate{Latitude: 40.512, Longitude: -79.490},
		RadiusM:   5000,
		Name:      "Night Curfew",
		CreatedBy: "sz-admin",
		// Zones constructed through the service always carry a non-nil slice.
		AuthorizedPlayerIDs: []string{},
		StartTime:           &start,
		EndTime:             &end,
	}
	s.Require().NoError(s.st.PutSafeZone(ctx, private))
	s.Require().NoError(s.st.PutSafeZone(ctx, timed))

	got, err := s.st.GetSafeZone(ctx, "sz-priv")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal([]string{"sz-owner", "sz-friend"}, got.AuthorizedPlayerIDs)
	s.Equal(120.0, got.RadiusM)

	gotTimed, err := s.st.GetSafeZone(ctx, "sz-night")
	s.Require().NoError(err)
	s.Require().NotNil(gotTimed)
	s.NotNil(gotTimed.AuthorizedPlayerIDs, "empty list round-trips as [], not nil")
	s.Empty(gotTimed.AuthorizedPlayerIDs)
	s.True(gotTimed.StartTime.Equal(start))
	s.True(gotTimed.ActiveAt(start.Add(time.Hour)))
	s.False(gotTimed.ActiveAt(end))

	byGame, err := s.st.SafeZonesByGame(ctx, "sz-game")
	s.Require().NoError(err)
	s.Len(byGame, 2)

	owned, err := s.st.SafeZonesByOwner(ctx, "sz-game", "sz-owner")
	s.Require().NoError(err)
	s.Require().Len(owned, 1)
	s.Equal("sz-priv", owned[0].ID)

	s.Require().NoError(s.st.DeleteSafeZone(ctx, "sz-priv"))
	gone, err := s.st.GetSafeZone(ctx, "sz-priv")
	s.Require().NoError(err)
	s.Nil(gone)
}

func (s *StoreSuite) TestZoneStateRoundTrip() {
	ctx := s.ctx
	none, err := s.st.GetZoneState(ctx, "zs-game")
	s.Require().NoError(err)
	s.Nil(none, "no state before the first tick")

	next := 500.0
	now := time.Date(2026, 8, 7, 16, 0, 0, 0, time.UTC)
	state := &model.GameZoneState{
		GameID:            "zs-game",
		CurrentStageIndex: 1,
		CurrentPhase:      model.PhaseShrinking,
		CurrentCenter:     model.Coordinate{Latitude: 40.508, Longitude: -79.492},
		CurrentRadiusM:    1250,
		NextRadiusM:       &next,
		PhaseEndTime:      now.Add(90 * time.Second),
		LastUpdated:       now,
	}
	s.Require().NoError(s.st.PutZoneState(ctx, state))

	got, err := s.st.GetZoneState(ctx, "zs-game")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.True(state.Equal(got))

	// Upsert replaces the singleton row.
	state.CurrentPhase = model.PhaseHolding
	state.CurrentRadiusM = next
	state.NextRadiusM = nil
	s.Require().NoError(s.st.PutZoneState(ctx, state))
	got, err = s.st.GetZoneState(ctx, "zs-game")
	s.Require().NoError(err)
	s.Equal(model.PhaseHolding, got.CurrentPhase)
	s.Nil(got.NextRadiusM)
}

func (s *StoreSuite) TestTransactVersionGate() {
	ctx := s.ctx
	g := &model.Game{
		ID: "tx-game", Name: "tx", Status: model.GameActive, AdminPlayerID: "tx-admin",
		CreatedAt: time.Date(2026, 8, 8, 9, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.st.PutGame(ctx, g))

	// Commit path: writes land together and the version advances.
	err := s.st.Transact(ctx, "tx-game", 0, func(tx store.Tx) error {
		if err := tx.PutPlayer(ctx, &model.Player{
			ID: "tx-p1", Name: "P1", Status: model.PlayerDead, GameID: "tx-game",
		}); err != nil {
			return err
		}
		g.WinnerID = "tx-p2"
		return tx.PutGame(ctx, g)
	})
	s.Require().NoError(err)

	got, err := s.st.GetGame(ctx, "tx-game")
	s.Require().NoError(err)
	s.Equal(int64(1), got.Version)
	s.Equal("tx-p2", got.WinnerID)
	p, err := s.st.GetPlayer(ctx, "tx-p1")
	s.Require().NoError(err)
	s.Require().NotNil(p)

	// Stale version aborts before fn runs any writes.
	err = s.st.Transact(ctx, "tx-game", 0, func(tx store.Tx) error {
		return tx.PutPlayer(ctx, &model.Player{ID: "tx-p9", Name: "never", GameID: "tx-game"})
	})
	s.Require().Error(err)
	s.True(errs.IsConflict(err))
	s.Equal(errs.CodeVersionConflict, errs.CodeOf(err))
	ghost, err := s.st.GetPlayer(ctx, "tx-p9")
	s.Require().NoError(err)
	s.Nil(ghost)

	// fn returning an error rolls everything back, including the bump.
	boom := errs.Validation("BOOM", "forced failure")
	err = s.st.Transact(ctx, "tx-game", 1, func(tx store.Tx) error {
		if err := tx.PutPlayer(ctx, &model.Player{ID: "tx-p8", Name: "rolled back", GameID: "tx-game"}); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)
	ghost, err = s.st.GetPlayer(ctx, "tx-p8")
	s.Require().NoError(err)
	s.Nil(ghost)
	got, err = s.st.GetGame(ctx, "tx-game")
	s.Require().NoError(err)
	s.Equal(int64(1), got.Version, "failed transaction leaves the version alone")
}

// Reads inside Transact must observe uncommitted writes from the same
// transaction; pool reads must not.
func (s *StoreSuite) TestTransactReadsSeeOwnWrites() {
	ctx := s.ctx
	g := &model.Game{
		ID: "txr-game", Name: "txr", Status: model.GameActive, AdminPlayerID: "txr-admin",
		CreatedAt: time.Date(2026, 8, 8, 10, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.st.PutGame(ctx, g))
	s.Require().NoError(s.st.PutPlayer(ctx, &model.Player{
		ID: "txr-p1", Name: "P1", Status: model.PlayerActive, GameID: "txr-game",
	}))
	s.Require().NoError(s.st.PutAssignment(ctx, &model.TargetAssignment{
		ID: "txr-a1", GameID: "txr-game", AssignerID: "txr-p1", TargetID: "txr-p2",
		Status: model.AssignmentActive, AssignmentDate: time.Date(2026, 8, 8, 10, 1, 0, 0, time.UTC),
	}))

	err := s.st.Transact(ctx, "txr-game", 0, func(tx store.Tx) error {
		p, err := tx.GetPlayer(ctx, "txr-p1")
		s.Require().NoError(err)
		s.Require().NotNil(p)
		p.Status = model.PlayerDead
		s.Require().NoError(tx.PutPlayer(ctx, p))

		again, err := tx.GetPlayer(ctx, "txr-p1")
		s.Require().NoError(err)
		s.Equal(model.PlayerDead, again.Status, "in-tx read sees the staged write")

		outside, err := s.st.GetPlayer(ctx, "txr-p1")
		s.Require().NoError(err)
		s.Equal(model.PlayerActive, outside.Status, "pool read sees committed state only")

		a, err := tx.CurrentAssignmentForPlayer(ctx, "txr-game", "txr-p1")
		s.Require().NoError(err)
		s.Require().NotNil(a)
		a.Status = model.AssignmentCancelled
		s.Require().NoError(tx.PutAssignment(ctx, a))

		edges, err := tx.ActiveAssignmentsForGame(ctx, "txr-game")
		s.Require().NoError(err)
		s.Empty(edges)
		return nil
	})
	s.Require().NoError(err)

	p, err := s.st.GetPlayer(ctx, "txr-p1")
	s.Require().NoError(err)
	s.Equal(model.PlayerDead, p.Status)
}

func (s *StoreSuite) TestLeaseLifecycle() {
	ctx := s.ctx
	now := time.Date(2026, 8, 9, 12, 0, 0, 0, time.UTC)
	const key = "tick:lease-game"

	ok, err := s.st.AcquireLease(ctx, key, time.Minute, now)
	s.Require().NoError(err)
	s.True(ok)

	// Held lease blocks a second taker.
	ok, err = s.st.AcquireLease(ctx, key, time.Minute, now.Add(30*time.Second))
	s.Require().NoError(err)
	s.False(ok)

	// Expired lease is stolen.
	ok, err = s.st.AcquireLease(ctx, key, time.Minute, now.Add(2*time.Minute))
	s.Require().NoError(err)
	s.True(ok)

	// Release frees it immediately.
	s.Require().NoError(s.st.ReleaseLease(ctx, key))
	ok, err = s.st.AcquireLease(ctx, key, time.Minute, now.Add(2*time.Minute+time.Second))
	s.Require().NoError(err)
	s.True(ok)
}
