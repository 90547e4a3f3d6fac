package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antozhu/manhunt/internal/events"
	"github.com/antozhu/manhunt/internal/game/anticheat"
	"github.com/antozhu/manhunt/internal/game/assign"
	"github.com/antozhu/manhunt/internal/game/coordinator"
	"github.com/antozhu/manhunt/internal/game/kill"
	"github.com/antozhu/manhunt/internal/game/proximity"
	"github.com/antozhu/manhunt/internal/game/safezone"
	"github.com/antozhu/manhunt/internal/game/shrink"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store/memstore"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type env struct {
	ts    *httptest.Server
	st    *memstore.Store
	clock *testClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memstore.New()
	hub := events.NewHub()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cheat := anticheat.NewValidator()
	zones := safezone.NewService(st)
	prox := proximity.NewService(st, zones, hub)
	eng := assign.NewEngine(st)
	coord := coordinator.New(st, eng, cheat, prox, hub, log)
	pipe := kill.NewPipeline(st, zones, eng, cheat, hub)
	clock := &testClock{now: t0}

	srv := NewServer(st, coord, pipe, zones, prox, shrink.NewEngine(st), hub, log, Options{Clock: clock})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &env{ts: ts, st: st, clock: clock}
}

func (e *env) do(t *testing.T, method, path, playerID string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(t, err)
	if playerID != "" {
		req.Header.Set(PlayerIDHeader, playerID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

var boundary = []map[string]float64{
	{"latitude": 40.0, "longitude": -80.0},
	{"latitude": 41.0, "longitude": -80.0},
	{"latitude": 41.0, "longitude": -79.0},
	{"latitude": 40.0, "longitude": -79.0},
}

// startGame drives the whole setup flow over HTTP and returns the game id.
func (e *env) startGame(t *testing.T, playerIDs ...string) string {
	t.Helper()
	resp, data := e.do(t, "POST", "/games", "admin", map[string]any{"name": "campus hunt"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var g model.Game
	require.NoError(t, json.Unmarshal(data, &g))

	resp, data = e.do(t, "PUT", "/games/"+g.ID+"/boundary", "admin", map[string]any{"boundary": boundary})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	for _, id := range playerIDs {
		resp, data = e.do(t, "POST", "/games/"+g.ID+"/join", id, map[string]any{"name": "player-" + id})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	}

	resp, data = e.do(t, "POST", "/games/"+g.ID+"/assign-targets", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	return g.ID
}

func (e *env) reportLocation(t *testing.T, playerID string, lat, lng float64, at time.Time) (*http.Response, []byte) {
	t.Helper()
	return e.do(t, "PUT", "/players/"+playerID+"/location", playerID, map[string]any{
		"latitude": lat, "longitude": lng, "timestamp": at.UnixMilli(),
	})
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp, data := e.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestGameFlow_CreateToActive(t *testing.T) {
	e := newEnv(t)
	id := e.startGame(t, "p1", "p2", "p3")

	resp, data := e.do(t, "GET", "/games/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var g model.Game
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, model.GameActive, g.Status)

	resp, data = e.do(t, "GET", "/games/"+id+"/players", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var players []model.Player
	require.NoError(t, json.Unmarshal(data, &players))
	assert.Len(t, players, 3)
	for _, p := range players {
		assert.NotEmpty(t, p.TargetID)
	}
}

func TestCreateGame_RequiresIdentity(t *testing.T) {
	e := newEnv(t)
	resp, data := e.do(t, "POST", "/games", "", map[string]any{"name": "anonymous"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "MISSING_IDENTITY", body.Code)
}

func TestGetGame_NotFound(t *testing.T) {
	e := newEnv(t)
	resp, data := e.do(t, "GET", "/games/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestLocation_AcceptAndTeleportReject(t *testing.T) {
	e := newEnv(t)
	e.startGame(t, "p1", "p2")

	resp, _ := e.reportLocation(t, "p1", 40.44, -79.94, t0)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// 111km in 10 seconds.
	e.clock.now = t0.Add(10 * time.Second)
	resp, data := e.reportLocation(t, "p1", 41.44, -79.94, t0.Add(10*time.Second))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body struct {
		Code       string                `json:"code"`
		Violations []anticheat.Violation `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "TELEPORT", body.Code)
	require.NotEmpty(t, body.Violations)
	assert.Equal(t, anticheat.TypeTeleport, body.Violations[0].Type)
}

func TestLocation_OnlySelf(t *testing.T) {
	e := newEnv(t)
	e.startGame(t, "p1", "p2")
	resp, _ := e.do(t, "PUT", "/players/p1/location", "p2", map[string]any{
		"latitude": 40.44, "longitude": -79.94, "timestamp": t0.UnixMilli(),
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestKillAttempt_EndToEnd(t *testing.T) {
	e := newEnv(t)
	id := e.startGame(t, "p1", "p2")

	// Both players together; p1 hunts p2 (two-player ring).
	resp, _ := e.reportLocation(t, "p1", 40.44000, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.reportLocation(t, "p2", 40.44004, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data := e.do(t, "POST", "/kills/attempt", "p1", map[string]any{
		"gameId": id, "victimId": "p2", "method": "BUTTON",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var out killResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, model.KillVerified, out.Status)
	assert.Equal(t, "p1", out.WinnerID, "two-player game ends on the first kill")

	resp, data = e.do(t, "GET", "/games/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var g model.Game
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, model.GameCompleted, g.Status)
}

func TestKillAttempt_SafeZoneReason(t *testing.T) {
	e := newEnv(t)
	id := e.startGame(t, "p1", "p2")

	resp, data := e.do(t, "POST", "/safezones", "p2", map[string]any{
		"gameId": id, "type": "PUBLIC", "name": "library",
		"center": map[string]float64{"latitude": 40.44, "longitude": -79.94}, "radiusMeters": 100,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, _ = e.reportLocation(t, "p1", 40.44004, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.reportLocation(t, "p2", 40.44000, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = e.do(t, "POST", "/kills/attempt", "p1", map[string]any{
		"gameId": id, "victimId": "p2", "method": "BUTTON",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "SAFE_ZONE", body.Code)
}

func TestEmergencyPause_BlocksKills(t *testing.T) {
	e := newEnv(t)
	id := e.startGame(t, "p1", "p2")

	resp, _ := e.reportLocation(t, "p1", 40.44000, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.reportLocation(t, "p2", 40.44004, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data := e.do(t, "POST", "/games/"+id+"/emergency/pause", "admin", map[string]any{"reason": "weather"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, data = e.do(t, "POST", "/kills/attempt", "p1", map[string]any{
		"gameId": id, "victimId": "p2", "method": "BUTTON",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "EMERGENCY_PAUSED", body.Code)

	resp, _ = e.do(t, "POST", "/games/"+id+"/emergency/resume", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.do(t, "POST", "/kills/attempt", "p1", map[string]any{
		"gameId": id, "victimId": "p2", "method": "BUTTON",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestKillPhotoReviewFlow(t *testing.T) {
	e := newEnv(t)
	id := e.startGame(t, "p1", "p2", "p3")

	resp, data := e.do(t, "GET", "/games/"+id+"/players", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var players []model.Player
	require.NoError(t, json.Unmarshal(data, &players))
	var victim string
	for _, p := range players {
		if p.ID == "p1" {
			victim = p.TargetID
		}
	}

	resp, _ = e.reportLocation(t, "p1", 40.44000, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.reportLocation(t, victim, 40.44004, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = e.do(t, "POST", "/kills/attempt", "p1", map[string]any{
		"gameId": id, "victimId": victim, "method": "PHOTO", "photoBase64": "aGVhZHNob3Q=",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var proposed killResponse
	require.NoError(t, json.Unmarshal(data, &proposed))
	assert.Equal(t, model.KillPendingReview, proposed.Status)
	require.NotEmpty(t, proposed.ID)

	resp, _ = e.do(t, "PUT", "/kills/"+proposed.ID+"/verify", victim, map[string]any{"isValid": true})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "only the admin reviews")

	resp, data = e.do(t, "PUT", "/kills/"+proposed.ID+"/verify", "admin", map[string]any{"isValid": true})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var verified killResponse
	require.NoError(t, json.Unmarshal(data, &verified))
	assert.Equal(t, model.KillVerified, verified.Status)
}

func TestSafeZoneCRUD(t *testing.T) {
	e := newEnv(t)
	id := e.startGame(t, "p1", "p2")

	resp, data := e.do(t, "POST", "/safezones", "p1", map[string]any{
		"gameId": id, "type": "PUBLIC", "name": "quad",
		"center": map[string]float64{"latitude": 40.44, "longitude": -79.94}, "radiusMeters": 50,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var zone model.SafeZone
	require.NoError(t, json.Unmarshal(data, &zone))

	resp, data = e.do(t, "GET", "/safezones?gameId="+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var zones []model.SafeZone
	require.NoError(t, json.Unmarshal(data, &zones))
	assert.Len(t, zones, 1)

	resp, _ = e.do(t, "PUT", "/safezones/"+zone.ID, "p2", map[string]any{"name": "stolen"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = e.do(t, "DELETE", "/safezones/"+zone.ID, "p1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, "GET", "/safezones/"+zone.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestZoneState_NotConfigured(t *testing.T) {
	e := newEnv(t)
	id := e.startGame(t, "p1", "p2")
	resp, _ := e.do(t, "GET", "/games/"+id+"/zone/state", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestZoneState_Snapshot(t *testing.T) {
	e := newEnv(t)

	resp, data := e.do(t, "POST", "/games", "admin", map[string]any{
		"name": "zoned",
		"settings": map[string]any{
			"shrinkingZoneConfig": map[string]any{
				"initialCenter":                map[string]float64{"latitude": 40.5, "longitude": -79.5},
				"initialRadiusMeters":          2000,
				"damagePerTickPerMeterOutside": 0.05,
				"maxDamagePerTick":             50,
				"stages": []map[string]any{{
					"waitSec": 0, "shrinkSec": 60, "holdSec": 30,
					"targetRadiusMeters": 500, "newCenterPolicy": "KEEP",
				}},
			},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var g model.Game
	require.NoError(t, json.Unmarshal(data, &g))

	resp, data = e.do(t, "PUT", "/games/"+g.ID+"/boundary", "admin", map[string]any{"boundary": boundary})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	for _, id := range []string{"p1", "p2"} {
		resp, _ = e.do(t, "POST", "/games/"+g.ID+"/join", id, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ = e.do(t, "POST", "/games/"+g.ID+"/assign-targets", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	e.clock.now = t0.Add(90 * time.Second)
	resp, data = e.do(t, "GET", "/games/"+g.ID+"/zone/state", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var state model.GameZoneState
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, 500.0, state.CurrentRadiusM)
}

func TestRoster_RedactsUnsharedLocations(t *testing.T) {
	e := newEnv(t)
	id := e.startGame(t, "p1", "p2")

	resp, _ := e.reportLocation(t, "p1", 40.44000, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.reportLocation(t, "p2", 40.44004, -79.94000, t0)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	off := false
	resp, data := e.do(t, "PATCH", "/players/p2/privacy", "p2", map[string]any{"locationSharingEnabled": off})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	roster := func(caller string) map[string]model.Player {
		resp, data := e.do(t, "GET", "/games/"+id+"/players", caller, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		var players []model.Player
		require.NoError(t, json.Unmarshal(data, &players))
		out := make(map[string]model.Player, len(players))
		for _, p := range players {
			out[p.ID] = p
		}
		return out
	}

	byP1 := roster("p1")
	assert.NotNil(t, byP1["p1"].Location, "sharing players stay visible")
	assert.Nil(t, byP1["p2"].Location, "unshared coordinates are hidden")
	assert.Nil(t, byP1["p2"].LocationTimestamp)

	byP2 := roster("p2")
	assert.NotNil(t, byP2["p2"].Location, "players always see their own position")

	byAdmin := roster("admin")
	assert.NotNil(t, byAdmin["p2"].Location, "the admin sees everyone")
}

func TestLeaderboard(t *testing.T) {
	e := newEnv(t)
	id := e.startGame(t, "p1", "p2", "p3")

	ctx := context.Background()
	p, err := e.st.GetPlayer(ctx, "p2")
	require.NoError(t, err)
	p.KillCount = 3
	require.NoError(t, e.st.PutPlayer(ctx, p))

	resp, data := e.do(t, "GET", fmt.Sprintf("/games/%s/leaderboard", id), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var board []model.Player
	require.NoError(t, json.Unmarshal(data, &board))
	require.Len(t, board, 3)
	assert.Equal(t, "p2", board[0].ID)
}
