// Package httpapi is the REST/JSON adapter. Handlers parse, delegate to
// the game services, and encode; all error-to-status mapping lives in
// writeError.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/antozhu/manhunt/internal/events"
	"github.com/antozhu/manhunt/internal/game/coordinator"
	"github.com/antozhu/manhunt/internal/game/kill"
	"github.com/antozhu/manhunt/internal/game/proximity"
	"github.com/antozhu/manhunt/internal/game/safezone"
	"github.com/antozhu/manhunt/internal/game/shrink"
	"github.com/antozhu/manhunt/internal/scheduler"
	"github.com/antozhu/manhunt/internal/store"
)

// Server bundles the services behind the REST surface.
type Server struct {
	store store.Store
	coord *coordinator.Coordinator
	kills *kill.Pipeline
	zones *safezone.Service
	prox  *proximity.Service
	shr   *shrink.Engine
	hub   *events.Hub
	clock scheduler.Clock
	log   *slog.Logger

	requestTimeout time.Duration
	corsOrigins    []string
}

// Options carries the optional knobs for NewServer.
type Options struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
	Clock          scheduler.Clock
}

// NewServer wires the REST adapter.
func NewServer(st store.Store, coord *coordinator.Coordinator, kills *kill.Pipeline, zones *safezone.Service, prox *proximity.Service, shr *shrink.Engine, hub *events.Hub, log *slog.Logger, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = scheduler.RealClock()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{
		store: st, coord: coord, kills: kills, zones: zones, prox: prox,
		shr: shr, hub: hub, clock: opts.Clock, log: log,
		requestTimeout: opts.RequestTimeout, corsOrigins: opts.CORSOrigins,
	}
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /games", s.handleCreateGame)
	mux.HandleFunc("GET /games", s.handleListGames)
	mux.HandleFunc("GET /games/{id}", s.handleGetGame)
	mux.HandleFunc("PATCH /games/{id}", s.handlePatchGame)
	mux.HandleFunc("DELETE /games/{id}", s.handleDeleteGame)
	mux.HandleFunc("PUT /games/{id}/boundary", s.handleBoundary)
	mux.HandleFunc("POST /games/{id}/join", s.handleJoin)
	mux.HandleFunc("POST /games/{id}/leave", s.handleLeave)
	mux.HandleFunc("POST /games/{id}/assign-targets", s.handleAssignTargets)
	mux.HandleFunc("GET /games/{id}/players", s.handleRoster)
	mux.HandleFunc("GET /games/{id}/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /games/{id}/assignments", s.handleAssignments)
	mux.HandleFunc("GET /games/{id}/kills", s.handleGameKills)
	mux.HandleFunc("GET /games/{id}/zone/state", s.handleZoneState)
	mux.HandleFunc("POST /games/{id}/emergency/pause", s.handlePause)
	mux.HandleFunc("POST /games/{id}/emergency/resume", s.handleResume)

	mux.HandleFunc("GET /players/{id}", s.handleGetPlayer)
	mux.HandleFunc("PUT /players/{id}/location", s.handleLocation)
	mux.HandleFunc("PATCH /players/{id}/privacy", s.handlePrivacy)
	mux.HandleFunc("GET /players/{id}/proximity", s.handleProximity)

	mux.HandleFunc("POST /safezones", s.handleCreateZone)
	mux.HandleFunc("GET /safezones", s.handleListZones)
	mux.HandleFunc("GET /safezones/{id}", s.handleGetZone)
	mux.HandleFunc("PUT /safezones/{id}", s.handleUpdateZone)
	mux.HandleFunc("DELETE /safezones/{id}", s.handleDeleteZone)
	mux.HandleFunc("POST /safezones/{id}/relocate", s.handleRelocateZone)

	mux.HandleFunc("POST /kills/attempt", s.handleKillAttempt)
	mux.HandleFunc("PUT /kills/{id}/photo", s.handleKillPhoto)
	mux.HandleFunc("PUT /kills/{id}/verify", s.handleKillVerify)

	rest := http.TimeoutHandler(mux, s.requestTimeout, `{"message":"deadline exceeded","code":"TIMEOUT"}`)

	// The websocket stream hijacks the connection and cannot sit behind
	// TimeoutHandler.
	outer := http.NewServeMux()
	outer.HandleFunc("GET /games/{id}/events", s.handleEvents)
	outer.Handle("/", rest)

	var h http.Handler = outer
	h = withIdentity(h)
	h = withCORS(s.corsOrigins, h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
