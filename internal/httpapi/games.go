package httpapi

import (
	"net/http"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
)

type createGameRequest struct {
	Name     string             `json:"name"`
	Settings model.GameSettings `json:"settings"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	adminID, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req createGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	g, err := s.coord.CreateGame(r.Context(), req.Name, adminID, req.Settings, s.clock.Now())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	status := model.GameStatus(r.URL.Query().Get("status"))
	games, err := s.coord.List(r.Context(), status)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.coord.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type patchGameRequest struct {
	Status model.GameStatus `json:"status"`
}

// handlePatchGame drives status transitions: ACTIVE starts, COMPLETED
// force-ends, CANCELLED cancels a pending game.
func (s *Server) handlePatchGame(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req patchGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}

	id := r.PathValue("id")
	var g *model.Game
	switch req.Status {
	case model.GameActive:
		g, err = s.coord.StartGame(r.Context(), id, caller, s.clock.Now())
	case model.GameCompleted:
		g, err = s.coord.ForceEndGame(r.Context(), id, caller, s.clock.Now())
	case model.GameCancelled:
		if err = s.coord.CancelGame(r.Context(), id, caller); err == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": string(model.GameCancelled)})
			return
		}
	default:
		err = errs.Validation("INVALID_STATUS", "cannot transition to %q", req.Status)
	}
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.coord.CancelGame(r.Context(), r.PathValue("id"), caller); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type boundaryRequest struct {
	Boundary []model.Coordinate `json:"boundary"`
}

func (s *Server) handleBoundary(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req boundaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	g, err := s.coord.UpdateBoundary(r.Context(), r.PathValue("id"), req.Boundary, caller)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type joinRequest struct {
	Name string `json:"name,omitempty"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req joinRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, s.log, err)
			return
		}
	}
	p, err := s.coord.JoinGame(r.Context(), r.PathValue("id"), caller, req.Name)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.coord.LeaveGame(r.Context(), r.PathValue("id"), caller, s.clock.Now()); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssignTargets(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	g, err := s.coord.StartGame(r.Context(), r.PathValue("id"), caller, s.clock.Now())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	g, err := s.coord.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	players, err := s.coord.Roster(r.Context(), g.ID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	caller, _ := callerID(r)
	writeJSON(w, http.StatusOK, redactRoster(players, caller, g.AdminPlayerID))
}

// redactRoster strips coordinates of players who disabled location sharing.
// Players always see their own position; the game admin sees everyone's.
func redactRoster(players []*model.Player, caller, adminID string) []*model.Player {
	if caller != "" && caller == adminID {
		return players
	}
	for _, p := range players {
		if p.LocationSharingEnabled || p.ID == caller {
			continue
		}
		p.Location = nil
		p.AccuracyM = nil
		p.LocationTimestamp = nil
	}
	return players
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.coord.Leaderboard(r.Context(), r.PathValue("id"), 0)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleAssignments(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	edges, err := s.coord.ActiveAssignments(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, edges)
}

func (s *Server) handleGameKills(w http.ResponseWriter, r *http.Request) {
	if _, err := s.coord.Get(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	kills, err := s.kills.ByGame(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, kills)
}

// handleZoneState serves the zone snapshot implied by now, advancing the
// persisted state if the schedule moved on since the last tick.
func (s *Server) handleZoneState(w http.ResponseWriter, r *http.Request) {
	g, err := s.coord.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if g.Settings.ShrinkingZone == nil {
		writeError(w, s.log, errs.NotFound("game %s has no shrinking zone", g.ID))
		return
	}
	state, err := s.shr.Advance(r.Context(), g, s.clock.Now())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req pauseRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, s.log, err)
			return
		}
	}
	g, err := s.coord.EmergencyPause(r.Context(), r.PathValue("id"), req.Reason, caller, s.clock.Now())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	g, err := s.coord.EmergencyResume(r.Context(), r.PathValue("id"), caller, s.clock.Now())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
