package httpapi

import (
	"net/http"
	"time"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/game/safezone"
	"github.com/antozhu/manhunt/internal/model"
)

type createZoneRequest struct {
	GameID              string             `json:"gameId"`
	Type                model.SafeZoneType `json:"type"`
	Name                string             `json:"name,omitempty"`
	Description         string             `json:"description,omitempty"`
	Center              model.Coordinate   `json:"center"`
	RadiusM             float64            `json:"radiusMeters"`
	AuthorizedPlayerIDs []string           `json:"authorizedPlayerIds,omitempty"`
	StartTime           *model.FlexTime    `json:"startTime,omitempty"`
	EndTime             *model.FlexTime    `json:"endTime,omitempty"`
}

func flexPtr(t *model.FlexTime) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	out := t.Time
	return &out
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req createZoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	zone, err := s.zones.Create(r.Context(), safezone.CreateRequest{
		GameID:              req.GameID,
		Type:                req.Type,
		Name:                req.Name,
		Description:         req.Description,
		Center:              req.Center,
		RadiusM:             req.RadiusM,
		CreatedBy:           caller,
		AuthorizedPlayerIDs: req.AuthorizedPlayerIDs,
		StartTime:           flexPtr(req.StartTime),
		EndTime:             flexPtr(req.EndTime),
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, zone)
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gameID := q.Get("gameId")
	if gameID == "" {
		writeError(w, s.log, errs.Validation("MISSING_GAME_ID", "gameId query parameter is required"))
		return
	}
	zones, err := s.zones.List(r.Context(), gameID, safezone.Filters{
		ActiveOnly: q.Get("activeOnly") == "true",
		Type:       model.SafeZoneType(q.Get("type")),
		At:         s.clock.Now(),
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	zone, err := s.zones.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

type updateZoneRequest struct {
	Name                *string           `json:"name,omitempty"`
	Description         *string           `json:"description,omitempty"`
	RadiusM             *float64          `json:"radiusMeters,omitempty"`
	Center              *model.Coordinate `json:"center,omitempty"`
	AuthorizedPlayerIDs []string          `json:"authorizedPlayerIds,omitempty"`
	StartTime           *model.FlexTime   `json:"startTime,omitempty"`
	EndTime             *model.FlexTime   `json:"endTime,omitempty"`
}

func (s *Server) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req updateZoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	zone, err := s.zones.Update(r.Context(), r.PathValue("id"), safezone.Patch{
		Name:                req.Name,
		Description:         req.Description,
		RadiusM:             req.RadiusM,
		Center:              req.Center,
		AuthorizedPlayerIDs: req.AuthorizedPlayerIDs,
		StartTime:           flexPtr(req.StartTime),
		EndTime:             flexPtr(req.EndTime),
	}, caller)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.zones.Delete(r.Context(), r.PathValue("id"), caller); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type relocateRequest struct {
	Center model.Coordinate `json:"center"`
}

func (s *Server) handleRelocateZone(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req relocateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	zone, err := s.zones.Relocate(r.Context(), r.PathValue("id"), caller, req.Center, s.clock.Now())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}
