package httpapi

import (
	"net/http"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/game/anticheat"
	"github.com/antozhu/manhunt/internal/game/coordinator"
	"github.com/antozhu/manhunt/internal/model"
)

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.coord.Player(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type locationRequest struct {
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Accuracy    float64           `json:"accuracy,omitempty"`
	Timestamp   model.FlexTime    `json:"timestamp"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// handleLocation ingests a location sample. A clean update is 204; an
// anti-cheat rejection is 400 with the violation list.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	playerID := r.PathValue("id")
	if caller != playerID {
		writeError(w, s.log, errs.Unauthorized(errs.CodeNotOwner, "players report their own location"))
		return
	}
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}

	now := s.clock.Now()
	ts := req.Timestamp.Time
	if ts.IsZero() {
		ts = now
	}
	res, err := s.coord.ReportLocation(r.Context(), playerID, anticheat.Sample{
		Coord:       model.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		AccuracyM:   req.Accuracy,
		Timestamp:   ts,
		Fingerprint: req.Fingerprint,
		Metadata:    req.Metadata,
	}, now)
	if err != nil {
		if errs.KindOf(err) == errs.KindAntiCheat {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message":    "location rejected",
				"code":       errs.CodeOf(err),
				"violations": res.Validation.Violations,
			})
			return
		}
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type privacyRequest struct {
	LocationSharingEnabled *bool                     `json:"locationSharingEnabled,omitempty"`
	LocationVisibility     *model.LocationVisibility `json:"locationVisibility,omitempty"`
	LocationPrecision      *model.LocationPrecision  `json:"locationPrecision,omitempty"`
}

func (s *Server) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	playerID := r.PathValue("id")
	if caller != playerID {
		writeError(w, s.log, errs.Unauthorized(errs.CodeNotOwner, "players change their own privacy settings"))
		return
	}
	var req privacyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	p, err := s.coord.UpdatePrivacy(r.Context(), playerID, coordinator.PrivacyPatch{
		SharingEnabled: req.LocationSharingEnabled,
		Visibility:     req.LocationVisibility,
		Precision:      req.LocationPrecision,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProximity(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	playerID := r.PathValue("id")
	if caller != playerID {
		writeError(w, s.log, errs.Unauthorized(errs.CodeNotOwner, "players read their own proximity"))
		return
	}
	res, ok := s.prox.RecentProximity(playerID, s.clock.Now())
	if !ok {
		writeError(w, s.log, errs.NotFound("no recent proximity for player %s", playerID))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
