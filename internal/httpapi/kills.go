package httpapi

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/game/kill"
	"github.com/antozhu/manhunt/internal/model"
)

// Kill ids on the wire are "<killerId>:<killTime epoch millis>", mirroring
// the composite storage key.
func killID(k *model.Kill) string {
	return k.KillerID + ":" + strconv.FormatInt(k.KillTime.UnixMilli(), 10)
}

func parseKillID(id string) (string, time.Time, error) {
	i := strings.LastIndexByte(id, ':')
	if i <= 0 || i == len(id)-1 {
		return "", time.Time{}, errs.Validation("INVALID_KILL_ID", "kill id must be killerId:epochMillis")
	}
	millis, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, errs.Validation("INVALID_KILL_ID", "kill id must be killerId:epochMillis")
	}
	return id[:i], time.UnixMilli(millis).UTC(), nil
}

type killAttemptRequest struct {
	GameID      string                   `json:"gameId"`
	VictimID    string                   `json:"victimId"`
	Method      model.VerificationMethod `json:"method"`
	PhotoBase64 string                   `json:"photoBase64,omitempty"`
	PhotoURL    string                   `json:"photoUrl,omitempty"`
	NFCTagID    string                   `json:"nfcTagId,omitempty"`
	Note        string                   `json:"note,omitempty"`
}

type killResponse struct {
	ID string `json:"id"`
	*model.Kill
	NewTargetID string `json:"newTargetId,omitempty"`
	WinnerID    string `json:"winnerId,omitempty"`
}

func (s *Server) handleKillAttempt(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req killAttemptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}

	var photo []byte
	if req.PhotoBase64 != "" {
		photo, err = base64.StdEncoding.DecodeString(req.PhotoBase64)
		if err != nil {
			writeError(w, s.log, errs.Validation("INVALID_PHOTO", "photoBase64 is not valid base64"))
			return
		}
	}

	out, err := s.kills.Propose(r.Context(), kill.ProposeRequest{
		GameID:   req.GameID,
		KillerID: caller,
		VictimID: req.VictimID,
		Method:   req.Method,
		Photo:    photo,
		PhotoURL: req.PhotoURL,
		NFCTagID: req.NFCTagID,
		Note:     req.Note,
	}, s.clock.Now())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, killResponse{
		ID:          killID(out.Kill),
		Kill:        out.Kill,
		NewTargetID: out.Reassignment.NewTargetID,
		WinnerID:    out.WinnerID,
	})
}

type killPhotoRequest struct {
	PhotoBase64 string `json:"photoBase64,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// handleKillPhoto attaches evidence to a kill awaiting review.
func (s *Server) handleKillPhoto(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	killerID, killTime, err := parseKillID(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if caller != killerID {
		writeError(w, s.log, errs.Unauthorized(errs.CodeNotOwner, "only the killer attaches evidence"))
		return
	}
	var req killPhotoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if req.PhotoBase64 == "" && req.PhotoURL == "" {
		writeError(w, s.log, errs.Validation("MISSING_PHOTO", "photoBase64 or photoUrl is required"))
		return
	}

	k, err := s.store.GetKill(r.Context(), killerID, killTime)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if k == nil {
		writeError(w, s.log, errs.NotFound("kill %s not found", r.PathValue("id")))
		return
	}
	if k.Status != model.KillPendingReview {
		writeError(w, s.log, errs.Conflict(errs.CodeWrongStatus, "kill is %s, not PENDING_REVIEW", k.Status))
		return
	}

	if req.PhotoBase64 != "" {
		photo, err := base64.StdEncoding.DecodeString(req.PhotoBase64)
		if err != nil {
			writeError(w, s.log, errs.Validation("INVALID_PHOTO", "photoBase64 is not valid base64"))
			return
		}
		sum := sha256.Sum256(photo)
		k.Data.PhotoHash = hex.EncodeToString(sum[:])
	}
	if req.PhotoURL != "" {
		k.Data.PhotoURL = req.PhotoURL
	}
	if err := s.store.PutKill(r.Context(), k); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, killResponse{ID: killID(k), Kill: k})
}

type killVerifyRequest struct {
	IsValid bool `json:"isValid"`
}

func (s *Server) handleKillVerify(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	killerID, killTime, err := parseKillID(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	var req killVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	out, err := s.kills.Verify(r.Context(), killerID, killTime, caller, req.IsValid, s.clock.Now())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, killResponse{
		ID:          killID(out.Kill),
		Kill:        out.Kill,
		NewTargetID: out.Reassignment.NewTargetID,
		WinnerID:    out.WinnerID,
	})
}
