// Package kill runs eliminations end to end: precondition checks at
// proposal time, per-method verification, and the single-transaction
// application that flips the victim, credits the killer, and rewires
// the cycle.
package kill

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"time"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/events"
	"github.com/antozhu/manhunt/internal/game/anticheat"
	"github.com/antozhu/manhunt/internal/game/assign"
	"github.com/antozhu/manhunt/internal/game/safezone"
	"github.com/antozhu/manhunt/internal/geo"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

const (
	// LocationMaxAge bounds how old both parties' samples may be.
	LocationMaxAge = 5 * time.Minute
	// RespondSeverity blocks kills from players whose last anti-cheat
	// sample scored at or above it.
	RespondSeverity = 7
	// conflictRetries bounds re-attempts after a version conflict.
	conflictRetries = 3
)

// Pipeline verifies and applies kills.
type Pipeline struct {
	store  store.Store
	zones  *safezone.Service
	assign *assign.Engine
	cheat  *anticheat.Validator
	hub    *events.Hub
}

// NewPipeline wires the kill pipeline.
func NewPipeline(st store.Store, zones *safezone.Service, eng *assign.Engine, cheat *anticheat.Validator, hub *events.Hub) *Pipeline {
	return &Pipeline{store: st, zones: zones, assign: eng, cheat: cheat, hub: hub}
}

// ProposeRequest is one kill attempt.
type ProposeRequest struct {
	GameID   string
	KillerID string
	VictimID string
	Method   model.VerificationMethod

	// Photo is the raw image for PHOTO kills; only its SHA-256 is stored.
	Photo    []byte
	PhotoURL string
	NFCTagID string
	Note     string
}

// Outcome reports what a verified kill changed.
type Outcome struct {
	Kill         *model.Kill
	Reassignment assign.Reassignment
	WinnerID     string
}

// Propose checks preconditions and runs the method's verification.
// BUTTON, NFC and GPS kills verify immediately; PHOTO kills park in
// PENDING_REVIEW until an admin decides. Precondition failures write a
// REJECTED kill row and return a typed error.
func (p *Pipeline) Propose(ctx context.Context, req ProposeRequest, now time.Time) (Outcome, error) {
	game, killer, victim, err := p.load(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	// Millisecond precision: the wire id carries killTime as epoch millis
	// and must round-trip back to the stored row.
	k := &model.Kill{
		KillerID: req.KillerID,
		KillTime: now.Truncate(time.Millisecond),
		GameID:   req.GameID,
		VictimID: req.VictimID,
		Method:   req.Method,
		Status:   model.KillPending,
		Data:     model.VerificationData{PhotoURL: req.PhotoURL, NFCTagID: req.NFCTagID, Note: req.Note},
	}
	if killer.Location != nil {
		k.Location = *killer.Location
	}
	if len(req.Photo) > 0 {
		sum := sha256.Sum256(req.Photo)
		k.Data.PhotoHash = hex.EncodeToString(sum[:])
	}

	if err := p.preconditions(ctx, game, killer, victim, now); err != nil {
		k.Status = model.KillRejected
		k.Data.Note = errs.CodeOf(err)
		if putErr := p.store.PutKill(ctx, k); putErr != nil {
			return Outcome{}, putErr
		}
		p.publish(events.TypeKillRejected, k, now, nil)
		return Outcome{Kill: k}, err
	}

	switch req.Method {
	case model.VerifyButton, model.VerifyGPS:
		// GPS adds nothing beyond the preconditions: range and safe-zone
		// checks already ran against both live locations.
	case model.VerifyNFC:
		if req.NFCTagID == "" {
			return Outcome{}, errs.Validation("MISSING_NFC_TAG", "NFC verification requires a tag id")
		}
	case model.VerifyPhoto:
		if len(req.Photo) == 0 && req.PhotoURL == "" {
			return Outcome{}, errs.Validation("MISSING_PHOTO", "PHOTO verification requires an image")
		}
		k.Status = model.KillPendingReview
		if err := p.store.PutKill(ctx, k); err != nil {
			return Outcome{}, err
		}
		p.publish(events.TypeKillProposed, k, now, nil)
		return Outcome{Kill: k}, nil
	default:
		return Outcome{}, errs.Validation("INVALID_METHOD", "unknown verification method %q", req.Method)
	}

	return p.apply(ctx, k, now)
}

// Verify settles a PENDING_REVIEW kill. Only the game admin may review.
func (p *Pipeline) Verify(ctx context.Context, killerID string, killTime time.Time, reviewerID string, isValid bool, now time.Time) (Outcome, error) {
	k, err := p.store.GetKill(ctx, killerID, killTime)
	if err != nil {
		return Outcome{}, err
	}
	if k == nil {
		return Outcome{}, errs.NotFound("kill %s@%s not found", killerID, killTime.Format(time.RFC3339))
	}
	if k.Status != model.KillPendingReview {
		return Outcome{}, errs.Conflict(errs.CodeWrongStatus, "kill is %s, not PENDING_REVIEW", k.Status)
	}
	game, err := p.store.GetGame(ctx, k.GameID)
	if err != nil {
		return Outcome{}, err
	}
	if game == nil {
		return Outcome{}, errs.NotFound("game %s not found", k.GameID)
	}
	if game.AdminPlayerID != reviewerID {
		return Outcome{}, errs.Unauthorized(errs.CodeNotAdmin, "only the game admin reviews kills")
	}

	k.VerifiedBy = reviewerID
	k.VerifiedAt = &now

	if !isValid {
		k.Status = model.KillRejected
		if err := p.store.PutKill(ctx, k); err != nil {
			return Outcome{}, err
		}
		p.publish(events.TypeKillRejected, k, now, nil)
		return Outcome{Kill: k}, nil
	}

	// The world may have moved since the proposal; the victim must still
	// be killable.
	victim, err := p.store.GetPlayer(ctx, k.VictimID)
	if err != nil {
		return Outcome{}, err
	}
	if victim == nil || victim.Status != model.PlayerActive {
		return Outcome{}, errs.Conflict(errs.CodeWrongStatus, "victim %s is no longer active", k.VictimID)
	}
	return p.apply(ctx, k, now)
}

// ByGame returns a game's kill feed.
func (p *Pipeline) ByGame(ctx context.Context, gameID string) ([]*model.Kill, error) {
	return p.store.KillsByGame(ctx, gameID)
}

func (p *Pipeline) load(ctx context.Context, req ProposeRequest) (*model.Game, *model.Player, *model.Player, error) {
	game, err := p.store.GetGame(ctx, req.GameID)
	if err != nil {
		return nil, nil, nil, err
	}
	if game == nil {
		return nil, nil, nil, errs.NotFound("game %s not found", req.GameID)
	}
	killer, err := p.store.GetPlayer(ctx, req.KillerID)
	if err != nil {
		return nil, nil, nil, err
	}
	if killer == nil {
		return nil, nil, nil, errs.NotFound("player %s not found", req.KillerID)
	}
	victim, err := p.store.GetPlayer(ctx, req.VictimID)
	if err != nil {
		return nil, nil, nil, err
	}
	if victim == nil {
		return nil, nil, nil, errs.NotFound("player %s not found", req.VictimID)
	}
	return game, killer, victim, nil
}

func (p *Pipeline) preconditions(ctx context.Context, game *model.Game, killer, victim *model.Player, now time.Time) error {
	if killer.Status != model.PlayerActive {
		return errs.Conflict(errs.CodeDeadKiller, "killer %s is %s", killer.ID, killer.Status)
	}
	if victim.Status != model.PlayerActive {
		return errs.Conflict(errs.CodeWrongStatus, "victim %s is %s", victim.ID, victim.Status)
	}
	if killer.GameID != game.ID || victim.GameID != game.ID {
		return errs.Validation(errs.CodeTargetMismatch, "killer and victim must both be in game %s", game.ID)
	}
	if game.Status != model.GameActive {
		return errs.Conflict(errs.CodeWrongStatus, "game %s is %s", game.ID, game.Status)
	}
	if game.Paused() {
		return errs.Conflict(errs.CodeEmergencyPaused, "game %s is emergency-paused", game.ID)
	}

	current, err := p.store.CurrentAssignmentForPlayer(ctx, game.ID, killer.ID)
	if err != nil {
		return err
	}
	if current == nil || current.TargetID != victim.ID {
		return errs.Validation(errs.CodeTargetMismatch, "%s is not %s's current target", victim.ID, killer.ID)
	}

	if !killer.HasRecentLocation(now, LocationMaxAge) || !victim.HasRecentLocation(now, LocationMaxAge) {
		return errs.Validation(errs.CodeStaleLocation, "both players need a location newer than %s", LocationMaxAge)
	}
	if d := geo.HaversineMeters(*killer.Location, *victim.Location); d > game.Settings.WeaponDistance() {
		return errs.Validation(errs.CodeOutOfRange,
			"%.1fm apart, weapon distance is %.1fm", d, game.Settings.WeaponDistance())
	}

	safe, err := p.zones.IsPointSafe(ctx, game.ID, victim.ID, *victim.Location, now)
	if err != nil {
		return err
	}
	if safe {
		return errs.Validation(errs.CodeSafeZone, "victim is inside an active safe zone")
	}

	if p.cheat != nil && p.cheat.LastSeverity(killer.ID) >= RespondSeverity {
		return errs.AntiCheat(errs.CodeAntiCheatScore,
			"killer's last location sample is flagged (severity %d)", p.cheat.LastSeverity(killer.ID))
	}
	return nil
}

// apply commits the verified kill in one conditional transaction, retrying
// a bounded number of times on version conflicts with fresh reads.
func (p *Pipeline) apply(ctx context.Context, k *model.Kill, now time.Time) (Outcome, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Outcome{}, ctx.Err()
			case <-time.After(time.Duration(10+rand.Intn(40)) * time.Millisecond):
			}
		}

		game, err := p.store.GetGame(ctx, k.GameID)
		if err != nil {
			return Outcome{}, err
		}
		if game == nil {
			return Outcome{}, errs.NotFound("game %s not found", k.GameID)
		}
		killer, err := p.store.GetPlayer(ctx, k.KillerID)
		if err != nil {
			return Outcome{}, err
		}
		victim, err := p.store.GetPlayer(ctx, k.VictimID)
		if err != nil {
			return Outcome{}, err
		}
		if killer == nil || victim == nil {
			return Outcome{}, errs.NotFound("kill parties no longer exist")
		}
		if victim.Status != model.PlayerActive {
			return Outcome{}, errs.Conflict(errs.CodeWrongStatus, "victim %s is no longer active", victim.ID)
		}

		var res assign.Reassignment
		err = p.store.Transact(ctx, k.GameID, game.Version, func(tx store.Tx) error {
			k.Status = model.KillVerified
			if err := tx.PutKill(ctx, k); err != nil {
				return err
			}

			victim.Status = model.PlayerDead
			victim.TargetID = ""
			victim.TargetName = ""
			if err := tx.PutPlayer(ctx, victim); err != nil {
				return err
			}

			killer.KillCount++
			res, err = p.assign.Reassign(ctx, tx, k.GameID, killer, victim, now)
			if err != nil {
				return err
			}

			if res.WinnerID != "" {
				game.Status = model.GameCompleted
				game.WinnerID = res.WinnerID
				ended := now
				game.EndedAt = &ended
				return tx.PutGame(ctx, game)
			}
			return nil
		})
		if err != nil {
			if errs.IsConflict(err) {
				lastErr = err
				continue
			}
			return Outcome{}, err
		}

		p.publish(events.TypeKillVerified, k, now, map[string]any{"killCount": killer.KillCount})
		if res.NewTargetID != "" {
			p.hub.Publish(events.Event{
				Type: events.TypeTargetAssigned, GameID: k.GameID, PlayerID: k.KillerID, At: now,
				Payload: map[string]any{"targetId": res.NewTargetID},
			})
		}
		if res.WinnerID != "" {
			p.hub.Publish(events.Event{
				Type: events.TypeGameCompleted, GameID: k.GameID, PlayerID: res.WinnerID, At: now,
			})
		}
		return Outcome{Kill: k, Reassignment: res, WinnerID: res.WinnerID}, nil
	}
	return Outcome{}, lastErr
}

func (p *Pipeline) publish(typ string, k *model.Kill, now time.Time, extra map[string]any) {
	payload := map[string]any{"victimId": k.VictimID, "method": k.Method, "status": k.Status}
	for key, v := range extra {
		payload[key] = v
	}
	p.hub.Publish(events.Event{Type: typ, GameID: k.GameID, PlayerID: k.KillerID, At: now, Payload: payload})
}
