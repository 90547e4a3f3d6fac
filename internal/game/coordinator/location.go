package coordinator

import (
	"context"
	"sort"
	"time"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/game/anticheat"
	"github.com/antozhu/manhunt/internal/game/proximity"
	"github.com/antozhu/manhunt/internal/geo"
	"github.com/antozhu/manhunt/internal/model"
)

// LocationResult reports what a location update did.
type LocationResult struct {
	// Accepted is false when the sample was discarded as out of order.
	Accepted   bool               `json:"accepted"`
	Validation anticheat.Result   `json:"validation"`
	Proximity  *proximity.Result  `json:"proximity,omitempty"`
}

// ReportLocation ingests one location sample: anti-cheat scoring, ordered
// storage, and proximity recomputation. Samples older than the stored one
// are discarded without error; severity >=9 violations reject the update
// and leave the stored location unchanged.
func (c *Coordinator) ReportLocation(ctx context.Context, playerID string, sample anticheat.Sample, now time.Time) (LocationResult, error) {
	if err := geo.ValidateCoordinate(sample.Coord); err != nil {
		return LocationResult{}, err
	}
	p, err := c.store.GetPlayer(ctx, playerID)
	if err != nil {
		return LocationResult{}, err
	}
	if p == nil {
		return LocationResult{}, errs.NotFound("player %s not found", playerID)
	}

	if p.LocationTimestamp != nil && sample.Timestamp.Before(*p.LocationTimestamp) {
		// Within tolerance this is ordinary out-of-order delivery; beyond it
		// the device clock is suspect and the validator scores the skew.
		// Either way the stored location keeps the newer sample.
		if p.LocationTimestamp.Sub(sample.Timestamp) <= anticheat.ClockSkewTolerance {
			return LocationResult{Accepted: false}, nil
		}
		res := c.cheat.Validate(playerID, sample)
		return LocationResult{Accepted: false, Validation: res}, nil
	}

	res := c.cheat.Validate(playerID, sample)
	if !res.Valid {
		return LocationResult{Validation: res}, errs.AntiCheat(errs.CodeTeleport,
			"location rejected with severity %d", res.MaxSeverity())
	}
	if sev := res.MaxSeverity(); sev >= anticheat.RespondSeverity {
		c.log.Warn("location sample flagged",
			"player_id", playerID, "severity", sev, "violations", len(res.Violations))
	}

	coord := sample.Coord
	ts := sample.Timestamp
	p.Location = &coord
	p.LocationTimestamp = &ts
	if sample.AccuracyM > 0 {
		acc := sample.AccuracyM
		p.AccuracyM = &acc
	}
	if err := c.store.PutPlayer(ctx, p); err != nil {
		return LocationResult{}, err
	}

	out := LocationResult{Accepted: true, Validation: res}
	if c.prox != nil && p.GameID != "" {
		prox, err := c.prox.OnLocationUpdate(ctx, p, now)
		if err != nil {
			// Proximity is derived state; a failure must not fail the update.
			c.log.Error("proximity recompute failed", "player_id", playerID, "error", err)
		} else {
			out.Proximity = prox
		}
	}
	return out, nil
}

// PrivacyPatch updates a player's location-sharing preferences. The three
// fields are independent; no cross-constraints are enforced.
type PrivacyPatch struct {
	SharingEnabled *bool
	Visibility     *model.LocationVisibility
	Precision      *model.LocationPrecision
}

// UpdatePrivacy applies a privacy patch to the player's own record.
func (c *Coordinator) UpdatePrivacy(ctx context.Context, playerID string, patch PrivacyPatch) (*model.Player, error) {
	p, err := c.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.NotFound("player %s not found", playerID)
	}
	if patch.SharingEnabled != nil {
		p.LocationSharingEnabled = *patch.SharingEnabled
	}
	if patch.Visibility != nil {
		switch *patch.Visibility {
		case model.VisibilityGameOnly, model.VisibilityTeamOnly, model.VisibilityFriendsOnly, model.VisibilityPrivate:
		default:
			return nil, errs.Validation("INVALID_VISIBILITY", "unknown visibility %q", *patch.Visibility)
		}
		p.LocationVisibility = *patch.Visibility
	}
	if patch.Precision != nil {
		switch *patch.Precision {
		case model.PrecisionExact, model.PrecisionApproximate, model.PrecisionZone:
		default:
			return nil, errs.Validation("INVALID_PRECISION", "unknown precision %q", *patch.Precision)
		}
		p.LocationPrecision = *patch.Precision
	}
	if err := c.store.PutPlayer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Player returns a player or NotFound.
func (c *Coordinator) Player(ctx context.Context, id string) (*model.Player, error) {
	p, err := c.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errs.NotFound("player %s not found", id)
	}
	return p, nil
}

// Leaderboard returns a game's ACTIVE and DEAD players by kill count.
func (c *Coordinator) Leaderboard(ctx context.Context, gameID string, limit int) ([]*model.Player, error) {
	players, err := c.Roster(ctx, gameID)
	if err != nil {
		return nil, err
	}
	ranked := make([]*model.Player, 0, len(players))
	for _, p := range players {
		if p.Status == model.PlayerActive || p.Status == model.PlayerDead {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].KillCount > ranked[j].KillCount })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
