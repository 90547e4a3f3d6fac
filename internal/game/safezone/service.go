// Package safezone manages elimination-free zones: CRUD, time-windowed
// activation, and point-in-zone checks with per-type authorization.
package safezone

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/geo"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

// RelocationCooldown throttles how often a RELOCATABLE zone may move.
const RelocationCooldown = 30 * time.Minute

// Service manages safe zones for games.
type Service struct {
	store store.Store
}

// NewService returns a Service backed by the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// CreateRequest carries the fields for a new zone.
type CreateRequest struct {
	GameID              string
	Type                model.SafeZoneType
	Name                string
	Description         string
	Center              model.Coordinate
	RadiusM             float64
	CreatedBy           string
	AuthorizedPlayerIDs []string
	StartTime, EndTime  *time.Time
}

// Create validates and persists a new safe zone.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.SafeZone, error) {
	game, err := s.store.GetGame(ctx, req.GameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, errs.NotFound("game %s not found", req.GameID)
	}
	if err := validateGeometry(game, req.Center, req.RadiusM); err != nil {
		return nil, err
	}

	switch req.Type {
	case model.ZonePublic, model.ZonePrivate, model.ZoneTimed, model.ZoneRelocatable:
	default:
		return nil, errs.Validation("INVALID_ZONE_TYPE", "unknown safe zone type %q", req.Type)
	}
	if req.Type == model.ZoneTimed {
		if req.StartTime == nil || req.EndTime == nil {
			return nil, errs.Validation("MISSING_TIME_WINDOW", "TIMED zone requires startTime and endTime")
		}
		if !req.EndTime.After(*req.StartTime) {
			return nil, errs.Validation("INVALID_TIME_WINDOW", "endTime must be after startTime")
		}
	}

	zone := &model.SafeZone{
		ID:                  uuid.NewString(),
		GameID:              req.GameID,
		Type:                req.Type,
		Center:              req.Center,
		RadiusM:             req.RadiusM,
		Name:                req.Name,
		Description:         req.Description,
		CreatedBy:           req.CreatedBy,
		AuthorizedPlayerIDs: req.AuthorizedPlayerIDs,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
	}
	if zone.AuthorizedPlayerIDs == nil {
		zone.AuthorizedPlayerIDs = []string{}
	}
	if err := s.store.PutSafeZone(ctx, zone); err != nil {
		return nil, err
	}
	return zone, nil
}

// Patch is a partial update applied by Update.
type Patch struct {
	Name                *string
	Description         *string
	RadiusM             *float64
	Center              *model.Coordinate
	AuthorizedPlayerIDs []string
	StartTime, EndTime  *time.Time
}

// Update applies a patch. Only the creator or the game admin may edit.
func (s *Service) Update(ctx context.Context, id string, patch Patch, requestingPlayerID string) (*model.SafeZone, error) {
	zone, game, err := s.zoneAndGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if zone.CreatedBy != requestingPlayerID && game.AdminPlayerID != requestingPlayerID {
		return nil, errs.Unauthorized(errs.CodeNotOwner, "player %s may not edit zone %s", requestingPlayerID, id)
	}

	if patch.Name != nil {
		zone.Name = *patch.Name
	}
	if patch.Description != nil {
		zone.Description = *patch.Description
	}
	if patch.RadiusM != nil {
		zone.RadiusM = *patch.RadiusM
	}
	if patch.Center != nil {
		zone.Center = *patch.Center
	}
	if patch.AuthorizedPlayerIDs != nil {
		zone.AuthorizedPlayerIDs = patch.AuthorizedPlayerIDs
	}
	if patch.StartTime != nil {
		zone.StartTime = patch.StartTime
	}
	if patch.EndTime != nil {
		zone.EndTime = patch.EndTime
	}
	if zone.Type == model.ZoneTimed && zone.StartTime != nil && zone.EndTime != nil &&
		!zone.EndTime.After(*zone.StartTime) {
		return nil, errs.Validation("INVALID_TIME_WINDOW", "endTime must be after startTime")
	}
	if err := validateGeometry(game, zone.Center, zone.RadiusM); err != nil {
		return nil, err
	}
	if err := s.store.PutSafeZone(ctx, zone); err != nil {
		return nil, err
	}
	return zone, nil
}

// Relocate moves a RELOCATABLE zone. Owner-only, subject to cooldown.
func (s *Service) Relocate(ctx context.Context, id, requestingPlayerID string, newCenter model.Coordinate, now time.Time) (*model.SafeZone, error) {
	zone, game, err := s.zoneAndGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if zone.Type != model.ZoneRelocatable {
		return nil, errs.Validation("NOT_RELOCATABLE", "zone %s is %s, not RELOCATABLE", id, zone.Type)
	}
	if zone.CreatedBy != requestingPlayerID {
		return nil, errs.Unauthorized(errs.CodeNotOwner, "only the owner may relocate zone %s", id)
	}
	if zone.RelocationCooldownUntil != nil && now.Before(*zone.RelocationCooldownUntil) {
		return nil, errs.Conflict(errs.CodeCooldown,
			"zone %s may not relocate until %s", id, zone.RelocationCooldownUntil.Format(time.RFC3339))
	}
	if err := validateGeometry(game, newCenter, zone.RadiusM); err != nil {
		return nil, err
	}

	zone.Center = newCenter
	cooldown := now.Add(RelocationCooldown)
	zone.RelocationCooldownUntil = &cooldown
	if err := s.store.PutSafeZone(ctx, zone); err != nil {
		return nil, err
	}
	return zone, nil
}

// Delete removes a zone. Only the creator or the game admin may delete.
func (s *Service) Delete(ctx context.Context, id, requestingPlayerID string) error {
	zone, game, err := s.zoneAndGame(ctx, id)
	if err != nil {
		return err
	}
	if zone.CreatedBy != requestingPlayerID && game.AdminPlayerID != requestingPlayerID {
		return errs.Unauthorized(errs.CodeNotOwner, "player %s may not delete zone %s", requestingPlayerID, id)
	}
	return s.store.DeleteSafeZone(ctx, id)
}

// Get returns the zone by id.
func (s *Service) Get(ctx context.Context, id string) (*model.SafeZone, error) {
	zone, err := s.store.GetSafeZone(ctx, id)
	if err != nil {
		return nil, err
	}
	if zone == nil {
		return nil, errs.NotFound("safe zone %s not found", id)
	}
	return zone, nil
}

// Filters narrows List results.
type Filters struct {
	ActiveOnly bool
	Type       model.SafeZoneType
	At         time.Time
}

// List returns a game's zones, optionally filtered.
func (s *Service) List(ctx context.Context, gameID string, f Filters) ([]*model.SafeZone, error) {
	zones, err := s.store.SafeZonesByGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	out := zones[:0]
	for _, z := range zones {
		if f.Type != "" && z.Type != f.Type {
			continue
		}
		if f.ActiveOnly && !z.ActiveAt(f.At) {
			continue
		}
		out = append(out, z)
	}
	return out, nil
}

// ActiveZonesAt returns the zones whose type and window permit them at t.
// A zone is only live while its game is ACTIVE; the caller checks that once
// rather than per zone.
func (s *Service) ActiveZonesAt(ctx context.Context, gameID string, t time.Time) ([]*model.SafeZone, error) {
	return s.List(ctx, gameID, Filters{ActiveOnly: true, At: t})
}

// IsPointSafe reports whether coord lies within any zone active at t that
// authorizes playerID. A point exactly on the radius counts as inside.
func (s *Service) IsPointSafe(ctx context.Context, gameID, playerID string, coord model.Coordinate, t time.Time) (bool, error) {
	zones, err := s.ActiveZonesAt(ctx, gameID, t)
	if err != nil {
		return false, err
	}
	for _, z := range zones {
		if !z.Protects(playerID) {
			continue
		}
		if geo.HaversineMeters(z.Center, coord) <= z.RadiusM {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) zoneAndGame(ctx context.Context, id string) (*model.SafeZone, *model.Game, error) {
	zone, err := s.store.GetSafeZone(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if zone == nil {
		return nil, nil, errs.NotFound("safe zone %s not found", id)
	}
	game, err := s.store.GetGame(ctx, zone.GameID)
	if err != nil {
		return nil, nil, err
	}
	if game == nil {
		return nil, nil, errs.NotFound("game %s not found", zone.GameID)
	}
	return zone, game, nil
}

// validateGeometry enforces radius bounds and boundary containment.
func validateGeometry(game *model.Game, center model.Coordinate, radiusM float64) error {
	if err := geo.ValidateCoordinate(center); err != nil {
		return err
	}
	if radiusM < model.MinSafeZoneRadiusM || radiusM > model.MaxSafeZoneRadiusM {
		return errs.Validation("INVALID_RADIUS",
			"radius %.1fm outside [%.0f, %.0f]", radiusM, model.MinSafeZoneRadiusM, model.MaxSafeZoneRadiusM)
	}
	if len(game.Boundary) >= 3 {
		boundary, err := geo.NewBoundary(game.Boundary)
		if err != nil {
			return err
		}
		if !boundary.Contains(center) {
			return errs.Validation("OUTSIDE_BOUNDARY", "zone center lies outside the game boundary")
		}
	}
	return nil
}
