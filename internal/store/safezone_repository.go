package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
)

const safeZoneColumns = `id, game_id, type, latitude, longitude, radius_m, name, description,
	created_by, authorized_player_ids, start_time, end_time, relocation_cooldown_until`

func scanSafeZone(row pgx.Row) (*model.SafeZone, error) {
	var z model.SafeZone
	var authorized []byte
	err := row.Scan(&z.ID, &z.GameID, &z.Type, &z.Center.Latitude, &z.Center.Longitude,
		&z.RadiusM, &z.Name, &z.Description, &z.CreatedBy, &authorized,
		&z.StartTime, &z.EndTime, &z.RelocationCooldownUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(err, "scanning safe zone row")
	}
	if len(authorized) > 0 {
		if err := json.Unmarshal(authorized, &z.AuthorizedPlayerIDs); err != nil {
			return nil, errs.Persistence(err, "decoding authorized players for zone %s", z.ID)
		}
	}
	if z.AuthorizedPlayerIDs == nil {
		z.AuthorizedPlayerIDs = []string{}
	}
	return &z, nil
}

// PutSafeZone upserts the safe zone.
func (s *Postgres) PutSafeZone(ctx context.Context, z *model.SafeZone) error {
	authorized, err := json.Marshal(z.AuthorizedPlayerIDs)
	if err != nil {
		return errs.Persistence(err, "encoding authorized players for zone %s", z.ID)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO safezones (id, game_id, type, latitude, longitude, radius_m, name,
			description, created_by, authorized_player_ids, start_time, end_time,
			relocation_cooldown_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			radius_m = EXCLUDED.radius_m, name = EXCLUDED.name,
			description = EXCLUDED.description,
			authorized_player_ids = EXCLUDED.authorized_player_ids,
			start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time,
			relocation_cooldown_until = EXCLUDED.relocation_cooldown_until`,
		z.ID, z.GameID, z.Type, z.Center.Latitude, z.Center.Longitude, z.RadiusM, z.Name,
		z.Description, z.CreatedBy, authorized, z.StartTime, z.EndTime,
		z.RelocationCooldownUntil,
	)
	if err != nil {
		return errs.Persistence(err, "upserting safe zone %s", z.ID)
	}
	return nil
}

// GetSafeZone returns the zone or nil, nil when missing.
func (s *Postgres) GetSafeZone(ctx context.Context, id string) (*model.SafeZone, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+safeZoneColumns+` FROM safezones WHERE id = $1`, id)
	return scanSafeZone(row)
}

// DeleteSafeZone removes the zone row.
func (s *Postgres) DeleteSafeZone(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM safezones WHERE id = $1`, id); err != nil {
		return errs.Persistence(err, "deleting safe zone %s", id)
	}
	return nil
}

// SafeZonesByGame returns all zones of a game.
func (s *Postgres) SafeZonesByGame(ctx context.Context, gameID string) ([]*model.SafeZone, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+safeZoneColumns+` FROM safezones WHERE game_id = $1 ORDER BY name`, gameID)
	if err != nil {
		return nil, errs.Persistence(err, "listing safe zones for game %s", gameID)
	}
	defer rows.Close()
	return collectSafeZones(rows)
}

// SafeZonesByOwner returns zones created by ownerID in a game.
func (s *Postgres) SafeZonesByOwner(ctx context.Context, gameID, ownerID string) ([]*model.SafeZone, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+safeZoneColumns+` FROM safezones
		 WHERE game_id = $1 AND created_by = $2 ORDER BY name`, gameID, ownerID)
	if err != nil {
		return nil, errs.Persistence(err, "listing safe zones for owner %s", ownerID)
	}
	defer rows.Close()
	return collectSafeZones(rows)
}

func collectSafeZones(rows pgx.Rows) ([]*model.SafeZone, error) {
	var out []*model.SafeZone
	for rows.Next() {
		z, err := scanSafeZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(err, "iterating safe zone rows")
	}
	return out, nil
}
