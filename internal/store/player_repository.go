package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
)

const playerColumns = `id, name, email, status, game_id, target_id, target_name, kill_count, health,
	latitude, longitude, accuracy, location_timestamp,
	location_sharing_enabled, location_visibility, location_precision, location_pause_cooldown_until`

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var p model.Player
	var lat, lng *float64
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Status, &p.GameID, &p.TargetID, &p.TargetName,
		&p.KillCount, &p.Health, &lat, &lng, &p.AccuracyM, &p.LocationTimestamp,
		&p.LocationSharingEnabled, &p.LocationVisibility, &p.LocationPrecision,
		&p.LocationPauseCooldownUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(err, "scanning player row")
	}
	if lat != nil && lng != nil {
		p.Location = &model.Coordinate{Latitude: *lat, Longitude: *lng}
	}
	return &p, nil
}

func putPlayer(ctx context.Context, q querier, p *model.Player) error {
	var lat, lng *float64
	if p.Location != nil {
		lat, lng = &p.Location.Latitude, &p.Location.Longitude
	}
	_, err := q.Exec(ctx, `
		INSERT INTO players (id, name, email, status, game_id, target_id, target_name,
			kill_count, health, latitude, longitude, accuracy, location_timestamp,
			location_sharing_enabled, location_visibility, location_precision,
			location_pause_cooldown_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, status = EXCLUDED.status,
			game_id = EXCLUDED.game_id, target_id = EXCLUDED.target_id,
			target_name = EXCLUDED.target_name, kill_count = EXCLUDED.kill_count,
			health = EXCLUDED.health,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			accuracy = EXCLUDED.accuracy, location_timestamp = EXCLUDED.location_timestamp,
			location_sharing_enabled = EXCLUDED.location_sharing_enabled,
			location_visibility = EXCLUDED.location_visibility,
			location_precision = EXCLUDED.location_precision,
			location_pause_cooldown_until = EXCLUDED.location_pause_cooldown_until`,
		p.ID, p.Name, p.Email, p.Status, p.GameID, p.TargetID, p.TargetName,
		p.KillCount, p.Health, lat, lng, p.AccuracyM, p.LocationTimestamp,
		p.LocationSharingEnabled, p.LocationVisibility, p.LocationPrecision,
		p.LocationPauseCooldownUntil,
	)
	if err != nil {
		return errs.Persistence(err, "upserting player %s", p.ID)
	}
	return nil
}

func getPlayer(ctx context.Context, q querier, id string) (*model.Player, error) {
	row := q.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func playersByGame(ctx context.Context, q querier, gameID string) ([]*model.Player, error) {
	rows, err := q.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE game_id = $1 ORDER BY name`, gameID)
	if err != nil {
		return nil, errs.Persistence(err, "listing players for game %s", gameID)
	}
	defer rows.Close()
	return collectPlayers(rows)
}

// GetPlayer returns the player or nil, nil when missing.
func (s *Postgres) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	return getPlayer(ctx, s.pool, id)
}

// PutPlayer upserts the player.
func (s *Postgres) PutPlayer(ctx context.Context, p *model.Player) error {
	return putPlayer(ctx, s.pool, p)
}

// DeletePlayer removes the player row.
func (s *Postgres) DeletePlayer(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM players WHERE id = $1`, id); err != nil {
		return errs.Persistence(err, "deleting player %s", id)
	}
	return nil
}

// PlayersByGame returns the roster of a game ordered by name.
func (s *Postgres) PlayersByGame(ctx context.Context, gameID string) ([]*model.Player, error) {
	return playersByGame(ctx, s.pool, gameID)
}

// Leaderboard returns players with the given status by descending kill count.
func (s *Postgres) Leaderboard(ctx context.Context, status model.PlayerStatus, limit int) ([]*model.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE status = $1
		 ORDER BY kill_count DESC, name LIMIT $2`, status, limit)
	if err != nil {
		return nil, errs.Persistence(err, "querying leaderboard for status %s", status)
	}
	defer rows.Close()
	return collectPlayers(rows)
}

func collectPlayers(rows pgx.Rows) ([]*model.Player, error) {
	var out []*model.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(err, "iterating player rows")
	}
	return out, nil
}

func (t *pgTx) PutPlayer(ctx context.Context, p *model.Player) error {
	return putPlayer(ctx, t.tx, p)
}

func (t *pgTx) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	return getPlayer(ctx, t.tx, id)
}

func (t *pgTx) PlayersByGame(ctx context.Context, gameID string) ([]*model.Player, error) {
	return playersByGame(ctx, t.tx, gameID)
}
