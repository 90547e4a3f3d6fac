package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
)

const gameColumns = `id, name, status, admin_player_id, created_at, started_at, ended_at,
	boundary, settings, emergency_pause, map_id, winner_id, version`

func scanGame(row pgx.Row) (*model.Game, error) {
	var g model.Game
	var boundary, settings, pause []byte
	err := row.Scan(&g.ID, &g.Name, &g.Status, &g.AdminPlayerID, &g.CreatedAt,
		&g.StartedAt, &g.EndedAt, &boundary, &settings, &pause, &g.MapID, &g.WinnerID, &g.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(err, "scanning game row")
	}
	if len(boundary) > 0 {
		if err := json.Unmarshal(boundary, &g.Boundary); err != nil {
			return nil, errs.Persistence(err, "decoding boundary for game %s", g.ID)
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &g.Settings); err != nil {
			return nil, errs.Persistence(err, "decoding settings for game %s", g.ID)
		}
	}
	if len(pause) > 0 {
		if err := json.Unmarshal(pause, &g.EmergencyPause); err != nil {
			return nil, errs.Persistence(err, "decoding emergency pause for game %s", g.ID)
		}
	}
	return &g, nil
}

func putGame(ctx context.Context, q querier, g *model.Game) error {
	boundary, err := json.Marshal(g.Boundary)
	if err != nil {
		return errs.Persistence(err, "encoding boundary for game %s", g.ID)
	}
	settings, err := json.Marshal(g.Settings)
	if err != nil {
		return errs.Persistence(err, "encoding settings for game %s", g.ID)
	}
	pause, err := json.Marshal(g.EmergencyPause)
	if err != nil {
		return errs.Persistence(err, "encoding emergency pause for game %s", g.ID)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO games (id, name, status, admin_player_id, created_at, started_at, ended_at,
			boundary, settings, emergency_pause, map_id, winner_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, status = EXCLUDED.status,
			admin_player_id = EXCLUDED.admin_player_id,
			started_at = EXCLUDED.started_at, ended_at = EXCLUDED.ended_at,
			boundary = EXCLUDED.boundary, settings = EXCLUDED.settings,
			emergency_pause = EXCLUDED.emergency_pause,
			map_id = EXCLUDED.map_id, winner_id = EXCLUDED.winner_id`,
		g.ID, g.Name, g.Status, g.AdminPlayerID, g.CreatedAt, g.StartedAt, g.EndedAt,
		boundary, settings, pause, g.MapID, g.WinnerID, g.Version,
	)
	if err != nil {
		return errs.Persistence(err, "upserting game %s", g.ID)
	}
	return nil
}

func getGame(ctx context.Context, q querier, id string) (*model.Game, error) {
	row := q.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	return scanGame(row)
}

// GetGame returns the game or nil, nil when missing.
func (s *Postgres) GetGame(ctx context.Context, id string) (*model.Game, error) {
	return getGame(ctx, s.pool, id)
}

// PutGame upserts the game outside any conditional transaction.
func (s *Postgres) PutGame(ctx context.Context, g *model.Game) error {
	return putGame(ctx, s.pool, g)
}

// DeleteGame removes the game row.
func (s *Postgres) DeleteGame(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, id); err != nil {
		return errs.Persistence(err, "deleting game %s", id)
	}
	return nil
}

// ListGamesByStatus returns games in the given status ordered by creation time.
func (s *Postgres) ListGamesByStatus(ctx context.Context, status model.GameStatus) ([]*model.Game, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+gameColumns+` FROM games WHERE status = $1 ORDER BY created_at`, status)
	if err != nil {
		return nil, errs.Persistence(err, "listing games by status %s", status)
	}
	defer rows.Close()

	var out []*model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(err, "iterating games by status %s", status)
	}
	return out, nil
}

func (t *pgTx) PutGame(ctx context.Context, g *model.Game) error {
	return putGame(ctx, t.tx, g)
}

func (t *pgTx) GetGame(ctx context.Context, id string) (*model.Game, error) {
	return getGame(ctx, t.tx, id)
}
