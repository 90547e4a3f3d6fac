package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
)

const zoneStateColumns = `game_id, stage_index, phase, center_lat, center_lng,
	radius_m, next_radius_m, phase_end_time, last_updated`

func scanZoneState(row pgx.Row) (*model.GameZoneState, error) {
	var zs model.GameZoneState
	err := row.Scan(&zs.GameID, &zs.CurrentStageIndex, &zs.CurrentPhase,
		&zs.CurrentCenter.Latitude, &zs.CurrentCenter.Longitude,
		&zs.CurrentRadiusM, &zs.NextRadiusM, &zs.PhaseEndTime, &zs.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(err, "scanning zone state row")
	}
	return &zs, nil
}

func putZoneState(ctx context.Context, q querier, zs *model.GameZoneState) error {
	_, err := q.Exec(ctx, `
		INSERT INTO zone_states (game_id, stage_index, phase, center_lat, center_lng,
			radius_m, next_radius_m, phase_end_time, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (game_id) DO UPDATE SET
			stage_index = EXCLUDED.stage_index, phase = EXCLUDED.phase,
			center_lat = EXCLUDED.center_lat, center_lng = EXCLUDED.center_lng,
			radius_m = EXCLUDED.radius_m, next_radius_m = EXCLUDED.next_radius_m,
			phase_end_time = EXCLUDED.phase_end_time, last_updated = EXCLUDED.last_updated`,
		zs.GameID, zs.CurrentStageIndex, zs.CurrentPhase,
		zs.CurrentCenter.Latitude, zs.CurrentCenter.Longitude,
		zs.CurrentRadiusM, zs.NextRadiusM, zs.PhaseEndTime, zs.LastUpdated,
	)
	if err != nil {
		return errs.Persistence(err, "upserting zone state for game %s", zs.GameID)
	}
	return nil
}

// GetZoneState returns the zone state or nil, nil before the first tick.
func (s *Postgres) GetZoneState(ctx context.Context, gameID string) (*model.GameZoneState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+zoneStateColumns+` FROM zone_states WHERE game_id = $1`, gameID)
	return scanZoneState(row)
}

// PutZoneState upserts the singleton zone state.
func (s *Postgres) PutZoneState(ctx context.Context, zs *model.GameZoneState) error {
	return putZoneState(ctx, s.pool, zs)
}

func (t *pgTx) PutZoneState(ctx context.Context, zs *model.GameZoneState) error {
	return putZoneState(ctx, t.tx, zs)
}
