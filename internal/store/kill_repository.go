package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
)

const killColumns = `killer_id, kill_time, game_id, victim_id, latitude, longitude,
	method, status, data, verified_by, verified_at`

func scanKill(row pgx.Row) (*model.Kill, error) {
	var k model.Kill
	var data []byte
	err := row.Scan(&k.KillerID, &k.KillTime, &k.GameID, &k.VictimID,
		&k.Location.Latitude, &k.Location.Longitude,
		&k.Method, &k.Status, &data, &k.VerifiedBy, &k.VerifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(err, "scanning kill row")
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &k.Data); err != nil {
			return nil, errs.Persistence(err, "decoding verification data for kill by %s", k.KillerID)
		}
	}
	return &k, nil
}

func putKill(ctx context.Context, q querier, k *model.Kill) error {
	data, err := json.Marshal(k.Data)
	if err != nil {
		return errs.Persistence(err, "encoding verification data for kill by %s", k.KillerID)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO kills (killer_id, kill_time, game_id, victim_id, latitude, longitude,
			method, status, data, verified_by, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (killer_id, kill_time) DO UPDATE SET
			status = EXCLUDED.status, data = EXCLUDED.data,
			verified_by = EXCLUDED.verified_by, verified_at = EXCLUDED.verified_at`,
		k.KillerID, k.KillTime, k.GameID, k.VictimID,
		k.Location.Latitude, k.Location.Longitude,
		k.Method, k.Status, data, k.VerifiedBy, k.VerifiedAt,
	)
	if err != nil {
		return errs.Persistence(err, "upserting kill by %s", k.KillerID)
	}
	return nil
}

// GetKill returns the kill for the composite key or nil, nil.
func (s *Postgres) GetKill(ctx context.Context, killerID string, killTime time.Time) (*model.Kill, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+killColumns+` FROM kills WHERE killer_id = $1 AND kill_time = $2`,
		killerID, killTime)
	return scanKill(row)
}

// PutKill upserts a kill row.
func (s *Postgres) PutKill(ctx context.Context, k *model.Kill) error {
	return putKill(ctx, s.pool, k)
}

// KillsByGame returns all kills of a game ordered by time.
func (s *Postgres) KillsByGame(ctx context.Context, gameID string) ([]*model.Kill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+killColumns+` FROM kills WHERE game_id = $1 ORDER BY kill_time`, gameID)
	if err != nil {
		return nil, errs.Persistence(err, "listing kills for game %s", gameID)
	}
	defer rows.Close()

	var out []*model.Kill
	for rows.Next() {
		k, err := scanKill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(err, "iterating kill rows")
	}
	return out, nil
}

// CountDeathsByVictim counts VERIFIED kills where the player was the victim.
func (s *Postgres) CountDeathsByVictim(ctx context.Context, victimID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM kills WHERE victim_id = $1 AND status = $2`,
		victimID, model.KillVerified).Scan(&n)
	if err != nil {
		return 0, errs.Persistence(err, "counting deaths for victim %s", victimID)
	}
	return n, nil
}

func (t *pgTx) PutKill(ctx context.Context, k *model.Kill) error {
	return putKill(ctx, t.tx, k)
}
