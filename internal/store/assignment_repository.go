package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
)

const assignmentColumns = `id, game_id, assigner_id, target_id, status, assignment_date, completed_date`

func scanAssignment(row pgx.Row) (*model.TargetAssignment, error) {
	var a model.TargetAssignment
	err := row.Scan(&a.ID, &a.GameID, &a.AssignerID, &a.TargetID, &a.Status,
		&a.AssignmentDate, &a.CompletedDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence(err, "scanning assignment row")
	}
	return &a, nil
}

func putAssignment(ctx context.Context, q querier, a *model.TargetAssignment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO assignments (id, game_id, assigner_id, target_id, status, assignment_date, completed_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, completed_date = EXCLUDED.completed_date`,
		a.ID, a.GameID, a.AssignerID, a.TargetID, a.Status, a.AssignmentDate, a.CompletedDate,
	)
	if err != nil {
		return errs.Persistence(err, "upserting assignment %s", a.ID)
	}
	return nil
}

// PutAssignment upserts an assignment row. History rows are never deleted;
// only status and completion date change after insert.
func (s *Postgres) PutAssignment(ctx context.Context, a *model.TargetAssignment) error {
	return putAssignment(ctx, s.pool, a)
}

func activeAssignmentsForGame(ctx context.Context, q querier, gameID string) ([]*model.TargetAssignment, error) {
	rows, err := q.Query(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE game_id = $1 AND status = $2 ORDER BY assignment_date`,
		gameID, model.AssignmentActive)
	if err != nil {
		return nil, errs.Persistence(err, "listing active assignments for game %s", gameID)
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func currentAssignmentForPlayer(ctx context.Context, q querier, gameID, playerID string) (*model.TargetAssignment, error) {
	row := q.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE game_id = $1 AND assigner_id = $2 AND status = $3`,
		gameID, playerID, model.AssignmentActive)
	return scanAssignment(row)
}

// ActiveAssignmentsForGame returns the current elimination cycle edges.
func (s *Postgres) ActiveAssignmentsForGame(ctx context.Context, gameID string) ([]*model.TargetAssignment, error) {
	return activeAssignmentsForGame(ctx, s.pool, gameID)
}

// AssignmentHistoryForPlayer returns all assignments where the player was
// the hunter, newest first.
func (s *Postgres) AssignmentHistoryForPlayer(ctx context.Context, gameID, playerID string) ([]*model.TargetAssignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE game_id = $1 AND assigner_id = $2 ORDER BY assignment_date DESC`,
		gameID, playerID)
	if err != nil {
		return nil, errs.Persistence(err, "listing assignment history for player %s", playerID)
	}
	defer rows.Close()
	return collectAssignments(rows)
}

// CurrentAssignmentForPlayer returns the single ACTIVE assignment for the
// hunter, or nil, nil.
func (s *Postgres) CurrentAssignmentForPlayer(ctx context.Context, gameID, playerID string) (*model.TargetAssignment, error) {
	return currentAssignmentForPlayer(ctx, s.pool, gameID, playerID)
}

func collectAssignments(rows pgx.Rows) ([]*model.TargetAssignment, error) {
	var out []*model.TargetAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(err, "iterating assignment rows")
	}
	return out, nil
}

func (t *pgTx) PutAssignment(ctx context.Context, a *model.TargetAssignment) error {
	return putAssignment(ctx, t.tx, a)
}

func (t *pgTx) ActiveAssignmentsForGame(ctx context.Context, gameID string) ([]*model.TargetAssignment, error) {
	return activeAssignmentsForGame(ctx, t.tx, gameID)
}

func (t *pgTx) CurrentAssignmentForPlayer(ctx context.Context, gameID, playerID string) (*model.TargetAssignment, error) {
	return currentAssignmentForPlayer(ctx, t.tx, gameID, playerID)
}
