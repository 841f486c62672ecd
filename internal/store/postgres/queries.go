package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// fenceColumns is the column list used for SELECT statements on the fences table.
const fenceColumns = `id, session_id, name, type, lat, lng, radius, rules, active, created_at, updated_at`

// defaultLocationLimit caps location history reads when the caller passes 0.
const defaultLocationLimit = 100

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateFence(ctx context.Context, db executor, f *model.Fence) error {
	rules, err := rulesJSON(f.Rules)
	if err != nil {
		return err
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO fences (
			id, session_id, name, type, lat, lng, radius, rules, active
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING created_at, updated_at`,
		f.ID,
		f.SessionID,
		f.Name,
		string(f.Type),
		f.Lat,
		f.Lng,
		f.Radius,
		rules,
		f.Active,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
}

func queryGetFence(ctx context.Context, db executor, id string, forUpdate bool) (*model.Fence, error) {
	q := `SELECT ` + fenceColumns + ` FROM fences WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return scanFence(db.QueryRowContext(ctx, q, id))
}

func queryUpdateFence(ctx context.Context, db executor, f *model.Fence) error {
	rules, err := rulesJSON(f.Rules)
	if err != nil {
		return err
	}
	return db.QueryRowContext(ctx, `
		UPDATE fences SET
			session_id = $2,
			name = $3,
			type = $4,
			lat = $5,
			lng = $6,
			radius = $7,
			rules = $8,
			active = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		f.ID,
		f.SessionID,
		f.Name,
		string(f.Type),
		f.Lat,
		f.Lng,
		f.Radius,
		rules,
		f.Active,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
}

func queryDeleteFence(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM fences WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryListActiveFences(ctx context.Context, db executor) ([]*model.Fence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+fenceColumns+` FROM fences
		WHERE active
		ORDER BY session_id, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list active fences: %w", err)
	}
	return scanFences(rows)
}

func queryListFencesBySession(ctx context.Context, db executor, sessionID string) ([]*model.Fence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+fenceColumns+` FROM fences
		WHERE session_id = $1
		ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list fences for session %s: %w", sessionID, err)
	}
	return scanFences(rows)
}

func queryRecordLocation(ctx context.Context, db executor, s *model.LocationSample) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO locations (session_id, actor_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.SessionID, s.ActorID, s.Lat, s.Lng, s.Timestamp,
	)
	return err
}

// queryListLocations returns the newest samples first. An empty actorID
// returns samples for every actor in the session.
func queryListLocations(ctx context.Context, db executor, sessionID, actorID string, limit int) ([]*model.LocationSample, error) {
	if limit <= 0 {
		limit = defaultLocationLimit
	}

	whereClauses := []string{"session_id = $1"}
	args := []any{sessionID}
	if actorID != "" {
		args = append(args, actorID)
		whereClauses = append(whereClauses, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	args = append(args, limit)

	q := `SELECT actor_id, session_id, lat, lng, recorded_at FROM locations
		WHERE ` + strings.Join(whereClauses, " AND ") + `
		ORDER BY recorded_at DESC, id DESC
		LIMIT ` + fmt.Sprintf("$%d", len(args))

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return scanLocations(rows)
}
