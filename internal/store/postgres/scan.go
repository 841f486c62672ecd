package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/tracknow/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanFence scans a single row into a model.Fence.
// The row must contain columns in the order defined by fenceColumns.
func scanFence(row scannable) (*model.Fence, error) {
	var (
		f     model.Fence
		typ   string
		rules []byte
	)

	err := row.Scan(
		&f.ID,
		&f.SessionID,
		&f.Name,
		&typ,
		&f.Lat,
		&f.Lng,
		&f.Radius,
		&rules,
		&f.Active,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Type = model.FenceType(typ)
	f.Rules = []model.Rule{}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &f.Rules); err != nil {
			return nil, fmt.Errorf("decode rules for fence %s: %w", f.ID, err)
		}
	}
	return &f, nil
}

// scanFences drains rows into fences and closes rows.
func scanFences(rows *sql.Rows) ([]*model.Fence, error) {
	defer rows.Close()
	fences := []*model.Fence{}
	for rows.Next() {
		f, err := scanFence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fence: %w", err)
		}
		fences = append(fences, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan fences: %w", err)
	}
	return fences, nil
}

func scanLocations(rows *sql.Rows) ([]*model.LocationSample, error) {
	defer rows.Close()
	samples := []*model.LocationSample{}
	for rows.Next() {
		var s model.LocationSample
		if err := rows.Scan(&s.ActorID, &s.SessionID, &s.Lat, &s.Lng, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		samples = append(samples, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan locations: %w", err)
	}
	return samples, nil
}

// rulesJSON encodes rules for the JSONB column; nil becomes an empty array.
func rulesJSON(rules []model.Rule) ([]byte, error) {
	if rules == nil {
		rules = []model.Rule{}
	}
	b, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	return b, nil
}
