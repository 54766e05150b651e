package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"hos-dispatch-service/internal/domain"
	"hos-dispatch-service/internal/ports"
)

// PostgresPlanStore keeps plan versions as JSONB rows. The next version is
// computed under a per-assignment transaction advisory lock.
type PostgresPlanStore struct {
	DB *sql.DB
}

func NewPostgresPlanStore(db *sql.DB) *PostgresPlanStore {
	return &PostgresPlanStore{DB: db}
}

func lockKey(assignmentID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(assignmentID))
	return int64(h.Sum64())
}

func (s *PostgresPlanStore) Append(ctx context.Context, plan *domain.RoutePlan) (*domain.RoutePlan, error) {
	if plan == nil || plan.AssignmentID == "" {
		return nil, errors.New("append plan: plan and assignment ID are required")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append plan: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1);`, lockKey(plan.AssignmentID)); err != nil {
		return nil, fmt.Errorf("append plan: lock assignment %s: %w", plan.AssignmentID, err)
	}

	var version int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM route_plans WHERE assignment_id = $1;`,
		plan.AssignmentID,
	).Scan(&version); err != nil {
		return nil, fmt.Errorf("append plan: next version: %w", err)
	}

	stored := plan.Clone()
	stored.Version = version

	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("append plan: marshal: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO route_plans (id, assignment_id, version, created_at, is_feasible, limiting_factor, plan)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
	`, stored.ID, stored.AssignmentID, stored.Version, stored.CreatedAt, stored.IsFeasible, stored.LimitingFactor, string(body)); err != nil {
		return nil, fmt.Errorf("append plan: insert version %d: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append plan: commit: %w", err)
	}
	return stored.Clone(), nil
}

func (s *PostgresPlanStore) Latest(ctx context.Context, assignmentID string) (*domain.RoutePlan, error) {
	var body []byte
	err := s.DB.QueryRowContext(ctx, `
	SELECT plan FROM route_plans
	WHERE assignment_id = $1
	ORDER BY version DESC
	LIMIT 1;
	`, assignmentID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest plan %s: %w", assignmentID, err)
	}

	var p domain.RoutePlan
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("latest plan %s: decode: %w", assignmentID, err)
	}
	return &p, nil
}

func (s *PostgresPlanStore) Versions(ctx context.Context, assignmentID string) ([]*domain.RoutePlan, error) {
	rows, err := s.DB.QueryContext(ctx, `
	SELECT plan FROM route_plans
	WHERE assignment_id = $1
	ORDER BY version ASC;
	`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("plan versions %s: query: %w", assignmentID, err)
	}
	defer rows.Close()

	out := []*domain.RoutePlan{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("plan versions %s: scan: %w", assignmentID, err)
		}
		var p domain.RoutePlan
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("plan versions %s: decode: %w", assignmentID, err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("plan versions %s: row iteration: %w", assignmentID, err)
	}
	if len(out) == 0 {
		return nil, ports.ErrPlanNotFound
	}
	return out, nil
}
