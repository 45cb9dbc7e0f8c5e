package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/alexanderramin/pipedeck/internal/domain"
)

// SQLiteTransitionRepo implements TransitionRepo using a SQLite database.
// Rows are never updated or deleted except by cascade.
type SQLiteTransitionRepo struct {
	db db.DBTX
}

func NewSQLiteTransitionRepo(conn db.DBTX) *SQLiteTransitionRepo {
	return &SQLiteTransitionRepo{db: conn}
}

func (r *SQLiteTransitionRepo) Append(ctx context.Context, t *domain.StageTransition) error {
	var from, enteredFrom any
	if t.FromStageID != "" {
		from = t.FromStageID
	}
	if !t.EnteredFromAt.IsZero() {
		enteredFrom = formatTime(t.EnteredFromAt)
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO stage_transitions
		(id, opportunity_id, from_stage_id, to_stage_id, entered_from_at, transitioned_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.OpportunityID, from, t.ToStageID, enteredFrom, formatTime(t.TransitionedAt))
	if err != nil {
		return fmt.Errorf("appending stage transition: %w", err)
	}
	return nil
}

// ListByOpportunity returns the history oldest first.
func (r *SQLiteTransitionRepo) ListByOpportunity(ctx context.Context, opportunityID string) ([]domain.StageTransition, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, opportunity_id, from_stage_id, to_stage_id, entered_from_at, transitioned_at
		FROM stage_transitions WHERE opportunity_id = ? ORDER BY transitioned_at, rowid`, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("listing stage transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.StageTransition
	for rows.Next() {
		var t domain.StageTransition
		var from, enteredFrom sql.NullString
		var at string
		if err := rows.Scan(&t.ID, &t.OpportunityID, &from, &t.ToStageID, &enteredFrom, &at); err != nil {
			return nil, fmt.Errorf("scanning stage transition: %w", err)
		}
		t.FromStageID = from.String
		if enteredFrom.Valid {
			if t.EnteredFromAt, err = parseTime(enteredFrom.String, "entered_from_at"); err != nil {
				return nil, err
			}
		}
		if t.TransitionedAt, err = parseTime(at, "transitioned_at"); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stage transitions: %w", err)
	}
	return out, nil
}
