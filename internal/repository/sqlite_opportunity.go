package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/alexanderramin/pipedeck/internal/domain"
)

const opportunityColumns = `id, pipeline_id, stage_id, name, value, weighted_value, expected_close_date,
		notes, custom_fields, line_items, entered_stage_at, version, created_at, updated_at`

// SQLiteOpportunityRepo implements OpportunityRepo using a SQLite database.
type SQLiteOpportunityRepo struct {
	db db.DBTX
}

func NewSQLiteOpportunityRepo(conn db.DBTX) *SQLiteOpportunityRepo {
	return &SQLiteOpportunityRepo{db: conn}
}

func (r *SQLiteOpportunityRepo) Create(ctx context.Context, o *domain.Opportunity) error {
	fields, items, err := encodeOpportunityJSON(o)
	if err != nil {
		return err
	}
	if o.Version == 0 {
		o.Version = 1
	}
	query := `INSERT INTO opportunities (` + opportunityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		o.ID,
		o.PipelineID,
		o.StageID,
		o.Name,
		nullableDecimal(o.Value),
		nullableDecimal(o.WeightedValue),
		nullableTimeToString(o.ExpectedCloseDate, domain.DateLayout),
		o.Notes,
		fields,
		items,
		formatTime(o.EnteredStageAt),
		o.Version,
		formatTime(o.CreatedAt),
		formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting opportunity: %w", err)
	}
	return nil
}

func (r *SQLiteOpportunityRepo) GetByID(ctx context.Context, id string) (*domain.Opportunity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = ?`, id)
	o, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return o, nil
}

// ListByStage returns one page of a column, newest first.
func (r *SQLiteOpportunityRepo) ListByStage(ctx context.Context, stageID string, offset, limit int) ([]*domain.Opportunity, error) {
	return r.list(ctx, `SELECT `+opportunityColumns+` FROM opportunities
		WHERE stage_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, stageID, limit, offset)
}

func (r *SQLiteOpportunityRepo) ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.Opportunity, error) {
	return r.list(ctx, `SELECT `+opportunityColumns+` FROM opportunities
		WHERE pipeline_id = ? ORDER BY created_at DESC, id`, pipelineID)
}

func (r *SQLiteOpportunityRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Opportunity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing opportunities: %w", err)
	}
	defer rows.Close()

	var out []*domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating opportunities: %w", err)
	}
	return out, nil
}

// TotalsByStage sums in Go so decimal values keep full precision.
func (r *SQLiteOpportunityRepo) TotalsByStage(ctx context.Context, stageID string) (StageTotals, error) {
	totals, err := r.totals(ctx, `SELECT stage_id, value, weighted_value FROM opportunities WHERE stage_id = ?`, stageID)
	if err != nil {
		return StageTotals{}, err
	}
	if t, ok := totals[stageID]; ok {
		return t, nil
	}
	return StageTotals{StageID: stageID}, nil
}

func (r *SQLiteOpportunityRepo) TotalsByPipeline(ctx context.Context, pipelineID string) (map[string]StageTotals, error) {
	return r.totals(ctx, `SELECT stage_id, value, weighted_value FROM opportunities WHERE pipeline_id = ?`, pipelineID)
}

func (r *SQLiteOpportunityRepo) totals(ctx context.Context, query string, arg string) (map[string]StageTotals, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("summing opportunities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]StageTotals)
	for rows.Next() {
		var stageID string
		var value, weighted sql.NullString
		if err := rows.Scan(&stageID, &value, &weighted); err != nil {
			return nil, fmt.Errorf("scanning totals row: %w", err)
		}
		t := out[stageID]
		t.StageID = stageID
		t.Count++
		v, err := parseNullableDecimal(value, "value")
		if err != nil {
			return nil, err
		}
		if v != nil {
			t.TotalValue = t.TotalValue.Add(*v)
		}
		w, err := parseNullableDecimal(weighted, "weighted_value")
		if err != nil {
			return nil, err
		}
		if w != nil {
			t.WeightedTotal = t.WeightedTotal.Add(*w)
		}
		out[stageID] = t
	}
	return out, rows.Err()
}

// Update is a compare-and-swap on version. A missing row yields ErrNotFound,
// a moved-on version ErrVersionConflict.
func (r *SQLiteOpportunityRepo) Update(ctx context.Context, o *domain.Opportunity) error {
	fields, items, err := encodeOpportunityJSON(o)
	if err != nil {
		return err
	}
	query := `UPDATE opportunities SET stage_id = ?, name = ?, value = ?, weighted_value = ?,
		expected_close_date = ?, notes = ?, custom_fields = ?, line_items = ?, entered_stage_at = ?,
		updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, query,
		o.StageID,
		o.Name,
		nullableDecimal(o.Value),
		nullableDecimal(o.WeightedValue),
		nullableTimeToString(o.ExpectedCloseDate, domain.DateLayout),
		o.Notes,
		fields,
		items,
		formatTime(o.EnteredStageAt),
		formatTime(o.UpdatedAt),
		o.ID,
		o.Version,
	)
	if err != nil {
		return fmt.Errorf("updating opportunity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating opportunity: %w", err)
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities WHERE id = ?`, o.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking opportunity: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("opportunity %s: %w", o.ID, ErrNotFound)
		}
		return fmt.Errorf("opportunity %s at version %d: %w", o.ID, o.Version, domain.ErrVersionConflict)
	}
	o.Version++
	return nil
}

func (r *SQLiteOpportunityRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM opportunities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting opportunity: %w", err)
	}
	return nil
}

func encodeOpportunityJSON(o *domain.Opportunity) (string, string, error) {
	cf := o.CustomFields
	if cf == nil {
		cf = domain.CustomFields{}
	}
	fields, err := json.Marshal(cf)
	if err != nil {
		return "", "", fmt.Errorf("encoding custom_fields: %w", err)
	}
	li := o.LineItems
	if li == nil {
		li = []domain.LineItem{}
	}
	items, err := json.Marshal(li)
	if err != nil {
		return "", "", fmt.Errorf("encoding line_items: %w", err)
	}
	return string(fields), string(items), nil
}

func scanOpportunity(sc scanner) (*domain.Opportunity, error) {
	var o domain.Opportunity
	var value, weighted, closeDate sql.NullString
	var fields, items, enteredAt, createdAt, updatedAt string

	err := sc.Scan(
		&o.ID, &o.PipelineID, &o.StageID, &o.Name,
		&value, &weighted, &closeDate,
		&o.Notes, &fields, &items,
		&enteredAt, &o.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning opportunity: %w", err)
	}

	if o.Value, err = parseNullableDecimal(value, "value"); err != nil {
		return nil, err
	}
	if o.WeightedValue, err = parseNullableDecimal(weighted, "weighted_value"); err != nil {
		return nil, err
	}
	o.ExpectedCloseDate = parseNullableTime(closeDate, domain.DateLayout)

	o.CustomFields = domain.CustomFields{}
	if err := json.Unmarshal([]byte(fields), &o.CustomFields); err != nil {
		return nil, fmt.Errorf("decoding custom_fields of %s: %w", o.ID, err)
	}
	if err := json.Unmarshal([]byte(items), &o.LineItems); err != nil {
		return nil, fmt.Errorf("decoding line_items of %s: %w", o.ID, err)
	}

	if o.EnteredStageAt, err = parseTime(enteredAt, "entered_stage_at"); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &o, nil
}
