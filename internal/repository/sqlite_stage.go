package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/alexanderramin/pipedeck/internal/domain"
)

const stageColumns = `id, pipeline_id, name, color, order_index, probability_percent,
		is_won, is_lost, stagnation_alert_days, created_at, updated_at`

// SQLiteStageRepo implements StageRepo using a SQLite database.
type SQLiteStageRepo struct {
	db db.DBTX
}

func NewSQLiteStageRepo(conn db.DBTX) *SQLiteStageRepo {
	return &SQLiteStageRepo{db: conn}
}

func (r *SQLiteStageRepo) Create(ctx context.Context, s *domain.Stage) error {
	query := `INSERT INTO stages (` + stageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.PipelineID,
		s.Name,
		s.Color,
		s.OrderIndex,
		nullableIntToValue(s.ProbabilityPercent),
		boolToInt(s.IsWon),
		boolToInt(s.IsLost),
		nullableIntToValue(s.StagnationAlertDays),
		formatTime(s.CreatedAt),
		formatTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting stage %q: %w", s.Name, err)
	}
	return nil
}

func (r *SQLiteStageRepo) GetByID(ctx context.Context, id string) (*domain.Stage, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = ?`, id)
	s, err := scanStage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stage: %w", ErrNotFound)
		}
		return nil, err
	}
	return s, nil
}

// ListByPipeline returns stages ordered by order_index.
func (r *SQLiteStageRepo) ListByPipeline(ctx context.Context, pipelineID string) ([]domain.Stage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stageColumns+` FROM stages WHERE pipeline_id = ? ORDER BY order_index`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("listing stages: %w", err)
	}
	defer rows.Close()

	var out []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stages: %w", err)
	}
	return out, nil
}

func scanStage(sc scanner) (*domain.Stage, error) {
	var s domain.Stage
	var prob, stagnation sql.NullInt64
	var won, lost int
	var createdAt, updatedAt string

	err := sc.Scan(
		&s.ID, &s.PipelineID, &s.Name, &s.Color, &s.OrderIndex,
		&prob, &won, &lost, &stagnation,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning stage: %w", err)
	}
	s.ProbabilityPercent = nullIntToPtr(prob)
	s.StagnationAlertDays = nullIntToPtr(stagnation)
	s.IsWon = intToBool(won)
	s.IsLost = intToBool(lost)

	if s.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &s, nil
}
