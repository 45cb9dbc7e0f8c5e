package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/alexanderramin/pipedeck/internal/domain"
)

const pipelineColumns = `id, name, color, transition_mode, created_at, updated_at`

// SQLitePipelineRepo implements PipelineRepo using a SQLite database.
type SQLitePipelineRepo struct {
	db     db.DBTX
	stages *SQLiteStageRepo
}

func NewSQLitePipelineRepo(conn db.DBTX) *SQLitePipelineRepo {
	return &SQLitePipelineRepo{db: conn, stages: NewSQLiteStageRepo(conn)}
}

// Create inserts the pipeline row only. Stages go through StageRepo and
// explicit transition pairs through SetTransitions once the stages exist.
func (r *SQLitePipelineRepo) Create(ctx context.Context, p *domain.Pipeline) error {
	mode := p.Transitions.Mode
	if mode == "" {
		mode = domain.TransitionsAny
	}
	query := `INSERT INTO pipelines (` + pipelineColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Color,
		string(mode),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting pipeline: %w", err)
	}
	return nil
}

func (r *SQLitePipelineRepo) GetByID(ctx context.Context, id string) (*domain.Pipeline, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pipelineColumns+` FROM pipelines WHERE id = ?`, id)
	return r.load(ctx, row)
}

// GetByName matches case-insensitively.
func (r *SQLitePipelineRepo) GetByName(ctx context.Context, name string) (*domain.Pipeline, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pipelineColumns+` FROM pipelines WHERE name = ? COLLATE NOCASE`, name)
	return r.load(ctx, row)
}

func (r *SQLitePipelineRepo) load(ctx context.Context, row *sql.Row) (*domain.Pipeline, error) {
	p, err := scanPipeline(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pipeline: %w", ErrNotFound)
		}
		return nil, err
	}
	if p.Stages, err = r.stages.ListByPipeline(ctx, p.ID); err != nil {
		return nil, err
	}
	if p.Transitions.Mode == domain.TransitionsExplicit {
		if p.Transitions.Allowed, err = r.listPairs(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// List returns pipelines ordered by name, without stages.
func (r *SQLitePipelineRepo) List(ctx context.Context) ([]*domain.Pipeline, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+pipelineColumns+` FROM pipelines ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("listing pipelines: %w", err)
	}
	defer rows.Close()

	var out []*domain.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pipelines: %w", err)
	}
	return out, nil
}

// SetTransitions replaces the pipeline's transition policy.
func (r *SQLitePipelineRepo) SetTransitions(ctx context.Context, pipelineID string, policy domain.TransitionPolicy) error {
	mode := policy.Mode
	if mode == "" {
		mode = domain.TransitionsAny
	}
	res, err := r.db.ExecContext(ctx, `UPDATE pipelines SET transition_mode = ? WHERE id = ?`, string(mode), pipelineID)
	if err != nil {
		return fmt.Errorf("updating transition mode: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("pipeline: %w", ErrNotFound)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pipeline_transitions WHERE pipeline_id = ?`, pipelineID); err != nil {
		return fmt.Errorf("clearing transitions: %w", err)
	}
	if mode != domain.TransitionsExplicit {
		return nil
	}
	for _, pair := range policy.Allowed {
		_, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO pipeline_transitions (pipeline_id, from_stage_id, to_stage_id) VALUES (?, ?, ?)`,
			pipelineID, pair.From, pair.To)
		if err != nil {
			return fmt.Errorf("inserting transition %s->%s: %w", pair.From, pair.To, err)
		}
	}
	return nil
}

func (r *SQLitePipelineRepo) listPairs(ctx context.Context, pipelineID string) ([]domain.StagePair, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT from_stage_id, to_stage_id FROM pipeline_transitions WHERE pipeline_id = ? ORDER BY from_stage_id, to_stage_id`,
		pipelineID)
	if err != nil {
		return nil, fmt.Errorf("listing transitions: %w", err)
	}
	defer rows.Close()

	var pairs []domain.StagePair
	for rows.Next() {
		var p domain.StagePair
		if err := rows.Scan(&p.From, &p.To); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func (r *SQLitePipelineRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting pipeline: %w", err)
	}
	return nil
}

func scanPipeline(s scanner) (*domain.Pipeline, error) {
	var p domain.Pipeline
	var mode, createdAt, updatedAt string
	if err := s.Scan(&p.ID, &p.Name, &p.Color, &mode, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning pipeline: %w", err)
	}
	p.Transitions.Mode = domain.TransitionMode(mode)

	var err error
	if p.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &p, nil
}
