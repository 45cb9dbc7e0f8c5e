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

const fieldColumns = `id, pipeline_id, name, label, type, required, options, group_name,
		width, sort_order, visible_in_kanban, created_at, updated_at`

type optionRow struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SQLiteFieldRepo implements FieldRepo using a SQLite database.
type SQLiteFieldRepo struct {
	db db.DBTX
}

func NewSQLiteFieldRepo(conn db.DBTX) *SQLiteFieldRepo {
	return &SQLiteFieldRepo{db: conn}
}

func (r *SQLiteFieldRepo) Create(ctx context.Context, d *domain.FieldDefinition) error {
	opts, err := encodeOptions(d.Options)
	if err != nil {
		return err
	}
	query := `INSERT INTO field_definitions (` + fieldColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		d.ID,
		d.PipelineID,
		d.Name,
		d.Label,
		string(d.Type),
		boolToInt(d.Required),
		opts,
		d.Group,
		string(widthOrFull(d.Width)),
		d.Order,
		boolToInt(d.VisibleInKanban),
		formatTime(d.CreatedAt),
		formatTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting field %q: %w", d.Name, err)
	}
	return nil
}

func (r *SQLiteFieldRepo) GetByName(ctx context.Context, pipelineID, name string) (*domain.FieldDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+fieldColumns+` FROM field_definitions WHERE pipeline_id = ? AND name = ?`, pipelineID, name)
	d, err := scanField(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("field %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

// ListByPipeline returns definitions in storage order; fieldschema applies display ordering.
func (r *SQLiteFieldRepo) ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.FieldDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+fieldColumns+` FROM field_definitions WHERE pipeline_id = ? ORDER BY rowid`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("listing fields: %w", err)
	}
	defer rows.Close()

	var out []*domain.FieldDefinition
	for rows.Next() {
		d, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fields: %w", err)
	}
	return out, nil
}

func (r *SQLiteFieldRepo) Update(ctx context.Context, d *domain.FieldDefinition) error {
	opts, err := encodeOptions(d.Options)
	if err != nil {
		return err
	}
	query := `UPDATE field_definitions SET name = ?, label = ?, type = ?, required = ?, options = ?,
		group_name = ?, width = ?, sort_order = ?, visible_in_kanban = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		d.Name,
		d.Label,
		string(d.Type),
		boolToInt(d.Required),
		opts,
		d.Group,
		string(widthOrFull(d.Width)),
		d.Order,
		boolToInt(d.VisibleInKanban),
		formatTime(d.UpdatedAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating field %q: %w", d.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("field %q: %w", d.Name, ErrNotFound)
	}
	return nil
}

func (r *SQLiteFieldRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM field_definitions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting field: %w", err)
	}
	return nil
}

func widthOrFull(w domain.FieldWidth) domain.FieldWidth {
	if w == "" {
		return domain.WidthFull
	}
	return w
}

func encodeOptions(opts []domain.FieldOption) (string, error) {
	rows := make([]optionRow, len(opts))
	for i, o := range opts {
		rows[i] = optionRow{Value: o.Value, Label: o.Label}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encoding options: %w", err)
	}
	return string(raw), nil
}

func scanField(sc scanner) (*domain.FieldDefinition, error) {
	var d domain.FieldDefinition
	var typ, width, opts, createdAt, updatedAt string
	var required, visible int

	err := sc.Scan(
		&d.ID, &d.PipelineID, &d.Name, &d.Label, &typ, &required, &opts, &d.Group,
		&width, &d.Order, &visible, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning field: %w", err)
	}
	d.Type = domain.FieldType(typ)
	d.Width = domain.FieldWidth(width)
	d.Required = intToBool(required)
	d.VisibleInKanban = intToBool(visible)

	var rows []optionRow
	if err := json.Unmarshal([]byte(opts), &rows); err != nil {
		return nil, fmt.Errorf("decoding options of %q: %w", d.Name, err)
	}
	for _, o := range rows {
		d.Options = append(d.Options, domain.FieldOption{Value: o.Value, Label: o.Label})
	}

	if d.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &d, nil
}
