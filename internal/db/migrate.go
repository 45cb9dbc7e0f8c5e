package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migrate applies every schema statement. Statements are idempotent, so
// Migrate is safe to run on every open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE ADD COLUMN re-runs on databases that already have the column.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := migrateBackfillInitialTransitions(db); err != nil {
		return fmt.Errorf("backfilling stage history: %w", err)
	}
	return nil
}

// migrateBackfillInitialTransitions gives every opportunity without any
// history row a creation entry, so stage history always starts at the
// opportunity's current stage. Idempotent.
func migrateBackfillInitialTransitions(db *sql.DB) error {
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `INSERT INTO stage_transitions
		(id, opportunity_id, from_stage_id, to_stage_id, entered_from_at, transitioned_at)
		SELECT lower(hex(randomblob(16))), o.id, NULL, o.stage_id, NULL, o.entered_stage_at
		FROM opportunities o
		WHERE NOT EXISTS (SELECT 1 FROM stage_transitions t WHERE t.opportunity_id = o.id)`)
	if err != nil {
		return fmt.Errorf("inserting creation entries: %w", err)
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS pipelines (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		color           TEXT NOT NULL DEFAULT '',
		transition_mode TEXT NOT NULL DEFAULT 'any'
		                CHECK(transition_mode IN ('any','explicit')),
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_pipelines_name ON pipelines(name COLLATE NOCASE)`,

	`CREATE TABLE IF NOT EXISTS stages (
		id                    TEXT PRIMARY KEY,
		pipeline_id           TEXT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
		name                  TEXT NOT NULL,
		color                 TEXT NOT NULL DEFAULT '',
		order_index           INTEGER NOT NULL,
		probability_percent   INTEGER CHECK(probability_percent IS NULL OR probability_percent BETWEEN 0 AND 100),
		is_won                INTEGER NOT NULL DEFAULT 0,
		is_lost               INTEGER NOT NULL DEFAULT 0,
		stagnation_alert_days INTEGER CHECK(stagnation_alert_days IS NULL OR stagnation_alert_days >= 0),
		created_at            TEXT NOT NULL,
		updated_at            TEXT NOT NULL,
		UNIQUE(pipeline_id, order_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stages_pipeline ON stages(pipeline_id, order_index)`,

	`CREATE TABLE IF NOT EXISTS pipeline_transitions (
		pipeline_id   TEXT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
		from_stage_id TEXT NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		to_stage_id   TEXT NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
		PRIMARY KEY (pipeline_id, from_stage_id, to_stage_id)
	)`,

	`CREATE TABLE IF NOT EXISTS field_definitions (
		id                TEXT PRIMARY KEY,
		pipeline_id       TEXT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
		name              TEXT NOT NULL,
		label             TEXT NOT NULL DEFAULT '',
		type              TEXT NOT NULL
		                  CHECK(type IN ('text','textarea','url','email','phone','number','currency',
		                                 'percentage','date','datetime','select','multiselect','boolean')),
		required          INTEGER NOT NULL DEFAULT 0,
		options           TEXT NOT NULL DEFAULT '[]',
		group_name        TEXT NOT NULL DEFAULT '',
		width             TEXT NOT NULL DEFAULT 'full' CHECK(width IN ('full','half')),
		sort_order        INTEGER NOT NULL DEFAULT 0,
		visible_in_kanban INTEGER NOT NULL DEFAULT 0,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		UNIQUE(pipeline_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_field_definitions_pipeline ON field_definitions(pipeline_id)`,

	`CREATE TABLE IF NOT EXISTS opportunities (
		id                  TEXT PRIMARY KEY,
		pipeline_id         TEXT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
		stage_id            TEXT NOT NULL REFERENCES stages(id),
		name                TEXT NOT NULL CHECK(length(trim(name)) > 0),
		value               TEXT,
		weighted_value      TEXT,
		expected_close_date TEXT,
		notes               TEXT NOT NULL DEFAULT '',
		custom_fields       TEXT NOT NULL DEFAULT '{}',
		entered_stage_at    TEXT NOT NULL,
		version             INTEGER NOT NULL DEFAULT 1,
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_stage ON opportunities(stage_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_opportunities_pipeline ON opportunities(pipeline_id)`,

	`CREATE TABLE IF NOT EXISTS stage_transitions (
		id              TEXT PRIMARY KEY,
		opportunity_id  TEXT NOT NULL REFERENCES opportunities(id) ON DELETE CASCADE,
		from_stage_id   TEXT,
		to_stage_id     TEXT NOT NULL,
		entered_from_at TEXT,
		transitioned_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stage_transitions_opportunity ON stage_transitions(opportunity_id, transitioned_at)`,

	// Line items arrived after the first release.
	`ALTER TABLE opportunities ADD COLUMN line_items TEXT NOT NULL DEFAULT '[]'`,
}
