package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/alexanderramin/pipedeck/internal/repository"
)

// MigrateFieldValues renames and retypes a pipeline's field definitions and
// rewrites every opportunity's value map to match, in one transaction.
// Values that cannot be converted are dropped and reported per opportunity.
func (e *engine) MigrateFieldValues(ctx context.Context, pipelineID string, m fieldschema.Migration) (res *app.MigrationResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"pipeline_id": pipelineID, "renames": len(m.Renames), "retypes": len(m.Retypes)}
	defer func() {
		if res != nil {
			fields["updated"] = res.Updated
		}
		e.observe(ctx, "migrate-field-values", startedAt, fields, err)
	}()

	res = &app.MigrationResult{Dropped: map[string][]fieldschema.Dropped{}}
	if m.IsEmpty() {
		return res, nil
	}

	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txFields := repository.NewSQLiteFieldRepo(tx)
		txOpps := repository.NewSQLiteOpportunityRepo(tx)

		defs, err := txFields.ListByPipeline(ctx, pipelineID)
		if err != nil {
			return err
		}
		if err := m.Validate(defs); err != nil {
			return fmt.Errorf("invalid migration: %w", err)
		}

		now := e.clock()
		migrated, err := migrateDefinitions(ctx, txFields, defs, m, now)
		if err != nil {
			return err
		}

		opps, err := txOpps.ListByPipeline(ctx, pipelineID)
		if err != nil {
			return err
		}
		for _, o := range opps {
			values, dropped := fieldschema.ApplyMigration(o.CustomFields, m, migrated)
			if len(dropped) > 0 {
				res.Dropped[o.ID] = dropped
			}
			if values.Equal(o.CustomFields) {
				continue
			}
			o.CustomFields = values
			o.UpdatedAt = now
			if err := txOpps.Update(ctx, o); err != nil {
				return fmt.Errorf("rewriting opportunity %s: %w", o.ID, err)
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// migrateDefinitions applies renames then retypes and returns the updated
// definitions. Renamed rows first move to a temporary name so swaps do not
// trip the unique (pipeline_id, name) index.
func migrateDefinitions(ctx context.Context, fields *repository.SQLiteFieldRepo, defs []*domain.FieldDefinition, m fieldschema.Migration, now time.Time) ([]*domain.FieldDefinition, error) {
	targets := make(map[string]string, len(m.Renames)) // id -> new name
	for _, d := range defs {
		to, ok := m.Renames[d.Name]
		if !ok {
			continue
		}
		targets[d.ID] = to
		d.Name = "__migrating_" + d.ID
		d.UpdatedAt = now
		if err := fields.Update(ctx, d); err != nil {
			return nil, err
		}
	}
	for _, d := range defs {
		to, ok := targets[d.ID]
		typ, retype := m.Retypes[domain.CoalesceStr(to, d.Name)]
		if !ok && (!retype || typ == d.Type) {
			continue
		}
		if ok {
			d.Name = to
		}
		if retype {
			d.Type = typ
		}
		d.UpdatedAt = now
		if err := fields.Update(ctx, d); err != nil {
			return nil, err
		}
	}
	return defs, nil
}
