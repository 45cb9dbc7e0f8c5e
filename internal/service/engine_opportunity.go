package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/repository"
	"github.com/google/uuid"
)

func (e *engine) CreateOpportunity(ctx context.Context, p app.OpportunityPayload) (o *domain.Opportunity, err error) {
	startedAt := time.Now()
	fields := map[string]any{"pipeline_id": p.PipelineID}
	defer func() {
		if o != nil {
			fields["opportunity_id"] = o.ID
			fields["stage_id"] = o.StageID
		}
		e.observe(ctx, "create-opportunity", startedAt, fields, err)
	}()

	now := e.clock()
	o = &domain.Opportunity{
		ID:           uuid.New().String(),
		PipelineID:   p.PipelineID,
		CustomFields: domain.CustomFields{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyPayload(o, p)

	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		pipeline, err := repository.NewSQLitePipelineRepo(tx).GetByID(ctx, p.PipelineID)
		if err != nil {
			return err
		}
		stage := pipeline.InitialStage()
		if p.StageID != nil {
			stage = stageOrForeign(pipeline, *p.StageID)
		}
		defs, err := repository.NewSQLiteFieldRepo(tx).ListByPipeline(ctx, pipeline.ID)
		if err != nil {
			return err
		}
		if verrs := e.validate(o, stage, defs); len(verrs) > 0 {
			return verrs
		}
		if err := o.MoveTo(stage, now); err != nil {
			return err
		}
		if err := repository.NewSQLiteOpportunityRepo(tx).Create(ctx, o); err != nil {
			return err
		}
		return repository.NewSQLiteTransitionRepo(tx).Append(ctx, &domain.StageTransition{
			ID:             uuid.New().String(),
			OpportunityID:  o.ID,
			ToStageID:      stage.ID,
			TransitionedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateOpportunity applies p to the stored entity. A changed StageID is
// handled as a move and logged as a transition.
func (e *engine) UpdateOpportunity(ctx context.Context, id string, p app.OpportunityPayload) (o *domain.Opportunity, err error) {
	startedAt := time.Now()
	fields := map[string]any{"opportunity_id": id}
	defer func() {
		e.observe(ctx, "update-opportunity", startedAt, fields, err)
	}()

	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txOpps := repository.NewSQLiteOpportunityRepo(tx)
		current, err := txOpps.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.ExpectedVersion != 0 && p.ExpectedVersion != current.Version {
			return fmt.Errorf("opportunity %s at version %d, expected %d: %w", id, current.Version, p.ExpectedVersion, domain.ErrVersionConflict)
		}
		if p.PipelineID != "" && p.PipelineID != current.PipelineID {
			return fmt.Errorf("opportunity %s belongs to pipeline %s: %w", id, current.PipelineID, domain.ErrStageNotInPipeline)
		}
		pipeline, err := repository.NewSQLitePipelineRepo(tx).GetByID(ctx, current.PipelineID)
		if err != nil {
			return err
		}

		next := current.Clone()
		p.PipelineID = current.PipelineID
		applyPayload(next, p)

		stage := pipeline.StageByID(current.StageID)
		if p.StageID != nil {
			stage = stageOrForeign(pipeline, *p.StageID)
		}
		defs, err := repository.NewSQLiteFieldRepo(tx).ListByPipeline(ctx, pipeline.ID)
		if err != nil {
			return err
		}
		verrs := e.validate(next, stage, defs)
		if p.CustomFields == nil {
			// Untouched maps are not revalidated; schema drift must not block edits of other fields.
			for _, d := range defs {
				delete(verrs, d.Name)
			}
		}
		if len(verrs) > 0 {
			return verrs
		}

		now := e.clock()
		moved := stage.ID != current.StageID
		if moved && !pipeline.Transitions.Permits(current.StageID, stage.ID) {
			return fmt.Errorf("%s -> %s: %w", current.StageID, stage.ID, domain.ErrTransitionNotAllowed)
		}
		if err := next.MoveTo(stage, now); err != nil {
			return err
		}
		next.RecomputeWeighted(stage)
		next.UpdatedAt = now
		if err := txOpps.Update(ctx, next); err != nil {
			return err
		}
		if moved {
			fields["stage_id"] = stage.ID
			if err := appendMove(ctx, tx, current, next, now); err != nil {
				return err
			}
		}
		o = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// MoveOpportunity relocates an opportunity to another stage of its pipeline.
// Moving to the current stage is a no-op: no write, no transition.
func (e *engine) MoveOpportunity(ctx context.Context, id, destStageID string) (o *domain.Opportunity, err error) {
	startedAt := time.Now()
	fields := map[string]any{"opportunity_id": id, "stage_id": destStageID}
	defer func() {
		e.observe(ctx, "move-opportunity", startedAt, fields, err)
	}()

	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txOpps := repository.NewSQLiteOpportunityRepo(tx)
		current, err := txOpps.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.StageID == destStageID {
			fields["noop"] = true
			o = current
			return nil
		}
		pipeline, err := repository.NewSQLitePipelineRepo(tx).GetByID(ctx, current.PipelineID)
		if err != nil {
			return err
		}
		dest := pipeline.StageByID(destStageID)
		if dest == nil {
			if _, err := repository.NewSQLiteStageRepo(tx).GetByID(ctx, destStageID); err != nil {
				return err
			}
			return fmt.Errorf("stage %s: %w", destStageID, domain.ErrStageNotInPipeline)
		}
		if !pipeline.Transitions.Permits(current.StageID, dest.ID) {
			return fmt.Errorf("%s -> %s: %w", current.StageID, dest.ID, domain.ErrTransitionNotAllowed)
		}

		now := e.clock()
		next := current.Clone()
		if err := next.MoveTo(dest, now); err != nil {
			return err
		}
		next.UpdatedAt = now
		if err := txOpps.Update(ctx, next); err != nil {
			return err
		}
		fields["from_stage_id"] = current.StageID
		if err := appendMove(ctx, tx, current, next, now); err != nil {
			return err
		}
		o = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// stageOrForeign returns the pipeline's stage with that id, or a stub with an
// empty PipelineID that ValidateBasics reports as foreign.
func stageOrForeign(p *domain.Pipeline, id string) *domain.Stage {
	if id == "" {
		return nil
	}
	if s := p.StageByID(id); s != nil {
		return s
	}
	return &domain.Stage{ID: id}
}

func appendMove(ctx context.Context, tx db.DBTX, before, after *domain.Opportunity, now time.Time) error {
	return repository.NewSQLiteTransitionRepo(tx).Append(ctx, &domain.StageTransition{
		ID:             uuid.New().String(),
		OpportunityID:  after.ID,
		FromStageID:    before.StageID,
		ToStageID:      after.StageID,
		EnteredFromAt:  before.EnteredStageAt,
		TransitionedAt: now,
	})
}

// applyPayload copies the set fields of p onto o.
func applyPayload(o *domain.Opportunity, p app.OpportunityPayload) {
	if p.Name != nil {
		o.Name = strings.TrimSpace(*p.Name)
	}
	switch {
	case p.ClearValue:
		o.Value = nil
	case p.Value != nil:
		v := *p.Value
		o.Value = &v
	}
	switch {
	case p.ClearExpectedClose:
		o.ExpectedCloseDate = nil
	case p.ExpectedCloseDate != nil:
		d := domain.DateValue(*p.ExpectedCloseDate).Time
		o.ExpectedCloseDate = &d
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.CustomFields != nil {
		o.CustomFields = p.CustomFields.Clone()
	}
	if p.LineItems != nil {
		o.LineItems = append([]domain.LineItem(nil), p.LineItems...)
	}
}

// validate checks the fixed fields and the custom field map together so
// callers get every problem in one error.
func (e *engine) validate(o *domain.Opportunity, stage *domain.Stage, defs []*domain.FieldDefinition) domain.ValidationErrors {
	errs := o.ValidateBasics(stage)
	errs.Merge(e.validator.ValidateAllFields(defs, o.CustomFields).Errors)
	return errs
}

// IsValidation reports whether err carries field validation errors.
func IsValidation(err error) (domain.ValidationErrors, bool) {
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}
