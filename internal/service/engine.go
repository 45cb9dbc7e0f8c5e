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

type engine struct {
	pipelines   repository.PipelineRepo
	fields      repository.FieldRepo
	opps        repository.OpportunityRepo
	transitions repository.TransitionRepo
	uow         db.UnitOfWork

	registry  *fieldschema.Registry
	validator fieldschema.Validator
	observer  UseCaseObserver
	now       func() time.Time
}

type EngineOption func(*engine)

func WithObserver(o UseCaseObserver) EngineOption {
	return func(e *engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithValidator replaces the default (strict) custom field validator.
func WithValidator(v fieldschema.Validator) EngineOption {
	return func(e *engine) { e.validator = v }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *engine) { e.now = now }
}

func NewEngine(
	pipelines repository.PipelineRepo,
	fields repository.FieldRepo,
	opps repository.OpportunityRepo,
	transitions repository.TransitionRepo,
	uow db.UnitOfWork,
	opts ...EngineOption,
) Engine {
	e := &engine{
		pipelines:   pipelines,
		fields:      fields,
		opps:        opps,
		transitions: transitions,
		uow:         uow,
		registry:    fieldschema.NewRegistry(fields),
		validator:   fieldschema.DefaultValidator,
		observer:    NoopUseCaseObserver{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engine) clock() time.Time {
	return e.now().UTC()
}

func (e *engine) observe(ctx context.Context, name string, startedAt time.Time, fields map[string]any, err error) {
	e.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
	})
}

func (e *engine) ListPipelines(ctx context.Context) (out []*domain.Pipeline, err error) {
	startedAt := time.Now()
	defer func() {
		e.observe(ctx, "list-pipelines", startedAt, map[string]any{"count": len(out)}, err)
	}()
	return e.pipelines.List(ctx)
}

func (e *engine) GetPipelineWithStages(ctx context.Context, id string) (p *domain.Pipeline, err error) {
	startedAt := time.Now()
	defer func() {
		e.observe(ctx, "get-pipeline", startedAt, map[string]any{"pipeline_id": id}, err)
	}()
	return e.pipelines.GetByID(ctx, id)
}

func (e *engine) ListFieldDefinitions(ctx context.Context, pipelineID string) (defs []*domain.FieldDefinition, err error) {
	startedAt := time.Now()
	defer func() {
		e.observe(ctx, "list-fields", startedAt, map[string]any{"pipeline_id": pipelineID, "count": len(defs)}, err)
	}()
	if _, err = e.pipelines.GetByID(ctx, pipelineID); err != nil {
		return nil, err
	}
	return e.registry.Definitions(ctx, pipelineID)
}

// ListOpportunitiesPage reads the slice and the column totals in one
// transaction so TotalCount matches the items it accompanies.
func (e *engine) ListOpportunitiesPage(ctx context.Context, stageID string, req app.PageRequest) (page *app.OpportunityPage, err error) {
	startedAt := time.Now()
	req = req.Normalize()
	fields := map[string]any{"stage_id": stageID, "offset": req.Offset, "limit": req.Limit}
	defer func() {
		if page != nil {
			fields["total"] = page.TotalCount
		}
		e.observe(ctx, "list-opportunities-page", startedAt, fields, err)
	}()

	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := repository.NewSQLiteStageRepo(tx).GetByID(ctx, stageID); err != nil {
			return err
		}
		txOpps := repository.NewSQLiteOpportunityRepo(tx)
		items, err := txOpps.ListByStage(ctx, stageID, req.Offset, req.Limit)
		if err != nil {
			return err
		}
		totals, err := txOpps.TotalsByStage(ctx, stageID)
		if err != nil {
			return err
		}
		page = &app.OpportunityPage{
			Items:      items,
			TotalCount: totals.Count,
			TotalValue: totals.TotalValue,
			NextOffset: -1,
		}
		if next := req.Offset + len(items); next < totals.Count && len(items) > 0 {
			page.NextOffset = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (e *engine) GetOpportunity(ctx context.Context, id string) (o *domain.Opportunity, err error) {
	startedAt := time.Now()
	defer func() {
		e.observe(ctx, "get-opportunity", startedAt, map[string]any{"opportunity_id": id}, err)
	}()
	return e.opps.GetByID(ctx, id)
}

// StageSummaries returns one entry per stage in column order, including
// empty stages.
func (e *engine) StageSummaries(ctx context.Context, pipelineID string) (out []app.StageSummary, err error) {
	startedAt := time.Now()
	defer func() {
		e.observe(ctx, "stage-summaries", startedAt, map[string]any{"pipeline_id": pipelineID}, err)
	}()

	p, err := e.pipelines.GetByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	totals, err := e.opps.TotalsByPipeline(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("summing pipeline %s: %w", pipelineID, err)
	}
	for _, s := range p.SortedStages() {
		t := totals[s.ID]
		out = append(out, app.StageSummary{
			StageID:       s.ID,
			Name:          s.Name,
			OrderIndex:    s.OrderIndex,
			IsWon:         s.IsWon,
			IsLost:        s.IsLost,
			Count:         t.Count,
			TotalValue:    t.TotalValue,
			WeightedTotal: t.WeightedTotal,
		})
	}
	return out, nil
}

func (e *engine) StageHistory(ctx context.Context, opportunityID string) (out []domain.StageTransition, err error) {
	startedAt := time.Now()
	defer func() {
		e.observe(ctx, "stage-history", startedAt, map[string]any{"opportunity_id": opportunityID}, err)
	}()
	if _, err = e.opps.GetByID(ctx, opportunityID); err != nil {
		return nil, err
	}
	return e.transitions.ListByOpportunity(ctx, opportunityID)
}
