package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/repository"
	"github.com/alexanderramin/pipedeck/internal/seed"
	"github.com/google/uuid"
)

type importService struct {
	uow      db.UnitOfWork
	observer UseCaseObserver
	now      func() time.Time
}

func NewImportService(uow db.UnitOfWork, observers ...UseCaseObserver) ImportService {
	return &importService{
		uow:      uow,
		observer: useCaseObserverOrNoop(observers),
		now:      time.Now,
	}
}

func (s *importService) ImportPipeline(ctx context.Context, filePath string) (*app.ImportResult, error) {
	pf, err := seed.Load(filePath)
	if err != nil {
		return nil, fmt.Errorf("loading pipeline file: %w", err)
	}
	return s.importFile(ctx, pf)
}

func (s *importService) ImportPipelineFromFile(ctx context.Context, pf *seed.PipelineFile) (*app.ImportResult, error) {
	return s.importFile(ctx, pf)
}

// importFile writes the pipeline, its stages, transition pairs, fields and
// sample opportunities in one transaction.
func (s *importService) importFile(ctx context.Context, pf *seed.PipelineFile) (res *app.ImportResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"pipeline": pf.Pipeline.Name}
	defer func() {
		if res != nil {
			fields["pipeline_id"] = res.Pipeline.ID
			fields["stage_count"] = res.StageCount
			fields["field_count"] = res.FieldCount
			fields["opportunity_count"] = res.OpportunityCount
		}
		s.observer.ObserveUseCase(ctx, UseCaseEvent{
			Name:      "import-pipeline",
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Success:   err == nil,
			Err:       err,
			Fields:    fields,
		})
	}()

	if errs := seed.Validate(pf); len(errs) > 0 {
		return nil, formatValidationErrors(errs)
	}

	generated, err := seed.Convert(pf, s.now())
	if err != nil {
		return nil, fmt.Errorf("converting pipeline file: %w", err)
	}
	p := generated.Pipeline

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		pipelines := repository.NewSQLitePipelineRepo(tx)
		stages := repository.NewSQLiteStageRepo(tx)
		defs := repository.NewSQLiteFieldRepo(tx)
		opps := repository.NewSQLiteOpportunityRepo(tx)
		transitions := repository.NewSQLiteTransitionRepo(tx)

		if err := pipelines.Create(ctx, p); err != nil {
			return fmt.Errorf("creating pipeline %q: %w", p.Name, err)
		}
		for i := range p.Stages {
			if err := stages.Create(ctx, &p.Stages[i]); err != nil {
				return fmt.Errorf("creating stage %q: %w", p.Stages[i].Name, err)
			}
		}
		if p.Transitions.Mode == domain.TransitionsExplicit {
			if err := pipelines.SetTransitions(ctx, p.ID, p.Transitions); err != nil {
				return err
			}
		}
		for _, d := range generated.Fields {
			if err := defs.Create(ctx, d); err != nil {
				return fmt.Errorf("creating field %q: %w", d.Name, err)
			}
		}
		for _, o := range generated.Opportunities {
			if err := opps.Create(ctx, o); err != nil {
				return fmt.Errorf("creating opportunity %q: %w", o.Name, err)
			}
			err := transitions.Append(ctx, &domain.StageTransition{
				ID:             uuid.New().String(),
				OpportunityID:  o.ID,
				ToStageID:      o.StageID,
				TransitionedAt: o.EnteredStageAt,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &app.ImportResult{
		Pipeline:         p,
		StageCount:       len(p.Stages),
		FieldCount:       len(generated.Fields),
		OpportunityCount: len(generated.Opportunities),
	}, nil
}

func formatValidationErrors(errs []error) error {
	msg := fmt.Sprintf("pipeline validation failed (%d errors):", len(errs))
	for _, e := range errs {
		msg += "\n  - " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
