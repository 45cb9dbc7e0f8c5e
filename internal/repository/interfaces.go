package repository

import (
	"context"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned (wrapped) when a row does not exist.
var ErrNotFound = domain.ErrNotFound

// StageTotals is the true aggregate of one column, independent of paging.
type StageTotals struct {
	StageID       string
	Count         int
	TotalValue    decimal.Decimal
	WeightedTotal decimal.Decimal
}

type PipelineRepo interface {
	Create(ctx context.Context, p *domain.Pipeline) error
	// GetByID returns the pipeline with its stages (ordered) and transition policy.
	GetByID(ctx context.Context, id string) (*domain.Pipeline, error)
	GetByName(ctx context.Context, name string) (*domain.Pipeline, error)
	List(ctx context.Context) ([]*domain.Pipeline, error)
	SetTransitions(ctx context.Context, pipelineID string, policy domain.TransitionPolicy) error
	Delete(ctx context.Context, id string) error
}

type StageRepo interface {
	Create(ctx context.Context, s *domain.Stage) error
	GetByID(ctx context.Context, id string) (*domain.Stage, error)
	ListByPipeline(ctx context.Context, pipelineID string) ([]domain.Stage, error)
}

type FieldRepo interface {
	Create(ctx context.Context, d *domain.FieldDefinition) error
	GetByName(ctx context.Context, pipelineID, name string) (*domain.FieldDefinition, error)
	ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.FieldDefinition, error)
	Update(ctx context.Context, d *domain.FieldDefinition) error
	Delete(ctx context.Context, id string) error
}

type OpportunityRepo interface {
	Create(ctx context.Context, o *domain.Opportunity) error
	GetByID(ctx context.Context, id string) (*domain.Opportunity, error)
	ListByStage(ctx context.Context, stageID string, offset, limit int) ([]*domain.Opportunity, error)
	ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.Opportunity, error)
	TotalsByStage(ctx context.Context, stageID string) (StageTotals, error)
	TotalsByPipeline(ctx context.Context, pipelineID string) (map[string]StageTotals, error)
	// Update writes o if the stored version still equals o.Version, then bumps o.Version.
	Update(ctx context.Context, o *domain.Opportunity) error
	Delete(ctx context.Context, id string) error
}

type TransitionRepo interface {
	Append(ctx context.Context, t *domain.StageTransition) error
	ListByOpportunity(ctx context.Context, opportunityID string) ([]domain.StageTransition, error)
}
