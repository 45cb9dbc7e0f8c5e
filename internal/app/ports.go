package app

import (
	"context"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/alexanderramin/pipedeck/internal/seed"
)

// PipelineAPI is the persistence boundary the form and board controllers run
// against. The local Engine and the HTTP client both implement it.
type PipelineAPI interface {
	ListPipelines(ctx context.Context) ([]*domain.Pipeline, error)
	// GetPipelineWithStages returns the pipeline with Stages ordered by order_index.
	GetPipelineWithStages(ctx context.Context, id string) (*domain.Pipeline, error)
	ListFieldDefinitions(ctx context.Context, pipelineID string) ([]*domain.FieldDefinition, error)
	ListOpportunitiesPage(ctx context.Context, stageID string, page PageRequest) (*OpportunityPage, error)
	CreateOpportunity(ctx context.Context, p OpportunityPayload) (*domain.Opportunity, error)
	UpdateOpportunity(ctx context.Context, id string, p OpportunityPayload) (*domain.Opportunity, error)
	// MoveOpportunity returns the authoritative post-move entity.
	MoveOpportunity(ctx context.Context, id, destStageID string) (*domain.Opportunity, error)
	GetOpportunity(ctx context.Context, id string) (*domain.Opportunity, error)

	StageSummaries(ctx context.Context, pipelineID string) ([]StageSummary, error)
	StageHistory(ctx context.Context, opportunityID string) ([]domain.StageTransition, error)
}

// FieldMigrationUseCase rewrites stored custom field values after a schema change.
type FieldMigrationUseCase interface {
	MigrateFieldValues(ctx context.Context, pipelineID string, m fieldschema.Migration) (*MigrationResult, error)
}

type ImportResult struct {
	Pipeline         *domain.Pipeline
	StageCount       int
	FieldCount       int
	OpportunityCount int
}

type ImportPipelineUseCase interface {
	ImportPipeline(ctx context.Context, filePath string) (*ImportResult, error)
	ImportPipelineFromFile(ctx context.Context, f *seed.PipelineFile) (*ImportResult, error)
}

// Recommender is the external product suggestion collaborator. Scores and
// payloads are opaque to this module.
type Recommender interface {
	Suggest(ctx context.Context, opportunityID string, item domain.LineItem) ([]domain.ProductSuggestion, error)
	Feedback(ctx context.Context, fb domain.SuggestionFeedback) error
}

type SuggestionUseCase interface {
	SuggestForOpportunity(ctx context.Context, opportunityID string) (map[string][]domain.ProductSuggestion, error)
	RecordFeedback(ctx context.Context, fb domain.SuggestionFeedback) error
}
