package app

import (
	"time"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/shopspring/decimal"
)

const DefaultPageSize = 20

type PageRequest struct {
	Offset int
	Limit  int
}

// Normalize clamps negative offsets and substitutes the default page size.
func (r PageRequest) Normalize() PageRequest {
	if r.Offset < 0 {
		r.Offset = 0
	}
	if r.Limit <= 0 {
		r.Limit = DefaultPageSize
	}
	return r
}

// OpportunityPage is one slice of a stage column. TotalCount and TotalValue
// cover the whole column, not just Items.
type OpportunityPage struct {
	Items      []*domain.Opportunity
	TotalCount int
	TotalValue decimal.Decimal
	// NextOffset is -1 when the column is exhausted.
	NextOffset int
}

func (p *OpportunityPage) HasMore() bool {
	return p.NextOffset >= 0
}

// OpportunityPayload carries the fields of a create or update. On update a nil
// pointer leaves the stored field unchanged; the Clear flags null it out.
// CustomFields, when non-nil, replaces the stored map wholesale.
type OpportunityPayload struct {
	PipelineID         string
	StageID            *string
	Name               *string
	Value              *decimal.Decimal
	ClearValue         bool
	ExpectedCloseDate  *time.Time
	ClearExpectedClose bool
	Notes              *string
	CustomFields       domain.CustomFields
	LineItems          []domain.LineItem
	// ExpectedVersion, when non-zero, must match the stored version.
	ExpectedVersion int64
}

// StageSummary aggregates one column for dashboards and reports.
type StageSummary struct {
	StageID       string
	Name          string
	OrderIndex    int
	IsWon         bool
	IsLost        bool
	Count         int
	TotalValue    decimal.Decimal
	WeightedTotal decimal.Decimal
}

type MigrationResult struct {
	Updated int
	Dropped map[string][]fieldschema.Dropped
}
