package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/pipedeck/internal/db"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pipeline options
type PipelineOption func(*domain.Pipeline)

func WithColor(c string) PipelineOption {
	return func(p *domain.Pipeline) {
		p.Color = c
	}
}

func WithTransitions(policy domain.TransitionPolicy) PipelineOption {
	return func(p *domain.Pipeline) {
		p.Transitions = policy
	}
}

func NewTestPipeline(name string, opts ...PipelineOption) *domain.Pipeline {
	now := time.Now().UTC()
	p := &domain.Pipeline{
		ID:          uuid.New().String(),
		Name:        name,
		Color:       "#458588",
		Transitions: domain.TransitionPolicy{Mode: domain.TransitionsAny},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stage options
type StageOption func(*domain.Stage)

func WithProbability(pct int) StageOption {
	return func(s *domain.Stage) {
		s.ProbabilityPercent = &pct
	}
}

func WithStagnationDays(days int) StageOption {
	return func(s *domain.Stage) {
		s.StagnationAlertDays = &days
	}
}

func AsWon() StageOption {
	return func(s *domain.Stage) {
		s.IsWon = true
	}
}

func AsLost() StageOption {
	return func(s *domain.Stage) {
		s.IsLost = true
	}
}

func NewTestStage(pipelineID, name string, order int, opts ...StageOption) *domain.Stage {
	now := time.Now().UTC()
	s := &domain.Stage{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Name:       name,
		OrderIndex: order,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Field options
type FieldOption func(*domain.FieldDefinition)

func Required() FieldOption {
	return func(d *domain.FieldDefinition) {
		d.Required = true
	}
}

func WithOptions(values ...string) FieldOption {
	return func(d *domain.FieldDefinition) {
		d.Options = nil
		for _, v := range values {
			d.Options = append(d.Options, domain.FieldOption{Value: v, Label: v})
		}
	}
}

func InGroup(group string, order int) FieldOption {
	return func(d *domain.FieldDefinition) {
		d.Group = group
		d.Order = order
	}
}

func OnKanban() FieldOption {
	return func(d *domain.FieldDefinition) {
		d.VisibleInKanban = true
	}
}

func WithLabel(label string) FieldOption {
	return func(d *domain.FieldDefinition) {
		d.Label = label
	}
}

func NewTestField(pipelineID, name string, typ domain.FieldType, opts ...FieldOption) *domain.FieldDefinition {
	now := time.Now().UTC()
	d := &domain.FieldDefinition{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Name:       name,
		Label:      name,
		Type:       typ,
		Width:      domain.WidthFull,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Opportunity options
type OpportunityOption func(*domain.Opportunity)

func WithValue(v int64) OpportunityOption {
	return func(o *domain.Opportunity) {
		d := decimal.NewFromInt(v)
		o.Value = &d
	}
}

func WithCustom(name string, v domain.FieldValue) OpportunityOption {
	return func(o *domain.Opportunity) {
		o.CustomFields[name] = v
	}
}

func EnteredAt(t time.Time) OpportunityOption {
	return func(o *domain.Opportunity) {
		o.EnteredStageAt = t
	}
}

func CreatedAt(t time.Time) OpportunityOption {
	return func(o *domain.Opportunity) {
		o.CreatedAt = t
	}
}

func NewTestOpportunity(stage *domain.Stage, name string, opts ...OpportunityOption) *domain.Opportunity {
	now := time.Now().UTC()
	o := &domain.Opportunity{
		ID:             uuid.New().String(),
		PipelineID:     stage.PipelineID,
		StageID:        stage.ID,
		Name:           name,
		CustomFields:   domain.CustomFields{},
		EnteredStageAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.RecomputeWeighted(stage)
	return o
}

// SalesFixture is the three-stage pipeline used across tests:
// Lead(0, 10%), Proposal(1, 50%, stagnant after 7 days), Won(2, 100%, won).
type SalesFixture struct {
	Pipeline *domain.Pipeline
	Lead     *domain.Stage
	Proposal *domain.Stage
	Won      *domain.Stage
}

// SeedSales writes the Sales fixture through raw inserts on conn.
func SeedSales(t *testing.T, conn db.DBTX) SalesFixture {
	t.Helper()
	p := NewTestPipeline("Sales")
	f := SalesFixture{
		Pipeline: p,
		Lead:     NewTestStage(p.ID, "Lead", 0, WithProbability(10)),
		Proposal: NewTestStage(p.ID, "Proposal", 1, WithProbability(50), WithStagnationDays(7)),
		Won:      NewTestStage(p.ID, "Won", 2, WithProbability(100), AsWon()),
	}
	ctx := context.Background()
	mustExec(t, conn, ctx, `INSERT INTO pipelines (id, name, color, transition_mode, created_at, updated_at)
		VALUES (?, ?, ?, 'any', ?, ?)`, p.ID, p.Name, p.Color, ts(p.CreatedAt), ts(p.UpdatedAt))
	for _, s := range []*domain.Stage{f.Lead, f.Proposal, f.Won} {
		mustExec(t, conn, ctx, `INSERT INTO stages (id, pipeline_id, name, color, order_index, probability_percent,
			is_won, is_lost, stagnation_alert_days, created_at, updated_at) VALUES (?, ?, ?, '', ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.PipelineID, s.Name, s.OrderIndex, ptrOrNil(s.ProbabilityPercent),
			boolInt(s.IsWon), boolInt(s.IsLost), ptrOrNil(s.StagnationAlertDays), ts(s.CreatedAt), ts(s.UpdatedAt))
		p.Stages = append(p.Stages, *s)
	}
	return f
}

func mustExec(t *testing.T, conn db.DBTX, ctx context.Context, query string, args ...any) {
	t.Helper()
	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		t.Fatalf("seeding fixture: %v", err)
	}
}

func ts(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func ptrOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
