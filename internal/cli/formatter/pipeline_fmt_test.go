package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/board"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func fixturePipeline() *domain.Pipeline {
	return &domain.Pipeline{
		ID:   "p1",
		Name: "Sales",
		Stages: []domain.Stage{
			{ID: "won", PipelineID: "p1", Name: "Won", OrderIndex: 2, ProbabilityPercent: intp(100), IsWon: true},
			{ID: "lead", PipelineID: "p1", Name: "Lead", OrderIndex: 0, ProbabilityPercent: intp(10)},
			{ID: "prop", PipelineID: "p1", Name: "Proposal", OrderIndex: 1, ProbabilityPercent: intp(50), StagnationAlertDays: intp(7)},
		},
		Transitions: domain.TransitionPolicy{
			Mode:    domain.TransitionsExplicit,
			Allowed: []domain.StagePair{{From: "lead", To: "prop"}},
		},
	}
}

func fixtureDefs() []*domain.FieldDefinition {
	return []*domain.FieldDefinition{
		{Name: "segment", Label: "Segmento", Type: domain.FieldSelect, Required: true, VisibleInKanban: true,
			Options: []domain.FieldOption{{Value: "retail", Label: "Varejo"}, {Value: "b2b", Label: "B2B"}}},
		{Name: "source", Type: domain.FieldText},
	}
}

func TestFormatPipelineList(t *testing.T) {
	out := FormatPipelineList([]*domain.Pipeline{fixturePipeline()})
	assert.Contains(t, out, "Sales")
	assert.Contains(t, out, "explicit")
	assert.Contains(t, out, "3")

	assert.Contains(t, FormatPipelineList(nil), "No pipelines")
}

func TestFormatPipeline_StagesInOrder(t *testing.T) {
	out := FormatPipeline(fixturePipeline(), fixtureDefs())

	lead := strings.Index(out, "Lead")
	prop := strings.Index(out, "Proposal")
	won := strings.Index(out, "Won")
	assert.True(t, lead >= 0 && lead < prop && prop < won, "stages rendered by order index:\n%s", out)
	assert.Contains(t, out, "7d")
	assert.Contains(t, out, "Lead → Proposal")
	assert.Contains(t, out, "Segmento")
	assert.Contains(t, out, "retail, b2b")
}

func TestFormatSummary_Totals(t *testing.T) {
	p := fixturePipeline()
	out := FormatSummary(p, []app.StageSummary{
		{StageID: "lead", Name: "Lead", Count: 2, TotalValue: decimal.NewFromInt(300), WeightedTotal: decimal.NewFromInt(30)},
		{StageID: "prop", Name: "Proposal", Count: 1, TotalValue: decimal.NewFromInt(1000), WeightedTotal: decimal.NewFromInt(500)},
	})
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "1,300.00")
	assert.Contains(t, out, "530.00")
}

func TestFormatOpportunity(t *testing.T) {
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	p := fixturePipeline()
	closeAt := time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC)
	o := &domain.Opportunity{
		ID: "o1", PipelineID: "p1", StageID: "prop", Name: "Padaria Central",
		Value: dec("1500"), WeightedValue: dec("750"), ExpectedCloseDate: &closeAt,
		Notes:          "call back",
		CustomFields:   domain.CustomFields{"segment": domain.SelectValue("retail")},
		EnteredStageAt: now.Add(-10 * 24 * time.Hour),
		Version:        3,
	}

	out := FormatOpportunity(o, p, fixtureDefs(), now)
	assert.Contains(t, out, "PADARIA CENTRAL")
	assert.Contains(t, out, "Proposal")
	assert.Contains(t, out, "1,500.00")
	assert.Contains(t, out, "750.00")
	assert.Contains(t, out, "2025-03-25")
	assert.Contains(t, out, "In 5d")
	assert.Contains(t, out, "⚠ 10d")
	assert.Contains(t, out, "call back")
	assert.Contains(t, out, "Segmento")
}

func TestFormatHistory(t *testing.T) {
	p := fixturePipeline()
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	moved := created.Add(50 * time.Hour)
	out := FormatHistory([]domain.StageTransition{
		{ToStageID: "lead", TransitionedAt: created},
		{FromStageID: "lead", ToStageID: "prop", EnteredFromAt: created, TransitionedAt: moved},
	}, p)

	assert.Contains(t, out, "(created)")
	assert.Contains(t, out, "Proposal")
	assert.Contains(t, out, "2d 2h")

	assert.Contains(t, FormatHistory(nil, p), "No stage history")
}

func TestFormatOpportunityList_Paging(t *testing.T) {
	p := fixturePipeline()
	stage := p.StageByID("lead")
	page := &app.OpportunityPage{
		Items: []*domain.Opportunity{
			{ID: "o1", StageID: "lead", Name: "Alpha", Value: dec("100")},
		},
		TotalCount: 3,
		TotalValue: decimal.NewFromInt(600),
		NextOffset: 1,
	}
	out := FormatOpportunityList(stage, page, 0, time.Now())
	assert.Contains(t, out, "3 deals")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "--offset 1")

	page.NextOffset = -1
	assert.NotContains(t, FormatOpportunityList(stage, page, 0, time.Now()), "--offset")
}

func TestFormatBoard(t *testing.T) {
	p := fixturePipeline()
	now := time.Now()
	cols := []board.Column{
		{Stage: *p.StageByID("lead"), TotalCount: 3, TotalValue: decimal.NewFromInt(300), Items: []*domain.Opportunity{
			{ID: "o1", Name: "Alpha", Value: dec("100"), CustomFields: domain.CustomFields{"segment": domain.SelectValue("b2b")}},
		}},
		{Stage: *p.StageByID("won")},
	}
	out := FormatBoard(p, cols, fixtureDefs(), now)
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "Segmento=")
	assert.Contains(t, out, "… 2 more")
	assert.Contains(t, out, "✔ Won")
}

func TestRenderCard(t *testing.T) {
	p := fixturePipeline()
	stage := p.StageByID("prop")
	now := time.Now()
	o := &domain.Opportunity{ID: "o1", Name: "Alpha", Value: dec("100"), EnteredStageAt: now.Add(-9 * 24 * time.Hour),
		CustomFields: domain.CustomFields{"source": domain.TextValue("site")}}

	plain := RenderCard(o, stage, KanbanFields(fixtureDefs()), now, 24, CardState{})
	assert.Contains(t, plain, "Alpha")
	assert.Contains(t, plain, "⚠ stagnant")
	assert.NotContains(t, plain, "site", "non-kanban fields stay off the card")

	pending := RenderCard(o, stage, nil, now, 24, CardState{Pending: true})
	assert.Contains(t, pending, "saving…")
}
