package board

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/shopspring/decimal"
)

// fakeAPI is an in-memory app.PipelineAPI with hooks for slow or failing calls.
type fakeAPI struct {
	mu        sync.Mutex
	pipeline  *domain.Pipeline
	opps      []*domain.Opportunity
	pageCalls map[string]int
	moveCalls int

	moveErr   error
	moveGate  chan struct{}
	moveTo    string // when set, the server files the card here instead
	pageGate  chan struct{}
	pageEnter chan struct{}

	pipelineGate  chan struct{}
	pipelineEnter chan struct{}
}

func newFakeAPI(p *domain.Pipeline) *fakeAPI {
	return &fakeAPI{pipeline: p, pageCalls: map[string]int{}}
}

func (f *fakeAPI) add(stageID, name string, value int64) *domain.Opportunity {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := decimal.NewFromInt(value)
	o := &domain.Opportunity{
		ID:             fmt.Sprintf("o%03d", len(f.opps)+1),
		PipelineID:     f.pipeline.ID,
		StageID:        stageID,
		Name:           name,
		Value:          &v,
		CustomFields:   domain.CustomFields{},
		EnteredStageAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:        1,
	}
	o.RecomputeWeighted(f.pipeline.StageByID(stageID))
	f.opps = append(f.opps, o)
	return o
}

func (f *fakeAPI) find(id string) *domain.Opportunity {
	for _, o := range f.opps {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (f *fakeAPI) calls() (moves int, pages map[string]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages = map[string]int{}
	for k, v := range f.pageCalls {
		pages[k] = v
	}
	return f.moveCalls, pages
}

func (f *fakeAPI) ListPipelines(context.Context) ([]*domain.Pipeline, error) {
	return []*domain.Pipeline{f.pipeline}, nil
}

func (f *fakeAPI) GetPipelineWithStages(ctx context.Context, id string) (*domain.Pipeline, error) {
	f.mu.Lock()
	gate, enter := f.pipelineGate, f.pipelineEnter
	f.mu.Unlock()
	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if id != f.pipeline.ID {
		return nil, fmt.Errorf("pipeline %s: %w", id, domain.ErrNotFound)
	}
	return f.pipeline, nil
}

func (f *fakeAPI) ListFieldDefinitions(context.Context, string) ([]*domain.FieldDefinition, error) {
	return nil, nil
}

func (f *fakeAPI) ListOpportunitiesPage(ctx context.Context, stageID string, req app.PageRequest) (*app.OpportunityPage, error) {
	f.mu.Lock()
	f.pageCalls[stageID]++
	gate, enter := f.pageGate, f.pageEnter
	f.mu.Unlock()
	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	req = req.Normalize()
	page := &app.OpportunityPage{NextOffset: -1}
	var inStage []*domain.Opportunity
	for _, o := range f.opps {
		if o.StageID == stageID {
			inStage = append(inStage, o)
			page.TotalValue = page.TotalValue.Add(o.ValueOrZero())
		}
	}
	page.TotalCount = len(inStage)
	end := min(req.Offset+req.Limit, len(inStage))
	for _, o := range inStage[min(req.Offset, end):end] {
		page.Items = append(page.Items, o.Clone())
	}
	if end < len(inStage) {
		page.NextOffset = end
	}
	return page, nil
}

func (f *fakeAPI) CreateOpportunity(context.Context, app.OpportunityPayload) (*domain.Opportunity, error) {
	return nil, fmt.Errorf("create: not supported by fake")
}

func (f *fakeAPI) UpdateOpportunity(context.Context, string, app.OpportunityPayload) (*domain.Opportunity, error) {
	return nil, fmt.Errorf("update: not supported by fake")
}

func (f *fakeAPI) MoveOpportunity(ctx context.Context, id, dest string) (*domain.Opportunity, error) {
	f.mu.Lock()
	f.moveCalls++
	gate := f.moveGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return nil, f.moveErr
	}
	o := f.find(id)
	if o == nil {
		return nil, domain.ErrNotFound
	}
	if f.moveTo != "" {
		dest = f.moveTo
	}
	if err := o.MoveTo(f.pipeline.StageByID(dest), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		return nil, err
	}
	o.Version++
	return o.Clone(), nil
}

func (f *fakeAPI) GetOpportunity(_ context.Context, id string) (*domain.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o := f.find(id); o != nil {
		return o.Clone(), nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAPI) StageSummaries(context.Context, string) ([]app.StageSummary, error) {
	return nil, nil
}

func (f *fakeAPI) StageHistory(context.Context, string) ([]domain.StageTransition, error) {
	return nil, nil
}
