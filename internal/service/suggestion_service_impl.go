package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/repository"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentSuggest bounds parallel Recommender calls for one opportunity.
const maxConcurrentSuggest = 4

type suggestionService struct {
	opps        repository.OpportunityRepo
	recommender app.Recommender
	observer    UseCaseObserver
}

// NewSuggestionService forwards line items to rec. A nil rec behaves like
// NoopRecommender.
func NewSuggestionService(opps repository.OpportunityRepo, rec app.Recommender, observers ...UseCaseObserver) SuggestionService {
	if rec == nil {
		rec = NoopRecommender{}
	}
	return &suggestionService{
		opps:        opps,
		recommender: rec,
		observer:    useCaseObserverOrNoop(observers),
	}
}

// SuggestForOpportunity returns suggestions keyed by line item id.
func (s *suggestionService) SuggestForOpportunity(ctx context.Context, opportunityID string) (out map[string][]domain.ProductSuggestion, err error) {
	startedAt := time.Now()
	defer func() {
		s.observer.ObserveUseCase(ctx, UseCaseEvent{
			Name:      "suggest-products",
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Success:   err == nil,
			Err:       err,
			Fields:    map[string]any{"opportunity_id": opportunityID, "items": len(out)},
		})
	}()

	o, err := s.opps.GetByID(ctx, opportunityID)
	if err != nil {
		return nil, err
	}

	out = make(map[string][]domain.ProductSuggestion, len(o.LineItems))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSuggest)
	for _, item := range o.LineItems {
		g.Go(func() error {
			suggestions, err := s.recommender.Suggest(gctx, o.ID, item)
			if err != nil {
				return fmt.Errorf("suggesting for line item %s: %w", item.ID, err)
			}
			mu.Lock()
			out[item.ID] = suggestions
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordFeedback forwards an accept/reject event after checking that the
// opportunity and line item exist.
func (s *suggestionService) RecordFeedback(ctx context.Context, fb domain.SuggestionFeedback) error {
	o, err := s.opps.GetByID(ctx, fb.OpportunityID)
	if err != nil {
		return err
	}
	found := false
	for _, item := range o.LineItems {
		if item.ID == fb.LineItemID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("line item %s: %w", fb.LineItemID, domain.ErrNotFound)
	}
	if fb.At.IsZero() {
		fb.At = time.Now().UTC()
	}
	return s.recommender.Feedback(ctx, fb)
}

// NoopRecommender suggests nothing and discards feedback.
type NoopRecommender struct{}

func (NoopRecommender) Suggest(context.Context, string, domain.LineItem) ([]domain.ProductSuggestion, error) {
	return nil, nil
}

func (NoopRecommender) Feedback(context.Context, domain.SuggestionFeedback) error {
	return nil
}
