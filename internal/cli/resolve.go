package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/pipedeck/internal/domain"
)

// resolvePipeline finds a pipeline by exact id, case-insensitive name or id
// prefix, in that order, and returns it with its stages.
func resolvePipeline(ctx context.Context, app *App, input string) (*domain.Pipeline, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("pipeline is required")
	}

	pipelines, err := app.API.ListPipelines(ctx)
	if err != nil {
		return nil, err
	}

	id := ""
	for _, p := range pipelines {
		if p.ID == input {
			id = p.ID
			break
		}
	}
	if id == "" {
		for _, p := range pipelines {
			if strings.EqualFold(strings.TrimSpace(p.Name), input) {
				id = p.ID
				break
			}
		}
	}
	if id == "" {
		var matches []string
		for _, p := range pipelines {
			if strings.HasPrefix(p.ID, input) {
				matches = append(matches, p.ID)
			}
		}
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("pipeline not found: %q", input)
		case 1:
			id = matches[0]
		default:
			return nil, fmt.Errorf("pipeline ID prefix %q is ambiguous (%d matches)", input, len(matches))
		}
	}

	return app.API.GetPipelineWithStages(ctx, id)
}

// resolveStage finds a stage of p by id, case-insensitive name or id prefix.
func resolveStage(p *domain.Pipeline, input string) (*domain.Stage, error) {
	input = strings.TrimSpace(input)
	if s := p.StageByID(input); s != nil {
		return s, nil
	}
	for i := range p.Stages {
		if strings.EqualFold(p.Stages[i].Name, input) {
			return &p.Stages[i], nil
		}
	}
	var match *domain.Stage
	for i := range p.Stages {
		if input != "" && strings.HasPrefix(p.Stages[i].ID, input) {
			if match != nil {
				return nil, fmt.Errorf("stage ID prefix %q is ambiguous", input)
			}
			match = &p.Stages[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("stage %q not found in pipeline %s", input, p.Name)
	}
	return match, nil
}

// loadOpportunity fetches an opportunity with its pipeline.
func loadOpportunity(ctx context.Context, app *App, id string) (*domain.Opportunity, *domain.Pipeline, error) {
	o, err := app.API.GetOpportunity(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, nil, fmt.Errorf("opportunity %s: %w", id, err)
	}
	p, err := app.API.GetPipelineWithStages(ctx, o.PipelineID)
	if err != nil {
		return nil, nil, err
	}
	return o, p, nil
}
