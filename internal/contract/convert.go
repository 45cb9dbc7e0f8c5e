package contract

import (
	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/domain"
)

func FromPipeline(p *domain.Pipeline) Pipeline {
	out := Pipeline{
		ID:        p.ID,
		Name:      p.Name,
		Color:     p.Color,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Transitions: TransitionPolicy{
			Mode: string(p.Transitions.Mode),
		},
	}
	for _, pair := range p.Transitions.Allowed {
		out.Transitions.Allowed = append(out.Transitions.Allowed, StagePair(pair))
	}
	for _, s := range p.Stages {
		out.Stages = append(out.Stages, FromStage(s))
	}
	return out
}

func (p Pipeline) ToDomain() *domain.Pipeline {
	out := &domain.Pipeline{
		ID:        p.ID,
		Name:      p.Name,
		Color:     p.Color,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Transitions: domain.TransitionPolicy{
			Mode: domain.TransitionMode(p.Transitions.Mode),
		},
	}
	for _, pair := range p.Transitions.Allowed {
		out.Transitions.Allowed = append(out.Transitions.Allowed, domain.StagePair(pair))
	}
	for _, s := range p.Stages {
		out.Stages = append(out.Stages, s.ToDomain())
	}
	return out
}

func FromStage(s domain.Stage) Stage {
	return Stage{
		ID:                  s.ID,
		PipelineID:          s.PipelineID,
		Name:                s.Name,
		Color:               s.Color,
		OrderIndex:          s.OrderIndex,
		ProbabilityPercent:  s.ProbabilityPercent,
		IsWon:               s.IsWon,
		IsLost:              s.IsLost,
		StagnationAlertDays: s.StagnationAlertDays,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func (s Stage) ToDomain() domain.Stage {
	return domain.Stage{
		ID:                  s.ID,
		PipelineID:          s.PipelineID,
		Name:                s.Name,
		Color:               s.Color,
		OrderIndex:          s.OrderIndex,
		ProbabilityPercent:  s.ProbabilityPercent,
		IsWon:               s.IsWon,
		IsLost:              s.IsLost,
		StagnationAlertDays: s.StagnationAlertDays,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func FromFieldDefinition(d *domain.FieldDefinition) FieldDefinition {
	out := FieldDefinition{
		ID:              d.ID,
		PipelineID:      d.PipelineID,
		Name:            d.Name,
		Label:           d.Label,
		Type:            string(d.Type),
		Required:        d.Required,
		Group:           d.Group,
		Width:           string(d.Width),
		Order:           d.Order,
		VisibleInKanban: d.VisibleInKanban,
	}
	for _, o := range d.Options {
		out.Options = append(out.Options, FieldOption(o))
	}
	return out
}

func (d FieldDefinition) ToDomain() *domain.FieldDefinition {
	out := &domain.FieldDefinition{
		ID:              d.ID,
		PipelineID:      d.PipelineID,
		Name:            d.Name,
		Label:           d.Label,
		Type:            domain.FieldType(d.Type),
		Required:        d.Required,
		Group:           d.Group,
		Width:           domain.FieldWidth(d.Width),
		Order:           d.Order,
		VisibleInKanban: d.VisibleInKanban,
	}
	for _, o := range d.Options {
		out.Options = append(out.Options, domain.FieldOption(o))
	}
	return out
}

func FromOpportunity(o *domain.Opportunity) Opportunity {
	c := o.Clone()
	return Opportunity{
		ID:                c.ID,
		PipelineID:        c.PipelineID,
		StageID:           c.StageID,
		Name:              c.Name,
		Value:             c.Value,
		WeightedValue:     c.WeightedValue,
		ExpectedCloseDate: c.ExpectedCloseDate,
		Notes:             c.Notes,
		CustomFields:      c.CustomFields,
		LineItems:         c.LineItems,
		EnteredStageAt:    c.EnteredStageAt,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		Version:           c.Version,
	}
}

func (o Opportunity) ToDomain() *domain.Opportunity {
	custom := o.CustomFields
	if custom == nil {
		custom = domain.CustomFields{}
	}
	return &domain.Opportunity{
		ID:                o.ID,
		PipelineID:        o.PipelineID,
		StageID:           o.StageID,
		Name:              o.Name,
		Value:             o.Value,
		WeightedValue:     o.WeightedValue,
		ExpectedCloseDate: o.ExpectedCloseDate,
		Notes:             o.Notes,
		CustomFields:      custom,
		LineItems:         o.LineItems,
		EnteredStageAt:    o.EnteredStageAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		Version:           o.Version,
	}
}

func FromPage(p *app.OpportunityPage) OpportunityPage {
	out := OpportunityPage{
		Items:      make([]Opportunity, 0, len(p.Items)),
		TotalCount: p.TotalCount,
		TotalValue: p.TotalValue,
		NextOffset: p.NextOffset,
	}
	for _, o := range p.Items {
		out.Items = append(out.Items, FromOpportunity(o))
	}
	return out
}

func (p OpportunityPage) ToApp() *app.OpportunityPage {
	out := &app.OpportunityPage{
		Items:      make([]*domain.Opportunity, 0, len(p.Items)),
		TotalCount: p.TotalCount,
		TotalValue: p.TotalValue,
		NextOffset: p.NextOffset,
	}
	for _, o := range p.Items {
		out.Items = append(out.Items, o.ToDomain())
	}
	return out
}

func FromPayload(p app.OpportunityPayload) OpportunityPayload {
	return OpportunityPayload{
		PipelineID:         p.PipelineID,
		StageID:            p.StageID,
		Name:               p.Name,
		Value:              p.Value,
		ClearValue:         p.ClearValue,
		ExpectedCloseDate:  p.ExpectedCloseDate,
		ClearExpectedClose: p.ClearExpectedClose,
		Notes:              p.Notes,
		CustomFields:       p.CustomFields,
		LineItems:          p.LineItems,
		ExpectedVersion:    p.ExpectedVersion,
	}
}

func (p OpportunityPayload) ToApp() app.OpportunityPayload {
	return app.OpportunityPayload{
		PipelineID:         p.PipelineID,
		StageID:            p.StageID,
		Name:               p.Name,
		Value:              p.Value,
		ClearValue:         p.ClearValue,
		ExpectedCloseDate:  p.ExpectedCloseDate,
		ClearExpectedClose: p.ClearExpectedClose,
		Notes:              p.Notes,
		CustomFields:       p.CustomFields,
		LineItems:          p.LineItems,
		ExpectedVersion:    p.ExpectedVersion,
	}
}

func FromStageSummary(s app.StageSummary) StageSummary {
	return StageSummary(s)
}

func (s StageSummary) ToApp() app.StageSummary {
	return app.StageSummary(s)
}

func FromTransition(t domain.StageTransition) StageTransition {
	return StageTransition(t)
}

func (t StageTransition) ToDomain() domain.StageTransition {
	return domain.StageTransition(t)
}

// FromValidation flattens field errors for the wire.
func FromValidation(v domain.ValidationErrors) map[string]FieldError {
	out := make(map[string]FieldError, len(v))
	for k, e := range v {
		out[k] = FieldError{Kind: string(e.Kind), Message: e.Message}
	}
	return out
}

func ToValidation(fields map[string]FieldError) domain.ValidationErrors {
	out := make(domain.ValidationErrors, len(fields))
	for k, e := range fields {
		out.Add(k, domain.ErrorKind(e.Kind), e.Message)
	}
	return out
}
