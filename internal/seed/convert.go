package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Generated holds the domain objects built from a PipelineFile.
type Generated struct {
	Pipeline      *domain.Pipeline
	Fields        []*domain.FieldDefinition
	Opportunities []*domain.Opportunity
}

// Convert transforms a validated PipelineFile into domain objects ready for
// persistence. Call Validate first; Convert assumes the file is valid.
func Convert(pf *PipelineFile, now time.Time) (*Generated, error) {
	now = now.UTC()
	p := &domain.Pipeline{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(pf.Pipeline.Name),
		Color:     pf.Pipeline.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	refMap := make(map[string]string) // ref -> stage id
	for _, s := range pf.Stages {
		id := uuid.New().String()
		refMap[s.Ref] = id
		p.Stages = append(p.Stages, domain.Stage{
			ID:                  id,
			PipelineID:          p.ID,
			Name:                s.Name,
			Color:               s.Color,
			OrderIndex:          s.Order,
			ProbabilityPercent:  s.Probability,
			IsWon:               s.Won,
			IsLost:              s.Lost,
			StagnationAlertDays: s.StagnationAlertDays,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}
	p.Stages = p.SortedStages()

	if t := pf.Pipeline.Transitions; t != nil && domain.TransitionMode(t.Mode) == domain.TransitionsExplicit {
		p.Transitions.Mode = domain.TransitionsExplicit
		for _, pair := range t.Allowed {
			p.Transitions.Allowed = append(p.Transitions.Allowed, domain.StagePair{
				From: refMap[pair.From],
				To:   refMap[pair.To],
			})
		}
	} else {
		p.Transitions.Mode = domain.TransitionsAny
	}

	fields := fieldDefinitions(pf.Fields)
	for _, f := range fields {
		f.ID = uuid.New().String()
		f.PipelineID = p.ID
		f.CreatedAt = now
		f.UpdatedAt = now
	}

	opps := make([]*domain.Opportunity, 0, len(pf.Opportunities))
	for i, o := range pf.Opportunities {
		stage := p.StageByID(refMap[o.Stage])
		if stage == nil {
			return nil, fmt.Errorf("opportunities[%d]: stage %q not found", i, o.Stage)
		}
		values, errs := fieldschema.Decode(fields, o.Custom)
		if len(errs) > 0 {
			return nil, fmt.Errorf("opportunities[%d].custom: %w", i, errs)
		}
		opp := &domain.Opportunity{
			ID:           uuid.New().String(),
			PipelineID:   p.ID,
			Name:         strings.TrimSpace(o.Name),
			Notes:        o.Notes,
			CustomFields: values,
			CreatedAt:    now,
			UpdatedAt:    now,
			Version:      1,
		}
		if o.Value != nil {
			d, err := decimal.NewFromString(*o.Value)
			if err != nil {
				return nil, fmt.Errorf("opportunities[%d].value: %w", i, err)
			}
			opp.Value = &d
		}
		opp.ExpectedCloseDate = parseOptionalDate(o.ExpectedClose)
		if err := opp.MoveTo(stage, now); err != nil {
			return nil, fmt.Errorf("opportunities[%d]: %w", i, err)
		}
		opps = append(opps, opp)
	}

	return &Generated{Pipeline: p, Fields: fields, Opportunities: opps}, nil
}

// fieldDefinitions maps field specs to definitions without ids.
func fieldDefinitions(specs []FieldSpec) []*domain.FieldDefinition {
	defs := make([]*domain.FieldDefinition, 0, len(specs))
	for _, f := range specs {
		d := &domain.FieldDefinition{
			Name:            f.Name,
			Label:           f.Label,
			Type:            domain.FieldType(f.Type),
			Required:        f.Required,
			Group:           f.Group,
			Width:           domain.FieldWidth(domain.CoalesceStr(f.Width, string(domain.WidthFull))),
			Order:           f.Order,
			VisibleInKanban: f.Kanban,
		}
		for _, o := range f.Options {
			d.Options = append(d.Options, domain.FieldOption{Value: o.Value, Label: o.Label})
		}
		defs = append(defs, d)
	}
	return defs
}

func parseOptionalDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(domain.DateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}
