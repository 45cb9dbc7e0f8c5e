// Package fieldschema holds the per-pipeline custom field schema: ordering,
// structural checks, validation of value maps and coercion of raw input.
package fieldschema

import (
	"context"
	"fmt"
	"sort"

	"github.com/alexanderramin/pipedeck/internal/domain"
)

// DefinitionSource yields a pipeline's field definitions in storage order.
type DefinitionSource interface {
	ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.FieldDefinition, error)
}

// Registry is the read-only view of field definitions used by forms and the board.
type Registry struct {
	src DefinitionSource
}

func NewRegistry(src DefinitionSource) *Registry {
	return &Registry{src: src}
}

// Definitions returns the pipeline's definitions in display order.
func (r *Registry) Definitions(ctx context.Context, pipelineID string) ([]*domain.FieldDefinition, error) {
	defs, err := r.src.ListByPipeline(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("loading field definitions: %w", err)
	}
	return Ordered(defs), nil
}

// Ordered sorts by group (in order of first appearance), then Order, then Name.
// The input slice is not modified.
func Ordered(defs []*domain.FieldDefinition) []*domain.FieldDefinition {
	groupRank := make(map[string]int)
	for _, d := range defs {
		if _, ok := groupRank[d.Group]; !ok {
			groupRank[d.Group] = len(groupRank)
		}
	}
	out := make([]*domain.FieldDefinition, len(defs))
	copy(out, defs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ga, gb := groupRank[a.Group], groupRank[b.Group]; ga != gb {
			return ga < gb
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Name < b.Name
	})
	return out
}

// Group is one labelled section of a form.
type Group struct {
	Name   string
	Fields []*domain.FieldDefinition
}

// Grouped splits ordered definitions into groups, keeping their order.
func Grouped(defs []*domain.FieldDefinition) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, d := range Ordered(defs) {
		i, ok := index[d.Group]
		if !ok {
			i = len(groups)
			index[d.Group] = i
			groups = append(groups, Group{Name: d.Group})
		}
		groups[i].Fields = append(groups[i].Fields, d)
	}
	return groups
}

// Kanban returns the definitions flagged to surface on board cards.
func Kanban(defs []*domain.FieldDefinition) []*domain.FieldDefinition {
	var out []*domain.FieldDefinition
	for _, d := range Ordered(defs) {
		if d.VisibleInKanban {
			out = append(out, d)
		}
	}
	return out
}

// Check verifies a pipeline's definitions are structurally sound and
// returns every problem found.
func Check(defs []*domain.FieldDefinition) []error {
	var errs []error
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		prefix := fmt.Sprintf("fields[%d]", i)
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if seen[d.Name] {
			errs = append(errs, fmt.Errorf("%s.name: duplicate name %q", prefix, d.Name))
		} else {
			seen[d.Name] = true
		}
		if !domain.ValidFieldTypes[d.Type] {
			errs = append(errs, fmt.Errorf("%s.type: invalid value %q", prefix, d.Type))
		}
		if d.Width != "" && d.Width != domain.WidthFull && d.Width != domain.WidthHalf {
			errs = append(errs, fmt.Errorf("%s.width: invalid value %q", prefix, d.Width))
		}
		if d.Type == domain.FieldSelect || d.Type == domain.FieldMultiSelect {
			if len(d.Options) == 0 {
				errs = append(errs, fmt.Errorf("%s.options: %s field %q needs at least one option", prefix, d.Type, d.Name))
			}
			values := make(map[string]bool, len(d.Options))
			for _, o := range d.Options {
				if values[o.Value] {
					errs = append(errs, fmt.Errorf("%s.options: duplicate value %q", prefix, o.Value))
				}
				values[o.Value] = true
			}
		}
	}
	return errs
}
