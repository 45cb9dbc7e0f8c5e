// Package fieldrender turns field definitions into editable huh fields and
// parses their raw input back into typed values. It holds no business rules:
// typing goes through fieldschema.Coerce and validation stays in fieldschema.
package fieldrender

import (
	"fmt"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/charmbracelet/huh"
)

// ChangeFunc receives the parsed value after every accepted edit. A nil
// value means the field was cleared.
type ChangeFunc func(v *domain.FieldValue)

// Layout selects how a surface is drawn. It never changes parsing.
type Layout int

const (
	LayoutFull Layout = iota
	LayoutCompact
)

// Renderer is implemented once per value shape.
type Renderer interface {
	Render(def *domain.FieldDefinition, current *domain.FieldValue, onChange ChangeFunc, layout Layout) *Surface
	Parse(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error)
	Format(v *domain.FieldValue) string
}

// Surface is an editable representation of one field.
type Surface struct {
	Field huh.Field

	def      *domain.FieldDefinition
	parse    func(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error)
	onChange ChangeFunc
}

// Apply feeds raw text through the renderer's parser and, when it parses,
// reports the result to the surface's ChangeFunc.
func (s *Surface) Apply(raw string) error {
	v, err := s.parse(s.def, raw)
	if err != nil {
		return err
	}
	if s.onChange != nil {
		s.onChange(v)
	}
	return nil
}

func (s *Surface) emit(v *domain.FieldValue) {
	if s.onChange != nil {
		s.onChange(v)
	}
}

var renderers = map[domain.FieldType]Renderer{
	domain.FieldText:        textRenderer{},
	domain.FieldURL:         textRenderer{placeholder: "https://"},
	domain.FieldEmail:       textRenderer{placeholder: "nome@empresa.com"},
	domain.FieldPhone:       textRenderer{placeholder: "+55 11 90000-0000"},
	domain.FieldTextarea:    textareaRenderer{},
	domain.FieldNumber:      numberRenderer{},
	domain.FieldCurrency:    numberRenderer{decimals: 2},
	domain.FieldPercentage:  numberRenderer{clamp: true},
	domain.FieldDate:        dateRenderer{},
	domain.FieldDateTime:    dateRenderer{withTime: true},
	domain.FieldSelect:      selectRenderer{},
	domain.FieldMultiSelect: multiSelectRenderer{},
	domain.FieldBoolean:     boolRenderer{},
}

// For returns the renderer for a field type. Unknown types fall back to
// plain text so a bad definition still shows up on screen.
func For(t domain.FieldType) Renderer {
	if r, ok := renderers[t]; ok {
		return r
	}
	return textRenderer{}
}

// Render is shorthand for For(def.Type).Render.
func Render(def *domain.FieldDefinition, current *domain.FieldValue, onChange ChangeFunc, layout Layout) *Surface {
	return For(def.Type).Render(def, current, onChange, layout)
}

// Parse is shorthand for For(def.Type).Parse.
func Parse(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error) {
	return For(def.Type).Parse(def, raw)
}

// Format is shorthand for For(def.Type).Format.
func Format(def *domain.FieldDefinition, v *domain.FieldValue) string {
	return For(def.Type).Format(v)
}

// Toggle adds v to list when absent and removes it when present. Newly added
// values go last. The input slice is not modified.
func Toggle(list []string, v string) []string {
	out := make([]string, 0, len(list)+1)
	found := false
	for _, s := range list {
		if s == v {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, v)
	}
	return out
}

func title(def *domain.FieldDefinition) string {
	if def.Required {
		return def.DisplayLabel() + " *"
	}
	return def.DisplayLabel()
}

func description(def *domain.FieldDefinition, layout Layout) string {
	if layout == LayoutCompact || def.Group == "" {
		return ""
	}
	return def.Group
}

func parseError(def *domain.FieldDefinition, err error) error {
	return fmt.Errorf("%s: %w", def.DisplayLabel(), err)
}
