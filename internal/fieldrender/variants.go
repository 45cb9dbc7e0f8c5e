package fieldrender

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/charmbracelet/huh"
)

func coerce(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error) {
	v, err := fieldschema.Coerce(def, raw)
	if err != nil {
		return nil, parseError(def, err)
	}
	return v, nil
}

// inputSurface binds a single-line huh.Input whose validate hook runs Apply.
func inputSurface(def *domain.FieldDefinition, r Renderer, current *domain.FieldValue, onChange ChangeFunc, layout Layout, placeholder string) *Surface {
	s := &Surface{def: def, parse: r.Parse, onChange: onChange}
	raw := r.Format(current)
	s.Field = huh.NewInput().
		Key(def.Name).
		Title(title(def)).
		Description(description(def, layout)).
		Placeholder(placeholder).
		Inline(layout == LayoutCompact).
		Value(&raw).
		Validate(s.Apply)
	return s
}

type textRenderer struct {
	placeholder string
}

func (r textRenderer) Render(def *domain.FieldDefinition, current *domain.FieldValue, onChange ChangeFunc, layout Layout) *Surface {
	return inputSurface(def, r, current, onChange, layout, r.placeholder)
}

func (textRenderer) Parse(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error) {
	return coerce(def, raw)
}

func (textRenderer) Format(v *domain.FieldValue) string {
	if v == nil {
		return ""
	}
	return v.String()
}

type textareaRenderer struct{}

func (r textareaRenderer) Render(def *domain.FieldDefinition, current *domain.FieldValue, onChange ChangeFunc, layout Layout) *Surface {
	s := &Surface{def: def, parse: r.Parse, onChange: onChange}
	raw := r.Format(current)
	lines := 5
	if layout == LayoutCompact {
		lines = 2
	}
	s.Field = huh.NewText().
		Key(def.Name).
		Title(title(def)).
		Description(description(def, layout)).
		Lines(lines).
		Value(&raw).
		Validate(s.Apply)
	return s
}

func (textareaRenderer) Parse(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error) {
	return coerce(def, raw)
}

func (textareaRenderer) Format(v *domain.FieldValue) string {
	if v == nil {
		return ""
	}
	return v.Text
}

// numberRenderer serves number, currency and percentage. Empty input is nil.
type numberRenderer struct {
	decimals int
	clamp    bool
}

func (r numberRenderer) Render(def *domain.FieldDefinition, current *domain.FieldValue, onChange ChangeFunc, layout Layout) *Surface {
	placeholder := "0"
	if r.clamp {
		placeholder = "0-100"
	}
	return inputSurface(def, r, current, onChange, layout, placeholder)
}

func (r numberRenderer) Parse(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	v, err := coerce(def, raw)
	if err != nil || v == nil {
		return v, err
	}
	if r.clamp {
		switch {
		case v.Number < 0:
			v.Number = 0
		case v.Number > 100:
			v.Number = 100
		}
	}
	return v, nil
}

func (r numberRenderer) Format(v *domain.FieldValue) string {
	if v == nil || v.Kind != domain.KindNumber {
		return ""
	}
	if r.decimals > 0 {
		return strconv.FormatFloat(v.Number, 'f', r.decimals, 64)
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

const dateTimeInput = "2006-01-02 15:04"

type dateRenderer struct {
	withTime bool
}

func (r dateRenderer) Render(def *domain.FieldDefinition, current *domain.FieldValue, onChange ChangeFunc, layout Layout) *Surface {
	placeholder := domain.DateLayout
	if r.withTime {
		placeholder = dateTimeInput
	}
	return inputSurface(def, r, current, onChange, layout, placeholder)
}

func (dateRenderer) Parse(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error) {
	return coerce(def, raw)
}

func (r dateRenderer) Format(v *domain.FieldValue) string {
	if v == nil || v.Time.IsZero() {
		return ""
	}
	if r.withTime {
		return v.Time.UTC().Format(dateTimeInput)
	}
	return v.Time.Format(domain.DateLayout)
}

type selectRenderer struct{}

func (r selectRenderer) Render(def *domain.FieldDefinition, current *domain.FieldValue, onChange ChangeFunc, layout Layout) *Surface {
	s := &Surface{def: def, parse: r.Parse, onChange: onChange}
	selected := ""
	if current != nil {
		selected = current.Text
	}
	var opts []huh.Option[string]
	if !def.Required {
		opts = append(opts, huh.NewOption("--", ""))
	}
	for _, o := range def.Options {
		opts = append(opts, huh.NewOption(optionLabel(o), o.Value))
	}
	s.Field = huh.NewSelect[string]().
		Key(def.Name).
		Title(title(def)).
		Description(description(def, layout)).
		Options(opts...).
		Inline(layout == LayoutCompact).
		Value(&selected).
		Validate(s.Apply)
	return s
}

func (selectRenderer) Parse(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error) {
	return coerce(def, raw)
}

func (selectRenderer) Format(v *domain.FieldValue) string {
	if v == nil {
		return ""
	}
	return v.Text
}

type multiSelectRenderer struct{}

func (r multiSelectRenderer) Render(def *domain.FieldDefinition, current *domain.FieldValue, onChange ChangeFunc, layout Layout) *Surface {
	s := &Surface{def: def, parse: r.Parse, onChange: onChange}
	var selected []string
	if current != nil {
		selected = append(selected, current.Options...)
	}
	opts := make([]huh.Option[string], 0, len(def.Options))
	for _, o := range def.Options {
		opts = append(opts, huh.NewOption(optionLabel(o), o.Value))
	}
	height := len(opts) + 2
	if layout == LayoutCompact && height > 5 {
		height = 5
	}
	s.Field = huh.NewMultiSelect[string]().
		Key(def.Name).
		Title(title(def)).
		Description(description(def, layout)).
		Options(opts...).
		Height(height).
		Value(&selected).
		Validate(func(values []string) error {
			if len(values) == 0 {
				s.emit(nil)
				return nil
			}
			v := domain.MultiSelectValue(values...)
			s.emit(&v)
			return nil
		})
	return s
}

// Parse accepts a comma separated list.
func (multiSelectRenderer) Parse(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error) {
	return coerce(def, raw)
}

func (multiSelectRenderer) Format(v *domain.FieldValue) string {
	if v == nil {
		return ""
	}
	return strings.Join(v.Options, ",")
}

type boolRenderer struct{}

func (r boolRenderer) Render(def *domain.FieldDefinition, current *domain.FieldValue, onChange ChangeFunc, layout Layout) *Surface {
	s := &Surface{def: def, parse: r.Parse, onChange: onChange}
	checked := current != nil && current.Bool
	s.Field = huh.NewConfirm().
		Key(def.Name).
		Title(def.DisplayLabel()).
		Description(description(def, layout)).
		Affirmative("Sim").
		Negative("Não").
		Value(&checked).
		Validate(func(b bool) error {
			v := domain.BoolValue(b)
			s.emit(&v)
			return nil
		})
	return s
}

// Parse treats blank input as false; there is no third state.
func (boolRenderer) Parse(def *domain.FieldDefinition, raw string) (*domain.FieldValue, error) {
	if strings.TrimSpace(raw) == "" {
		v := domain.BoolValue(false)
		return &v, nil
	}
	return coerce(def, raw)
}

func (boolRenderer) Format(v *domain.FieldValue) string {
	if v != nil && v.Bool {
		return "sim"
	}
	return "não"
}

func optionLabel(o domain.FieldOption) string {
	if o.Label != "" {
		return o.Label
	}
	return o.Value
}

// ParseAssignment splits a CLI "name=value" pair.
func ParseAssignment(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", s)
	}
	return name, value, nil
}
