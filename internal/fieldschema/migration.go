package fieldschema

import (
	"fmt"
	"sort"

	"github.com/alexanderramin/pipedeck/internal/domain"
)

// Migration describes a schema change that existing value maps must follow.
// Renames map old name to new name; Retypes are keyed by the post-rename name.
type Migration struct {
	Renames map[string]string
	Retypes map[string]domain.FieldType
}

func (m Migration) IsEmpty() bool {
	return len(m.Renames) == 0 && len(m.Retypes) == 0
}

// Validate rejects renames that collide with each other or with an existing
// definition that is not itself being renamed away.
func (m Migration) Validate(defs []*domain.FieldDefinition) error {
	existing := make(map[string]bool, len(defs))
	for _, d := range defs {
		existing[d.Name] = true
	}
	targets := make(map[string]string, len(m.Renames))
	for from, to := range m.Renames {
		if to == "" || from == to {
			return fmt.Errorf("rename %q: invalid target %q", from, to)
		}
		if prev, ok := targets[to]; ok {
			return fmt.Errorf("renames %q and %q both target %q", prev, from, to)
		}
		targets[to] = from
		if _, movingAway := m.Renames[to]; existing[to] && !movingAway {
			return fmt.Errorf("rename %q: field %q already exists", from, to)
		}
	}
	for name, typ := range m.Retypes {
		if !domain.ValidFieldTypes[typ] {
			return fmt.Errorf("retype %q: invalid type %q", name, typ)
		}
	}
	return nil
}

// Dropped records a value ApplyMigration could not carry over.
type Dropped struct {
	Field  string
	Reason string
}

// ApplyMigration returns a rewritten copy of values. Renamed keys move;
// retyped values are re-coerced against defs (the post-migration schema) and
// dropped when they cannot be converted.
func ApplyMigration(values domain.CustomFields, m Migration, defs []*domain.FieldDefinition) (domain.CustomFields, []Dropped) {
	out := make(domain.CustomFields, len(values))
	for k, v := range values.Clone() {
		if to, ok := m.Renames[k]; ok {
			k = to
		}
		out[k] = v
	}

	byName := make(map[string]*domain.FieldDefinition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	var dropped []Dropped
	names := make([]string, 0, len(m.Retypes))
	for name := range m.Retypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, ok := out[name]
		if !ok {
			continue
		}
		def := &domain.FieldDefinition{Name: name, Type: m.Retypes[name]}
		if d, ok := byName[name]; ok {
			cp := *d
			cp.Type = m.Retypes[name]
			def = &cp
		}
		converted, err := convert(def, v)
		if err != nil {
			delete(out, name)
			dropped = append(dropped, Dropped{Field: name, Reason: err.Error()})
			continue
		}
		if converted == nil {
			delete(out, name)
			continue
		}
		out[name] = *converted
	}
	return out, dropped
}

func convert(def *domain.FieldDefinition, v domain.FieldValue) (*domain.FieldValue, error) {
	if v.Kind == def.Type.ValueKind() {
		return &v, nil
	}
	raw := Raw(v)
	switch def.Type.ValueKind() {
	case domain.KindSelect:
		if v.Kind == domain.KindMultiSelect {
			if len(v.Options) != 1 {
				return nil, fmt.Errorf("%d selected options cannot become one", len(v.Options))
			}
			raw = v.Options[0]
			break
		}
		raw = v.String()
	case domain.KindText:
		// Non-text sources go through their display form.
		raw = v.String()
	case domain.KindMultiSelect:
		if v.Kind == domain.KindText || v.Kind == domain.KindSelect {
			raw = []string{v.Text}
		}
	}
	return Coerce(def, raw)
}
