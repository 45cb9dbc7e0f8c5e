package fieldschema

import (
	"fmt"
	"math"

	"github.com/alexanderramin/pipedeck/internal/domain"
)

// Result is the outcome of validating one value map.
type Result struct {
	Valid  bool
	Errors domain.ValidationErrors
}

// Validator checks value maps against field definitions.
type Validator struct {
	// StrictMultiselect rejects multiselect elements missing from the options.
	StrictMultiselect bool
}

// DefaultValidator enforces option membership for select and multiselect.
var DefaultValidator = Validator{StrictMultiselect: true}

// ValidateAllFields validates values with DefaultValidator.
func ValidateAllFields(defs []*domain.FieldDefinition, values domain.CustomFields) Result {
	return DefaultValidator.ValidateAllFields(defs, values)
}

// ValidateAllFields evaluates every definition independently and reports all
// failures at once. Keys without a definition are ignored.
func (v Validator) ValidateAllFields(defs []*domain.FieldDefinition, values domain.CustomFields) Result {
	errs := domain.ValidationErrors{}
	for _, def := range defs {
		if fe := v.validateField(def, values); fe != nil {
			errs[def.Name] = fe
		}
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateField validates a single definition's entry of values.
func (v Validator) ValidateField(def *domain.FieldDefinition, values domain.CustomFields) *domain.FieldError {
	return v.validateField(def, values)
}

func (v Validator) validateField(def *domain.FieldDefinition, values domain.CustomFields) *domain.FieldError {
	label := def.DisplayLabel()
	fail := func(kind domain.ErrorKind, msg string) *domain.FieldError {
		return &domain.FieldError{Field: def.Name, Kind: kind, Message: msg}
	}

	val, present := values[def.Name]
	if present && val.Kind != def.Type.ValueKind() {
		return fail(domain.InvalidType, fmt.Sprintf("%s: esperado %s, recebido %s", label, def.Type.ValueKind(), val.Kind))
	}
	if present && val.Kind == domain.KindNumber && (math.IsNaN(val.Number) || math.IsInf(val.Number, 0)) {
		return fail(domain.InvalidType, fmt.Sprintf("%s deve ser um número finito", label))
	}

	if def.Type == domain.FieldBoolean {
		return nil
	}
	if !present || val.IsEmpty() {
		if def.Required {
			return fail(domain.MissingRequiredField, domain.RequiredMessage(label))
		}
		return nil
	}

	switch def.Type {
	case domain.FieldSelect:
		if !def.HasOption(val.Text) {
			return fail(domain.InvalidOptionMembership, fmt.Sprintf("%s: opção inválida %q", label, val.Text))
		}
	case domain.FieldMultiSelect:
		if v.StrictMultiselect {
			for _, o := range val.Options {
				if !def.HasOption(o) {
					return fail(domain.InvalidOptionMembership, fmt.Sprintf("%s: opção inválida %q", label, o))
				}
			}
		}
	}
	return nil
}
