package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/shopspring/decimal"
)

// Validate checks the file before conversion and returns every problem found.
func Validate(pf *PipelineFile) []error {
	var errs []error

	if strings.TrimSpace(pf.Pipeline.Name) == "" {
		errs = append(errs, fmt.Errorf("pipeline.name is required"))
	}

	stageRefs := make(map[string]bool)
	errs = append(errs, validateStages(pf.Stages, stageRefs)...)
	errs = append(errs, validateTransitions(pf.Pipeline.Transitions, stageRefs)...)
	errs = append(errs, fieldschema.Check(fieldDefinitions(pf.Fields))...)
	errs = append(errs, validateOpportunities(pf, stageRefs)...)

	return errs
}

func validateStages(stages []StageSpec, stageRefs map[string]bool) []error {
	var errs []error

	if len(stages) == 0 {
		errs = append(errs, fmt.Errorf("stages: at least one stage is required"))
	}
	orders := make(map[int]string)
	for i, s := range stages {
		prefix := fmt.Sprintf("stages[%d]", i)

		if s.Ref == "" {
			errs = append(errs, fmt.Errorf("%s.ref is required", prefix))
		} else if stageRefs[s.Ref] {
			errs = append(errs, fmt.Errorf("%s.ref: duplicate ref %q", prefix, s.Ref))
		} else {
			stageRefs[s.Ref] = true
		}
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if other, ok := orders[s.Order]; ok {
			errs = append(errs, fmt.Errorf("%s.order: %d already used by %q", prefix, s.Order, other))
		} else {
			orders[s.Order] = s.Ref
		}
		if s.Probability != nil && (*s.Probability < 0 || *s.Probability > 100) {
			errs = append(errs, fmt.Errorf("%s.probability: %d out of range 0-100", prefix, *s.Probability))
		}
		if s.StagnationAlertDays != nil && *s.StagnationAlertDays <= 0 {
			errs = append(errs, fmt.Errorf("%s.stagnation_alert_days must be positive", prefix))
		}
	}
	return errs
}

func validateTransitions(t *TransitionsSpec, stageRefs map[string]bool) []error {
	if t == nil {
		return nil
	}
	var errs []error
	switch domain.TransitionMode(t.Mode) {
	case domain.TransitionsAny, "":
		if len(t.Allowed) > 0 {
			errs = append(errs, fmt.Errorf("pipeline.transitions.allowed requires mode %q", domain.TransitionsExplicit))
		}
	case domain.TransitionsExplicit:
	default:
		errs = append(errs, fmt.Errorf("pipeline.transitions.mode: invalid value %q", t.Mode))
	}
	for i, p := range t.Allowed {
		prefix := fmt.Sprintf("pipeline.transitions.allowed[%d]", i)
		if !stageRefs[p.From] {
			errs = append(errs, fmt.Errorf("%s.from: stage %q not found", prefix, p.From))
		}
		if !stageRefs[p.To] {
			errs = append(errs, fmt.Errorf("%s.to: stage %q not found", prefix, p.To))
		}
	}
	return errs
}

func validateOpportunities(pf *PipelineFile, stageRefs map[string]bool) []error {
	var errs []error
	defs := fieldDefinitions(pf.Fields)

	for i, o := range pf.Opportunities {
		prefix := fmt.Sprintf("opportunities[%d]", i)

		if strings.TrimSpace(o.Name) == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if o.Stage == "" {
			errs = append(errs, fmt.Errorf("%s.stage is required", prefix))
		} else if !stageRefs[o.Stage] {
			errs = append(errs, fmt.Errorf("%s.stage: stage %q not found", prefix, o.Stage))
		}
		if o.Value != nil {
			if d, err := decimal.NewFromString(*o.Value); err != nil {
				errs = append(errs, fmt.Errorf("%s.value: invalid amount %q", prefix, *o.Value))
			} else if d.IsNegative() {
				errs = append(errs, fmt.Errorf("%s.value must not be negative", prefix))
			}
		}
		if o.ExpectedClose != nil {
			if _, err := time.Parse(domain.DateLayout, *o.ExpectedClose); err != nil {
				errs = append(errs, fmt.Errorf("%s.expected_close: invalid date format %q (expected YYYY-MM-DD)", prefix, *o.ExpectedClose))
			}
		}

		values, decodeErrs := fieldschema.Decode(defs, o.Custom)
		res := fieldschema.ValidateAllFields(defs, values)
		decodeErrs.Merge(res.Errors)
		for _, name := range decodeErrs.Keys() {
			errs = append(errs, fmt.Errorf("%s.custom.%s: %s", prefix, name, decodeErrs[name].Message))
		}
		for _, name := range fieldschema.Orphans(defs, rawKeys(o.Custom)) {
			errs = append(errs, fmt.Errorf("%s.custom.%s: no such field", prefix, name))
		}
	}
	return errs
}

func rawKeys(m map[string]any) domain.CustomFields {
	out := make(domain.CustomFields, len(m))
	for k := range m {
		out[k] = domain.FieldValue{}
	}
	return out
}
