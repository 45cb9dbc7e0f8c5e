package fieldschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/pipedeck/internal/domain"
)

// ErrUnconvertible is wrapped by Coerce when raw input cannot become the field's type.
var ErrUnconvertible = errors.New("value cannot be converted")

var dateTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04", domain.DateLayout}

// Coerce converts an untyped value (from JSON, YAML or a text input) into the
// union variant of def's type. Empty input (nil, blank string, empty list)
// yields nil, never a zero value.
func Coerce(def *domain.FieldDefinition, raw any) (*domain.FieldValue, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var v domain.FieldValue
	var err error
	switch def.Type.ValueKind() {
	case domain.KindText:
		v, err = coerceText(raw)
	case domain.KindNumber:
		v, err = coerceNumber(raw)
	case domain.KindDate:
		var t time.Time
		if t, err = coerceTime(raw); err == nil {
			v = domain.DateValue(t)
		}
	case domain.KindDateTime:
		var t time.Time
		if t, err = coerceTime(raw); err == nil {
			v = domain.DateTimeValue(t)
		}
	case domain.KindSelect:
		var s domain.FieldValue
		if s, err = coerceText(raw); err == nil {
			v = domain.SelectValue(strings.TrimSpace(s.Text))
		}
	case domain.KindMultiSelect:
		var opts []string
		if opts, err = coerceList(raw); err == nil {
			if len(opts) == 0 {
				return nil, nil
			}
			v = domain.MultiSelectValue(opts...)
		}
	case domain.KindBool:
		v, err = coerceBool(raw)
	default:
		err = fmt.Errorf("unknown field type %q", def.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s (%s): %w", def.Name, def.Type, err)
	}
	return &v, nil
}

func coerceText(raw any) (domain.FieldValue, error) {
	switch x := raw.(type) {
	case string:
		return domain.TextValue(x), nil
	case json.Number:
		return domain.TextValue(x.String()), nil
	case int, int64, float64, bool:
		return domain.TextValue(fmt.Sprint(x)), nil
	}
	return domain.FieldValue{}, fmt.Errorf("%w: %T to text", ErrUnconvertible, raw)
}

func coerceNumber(raw any) (domain.FieldValue, error) {
	var f float64
	switch x := raw.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("%w: %q is not a number", ErrUnconvertible, x)
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(x), ",", "."), 64)
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("%w: %q is not a number", ErrUnconvertible, x)
		}
		f = n
	default:
		return domain.FieldValue{}, fmt.Errorf("%w: %T to number", ErrUnconvertible, raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return domain.FieldValue{}, fmt.Errorf("%w: non-finite number", ErrUnconvertible)
	}
	return domain.NumberValue(f), nil
}

func coerceTime(raw any) (time.Time, error) {
	switch x := raw.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrUnconvertible)
		}
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrUnconvertible, x)
	}
	return time.Time{}, fmt.Errorf("%w: %T to date", ErrUnconvertible, raw)
}

// coerceList accepts a list or a comma-separated string; blanks and
// duplicates are dropped, first occurrence wins.
func coerceList(raw any) ([]string, error) {
	var items []string
	switch x := raw.(type) {
	case []string:
		items = x
	case []any:
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: list element %T", ErrUnconvertible, e)
			}
			items = append(items, s)
		}
	case string:
		items = strings.Split(x, ",")
	default:
		return nil, fmt.Errorf("%w: %T to list", ErrUnconvertible, raw)
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

func coerceBool(raw any) (domain.FieldValue, error) {
	switch x := raw.(type) {
	case bool:
		return domain.BoolValue(x), nil
	case int:
		return domain.BoolValue(x != 0), nil
	case float64:
		return domain.BoolValue(x != 0), nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "y", "sim", "s", "on":
			return domain.BoolValue(true), nil
		case "false", "0", "no", "n", "nao", "não", "off":
			return domain.BoolValue(false), nil
		}
		return domain.FieldValue{}, fmt.Errorf("%w: %q is not a boolean", ErrUnconvertible, x)
	}
	return domain.FieldValue{}, fmt.Errorf("%w: %T to boolean", ErrUnconvertible, raw)
}

// Decode coerces an untyped map into CustomFields. Keys without a definition
// are dropped; unconvertible values are reported as InvalidType and left out.
func Decode(defs []*domain.FieldDefinition, raw map[string]any) (domain.CustomFields, domain.ValidationErrors) {
	out := domain.CustomFields{}
	errs := domain.ValidationErrors{}
	for _, def := range defs {
		r, ok := raw[def.Name]
		if !ok {
			continue
		}
		v, err := Coerce(def, r)
		if err != nil {
			errs.Add(def.Name, domain.InvalidType, fmt.Sprintf("%s: %v", def.DisplayLabel(), errors.Unwrap(err)))
			continue
		}
		if v != nil {
			out[def.Name] = *v
		}
	}
	return out, errs
}

// Raw returns v in the untyped shape Coerce accepts.
func Raw(v domain.FieldValue) any {
	switch v.Kind {
	case domain.KindText, domain.KindSelect:
		return v.Text
	case domain.KindNumber:
		return v.Number
	case domain.KindDate, domain.KindDateTime:
		return v.Time
	case domain.KindMultiSelect:
		return append([]string(nil), v.Options...)
	case domain.KindBool:
		return v.Bool
	}
	return nil
}

// Orphans lists value keys that no definition claims, sorted.
func Orphans(defs []*domain.FieldDefinition, values domain.CustomFields) []string {
	known := make(map[string]bool, len(defs))
	for _, d := range defs {
		known[d.Name] = true
	}
	var out []string
	for k := range values {
		if !known[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
