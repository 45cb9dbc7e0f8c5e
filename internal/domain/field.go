package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

type FieldOption struct {
	Value string
	Label string
}

// FieldDefinition is one tenant-configured custom attribute of a pipeline.
// Name is the stable key into every opportunity's CustomFields map.
type FieldDefinition struct {
	ID              string
	PipelineID      string
	Name            string
	Label           string
	Type            FieldType
	Required        bool
	Options         []FieldOption
	Group           string
	Width           FieldWidth
	Order           int
	VisibleInKanban bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasOption reports whether v is one of the definition's option values.
func (d *FieldDefinition) HasOption(v string) bool {
	for _, o := range d.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// DisplayLabel returns Label, falling back to Name.
func (d *FieldDefinition) DisplayLabel() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Name
}

// FieldValue is a tagged union holding one typed custom-field value.
// Only the payload matching Kind is meaningful.
type FieldValue struct {
	Kind    ValueKind
	Text    string
	Number  float64
	Time    time.Time
	Options []string
	Bool    bool
}

func TextValue(s string) FieldValue { return FieldValue{Kind: KindText, Text: s} }
func NumberValue(f float64) FieldValue { return FieldValue{Kind: KindNumber, Number: f} }
func SelectValue(s string) FieldValue { return FieldValue{Kind: KindSelect, Text: s} }
func BoolValue(b bool) FieldValue { return FieldValue{Kind: KindBool, Bool: b} }
func DateTimeValue(t time.Time) FieldValue {
	return FieldValue{Kind: KindDateTime, Time: t.UTC()}
}

// DateValue truncates t to its calendar date.
func DateValue(t time.Time) FieldValue {
	y, m, d := t.Date()
	return FieldValue{Kind: KindDate, Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func MultiSelectValue(values ...string) FieldValue {
	return FieldValue{Kind: KindMultiSelect, Options: slices.Clone(values)}
}

// IsEmpty reports whether the value carries no usable content for required-ness.
// Booleans are never empty.
func (v FieldValue) IsEmpty() bool {
	switch v.Kind {
	case KindText, KindSelect:
		return strings.TrimSpace(v.Text) == ""
	case KindNumber:
		return math.IsNaN(v.Number) || math.IsInf(v.Number, 0)
	case KindDate, KindDateTime:
		return v.Time.IsZero()
	case KindMultiSelect:
		return len(v.Options) == 0
	case KindBool:
		return false
	default:
		return true
	}
}

// String renders the value the way it is exchanged in text form.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindText, KindSelect:
		return v.Text
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindDate:
		return v.Time.Format(DateLayout)
	case KindDateTime:
		return v.Time.Format(DateTimeLayout)
	case KindMultiSelect:
		return strings.Join(v.Options, ", ")
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return ""
}

// Equal compares kind and payload.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindText, KindSelect:
		return v.Text == o.Text
	case KindNumber:
		return v.Number == o.Number
	case KindDate, KindDateTime:
		return v.Time.Equal(o.Time)
	case KindMultiSelect:
		return slices.Equal(v.Options, o.Options)
	case KindBool:
		return v.Bool == o.Bool
	}
	return true
}

type fieldValueJSON struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case KindText, KindSelect:
		payload = v.Text
	case KindNumber:
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return nil, fmt.Errorf("field value: non-finite number")
		}
		payload = v.Number
	case KindDate:
		payload = v.Time.Format(DateLayout)
	case KindDateTime:
		payload = v.Time.Format(DateTimeLayout)
	case KindMultiSelect:
		opts := v.Options
		if opts == nil {
			opts = []string{}
		}
		payload = opts
	case KindBool:
		payload = v.Bool
	default:
		return nil, fmt.Errorf("field value: unknown kind %q", v.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fieldValueJSON{Kind: v.Kind, Value: raw})
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var env fieldValueJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("field value: %w", err)
	}
	out := FieldValue{Kind: env.Kind}
	var err error
	switch env.Kind {
	case KindText, KindSelect:
		err = json.Unmarshal(env.Value, &out.Text)
	case KindNumber:
		err = json.Unmarshal(env.Value, &out.Number)
	case KindDate, KindDateTime:
		var s string
		if err = json.Unmarshal(env.Value, &s); err == nil {
			layout := DateTimeLayout
			if env.Kind == KindDate {
				layout = DateLayout
			}
			out.Time, err = time.Parse(layout, s)
		}
	case KindMultiSelect:
		err = json.Unmarshal(env.Value, &out.Options)
	case KindBool:
		err = json.Unmarshal(env.Value, &out.Bool)
	default:
		return fmt.Errorf("field value: unknown kind %q", env.Kind)
	}
	if err != nil {
		return fmt.Errorf("field value %s: %w", env.Kind, err)
	}
	*v = out
	return nil
}

// CustomFields is an opportunity's value map keyed by FieldDefinition.Name.
type CustomFields map[string]FieldValue

// Clone returns a deep copy.
func (c CustomFields) Clone() CustomFields {
	if c == nil {
		return CustomFields{}
	}
	out := make(CustomFields, len(c))
	for k, v := range c {
		if v.Options != nil {
			v.Options = slices.Clone(v.Options)
		}
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same keys and values.
func (c CustomFields) Equal(o CustomFields) bool {
	if len(c) != len(o) {
		return false
	}
	for k, v := range c {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
