package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldType_ValueKind(t *testing.T) {
	cases := map[FieldType]ValueKind{
		FieldText:        KindText,
		FieldTextarea:    KindText,
		FieldURL:         KindText,
		FieldEmail:       KindText,
		FieldPhone:       KindText,
		FieldNumber:      KindNumber,
		FieldCurrency:    KindNumber,
		FieldPercentage:  KindNumber,
		FieldDate:        KindDate,
		FieldDateTime:    KindDateTime,
		FieldSelect:      KindSelect,
		FieldMultiSelect: KindMultiSelect,
		FieldBoolean:     KindBool,
	}
	for ft, want := range cases {
		assert.Equal(t, want, ft.ValueKind(), string(ft))
		assert.True(t, ValidFieldTypes[ft], string(ft))
	}
	assert.Len(t, ValidFieldTypes, len(cases))
}

func TestFieldValue_IsEmpty(t *testing.T) {
	assert.True(t, TextValue("  ").IsEmpty())
	assert.False(t, TextValue("x").IsEmpty())
	assert.True(t, NumberValue(math.NaN()).IsEmpty())
	assert.False(t, NumberValue(0).IsEmpty())
	assert.True(t, FieldValue{Kind: KindDate}.IsEmpty())
	assert.True(t, MultiSelectValue().IsEmpty())
	assert.False(t, BoolValue(false).IsEmpty())
	assert.True(t, FieldValue{}.IsEmpty())
}

func TestFieldValue_JSONShape(t *testing.T) {
	d := DateValue(time.Date(2025, 7, 4, 15, 30, 0, 0, time.FixedZone("BRT", -3*3600)))
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"date","value":"2025-07-04"}`, string(raw))

	raw, err = json.Marshal(MultiSelectValue())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"multiselect","value":[]}`, string(raw))

	_, err = json.Marshal(NumberValue(math.Inf(1)))
	assert.Error(t, err)
}

func TestCustomFields_JSONRoundTrip(t *testing.T) {
	in := CustomFields{
		"prazo":  DateValue(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)),
		"quando": DateTimeValue(time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)),
		"valor":  NumberValue(12.5),
		"tags":   MultiSelectValue("a", "b"),
		"ok":     BoolValue(true),
		"canal":  SelectValue("email"),
		"nota":   TextValue("oi"),
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out CustomFields
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.True(t, in.Equal(out))
}

func TestFieldValue_UnmarshalRejectsUnknownKind(t *testing.T) {
	var v FieldValue
	err := json.Unmarshal([]byte(`{"kind":"color","value":"red"}`), &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{}
	errs.Add("b", InvalidType, "bad")
	errs.Add("a", MissingRequiredField, RequiredMessage("A"))
	errs.Add("a", InvalidType, "ignored")

	assert.Equal(t, []string{"a", "b"}, errs.Keys())
	assert.Equal(t, MissingRequiredField, errs["a"].Kind)
	assert.Equal(t, "A é obrigatório", errs["a"].Message)
	assert.Contains(t, errs.Error(), "2 errors")

	other := ValidationErrors{"c": {Field: "c", Kind: InvalidValue}}
	errs.Merge(other)
	assert.Len(t, errs, 3)
}
