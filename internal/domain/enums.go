package domain

type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldURL         FieldType = "url"
	FieldEmail       FieldType = "email"
	FieldPhone       FieldType = "phone"
	FieldNumber      FieldType = "number"
	FieldCurrency    FieldType = "currency"
	FieldPercentage  FieldType = "percentage"
	FieldDate        FieldType = "date"
	FieldDateTime    FieldType = "datetime"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldBoolean     FieldType = "boolean"
)

// ValidFieldTypes is the canonical set of accepted field type strings.
var ValidFieldTypes = map[FieldType]bool{
	FieldText: true, FieldTextarea: true, FieldURL: true, FieldEmail: true, FieldPhone: true,
	FieldNumber: true, FieldCurrency: true, FieldPercentage: true,
	FieldDate: true, FieldDateTime: true,
	FieldSelect: true, FieldMultiSelect: true, FieldBoolean: true,
}

// ValueKind is the tag of a FieldValue.
type ValueKind string

const (
	KindText        ValueKind = "text"
	KindNumber      ValueKind = "number"
	KindDate        ValueKind = "date"
	KindDateTime    ValueKind = "datetime"
	KindSelect      ValueKind = "select"
	KindMultiSelect ValueKind = "multiselect"
	KindBool        ValueKind = "bool"
)

// ValueKind returns the union variant a value of this field type must hold.
func (t FieldType) ValueKind() ValueKind {
	switch t {
	case FieldNumber, FieldCurrency, FieldPercentage:
		return KindNumber
	case FieldDate:
		return KindDate
	case FieldDateTime:
		return KindDateTime
	case FieldSelect:
		return KindSelect
	case FieldMultiSelect:
		return KindMultiSelect
	case FieldBoolean:
		return KindBool
	default:
		return KindText
	}
}

type FieldWidth string

const (
	WidthFull FieldWidth = "full"
	WidthHalf FieldWidth = "half"
)

type TransitionMode string

const (
	TransitionsAny      TransitionMode = "any"
	TransitionsExplicit TransitionMode = "explicit"
)

type ErrorKind string

const (
	MissingRequiredField    ErrorKind = "MissingRequiredField"
	InvalidType             ErrorKind = "InvalidType"
	InvalidOptionMembership ErrorKind = "InvalidOptionMembership"
	InvalidValue            ErrorKind = "InvalidValue"
)
