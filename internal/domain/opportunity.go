package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Opportunity is a deal owned by exactly one stage of one pipeline.
type Opportunity struct {
	ID                string
	PipelineID        string
	StageID           string
	Name              string
	Value             *decimal.Decimal
	WeightedValue     *decimal.Decimal
	ExpectedCloseDate *time.Time
	Notes             string
	CustomFields      CustomFields
	LineItems         []LineItem

	EnteredStageAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Version increases by one on every persisted write.
	Version int64
}

// WeightedValue scales value by probability/100. Either side being nil yields nil.
func WeightedValue(value *decimal.Decimal, probability *int) *decimal.Decimal {
	if value == nil || probability == nil {
		return nil
	}
	w := value.Mul(decimal.NewFromInt(int64(*probability))).Div(hundred)
	return &w
}

// RecomputeWeighted refreshes WeightedValue from Value and the stage's probability.
func (o *Opportunity) RecomputeWeighted(stage *Stage) {
	if stage == nil {
		o.WeightedValue = nil
		return
	}
	o.WeightedValue = WeightedValue(o.Value, stage.ProbabilityPercent)
}

// DaysInStage returns the whole days elapsed since the opportunity entered its stage.
func (o *Opportunity) DaysInStage(now time.Time) int {
	if o.EnteredStageAt.IsZero() || now.Before(o.EnteredStageAt) {
		return 0
	}
	return int(now.Sub(o.EnteredStageAt) / (24 * time.Hour))
}

// IsStagnant reports whether the opportunity exceeded the stage's alert threshold.
func (o *Opportunity) IsStagnant(stage *Stage, now time.Time) bool {
	if stage == nil || stage.StagnationAlertDays == nil {
		return false
	}
	return o.DaysInStage(now) > *stage.StagnationAlertDays
}

// MoveTo places the opportunity in stage, resetting EnteredStageAt and the weighted value.
// Moving to the current stage changes nothing.
func (o *Opportunity) MoveTo(stage *Stage, now time.Time) error {
	if stage == nil {
		return ErrNotFound
	}
	if stage.PipelineID != o.PipelineID {
		return ErrStageNotInPipeline
	}
	if stage.ID == o.StageID {
		return nil
	}
	o.StageID = stage.ID
	o.EnteredStageAt = now.UTC()
	o.RecomputeWeighted(stage)
	return nil
}

// Clone returns a deep copy safe to mutate.
func (o *Opportunity) Clone() *Opportunity {
	if o == nil {
		return nil
	}
	c := *o
	if o.Value != nil {
		v := *o.Value
		c.Value = &v
	}
	if o.WeightedValue != nil {
		w := *o.WeightedValue
		c.WeightedValue = &w
	}
	if o.ExpectedCloseDate != nil {
		d := *o.ExpectedCloseDate
		c.ExpectedCloseDate = &d
	}
	c.CustomFields = o.CustomFields.Clone()
	if o.LineItems != nil {
		c.LineItems = make([]LineItem, len(o.LineItems))
		copy(c.LineItems, o.LineItems)
	}
	return &c
}

// ValueOrZero returns Value, or zero when unset.
func (o *Opportunity) ValueOrZero() decimal.Decimal {
	if o.Value == nil {
		return decimal.Zero
	}
	return *o.Value
}

// Keys of the fixed opportunity fields in ValidationErrors.
const (
	KeyName          = "name"
	KeyValue         = "value"
	KeyStage         = "stage_id"
	KeyExpectedClose = "expected_close_date"
)

// ValidateBasics checks the fixed fields: a non-blank name, a non-negative
// value and a stage of the opportunity's pipeline. stage is the resolved
// target; nil means none was chosen.
func (o *Opportunity) ValidateBasics(stage *Stage) ValidationErrors {
	errs := ValidationErrors{}
	if strings.TrimSpace(o.Name) == "" {
		errs.Add(KeyName, MissingRequiredField, RequiredMessage("Nome"))
	}
	if o.Value != nil && o.Value.IsNegative() {
		errs.Add(KeyValue, InvalidValue, "Valor não pode ser negativo")
	}
	switch {
	case stage == nil:
		errs.Add(KeyStage, MissingRequiredField, RequiredMessage("Etapa"))
	case stage.PipelineID != o.PipelineID:
		errs.Add(KeyStage, InvalidValue, "Etapa não pertence ao funil")
	}
	return errs
}
