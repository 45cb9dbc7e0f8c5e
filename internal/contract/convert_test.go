package contract

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpportunity_SurvivesTheWire(t *testing.T) {
	value := decimal.RequireFromString("1234.50")
	closeAt := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	o := &domain.Opportunity{
		ID:                "o1",
		PipelineID:        "p1",
		StageID:           "s1",
		Name:              "ACME",
		Value:             &value,
		ExpectedCloseDate: &closeAt,
		CustomFields: domain.CustomFields{
			"canal":    domain.SelectValue("whatsapp"),
			"tags":     domain.MultiSelectValue("b2b", "sul"),
			"entrega":  domain.DateValue(closeAt),
			"desconto": domain.NumberValue(12.5),
			"urgente":  domain.BoolValue(true),
		},
		EnteredStageAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Version:        3,
	}

	data, err := json.Marshal(FromOpportunity(o))
	require.NoError(t, err)
	var back Opportunity
	require.NoError(t, json.Unmarshal(data, &back))
	got := back.ToDomain()

	assert.True(t, o.CustomFields.Equal(got.CustomFields))
	assert.True(t, value.Equal(*got.Value))
	assert.True(t, closeAt.Equal(*got.ExpectedCloseDate))
	assert.True(t, o.EnteredStageAt.Equal(got.EnteredStageAt))
	assert.Equal(t, int64(3), got.Version)
	assert.Nil(t, got.WeightedValue)
}

func TestOpportunity_NilCustomFieldsBecomeEmptyMap(t *testing.T) {
	got := Opportunity{ID: "o1"}.ToDomain()
	assert.NotNil(t, got.CustomFields)
}

func TestPipeline_RoundTripKeepsPolicyAndStages(t *testing.T) {
	p := &domain.Pipeline{
		ID:   "p1",
		Name: "Vendas",
		Transitions: domain.TransitionPolicy{
			Mode:    domain.TransitionsExplicit,
			Allowed: []domain.StagePair{{From: "a", To: "b"}},
		},
		Stages: []domain.Stage{{ID: "a", PipelineID: "p1", Name: "Lead", ProbabilityPercent: domain.Ptr(10)}},
	}
	got := FromPipeline(p).ToDomain()
	assert.Equal(t, p.Transitions, got.Transitions)
	require.Len(t, got.Stages, 1)
	assert.Equal(t, 10, *got.Stages[0].ProbabilityPercent)
}

func TestValidation_RoundTrip(t *testing.T) {
	v := domain.ValidationErrors{}
	v.Add("name", domain.MissingRequiredField, "Nome é obrigatório")
	v.Add("canal", domain.InvalidOptionMembership, "opção inválida")

	got := ToValidation(FromValidation(v))
	assert.Equal(t, v.Keys(), got.Keys())
	assert.Equal(t, domain.InvalidOptionMembership, got["canal"].Kind)
	assert.Equal(t, "name", got["name"].Field)
}
