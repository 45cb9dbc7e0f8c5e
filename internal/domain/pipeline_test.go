package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStageOrder(t *testing.T) {
	p := salesPipeline()
	assert.NoError(t, p.ValidateStageOrder())

	p.Stages[2].OrderIndex = 1
	err := p.ValidateStageOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_index 1")
}

func TestSortedStagesAndInitial(t *testing.T) {
	p := &Pipeline{Stages: []Stage{
		{ID: "c", OrderIndex: 5},
		{ID: "a", OrderIndex: 0},
		{ID: "b", OrderIndex: 2},
	}}
	sorted := p.SortedStages()
	ids := []string{sorted[0].ID, sorted[1].ID, sorted[2].ID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, "c", p.Stages[0].ID, "original slice untouched")
	assert.Equal(t, "a", p.InitialStage().ID)

	assert.Nil(t, (&Pipeline{}).InitialStage())
	assert.Nil(t, p.StageByID("missing"))
	assert.Equal(t, 2, p.StageIndex("b"))
}

func TestStage_TerminalFlags(t *testing.T) {
	won := Stage{IsWon: true}
	lost := Stage{IsLost: true}
	open := Stage{}

	assert.True(t, won.IsTerminal())
	assert.True(t, lost.IsTerminal())
	assert.False(t, open.IsTerminal())
	assert.False(t, won.AllowsQuickAdd())
	assert.True(t, open.AllowsQuickAdd())
}

func TestTransitionPolicy(t *testing.T) {
	var zero TransitionPolicy
	assert.True(t, zero.Permits("a", "z"), "zero value is any-to-any")

	explicit := TransitionPolicy{
		Mode:    TransitionsExplicit,
		Allowed: []StagePair{{From: "lead", To: "prop"}},
	}
	assert.True(t, explicit.Permits("lead", "prop"))
	assert.False(t, explicit.Permits("prop", "lead"))
	assert.True(t, explicit.Permits("prop", "prop"))
}

func TestIsVariant(t *testing.T) {
	p := &Pipeline{Name: " pedidos "}
	assert.True(t, p.IsVariant("Pedidos"))
	assert.False(t, p.IsVariant(""))
	assert.False(t, (&Pipeline{Name: "Sales"}).IsVariant("Pedidos"))
}
