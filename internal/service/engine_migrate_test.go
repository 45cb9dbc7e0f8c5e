package service

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/alexanderramin/pipedeck/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_MigrateFieldValues(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	pid := env.sales.Pipeline.ID
	require.NoError(t, env.fields.Create(ctx, testutil.NewTestField(pid, "prazo", domain.FieldText)))
	require.NoError(t, env.fields.Create(ctx, testutil.NewTestField(pid, "quantidade", domain.FieldText)))
	require.NoError(t, env.fields.Create(ctx, testutil.NewTestField(pid, "obs", domain.FieldText)))

	ok := testutil.NewTestOpportunity(env.sales.Lead, "convertible",
		testutil.WithCustom("prazo", domain.TextValue("2025-05-01")),
		testutil.WithCustom("quantidade", domain.TextValue("12")))
	bad := testutil.NewTestOpportunity(env.sales.Lead, "lossy",
		testutil.WithCustom("quantidade", domain.TextValue("doze")))
	untouched := testutil.NewTestOpportunity(env.sales.Lead, "untouched",
		testutil.WithCustom("obs", domain.TextValue("nada")))
	for _, o := range []*domain.Opportunity{ok, bad, untouched} {
		require.NoError(t, env.opps.Create(ctx, o))
	}

	res, err := env.engine.MigrateFieldValues(ctx, pid, fieldschema.Migration{
		Renames: map[string]string{"prazo": "prazo_entrega"},
		Retypes: map[string]domain.FieldType{"prazo_entrega": domain.FieldDate, "quantidade": domain.FieldNumber},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	require.Len(t, res.Dropped[bad.ID], 1)
	assert.Equal(t, "quantidade", res.Dropped[bad.ID][0].Field)
	assert.NotContains(t, res.Dropped, ok.ID)

	got, err := env.engine.GetOpportunity(ctx, ok.ID)
	require.NoError(t, err)
	assert.NotContains(t, got.CustomFields, "prazo")
	prazo := got.CustomFields["prazo_entrega"]
	assert.Equal(t, domain.KindDate, prazo.Kind)
	assert.True(t, prazo.Time.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, domain.KindNumber, got.CustomFields["quantidade"].Kind)
	assert.Equal(t, 12.0, got.CustomFields["quantidade"].Number)
	assert.Equal(t, ok.Version+1, got.Version)

	got, err = env.engine.GetOpportunity(ctx, bad.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CustomFields)

	got, err = env.engine.GetOpportunity(ctx, untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, untouched.Version, got.Version, "unchanged maps are not rewritten")

	renamed, err := env.fields.GetByName(ctx, pid, "prazo_entrega")
	require.NoError(t, err)
	assert.Equal(t, domain.FieldDate, renamed.Type)
	_, err = env.fields.GetByName(ctx, pid, "prazo")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_MigrateSwapsNames(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	pid := env.sales.Pipeline.ID
	require.NoError(t, env.fields.Create(ctx, testutil.NewTestField(pid, "a", domain.FieldText)))
	require.NoError(t, env.fields.Create(ctx, testutil.NewTestField(pid, "b", domain.FieldText)))
	o := testutil.NewTestOpportunity(env.sales.Lead, "x",
		testutil.WithCustom("a", domain.TextValue("first")),
		testutil.WithCustom("b", domain.TextValue("second")))
	require.NoError(t, env.opps.Create(ctx, o))

	_, err := env.engine.MigrateFieldValues(ctx, pid, fieldschema.Migration{
		Renames: map[string]string{"a": "b", "b": "a"},
	})
	require.NoError(t, err)

	got, err := env.engine.GetOpportunity(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.CustomFields["a"].Text)
	assert.Equal(t, "first", got.CustomFields["b"].Text)
}

func TestEngine_MigrateRejectsCollisions(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	pid := env.sales.Pipeline.ID
	require.NoError(t, env.fields.Create(ctx, testutil.NewTestField(pid, "a", domain.FieldText)))
	require.NoError(t, env.fields.Create(ctx, testutil.NewTestField(pid, "b", domain.FieldText)))

	_, err := env.engine.MigrateFieldValues(ctx, pid, fieldschema.Migration{Renames: map[string]string{"a": "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration")

	_, err = env.fields.GetByName(ctx, pid, "a")
	assert.NoError(t, err, "nothing was renamed")

	res, err := env.engine.MigrateFieldValues(ctx, pid, fieldschema.Migration{})
	require.NoError(t, err)
	assert.Zero(t, res.Updated)
}
