package service

import (
	"context"
	"testing"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/repository"
	"github.com/alexanderramin/pipedeck/internal/seed"
	"github.com/alexanderramin/pipedeck/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = "../seed/testdata/vendas.yaml"

func TestImportService_SampleFile(t *testing.T) {
	database := testutil.NewTestDB(t)
	observed := &recordingObserver{}
	svc := NewImportService(testutil.NewTestUoW(database), observed)
	ctx := context.Background()

	res, err := svc.ImportPipeline(ctx, sampleFile)
	require.NoError(t, err)
	assert.Equal(t, "Vendas", res.Pipeline.Name)
	assert.Equal(t, 4, res.StageCount)
	assert.Equal(t, 4, res.FieldCount)
	assert.Equal(t, 2, res.OpportunityCount)

	ev := observed.last()
	assert.Equal(t, "import-pipeline", ev.Name)
	assert.True(t, ev.Success)
	assert.Equal(t, res.Pipeline.ID, ev.Fields["pipeline_id"])

	stored, err := repository.NewSQLitePipelineRepo(database).GetByID(ctx, res.Pipeline.ID)
	require.NoError(t, err)
	require.Len(t, stored.Stages, 4)
	assert.Equal(t, "Lead", stored.InitialStage().Name)

	defs, err := repository.NewSQLiteFieldRepo(database).ListByPipeline(ctx, res.Pipeline.ID)
	require.NoError(t, err)
	assert.Len(t, defs, 4)

	opps, err := repository.NewSQLiteOpportunityRepo(database).ListByPipeline(ctx, res.Pipeline.ID)
	require.NoError(t, err)
	require.Len(t, opps, 2)
	transitions := repository.NewSQLiteTransitionRepo(database)
	for _, o := range opps {
		history, err := transitions.ListByOpportunity(ctx, o.ID)
		require.NoError(t, err)
		require.Len(t, history, 1, o.Name)
		assert.Equal(t, o.StageID, history[0].ToStageID)
	}
}

func TestImportService_ExplicitTransitions(t *testing.T) {
	database := testutil.NewTestDB(t)
	svc := NewImportService(testutil.NewTestUoW(database))
	pf := &seed.PipelineFile{
		Pipeline: seed.PipelineSpec{
			Name: "Suporte",
			Transitions: &seed.TransitionsSpec{
				Mode:    "explicit",
				Allowed: []seed.TransitionPair{{From: "novo", To: "resolvido"}},
			},
		},
		Stages: []seed.StageSpec{
			{Ref: "novo", Name: "Novo", Order: 0},
			{Ref: "resolvido", Name: "Resolvido", Order: 1, Won: true},
		},
	}

	res, err := svc.ImportPipelineFromFile(context.Background(), pf)
	require.NoError(t, err)

	stored, err := repository.NewSQLitePipelineRepo(database).GetByID(context.Background(), res.Pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransitionsExplicit, stored.Transitions.Mode)
	first, last := stored.SortedStages()[0], stored.SortedStages()[1]
	assert.True(t, stored.Transitions.Permits(first.ID, last.ID))
	assert.False(t, stored.Transitions.Permits(last.ID, first.ID))
}

func TestImportService_ValidationErrors(t *testing.T) {
	database := testutil.NewTestDB(t)
	observed := &recordingObserver{}
	svc := NewImportService(testutil.NewTestUoW(database), observed)

	_, err := svc.ImportPipelineFromFile(context.Background(), &seed.PipelineFile{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline validation failed")
	assert.False(t, observed.last().Success)

	list, err := repository.NewSQLitePipelineRepo(database).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestImportService_MissingFile(t *testing.T) {
	svc := NewImportService(testutil.NewTestUoW(testutil.NewTestDB(t)))
	_, err := svc.ImportPipeline(context.Background(), "testdata/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading pipeline file")
}

func TestImportService_RollsBackOnFailure(t *testing.T) {
	database := testutil.NewTestDB(t)
	// Exec #1 creates the pipeline, #2 the first stage, #3 the second.
	uow := &testutil.FailOnNthExecUoW{DB: database, FailOn: 3, Err: assert.AnError}
	svc := NewImportService(uow)

	_, err := svc.ImportPipeline(context.Background(), sampleFile)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, int32(3), uow.Execs.Load())

	list, err := repository.NewSQLitePipelineRepo(database).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, testutil.CountRows(t, database, "stages"))
}

func TestImportService_ImportedPipelineServesTheEngine(t *testing.T) {
	env := setupEngine(t, nil)
	ctx := context.Background()
	res, err := NewImportService(testutil.NewTestUoW(env.database)).ImportPipeline(ctx, sampleFile)
	require.NoError(t, err)

	sums, err := env.engine.StageSummaries(ctx, res.Pipeline.ID)
	require.NoError(t, err)
	require.Len(t, sums, 4)
	assert.Equal(t, "100", sums[0].WeightedTotal.String())
	assert.Equal(t, "125", sums[1].WeightedTotal.String())
	assert.True(t, sums[2].IsWon)
	assert.True(t, sums[3].IsLost)

	page, err := env.engine.ListOpportunitiesPage(ctx, sums[0].StageID, app.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Contains(t, page.Items[0].CustomFields, "produtos")
}

func TestImportService_HistoryFailureRollsBackEverything(t *testing.T) {
	database := testutil.NewTestDB(t)
	uow := &testutil.FailOnNthExecUoW{DB: database, FailOn: 2, Match: "stage_transitions", Err: assert.AnError}

	_, err := NewImportService(uow).ImportPipeline(context.Background(), sampleFile)
	require.ErrorIs(t, err, assert.AnError)
	for _, table := range []string{"pipelines", "stages", "field_definitions", "opportunities", "stage_transitions"} {
		assert.Zero(t, testutil.CountRows(t, database, table), table)
	}
}
