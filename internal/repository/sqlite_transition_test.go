package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionRepo_AppendAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	opps := NewSQLiteOpportunityRepo(db)
	repo := NewSQLiteTransitionRepo(db)
	ctx := context.Background()
	f := testutil.SeedSales(t, db)

	t0 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	o := testutil.NewTestOpportunity(f.Lead, "Acme", testutil.EnteredAt(t0))
	require.NoError(t, opps.Create(ctx, o))

	require.NoError(t, repo.Append(ctx, &domain.StageTransition{
		ID: "t1", OpportunityID: o.ID, ToStageID: f.Lead.ID, TransitionedAt: t0,
	}))
	require.NoError(t, repo.Append(ctx, &domain.StageTransition{
		ID: "t2", OpportunityID: o.ID, FromStageID: f.Lead.ID, ToStageID: f.Proposal.ID,
		EnteredFromAt: t0, TransitionedAt: t0.Add(24 * time.Hour),
	}))

	history, err := repo.ListByOpportunity(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Empty(t, history[0].FromStageID)
	assert.True(t, history[0].EnteredFromAt.IsZero())
	assert.Equal(t, f.Lead.ID, history[1].FromStageID)
	assert.Equal(t, t0, history[1].EnteredFromAt)

	require.NoError(t, opps.Delete(ctx, o.ID))
	history, err = repo.ListByOpportunity(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "history cascades with the opportunity")
}
