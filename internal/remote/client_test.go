package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/board"
	"github.com/alexanderramin/pipedeck/internal/contract"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/httpapi"
	"github.com/alexanderramin/pipedeck/internal/repository"
	"github.com/alexanderramin/pipedeck/internal/service"
	"github.com/alexanderramin/pipedeck/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []CallEvent
}

func (r *recordingObserver) OnCallComplete(e CallEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) last() CallEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type backend struct {
	client   *Client
	engine   service.Engine
	sales    testutil.SalesFixture
	observed *recordingObserver
}

// newBackend serves a real engine over httpapi and points a Client at it.
func newBackend(t *testing.T) *backend {
	t.Helper()
	database := testutil.NewTestDB(t)
	engine := service.NewEngine(
		repository.NewSQLitePipelineRepo(database),
		repository.NewSQLiteFieldRepo(database),
		repository.NewSQLiteOpportunityRepo(database),
		repository.NewSQLiteTransitionRepo(database),
		testutil.NewTestUoW(database),
	)
	srv := httptest.NewServer(httpapi.New(engine).Routes())
	t.Cleanup(srv.Close)
	observed := &recordingObserver{}
	return &backend{
		client:   New(Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second}, observed),
		engine:   engine,
		sales:    testutil.SeedSales(t, database),
		observed: observed,
	}
}

func (b *backend) create(t *testing.T, name string, value int64) *domain.Opportunity {
	t.Helper()
	v := decimal.NewFromInt(value)
	o, err := b.client.CreateOpportunity(context.Background(), app.OpportunityPayload{
		PipelineID: b.sales.Pipeline.ID,
		Name:       &name,
		Value:      &v,
	})
	require.NoError(t, err)
	return o
}

func TestClient_RoundTrip(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	o := b.create(t, "ACME", 1000)
	assert.Equal(t, b.sales.Lead.ID, o.StageID)
	assert.Equal(t, "100", o.WeightedValue.String())

	p, err := b.client.GetPipelineWithStages(ctx, b.sales.Pipeline.ID)
	require.NoError(t, err)
	assert.Len(t, p.Stages, 3)

	moved, err := b.client.MoveOpportunity(ctx, o.ID, b.sales.Won.ID)
	require.NoError(t, err)
	assert.Equal(t, b.sales.Won.ID, moved.StageID)
	assert.Equal(t, int64(2), moved.Version)

	stored, err := b.engine.GetOpportunity(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, b.sales.Won.ID, stored.StageID)

	history, err := b.client.StageHistory(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	sums, err := b.client.StageSummaries(ctx, b.sales.Pipeline.ID)
	require.NoError(t, err)
	require.Len(t, sums, 3)
	assert.Equal(t, "1000", sums[2].WeightedTotal.String())

	ev := b.observed.last()
	assert.True(t, ev.Success)
	assert.Equal(t, http.MethodGet, ev.Method)
	assert.Equal(t, http.StatusOK, ev.Status)
}

func TestClient_DrivesTheBoard(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		b.create(t, name, 100)
	}

	bd := board.New(b.client, board.WithPageSize(2))
	require.NoError(t, bd.Load(ctx, b.sales.Pipeline.ID))
	lead, ok := bd.Column(b.sales.Lead.ID)
	require.True(t, ok)
	assert.Len(t, lead.Items, 2)
	assert.Equal(t, 3, lead.TotalCount)

	require.NoError(t, bd.LoadMore(ctx, b.sales.Lead.ID))
	lead, _ = bd.Column(b.sales.Lead.ID)
	require.Len(t, lead.Items, 3)

	id := lead.Items[0].ID
	out, err := bd.OnReorder(ctx, board.Drop{OpportunityID: id, SourceStageID: b.sales.Lead.ID, DestStageID: b.sales.Proposal.ID})
	require.NoError(t, err)
	assert.Equal(t, board.OutcomeMoved, out)

	stored, err := b.engine.GetOpportunity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, b.sales.Proposal.ID, stored.StageID)
}

func TestClient_MapsDomainErrors(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	o := b.create(t, "ACME", 1000)

	_, err := b.client.GetOpportunity(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	ev := b.observed.last()
	assert.Equal(t, contract.CodeNotFound, ev.ErrorCode)
	assert.Equal(t, http.StatusNotFound, ev.Status)
	assert.Equal(t, 1, ev.Attempts)

	neg := decimal.NewFromInt(-5)
	_, err = b.client.CreateOpportunity(ctx, app.OpportunityPayload{PipelineID: b.sales.Pipeline.ID, Value: &neg})
	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{domain.KeyName, domain.KeyValue}, verrs.Keys())

	name := "ACME 2"
	_, err = b.client.UpdateOpportunity(ctx, o.ID, app.OpportunityPayload{Name: &name, ExpectedVersion: 9})
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = b.client.MoveOpportunity(ctx, o.ID, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_RetriesReads(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("internal error"))
			return
		}
		json.NewEncoder(w).Encode([]contract.Pipeline{{ID: "p1", Name: "Vendas"}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 1}, nil)
	got, err := c.ListPipelines(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Vendas", got[0].Name)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_RetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 2}, nil)
	_, err := c.ListPipelines(context.Background())
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_DoesNotRetryWrites(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 3}, nil)
	_, err := c.MoveOpportunity(context.Background(), "o1", "s2")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := c.GetOpportunity(context.Background(), "o1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Unavailable(t *testing.T) {
	observed := &recordingObserver{}
	c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, observed)
	_, err := c.ListPipelines(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "UNAVAILABLE", observed.last().ErrorCode)
	assert.False(t, c.Available(context.Background()))
}

func TestClient_InvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxRetries: 2}, nil)
	_, err := c.GetPipelineWithStages(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestStatusError_Unwrap(t *testing.T) {
	cases := []struct {
		err  *StatusError
		want error
	}{
		{&StatusError{Status: 409, Code: contract.CodeTransitionNotAllowed}, domain.ErrTransitionNotAllowed},
		{&StatusError{Status: 422, Code: contract.CodeStageNotInPipeline}, domain.ErrStageNotInPipeline},
		{&StatusError{Status: 404}, domain.ErrNotFound},
		{&StatusError{Status: 409}, domain.ErrVersionConflict},
	}
	for _, tc := range cases {
		assert.True(t, errors.Is(tc.err, tc.want), tc.err.Error())
	}
	assert.Nil(t, (&StatusError{Status: 500}).Unwrap())
}
