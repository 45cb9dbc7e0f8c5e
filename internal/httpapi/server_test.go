package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/contract"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/repository"
	"github.com/alexanderramin/pipedeck/internal/service"
	"github.com/alexanderramin/pipedeck/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	url   string
	sales testutil.SalesFixture
	logs  *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database := testutil.NewTestDB(t)
	engine := service.NewEngine(
		repository.NewSQLitePipelineRepo(database),
		repository.NewSQLiteFieldRepo(database),
		repository.NewSQLiteOpportunityRepo(database),
		repository.NewSQLiteTransitionRepo(database),
		testutil.NewTestUoW(database),
	)
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	srv := httptest.NewServer(New(engine, WithLogger(logger)).Routes())
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, sales: testutil.SeedSales(t, database), logs: logs}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			r = strings.NewReader(raw)
		} else {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			r = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.url+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func (s *testServer) create(t *testing.T, name, value string) contract.Opportunity {
	t.Helper()
	status, data := s.do(t, http.MethodPost, "/v1/opportunities",
		map[string]any{"pipeline_id": s.sales.Pipeline.ID, "name": name, "value": value})
	require.Equal(t, http.StatusCreated, status, string(data))
	return decode[contract.Opportunity](t, data)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	status, data := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}

func TestPipelines(t *testing.T) {
	s := newTestServer(t)

	status, data := s.do(t, http.MethodGet, "/v1/pipelines", nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]contract.Pipeline](t, data)
	require.Len(t, list, 1)
	assert.Equal(t, "Sales", list[0].Name)

	status, data = s.do(t, http.MethodGet, "/v1/pipelines/"+s.sales.Pipeline.ID, nil)
	require.Equal(t, http.StatusOK, status)
	p := decode[contract.Pipeline](t, data).ToDomain()
	require.Len(t, p.Stages, 3)
	assert.Equal(t, "Lead", p.InitialStage().Name)

	status, data = s.do(t, http.MethodGet, "/v1/pipelines/"+s.sales.Pipeline.ID+"/fields", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(data))

	status, data = s.do(t, http.MethodGet, "/v1/pipelines/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, contract.CodeNotFound, decode[contract.Error](t, data).Code)
}

func TestOpportunityLifecycle(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "ACME", "1000")
	assert.Equal(t, s.sales.Lead.ID, created.StageID)
	assert.Equal(t, "100", created.WeightedValue.String())
	assert.Equal(t, int64(1), created.Version)
	s.create(t, "Padaria", "500")

	status, data := s.do(t, http.MethodGet, "/v1/stages/"+s.sales.Lead.ID+"/opportunities?limit=1", nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[contract.OpportunityPage](t, data)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, "1500", page.TotalValue.String())
	assert.Equal(t, 1, page.NextOffset)

	status, data = s.do(t, http.MethodPost, "/v1/opportunities/"+created.ID+"/move",
		contract.MoveRequest{StageID: s.sales.Proposal.ID})
	require.Equal(t, http.StatusOK, status, string(data))
	moved := decode[contract.Opportunity](t, data)
	assert.Equal(t, s.sales.Proposal.ID, moved.StageID)
	assert.Equal(t, "500", moved.WeightedValue.String())
	assert.Equal(t, int64(2), moved.Version)

	status, data = s.do(t, http.MethodPatch, "/v1/opportunities/"+created.ID,
		map[string]any{"notes": "ligar segunda", "expected_version": 2})
	require.Equal(t, http.StatusOK, status, string(data))
	assert.Equal(t, "ligar segunda", decode[contract.Opportunity](t, data).Notes)

	status, data = s.do(t, http.MethodGet, "/v1/opportunities/"+created.ID+"/history", nil)
	require.Equal(t, http.StatusOK, status)
	history := decode[[]contract.StageTransition](t, data)
	require.Len(t, history, 2)
	assert.Equal(t, s.sales.Lead.ID, history[1].FromStageID)

	status, data = s.do(t, http.MethodGet, "/v1/pipelines/"+s.sales.Pipeline.ID+"/summary", nil)
	require.Equal(t, http.StatusOK, status)
	sums := decode[[]contract.StageSummary](t, data)
	require.Len(t, sums, 3)
	assert.Equal(t, 1, sums[0].Count)
	assert.Equal(t, 1, sums[1].Count)
	assert.Equal(t, "500", sums[1].WeightedTotal.String())
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "ACME", "1000")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"validation", http.MethodPost, "/v1/opportunities",
			map[string]any{"pipeline_id": s.sales.Pipeline.ID, "value": "-1"},
			http.StatusUnprocessableEntity, contract.CodeValidation},
		{"unknown pipeline", http.MethodPost, "/v1/opportunities",
			map[string]any{"pipeline_id": "missing", "name": "x"},
			http.StatusNotFound, contract.CodeNotFound},
		{"missing pipeline id", http.MethodPost, "/v1/opportunities",
			map[string]any{"name": "x"},
			http.StatusBadRequest, contract.CodeBadRequest},
		{"malformed body", http.MethodPatch, "/v1/opportunities/" + created.ID,
			`{"name":`, http.StatusBadRequest, contract.CodeBadRequest},
		{"version conflict", http.MethodPatch, "/v1/opportunities/" + created.ID,
			map[string]any{"name": "ACME 2", "expected_version": 7},
			http.StatusConflict, contract.CodeVersionConflict},
		{"unknown opportunity", http.MethodGet, "/v1/opportunities/missing", nil,
			http.StatusNotFound, contract.CodeNotFound},
		{"move without stage", http.MethodPost, "/v1/opportunities/" + created.ID + "/move",
			map[string]any{}, http.StatusBadRequest, contract.CodeBadRequest},
		{"move to unknown stage", http.MethodPost, "/v1/opportunities/" + created.ID + "/move",
			contract.MoveRequest{StageID: "missing"}, http.StatusNotFound, contract.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, data := s.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, status, string(data))
			assert.Equal(t, tc.code, decode[contract.Error](t, data).Code)
		})
	}
}

func TestErrorMapping_ValidationFields(t *testing.T) {
	s := newTestServer(t)
	status, data := s.do(t, http.MethodPost, "/v1/opportunities",
		map[string]any{"pipeline_id": s.sales.Pipeline.ID, "value": "-1"})
	require.Equal(t, http.StatusUnprocessableEntity, status)

	body := decode[contract.Error](t, data)
	verrs := contract.ToValidation(body.Fields)
	assert.Equal(t, []string{domain.KeyName, domain.KeyValue}, verrs.Keys())
	assert.Equal(t, domain.MissingRequiredField, verrs[domain.KeyName].Kind)
}

func TestRequestLogging(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/v1/opportunities/missing", nil)

	line := s.logs.String()
	assert.Contains(t, line, "msg=http_request")
	assert.Contains(t, line, "status=404")
	assert.Contains(t, line, "path=/v1/opportunities/missing")
}

type panickingAPI struct {
	app.PipelineAPI
}

func (panickingAPI) ListPipelines(context.Context) ([]*domain.Pipeline, error) {
	panic("boom")
}

func TestRecover(t *testing.T) {
	logs := &bytes.Buffer{}
	h := New(panickingAPI{}, WithLogger(slog.New(slog.NewTextHandler(logs, nil)))).Routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pipelines", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, contract.CodeInternal, decode[contract.Error](t, rec.Body.Bytes()).Code)
	assert.Contains(t, logs.String(), "handler panic")
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query string
		want  app.PageRequest
	}{
		{"", app.PageRequest{Offset: 0, Limit: app.DefaultPageSize}},
		{"?offset=40&limit=5", app.PageRequest{Offset: 40, Limit: 5}},
		{"?offset=-3&limit=abc", app.PageRequest{Offset: 0, Limit: app.DefaultPageSize}},
		{"?limit=1000", app.PageRequest{Offset: 0, Limit: maxPageLimit}},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
		assert.Equal(t, tc.want, parsePagination(r), tc.query)
	}
}
