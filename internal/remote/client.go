// Package remote is an app.PipelineAPI that talks to a pipedeck server, so
// the board and form controllers run unchanged against a hosted backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/contract"
	"github.com/alexanderramin/pipedeck/internal/domain"
)

type Config struct {
	BaseURL string
	// Timeout bounds each call. Zero leaves the caller's deadline alone.
	Timeout time.Duration
	// MaxRetries applies to reads only; writes are sent once.
	MaxRetries int
}

type Client struct {
	cfg      Config
	http     *http.Client
	observer Observer
}

var _ app.PipelineAPI = (*Client)(nil)

func New(cfg Config, observer Observer) *Client {
	if observer == nil {
		observer = NoopObserver{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		observer: observer,
	}
}

func (c *Client) ListPipelines(ctx context.Context) ([]*domain.Pipeline, error) {
	var body []contract.Pipeline
	if err := c.call(ctx, http.MethodGet, "/v1/pipelines", nil, &body); err != nil {
		return nil, err
	}
	out := make([]*domain.Pipeline, 0, len(body))
	for _, p := range body {
		out = append(out, p.ToDomain())
	}
	return out, nil
}

func (c *Client) GetPipelineWithStages(ctx context.Context, id string) (*domain.Pipeline, error) {
	var body contract.Pipeline
	if err := c.call(ctx, http.MethodGet, "/v1/pipelines/"+url.PathEscape(id), nil, &body); err != nil {
		return nil, err
	}
	return body.ToDomain(), nil
}

func (c *Client) ListFieldDefinitions(ctx context.Context, pipelineID string) ([]*domain.FieldDefinition, error) {
	var body []contract.FieldDefinition
	if err := c.call(ctx, http.MethodGet, "/v1/pipelines/"+url.PathEscape(pipelineID)+"/fields", nil, &body); err != nil {
		return nil, err
	}
	out := make([]*domain.FieldDefinition, 0, len(body))
	for _, d := range body {
		out = append(out, d.ToDomain())
	}
	return out, nil
}

func (c *Client) ListOpportunitiesPage(ctx context.Context, stageID string, req app.PageRequest) (*app.OpportunityPage, error) {
	req = req.Normalize()
	q := url.Values{}
	q.Set("offset", strconv.Itoa(req.Offset))
	q.Set("limit", strconv.Itoa(req.Limit))
	var body contract.OpportunityPage
	path := "/v1/stages/" + url.PathEscape(stageID) + "/opportunities?" + q.Encode()
	if err := c.call(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.ToApp(), nil
}

func (c *Client) CreateOpportunity(ctx context.Context, p app.OpportunityPayload) (*domain.Opportunity, error) {
	var body contract.Opportunity
	if err := c.call(ctx, http.MethodPost, "/v1/opportunities", contract.FromPayload(p), &body); err != nil {
		return nil, err
	}
	return body.ToDomain(), nil
}

func (c *Client) UpdateOpportunity(ctx context.Context, id string, p app.OpportunityPayload) (*domain.Opportunity, error) {
	var body contract.Opportunity
	if err := c.call(ctx, http.MethodPatch, "/v1/opportunities/"+url.PathEscape(id), contract.FromPayload(p), &body); err != nil {
		return nil, err
	}
	return body.ToDomain(), nil
}

func (c *Client) MoveOpportunity(ctx context.Context, id, destStageID string) (*domain.Opportunity, error) {
	var body contract.Opportunity
	req := contract.MoveRequest{StageID: destStageID}
	if err := c.call(ctx, http.MethodPost, "/v1/opportunities/"+url.PathEscape(id)+"/move", req, &body); err != nil {
		return nil, err
	}
	return body.ToDomain(), nil
}

func (c *Client) GetOpportunity(ctx context.Context, id string) (*domain.Opportunity, error) {
	var body contract.Opportunity
	if err := c.call(ctx, http.MethodGet, "/v1/opportunities/"+url.PathEscape(id), nil, &body); err != nil {
		return nil, err
	}
	return body.ToDomain(), nil
}

func (c *Client) StageSummaries(ctx context.Context, pipelineID string) ([]app.StageSummary, error) {
	var body []contract.StageSummary
	if err := c.call(ctx, http.MethodGet, "/v1/pipelines/"+url.PathEscape(pipelineID)+"/summary", nil, &body); err != nil {
		return nil, err
	}
	out := make([]app.StageSummary, 0, len(body))
	for _, s := range body {
		out = append(out, s.ToApp())
	}
	return out, nil
}

func (c *Client) StageHistory(ctx context.Context, opportunityID string) ([]domain.StageTransition, error) {
	var body []contract.StageTransition
	if err := c.call(ctx, http.MethodGet, "/v1/opportunities/"+url.PathEscape(opportunityID)+"/history", nil, &body); err != nil {
		return nil, err
	}
	out := make([]domain.StageTransition, 0, len(body))
	for _, t := range body {
		out = append(out, t.ToDomain())
	}
	return out, nil
}

// Available checks whether the server answers its health check.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// call sends one request, retrying reads on transport errors and 5xx answers.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	start := time.Now()
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		payload = data
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += c.cfg.MaxRetries
	}

	var (
		lastErr error
		status  int
		tried   int
	)
	for tried < attempts {
		tried++
		status, lastErr = c.doRequest(ctx, method, path, payload, out)
		if lastErr == nil || !retryable(lastErr) || ctx.Err() != nil {
			break
		}
	}

	err := c.classify(ctx, lastErr, tried, attempts)
	c.observer.OnCallComplete(CallEvent{
		Method:    method,
		Path:      path,
		Status:    status,
		Attempts:  tried,
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   err == nil,
		ErrorCode: errorCode(err),
	})
	return err
}

func (c *Client) classify(ctx context.Context, err error, tried, attempts int) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	case !retryable(err):
		return err
	case isConnectionError(err):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case attempts > 1 && tried == attempts:
		return fmt.Errorf("%w: %w", ErrRetryExhausted, err)
	default:
		return err
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte, out any) (int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return resp.StatusCode, nil
}

// decodeError rebuilds the domain error carried by an error response.
// Validation failures come back as domain.ValidationErrors.
func decodeError(status int, data []byte) error {
	var body contract.Error
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return &StatusError{Status: status, Message: strings.TrimSpace(string(data))}
	}
	if body.Code == contract.CodeValidation && len(body.Fields) > 0 {
		return contract.ToValidation(body.Fields)
	}
	return &StatusError{Status: status, Code: body.Code, Message: body.Message}
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) || errors.Is(err, ErrInvalidResponse) {
		return false
	}
	return true
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
