// Package orchestrator talks to the external control plane that re-runs a
// book through the extraction pipeline and reports its status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackzampolin/songshelf/internal/api"
)

// Submission statuses returned by POST /reprocess.
const (
	SubmitStarted = "started"
	SubmitError   = "error"
)

// Lookup statuses returned by GET /status/{book_id}.
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
)

// Terminal processing statuses. Every other phase name is non-terminal.
const (
	ProcessingCompleted = "completed"
	ProcessingFailed    = "failed"
)

// IsTerminal reports whether a processing status ends a job.
func IsTerminal(status string) bool {
	return status == ProcessingCompleted || status == ProcessingFailed
}

// ReprocessRequest is the body of POST /reprocess.
type ReprocessRequest struct {
	BookID    string `json:"book_id"`
	SourcePDF string `json:"source_pdf"`
	Force     bool   `json:"force"`
}

// ReprocessResponse is the reply to POST /reprocess.
type ReprocessResponse struct {
	Status          string `json:"status"`
	ExecutionARN    string `json:"execution_arn,omitempty"`
	UseManualSplits bool   `json:"use_manual_splits,omitempty"`
	Message         string `json:"message,omitempty"`
}

// StatusResponse is the reply to GET /status/{book_id}.
type StatusResponse struct {
	Status           string `json:"status"`
	ProcessingStatus string `json:"processing_status,omitempty"`
	SongsExtracted   int    `json:"songs_extracted,omitempty"`
}

// Terminal reports whether the lookup found the book in a terminal state.
func (s StatusResponse) Terminal() bool {
	return s.Status == LookupFound && IsTerminal(s.ProcessingStatus)
}

// Step is one step of an orchestrator execution.
type Step struct {
	Name       string     `json:"name" yaml:"name"`
	Status     string     `json:"status" yaml:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Execution is the step-level detail of an orchestrator execution.
type Execution struct {
	ARN    string `json:"execution_arn" yaml:"execution_arn"`
	Status string `json:"status" yaml:"status"`
	Steps  []Step `json:"steps" yaml:"steps"`
}

// Client is the subset of the control plane used by the tracker.
type Client interface {
	Reprocess(ctx context.Context, req ReprocessRequest) (*ReprocessResponse, error)
	Status(ctx context.Context, bookID string) (*StatusResponse, error)
	Execution(ctx context.Context, executionARN string) (*Execution, error)
}

// Pinger checks that the control plane is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPClient implements Client over the control plane's JSON API.
type HTTPClient struct {
	api *api.Client
}

// NewHTTPClient creates a control plane client for baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{api: api.NewClientWithTimeout(baseURL, timeout)}
}

// Reprocess asks the orchestrator to re-run a book.
func (c *HTTPClient) Reprocess(ctx context.Context, req ReprocessRequest) (*ReprocessResponse, error) {
	var resp ReprocessResponse
	if err := c.api.Post(ctx, "/reprocess", req, &resp); err != nil {
		return nil, fmt.Errorf("reprocess %s: %w", req.BookID, err)
	}
	return &resp, nil
}

// Status looks up the processing status of a book.
func (c *HTTPClient) Status(ctx context.Context, bookID string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.api.Get(ctx, "/status/"+url.PathEscape(bookID), &resp); err != nil {
		return nil, fmt.Errorf("status %s: %w", bookID, err)
	}
	if resp.Status != LookupFound && resp.Status != LookupNotFound {
		return nil, fmt.Errorf("status %s: unexpected lookup status %q", bookID, resp.Status)
	}
	return &resp, nil
}

// Execution fetches step detail for an execution.
func (c *HTTPClient) Execution(ctx context.Context, executionARN string) (*Execution, error) {
	var resp Execution
	if err := c.api.Get(ctx, "/execution?arn="+url.QueryEscape(executionARN), &resp); err != nil {
		return nil, fmt.Errorf("execution %s: %w", executionARN, err)
	}
	if resp.ARN == "" {
		resp.ARN = executionARN
	}
	return &resp, nil
}

// Ping checks that the control plane answers at all. Any HTTP response,
// including 404, counts as reachable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	err := c.api.Get(ctx, "/status/__ping__", nil)
	if err == nil {
		return nil
	}
	var se *api.StatusError
	if errors.As(err, &se) && se.Code < 500 {
		return nil
	}
	return err
}
