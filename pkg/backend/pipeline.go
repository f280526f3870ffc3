package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Pipeline forwards execution to the remote execution service. The
// client-side deadline is the tool timeout plus a small network margin
// so a remote-side timeout surfaces as a remote error, not a local one.
type Pipeline struct {
	endpoint string
	apiKey   string
	margin   time.Duration
	http     *http.Client
}

// PipelineOptions configures the remote delegate.
type PipelineOptions struct {
	Endpoint string
	APIKey   string

	// NetworkMargin is added to the tool timeout for the HTTP deadline.
	NetworkMargin time.Duration
}

// NewPipeline creates the remote delegate.
func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.NetworkMargin == 0 {
		opts.NetworkMargin = 5 * time.Second
	}
	return &Pipeline{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		margin:   opts.NetworkMargin,
		http:     &http.Client{},
	}
}

type pipelineRequest struct {
	Tool           string                 `json:"tool"`
	Params         map[string]interface{} `json:"params"`
	TraceID        string                 `json:"trace_id"`
	TimeoutSeconds int                    `json:"timeout_seconds"`
}

type pipelineResponse struct {
	Success  bool        `json:"success"`
	Output   interface{} `json:"output"`
	Error    string      `json:"error,omitempty"`
	ExitCode *int        `json:"exit_code,omitempty"`
	TimedOut bool        `json:"timed_out,omitempty"`
}

// Run serializes the request to the execution service and maps
// transport failures into the runner's error taxonomy.
func (p *Pipeline) Run(ctx context.Context, req Request) (RawResult, error) {
	if p.endpoint == "" {
		return RawResult{State: StateFailed}, fmt.Errorf("no pipeline endpoint configured for tool %s", req.Spec.Name)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = time.Duration(req.Spec.TimeoutSeconds) * time.Second
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout+p.margin)
	defer cancel()

	payload, err := json.Marshal(pipelineRequest{
		Tool:           req.Spec.Name,
		Params:         req.Params,
		TraceID:        req.TraceID,
		TimeoutSeconds: int(timeout / time.Second),
	})
	if err != nil {
		return RawResult{State: StateFailed}, fmt.Errorf("encoding pipeline request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.endpoint+"/execute", bytes.NewReader(payload))
	if err != nil {
		return RawResult{State: StateFailed}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Trace-Id", req.TraceID)
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return RawResult{State: StateTimedOut}, ErrTimeout
		}
		return RawResult{State: StateFailed}, fmt.Errorf("execution service unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(outputCap(req))+4096))
	if err != nil {
		return RawResult{State: StateFailed}, fmt.Errorf("reading execution service response: %w", err)
	}

	if resp.StatusCode >= 300 {
		log.Warn().
			Str("tool", req.Spec.Name).
			Str("trace_id", req.TraceID).
			Int("status", resp.StatusCode).
			Msg("Execution service returned an error status")
		return RawResult{State: StateFailed}, fmt.Errorf("execution service returned %d: %s", resp.StatusCode, truncateMessage(body))
	}

	var remote pipelineResponse
	if err := json.Unmarshal(body, &remote); err != nil {
		return RawResult{State: StateFailed}, fmt.Errorf("invalid execution service response: %w", err)
	}

	if remote.TimedOut {
		return RawResult{State: StateTimedOut}, ErrTimeout
	}

	output, truncated := TruncateOutput(remote.Output, outputCap(req))
	result := RawResult{
		Output:    output,
		ExitCode:  remote.ExitCode,
		Truncated: truncated,
		State:     StateCompleted,
	}

	if !remote.Success {
		result.State = StateFailed
		msg := remote.Error
		if msg == "" {
			msg = "remote execution failed"
		}
		return result, errors.New(msg)
	}

	return result, nil
}

func truncateMessage(body []byte) string {
	const max = 512
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
