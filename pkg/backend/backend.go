// Package backend provides the two interchangeable execution strategies:
// Local runs a tool in-process or as a subprocess, Pipeline delegates to
// the remote execution service.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/opspilot/toolgate/pkg/catalog"
)

// State tracks one execution through its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
)

// ErrTimeout is returned when an execution exceeds its deadline. The
// underlying process or connection is already torn down when the error
// surfaces.
var ErrTimeout = errors.New("execution timed out")

// Request carries everything a backend needs for one run. Params are
// already validated and enriched.
type Request struct {
	Spec    catalog.ToolSpec
	Params  map[string]interface{}
	TraceID string
	Timeout time.Duration

	// MaxOutputBytes caps captured output. Zero means the spec default.
	MaxOutputBytes int
}

// RawResult is the unnormalized outcome of one backend run. The runner
// applies redaction and builds the final result envelope.
type RawResult struct {
	Output    interface{}
	ExitCode  *int
	Truncated bool
	State     State
}

// Backend executes one tool invocation. Implementations must respect
// ctx cancellation and the request timeout, and must not leak the
// underlying process or connection on either.
type Backend interface {
	Run(ctx context.Context, req Request) (RawResult, error)
}
