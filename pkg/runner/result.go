package runner

import (
	"time"

	"github.com/opspilot/toolgate/pkg/assets"
)

// Error taxonomy. Exactly one of these is set on a non-success result;
// a successful result carries no error at all.
const (
	ErrToolNotFound       = "tool_not_found"
	ErrValidation         = "validation_error"
	ErrMissingCredentials = "missing_credentials"
	ErrExecution          = "execution_error"
	ErrTimeout            = "timeout"
)

// Result is the normalized outcome of one execution. It is created
// fresh per invocation and owned by the caller once returned; nothing
// in this core persists it.
type Result struct {
	Success       bool                  `json:"success"`
	Output        interface{}           `json:"output"`
	Error         string                `json:"error,omitempty"`
	Message       string                `json:"message,omitempty"`
	MissingParams []assets.MissingParam `json:"missing_params,omitempty"`
	Hint          string                `json:"hint,omitempty"`
	DurationMS    float64               `json:"duration_ms"`
	TraceID       string                `json:"trace_id"`
	Timestamp     time.Time             `json:"timestamp"`
	ExitCode      *int                  `json:"exit_code,omitempty"`
	Truncated     bool                  `json:"truncated"`
	Redacted      bool                  `json:"redacted"`
}
