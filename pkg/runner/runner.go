// Package runner orchestrates one tool execution end to end: registry
// lookup, parameter validation, asset intelligence enrichment, backend
// dispatch, and normalization of the result envelope. Every failure is
// mapped into the closed error taxonomy; no raw error ever crosses the
// Execute boundary.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opspilot/toolgate/pkg/assets"
	"github.com/opspilot/toolgate/pkg/backend"
	"github.com/opspilot/toolgate/pkg/catalog"
	"github.com/opspilot/toolgate/pkg/params"
)

// ToolSource is the registry read path the runner depends on.
type ToolSource interface {
	Get(name string) (catalog.ToolSpec, bool)
}

// Hooks are optional observability callbacks.
type Hooks struct {
	// OnResult fires after every execution with the taxonomy status
	// ("success" or the error constant) and the duration in seconds.
	OnResult func(tool, status string, seconds float64)

	// OnEvent fires on execution lifecycle events for the event feed.
	OnEvent func(event string, data map[string]interface{})
}

// Options configures a Runner.
type Options struct {
	Registry ToolSource
	Resolver assets.Resolver
	Local    backend.Backend
	Pipeline backend.Backend

	// TimeoutOverrides replaces a tool's declared timeout, keyed by
	// tool name, in seconds.
	TimeoutOverrides map[string]int

	// DefaultMaxOutputBytes caps output for specs without their own cap.
	DefaultMaxOutputBytes int

	Hooks Hooks
}

// Runner executes tools. Distinct Execute calls are independent; the
// only shared state is the registry's read path.
type Runner struct {
	registry         ToolSource
	resolver         assets.Resolver
	local            backend.Backend
	pipeline         backend.Backend
	timeoutOverrides map[string]int
	defaultMaxOutput int
	hooks            Hooks
}

// New creates a Runner. A nil resolver degrades asset-aware tools to
// unenriched execution.
func New(opts Options) (*Runner, error) {
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Local == nil {
		opts.Local = backend.NewLocal()
	}
	if opts.Resolver == nil {
		opts.Resolver = assets.NoopResolver{}
	}
	if opts.DefaultMaxOutputBytes <= 0 {
		opts.DefaultMaxOutputBytes = catalog.DefaultMaxOutputBytes
	}

	return &Runner{
		registry:         opts.Registry,
		resolver:         opts.Resolver,
		local:            opts.Local,
		pipeline:         opts.Pipeline,
		timeoutOverrides: opts.TimeoutOverrides,
		defaultMaxOutput: opts.DefaultMaxOutputBytes,
		hooks:            opts.Hooks,
	}, nil
}

// Execute runs one tool invocation and returns the normalized result.
// traceID is propagated unchanged when supplied, generated otherwise.
func (r *Runner) Execute(ctx context.Context, toolName string, userParams map[string]interface{}, traceID string) Result {
	start := time.Now()

	if traceID == "" {
		traceID = uuid.NewString()
	}
	execID, _ := gonanoid.New(8)

	logger := log.With().
		Str("tool", toolName).
		Str("trace_id", traceID).
		Str("exec_id", execID).
		Logger()

	spec, ok := r.registry.Get(toolName)
	if !ok {
		logger.Warn().Msg("Requested tool is not registered")
		return r.finish(start, traceID, toolName, Result{
			Error:   ErrToolNotFound,
			Message: fmt.Sprintf("tool not found: %s", toolName),
		})
	}

	validated, err := params.Validate(spec, userParams)
	if err != nil {
		logger.Warn().Err(err).Msg("Parameter validation failed")
		return r.finish(start, traceID, toolName, Result{
			Error:   ErrValidation,
			Message: err.Error(),
		})
	}

	secretValues := collectSecrets(spec, validated)

	if spec.AssetAware && spec.HasHostParam() {
		if failed := r.enrich(ctx, logger, spec, validated, &secretValues); failed != nil {
			return r.finish(start, traceID, toolName, *failed)
		}
	}

	req := backend.Request{
		Spec:           spec,
		Params:         validated,
		TraceID:        traceID,
		Timeout:        r.timeoutFor(spec),
		MaxOutputBytes: r.outputCapFor(spec),
	}

	be := r.local
	if spec.Source == catalog.SourcePipeline {
		be = r.pipeline
	}
	if be == nil {
		logger.Error().Str("source", string(spec.Source)).Msg("No backend configured for execution source")
		return r.finish(start, traceID, toolName, Result{
			Error:   ErrExecution,
			Message: fmt.Sprintf("no %s backend configured", spec.Source),
		})
	}

	r.emit("execution_started", map[string]interface{}{
		"tool":     toolName,
		"trace_id": traceID,
		"source":   string(spec.Source),
	})

	raw, runErr := be.Run(ctx, req)

	red := newRedactor(spec.RedactPatterns, secretValues)

	if runErr != nil {
		if errors.Is(runErr, backend.ErrTimeout) {
			logger.Error().Dur("elapsed", time.Since(start)).Msg("Execution timed out")
			return r.finish(start, traceID, toolName, Result{
				Error:   ErrTimeout,
				Message: fmt.Sprintf("execution exceeded %s", req.Timeout),
			})
		}

		msg, _ := red.scrubString(runErr.Error())
		output, truncated, redacted := r.sanitizeOutput(red, raw.Output, req.MaxOutputBytes)
		logger.Error().Str("error", msg).Msg("Execution failed")
		return r.finish(start, traceID, toolName, Result{
			Error:     ErrExecution,
			Message:   msg,
			Output:    output,
			ExitCode:  raw.ExitCode,
			Truncated: truncated || raw.Truncated,
			Redacted:  redacted,
		})
	}

	output, truncated, redacted := r.sanitizeOutput(red, raw.Output, req.MaxOutputBytes)

	logger.Info().
		Dur("duration", time.Since(start)).
		Bool("truncated", truncated || raw.Truncated).
		Bool("redacted", redacted).
		Msg("Execution completed")

	return r.finish(start, traceID, toolName, Result{
		Success:   true,
		Output:    output,
		ExitCode:  raw.ExitCode,
		Truncated: truncated || raw.Truncated,
		Redacted:  redacted,
	})
}

// enrich performs the asset intelligence step, merging the resolved
// connection profile and credentials into the validated parameter set.
// It returns a terminal result only for the missing_credentials path;
// resolver outages and unknown hosts degrade to unenriched execution.
func (r *Runner) enrich(ctx context.Context, logger zerolog.Logger, spec catalog.ToolSpec, validated map[string]interface{}, secretValues *[]string) *Result {
	host, _ := validated["host"].(string)
	if host == "" {
		return nil
	}

	res, err := r.resolver.Resolve(ctx, host, purposeFor(spec))
	if err != nil {
		var missing *assets.MissingCredentialsError
		if errors.As(err, &missing) {
			logger.Warn().Str("host", host).Msg("No stored credentials for target host")
			return &Result{
				Error:         ErrMissingCredentials,
				Message:       missing.Error(),
				MissingParams: missing.Missing,
				Hint:          hintFor(missing),
			}
		}
		logger.Warn().Err(err).Str("host", host).Msg("Asset resolution unavailable, continuing without enrichment")
		return nil
	}

	if res == nil || !res.Found {
		logger.Debug().Str("host", host).Msg("Host has no inventory record, continuing without enrichment")
		return nil
	}

	// Caller-supplied values win over resolved ones.
	for k, v := range res.Params {
		if _, exists := validated[k]; exists {
			continue
		}
		validated[k] = v
	}
	for _, key := range res.SecretKeys {
		if v, ok := res.Params[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				*secretValues = append(*secretValues, s)
			}
		}
	}

	return nil
}

// purposeFor maps a tool's platform to the credential purpose asked of
// the asset service.
func purposeFor(spec catalog.ToolSpec) string {
	switch spec.Platform {
	case catalog.PlatformWindows:
		return "winrm"
	case catalog.PlatformLinux:
		return "ssh"
	default:
		return "remote"
	}
}

func hintFor(e *assets.MissingCredentialsError) string {
	if e.Hint != "" {
		return e.Hint
	}
	return fmt.Sprintf("store credentials for %s (purpose %s) in the asset service, or supply them as tool parameters", e.Host, e.Purpose)
}

func (r *Runner) timeoutFor(spec catalog.ToolSpec) time.Duration {
	seconds := spec.TimeoutSeconds
	if override, ok := r.timeoutOverrides[spec.Name]; ok && override > 0 {
		seconds = override
	}
	return time.Duration(seconds) * time.Second
}

func (r *Runner) outputCapFor(spec catalog.ToolSpec) int {
	if spec.MaxOutputBytes > 0 {
		return spec.MaxOutputBytes
	}
	return r.defaultMaxOutput
}

// sanitizeOutput applies redaction then the output cap. Structured
// output is measured by its JSON rendering so the cap holds for every
// output shape.
func (r *Runner) sanitizeOutput(red *redactor, output interface{}, cap int) (interface{}, bool, bool) {
	scrubbed, redacted := red.scrub(output)
	capped, truncated := backend.TruncateOutput(scrubbed, cap)
	return capped, truncated, redacted
}

// finish stamps the timing fields and fires the hooks.
func (r *Runner) finish(start time.Time, traceID, tool string, res Result) Result {
	res.TraceID = traceID
	res.Timestamp = time.Now().UTC()
	res.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0

	status := res.Error
	if res.Success {
		status = "success"
	}
	if r.hooks.OnResult != nil {
		r.hooks.OnResult(tool, status, time.Since(start).Seconds())
	}
	r.emit("execution_finished", map[string]interface{}{
		"tool":        tool,
		"trace_id":    traceID,
		"status":      status,
		"duration_ms": res.DurationMS,
	})

	return res
}

func (r *Runner) emit(event string, data map[string]interface{}) {
	if r.hooks.OnEvent != nil {
		r.hooks.OnEvent(event, data)
	}
}

// collectSecrets gathers the literal values of declared secret
// parameters so the redactor can scrub them from any output.
func collectSecrets(spec catalog.ToolSpec, validated map[string]interface{}) []string {
	var secrets []string
	for _, p := range spec.Parameters {
		if !p.Secret {
			continue
		}
		if v, ok := validated[p.Name]; ok {
			if s, ok := v.(string); ok && s != "" {
				secrets = append(secrets, s)
			}
		}
	}
	return secrets
}
