package backend

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opspilot/toolgate/pkg/catalog"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Local executes tools directly: built-ins through their handler,
// catalog tools as a subprocess built from the declared argv template.
type Local struct{}

// NewLocal creates the local executor.
func NewLocal() *Local {
	return &Local{}
}

// Run executes the tool, enforcing a hard wall-clock timeout that
// forcibly terminates the process group. Captured output is capped at
// MaxOutputBytes.
func (l *Local) Run(ctx context.Context, req Request) (RawResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = time.Duration(req.Spec.TimeoutSeconds) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if req.Spec.Handler != nil {
		return l.runHandler(runCtx, req)
	}
	if len(req.Spec.Command) > 0 {
		return l.runCommand(runCtx, req)
	}
	return RawResult{State: StateFailed}, fmt.Errorf("tool %s declares neither handler nor command", req.Spec.Name)
}

// runHandler invokes a built-in handler in a goroutine so the timeout
// can fire even if the handler ignores ctx.
func (l *Local) runHandler(ctx context.Context, req Request) (RawResult, error) {
	type handlerOutcome struct {
		output   interface{}
		exitCode int
		err      error
	}

	outcomes := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcomes <- handlerOutcome{exitCode: 1, err: fmt.Errorf("tool handler panicked: %v", r)}
			}
		}()
		output, code, err := req.Spec.Handler(ctx, req.Params)
		outcomes <- handlerOutcome{output: output, exitCode: code, err: err}
	}()

	select {
	case o := <-outcomes:
		if ctx.Err() == context.DeadlineExceeded {
			return RawResult{State: StateTimedOut}, ErrTimeout
		}
		if o.err != nil {
			code := o.exitCode
			return RawResult{ExitCode: &code, State: StateFailed}, o.err
		}
		output, truncated := TruncateOutput(o.output, outputCap(req))
		code := o.exitCode
		return RawResult{Output: output, ExitCode: &code, Truncated: truncated, State: StateCompleted}, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return RawResult{State: StateTimedOut}, ErrTimeout
		}
		return RawResult{State: StateFailed}, ctx.Err()
	}
}

// runCommand expands the argv template and runs it as a subprocess in
// its own process group so a timeout kills any children too.
func (l *Local) runCommand(ctx context.Context, req Request) (RawResult, error) {
	argv, err := expandCommand(req.Spec.Command, req.Params)
	if err != nil {
		return RawResult{State: StateFailed}, err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	cap := outputCap(req)
	stdout := newCapWriter(cap)
	stderr := newCapWriter(cap)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		log.Warn().
			Str("tool", req.Spec.Name).
			Str("trace_id", req.TraceID).
			Dur("duration", duration).
			Msg("Local execution killed on timeout")
		return RawResult{State: StateTimedOut}, ErrTimeout
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return RawResult{State: StateFailed}, fmt.Errorf("starting %s: %w", argv[0], runErr)
		}
	}

	truncated := stdout.Overflowed() || stderr.Overflowed()

	output := stdout.String()
	if exitCode != 0 && stderr.Len() > 0 {
		output = strings.TrimSpace(output + "\n" + stderr.String())
	}
	if truncated {
		output = trimIncompleteRune(output)
	}

	result := RawResult{
		Output:    output,
		ExitCode:  &exitCode,
		Truncated: truncated,
		State:     StateCompleted,
	}

	if exitCode != 0 {
		result.State = StateFailed
		return result, fmt.Errorf("command exited with code %d", exitCode)
	}

	log.Debug().
		Str("tool", req.Spec.Name).
		Int("exit_code", exitCode).
		Dur("duration", duration).
		Msg("Local command completed")

	return result, nil
}

// expandCommand substitutes {{name}} placeholders in the argv template
// with parameter values. An unresolved placeholder is an error rather
// than an empty argument.
func expandCommand(template []string, params map[string]interface{}) ([]string, error) {
	argv := make([]string, 0, len(template))
	for _, arg := range template {
		var missing string
		expanded := placeholderRe.ReplaceAllStringFunc(arg, func(match string) string {
			name := placeholderRe.FindStringSubmatch(match)[1]
			v, ok := params[name]
			if !ok {
				missing = name
				return match
			}
			return paramString(v)
		})
		if missing != "" {
			return nil, fmt.Errorf("command references undefined parameter %q", missing)
		}
		argv = append(argv, expanded)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command template")
	}
	return argv, nil
}

func paramString(v interface{}) string {
	switch n := v.(type) {
	case string:
		return n
	case int64:
		return strconv.FormatInt(n, 10)
	case int:
		return strconv.Itoa(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func outputCap(req Request) int {
	if req.MaxOutputBytes > 0 {
		return req.MaxOutputBytes
	}
	if req.Spec.MaxOutputBytes > 0 {
		return req.Spec.MaxOutputBytes
	}
	return catalog.DefaultMaxOutputBytes
}

// capWriter captures up to cap bytes and discards the rest, remembering
// that it overflowed.
type capWriter struct {
	buf      bytes.Buffer
	cap      int
	overflow bool
}

func newCapWriter(cap int) *capWriter {
	return &capWriter{cap: cap}
}

func (w *capWriter) Write(p []byte) (int, error) {
	remaining := w.cap - w.buf.Len()
	if remaining <= 0 {
		w.overflow = true
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		w.overflow = true
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}

func (w *capWriter) String() string   { return w.buf.String() }
func (w *capWriter) Len() int         { return w.buf.Len() }
func (w *capWriter) Overflowed() bool { return w.overflow }
