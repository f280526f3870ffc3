package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/toolgate/pkg/catalog"
)

func commandSpec(name string, command ...string) catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:           name,
		DisplayName:    name,
		Description:    "test tool",
		Command:        command,
		TimeoutSeconds: 10,
		MaxOutputBytes: catalog.DefaultMaxOutputBytes,
	}
}

func TestLocal_RunCommand(t *testing.T) {
	spec := commandSpec("echo_tool", "echo", "hello {{who}}")

	res, err := NewLocal().Run(context.Background(), Request{
		Spec:   spec,
		Params: map[string]interface{}{"who": "world"},
	})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, res.State)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
	assert.Equal(t, "hello world\n", res.Output)
	assert.False(t, res.Truncated)
}

func TestLocal_RunCommand_IntegerSubstitution(t *testing.T) {
	spec := commandSpec("count_tool", "echo", "{{n}}")

	res, err := NewLocal().Run(context.Background(), Request{
		Spec:   spec,
		Params: map[string]interface{}{"n": int64(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, "3\n", res.Output)
}

func TestLocal_RunCommand_UndefinedPlaceholder(t *testing.T) {
	spec := commandSpec("bad_tool", "echo", "{{missing}}")

	_, err := NewLocal().Run(context.Background(), Request{
		Spec:   spec,
		Params: map[string]interface{}{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestLocal_RunCommand_NonZeroExit(t *testing.T) {
	spec := commandSpec("fail_tool", "sh", "-c", "echo oops >&2; exit 3")

	res, err := NewLocal().Run(context.Background(), Request{Spec: spec})
	require.Error(t, err)

	assert.Equal(t, StateFailed, res.State)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 3, *res.ExitCode)
	assert.Contains(t, res.Output.(string), "oops", "stderr is captured on failure")
}

func TestLocal_RunCommand_Timeout(t *testing.T) {
	spec := commandSpec("sleep_tool", "sleep", "10")
	spec.TimeoutSeconds = 1

	start := time.Now()
	res, err := NewLocal().Run(context.Background(), Request{Spec: spec})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateTimedOut, res.State)
	assert.Less(t, elapsed, 5*time.Second, "timeout must terminate the process promptly")
}

func TestLocal_RunCommand_OutputCap(t *testing.T) {
	spec := commandSpec("noisy_tool", "sh", "-c", "yes x | head -c 100000")
	spec.MaxOutputBytes = 1024

	res, err := NewLocal().Run(context.Background(), Request{Spec: spec})
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Len(t, res.Output.(string), 1024)
}

func TestLocal_RunHandler(t *testing.T) {
	spec := catalog.ToolSpec{
		Name:           "handler_tool",
		DisplayName:    "Handler",
		Description:    "handler tool",
		TimeoutSeconds: 5,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, int, error) {
			return map[string]interface{}{"answer": 42}, 0, nil
		},
	}

	res, err := NewLocal().Run(context.Background(), Request{Spec: spec})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, res.State)
	out := res.Output.(map[string]interface{})
	assert.Equal(t, 42, out["answer"])
}

func TestLocal_RunHandler_Error(t *testing.T) {
	spec := catalog.ToolSpec{
		Name:           "broken_handler",
		DisplayName:    "Broken",
		Description:    "always fails",
		TimeoutSeconds: 5,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, int, error) {
			return nil, 1, errors.New("backend store unavailable")
		},
	}

	res, err := NewLocal().Run(context.Background(), Request{Spec: spec})
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, err.Error(), "backend store unavailable")
}

func TestLocal_RunHandler_Timeout(t *testing.T) {
	spec := catalog.ToolSpec{
		Name:           "slow_handler",
		DisplayName:    "Slow",
		Description:    "ignores its deadline",
		TimeoutSeconds: 1,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, int, error) {
			select {
			case <-time.After(10 * time.Second):
				return "done", 0, nil
			case <-ctx.Done():
				return nil, 1, ctx.Err()
			}
		},
	}

	res, err := NewLocal().Run(context.Background(), Request{Spec: spec})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateTimedOut, res.State)
}

func TestLocal_RunHandler_PanicBecomesError(t *testing.T) {
	spec := catalog.ToolSpec{
		Name:           "panicky",
		DisplayName:    "Panicky",
		Description:    "panics",
		TimeoutSeconds: 5,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, int, error) {
			panic("boom")
		},
	}

	res, err := NewLocal().Run(context.Background(), Request{Spec: spec})
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, err.Error(), "panicked")
}

func TestExpandCommand(t *testing.T) {
	argv, err := expandCommand(
		[]string{"ping", "-c", "{{count}}", "{{ host }}"},
		map[string]interface{}{"count": int64(2), "host": "127.0.0.1"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"ping", "-c", "2", "127.0.0.1"}, argv)
}

func TestCapWriter(t *testing.T) {
	w := newCapWriter(10)
	n, err := w.Write([]byte(strings.Repeat("a", 25)))
	require.NoError(t, err)

	assert.Equal(t, 25, n, "writer must not error the producer")
	assert.Equal(t, 10, w.Len())
	assert.True(t, w.Overflowed())
}

func TestParamString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{"x", "x"},
		{int64(7), "7"},
		{7, "7"},
		{7.5, "7.5"},
		{true, "true"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, paramString(tt.in))
		})
	}
}
