package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor_LiteralSecrets(t *testing.T) {
	red := newRedactor(nil, []string{"hunter2"})

	out, changed := red.scrubString("login with hunter2 succeeded, hunter2 cached")
	assert.True(t, changed)
	assert.Equal(t, "login with [REDACTED] succeeded, [REDACTED] cached", out)
}

func TestRedactor_Patterns(t *testing.T) {
	red := newRedactor([]string{`(?i)password["\s:=]+\S+`}, nil)

	out, changed := red.scrubString(`config: Password = topsecret; retries = 3`)
	assert.True(t, changed)
	assert.NotContains(t, out, "topsecret")
}

func TestRedactor_NoMatchLeavesOutputUntouched(t *testing.T) {
	red := newRedactor([]string{`token=\S+`}, []string{"sekrit"})

	out, changed := red.scrubString("nothing sensitive here")
	assert.False(t, changed)
	assert.Equal(t, "nothing sensitive here", out)
}

func TestRedactor_StructuredOutput(t *testing.T) {
	red := newRedactor(nil, []string{"hunter2"})

	out, changed := red.scrub(map[string]interface{}{
		"status": "connected",
		"detail": map[string]interface{}{"password": "hunter2"},
	})
	require.True(t, changed)

	m := out.(map[string]interface{})
	detail := m["detail"].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", detail["password"])
	assert.Equal(t, "connected", m["status"])
}

func TestRedactor_StructuredOutputUnchanged(t *testing.T) {
	red := newRedactor(nil, []string{"hunter2"})

	in := map[string]interface{}{"status": "ok"}
	out, changed := red.scrub(in)
	assert.False(t, changed)
	assert.Equal(t, in, out, "clean structured output passes through unmodified")
}

func TestRedactor_NilOutput(t *testing.T) {
	red := newRedactor(nil, []string{"x"})

	out, changed := red.scrub(nil)
	assert.Nil(t, out)
	assert.False(t, changed)
}

func TestRedactor_InvalidPatternIsSkipped(t *testing.T) {
	red := newRedactor([]string{`(`, `valid\d+`}, nil)

	out, changed := red.scrubString("valid123 stays private")
	assert.True(t, changed)
	assert.NotContains(t, out, "valid123")
}

func TestRedactor_EmptyLiteralIgnored(t *testing.T) {
	red := newRedactor(nil, []string{""})

	out, changed := red.scrubString("plain text")
	assert.False(t, changed)
	assert.Equal(t, "plain text", out)
}
