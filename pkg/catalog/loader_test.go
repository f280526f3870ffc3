package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefinition(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const pingDefinition = `
name: ping_probe
display_name: Ping Probe
description: Ping a host.
category: network
source: local
command: ["ping", "-c", "1", "{{host}}"]
timeout_seconds: 20
parameters:
  - name: host
    type: string
    required: true
`

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "ping.yaml", pingDefinition)

	specs, warnings := NewLoader().Load([]string{dir})

	require.Len(t, specs, 1)
	assert.Empty(t, warnings)

	spec := specs["ping_probe"]
	assert.Equal(t, "Ping Probe", spec.DisplayName)
	assert.Equal(t, SourceLocal, spec.Source)
	assert.Equal(t, 20, spec.TimeoutSeconds)
	assert.Equal(t, PlatformCross, spec.Platform, "platform should default")
	assert.Equal(t, DefaultMaxOutputBytes, spec.MaxOutputBytes, "output cap should default")
}

func TestLoader_Load_Recursive(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "network", "probes")
	require.NoError(t, os.MkdirAll(nested, 0755))
	writeDefinition(t, nested, "ping.yml", pingDefinition)

	specs, _ := NewLoader().Load([]string{dir})
	assert.Contains(t, specs, "ping_probe")
}

func TestLoader_Load_BadFileIsWarningNotError(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "broken.yaml", "{{{{ not yaml")
	writeDefinition(t, dir, "ping.yaml", pingDefinition)

	specs, warnings := NewLoader().Load([]string{dir})

	assert.Len(t, specs, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "broken.yaml")
}

func TestLoader_Load_MissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "nameless.yaml", "display_name: No Name\ndescription: Missing name.\n")

	specs, warnings := NewLoader().Load([]string{dir})

	assert.Empty(t, specs)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "name cannot be empty")
}

func TestLoader_Load_UnknownParameterTypeRejected(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "odd.yaml", `
name: odd_tool
display_name: Odd
description: Has an unknown parameter type.
parameters:
  - name: thing
    type: floaty
`)

	specs, warnings := NewLoader().Load([]string{dir})

	assert.Empty(t, specs)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `unknown type "floaty"`)
}

func TestLoader_Load_DefaultViolatingConstraintsRejected(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "bad_default.yaml", `
name: bad_default
display_name: Bad Default
description: Default does not fit the declared type.
parameters:
  - name: port
    type: integer
    min_value: 1
    max_value: 65535
    default: not-a-number
`)

	specs, warnings := NewLoader().Load([]string{dir})

	assert.Empty(t, specs)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "is not an integer")
}

func TestLoader_Load_LaterDirectoryWins(t *testing.T) {
	low := t.TempDir()
	high := t.TempDir()
	writeDefinition(t, low, "ping.yaml", pingDefinition)
	writeDefinition(t, high, "ping.yaml", `
name: ping_probe
display_name: Ping Probe Override
description: Overridden ping.
timeout_seconds: 55
parameters:
  - name: host
    type: string
    required: true
`)

	specs, warnings := NewLoader().Load([]string{low, high})

	require.Len(t, specs, 1)
	assert.Equal(t, 55, specs["ping_probe"].TimeoutSeconds)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "overrides")
	assert.Contains(t, warnings[0], low)
}

func TestLoader_Load_MissingDirectoryIsWarning(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "ping.yaml", pingDefinition)

	specs, warnings := NewLoader().Load([]string{"/does/not/exist", dir})

	assert.Len(t, specs, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "/does/not/exist")
}

func TestLoader_Load_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "notes.txt", "not a tool")
	writeDefinition(t, dir, "ping.yaml", pingDefinition)

	specs, warnings := NewLoader().Load([]string{dir})

	assert.Len(t, specs, 1)
	assert.Empty(t, warnings)
}
