package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opspilot/toolgate/pkg/catalog"
)

func intPtr(v int64) *int64 { return &v }

func portCheckSpec() catalog.ToolSpec {
	return catalog.ToolSpec{
		Name:        "tcp_port_check",
		DisplayName: "TCP Port Check",
		Description: "Check a port.",
		Parameters: []catalog.Parameter{
			{Name: "host", Type: catalog.TypeString, Required: true, Pattern: `^[a-zA-Z0-9.\-]+$`},
			{Name: "port", Type: catalog.TypeInteger, Required: true, MinValue: intPtr(1), MaxValue: intPtr(65535)},
			{Name: "mode", Type: catalog.TypeEnum, EnumValues: []string{"quick", "full"}, Default: "quick"},
			{Name: "verbose", Type: catalog.TypeBoolean, Default: false},
		},
	}
}

func TestValidate_Success(t *testing.T) {
	validated, err := Validate(portCheckSpec(), map[string]interface{}{
		"host": "127.0.0.1",
		"port": float64(443), // as decoded from JSON
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", validated["host"])
	assert.Equal(t, int64(443), validated["port"], "JSON numbers coerce to int64")
	assert.Equal(t, "quick", validated["mode"], "defaults are filled in")
	assert.Equal(t, false, validated["verbose"])
}

func TestValidate_MissingRequired(t *testing.T) {
	_, err := Validate(portCheckSpec(), map[string]interface{}{"host": "127.0.0.1"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "port")
}

func TestValidate_NilParams(t *testing.T) {
	spec := catalog.ToolSpec{
		Name:        "noop",
		DisplayName: "Noop",
		Description: "No parameters.",
	}
	validated, err := Validate(spec, nil)
	require.NoError(t, err)
	assert.Empty(t, validated)
}

func TestValidate_TypeMismatch(t *testing.T) {
	_, err := Validate(portCheckSpec(), map[string]interface{}{
		"host": "127.0.0.1",
		"port": "not-a-number",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidate_PatternMismatch(t *testing.T) {
	_, err := Validate(portCheckSpec(), map[string]interface{}{
		"host": "bad host!",
		"port": float64(80),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidate_IntegerRange(t *testing.T) {
	tests := []struct {
		name string
		port float64
		ok   bool
	}{
		{"below minimum", 0, false},
		{"at minimum", 1, true},
		{"at maximum", 65535, true},
		{"above maximum", 70000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(portCheckSpec(), map[string]interface{}{
				"host": "127.0.0.1",
				"port": tt.port,
			})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_EnumValue(t *testing.T) {
	_, err := Validate(portCheckSpec(), map[string]interface{}{
		"host": "127.0.0.1",
		"port": float64(80),
		"mode": "slow",
	})
	assert.Error(t, err)

	_, err = Validate(portCheckSpec(), map[string]interface{}{
		"host": "127.0.0.1",
		"port": float64(80),
		"mode": "full",
	})
	assert.NoError(t, err)
}

func TestValidate_UnknownKeysPassThrough(t *testing.T) {
	validated, err := Validate(portCheckSpec(), map[string]interface{}{
		"host":     "127.0.0.1",
		"port":     float64(80),
		"username": "svc_probe", // injected by enrichment, not declared
	})
	require.NoError(t, err)
	assert.Equal(t, "svc_probe", validated["username"])
}
