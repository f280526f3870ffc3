package catalog

import (
	"context"
	"fmt"
	"math"
	"regexp"
)

// Platform identifies which operating systems a tool targets.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformCross   Platform = "cross-platform"
)

// Source determines which execution backend handles a tool.
type Source string

const (
	// SourceLocal tools run in-process or as a local subprocess.
	SourceLocal Source = "local"
	// SourcePipeline tools are delegated to the remote execution service.
	SourcePipeline Source = "pipeline"
)

// Parameter types. Unknown type tags are rejected at load time.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeEnum    = "enum"
)

// Handler is the function signature for built-in tool execution.
// It returns the tool output and an exit code (0 for success).
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, int, error)

// Parameter declares one input of a tool. The Type field discriminates
// which constraint fields apply: Pattern for strings, MinValue/MaxValue
// for integers, EnumValues for enums.
type Parameter struct {
	Name        string      `json:"name" yaml:"name"`
	Type        string      `json:"type" yaml:"type"`
	Description string      `json:"description,omitempty" yaml:"description"`
	Required    bool        `json:"required" yaml:"required"`
	Default     interface{} `json:"default,omitempty" yaml:"default"`
	Pattern     string      `json:"pattern,omitempty" yaml:"pattern"`
	MinValue    *int64      `json:"min_value,omitempty" yaml:"min_value"`
	MaxValue    *int64      `json:"max_value,omitempty" yaml:"max_value"`
	EnumValues  []string    `json:"enum_values,omitempty" yaml:"enum_values"`
	Secret      bool        `json:"secret" yaml:"secret"`
}

// Validate checks the parameter declaration itself, rejecting unknown
// type tags and constraint fields that do not match the declared type.
func (p Parameter) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}

	switch p.Type {
	case TypeString:
		var re *regexp.Regexp
		if p.Pattern != "" {
			var err error
			re, err = regexp.Compile(p.Pattern)
			if err != nil {
				return fmt.Errorf("parameter %s: invalid pattern: %w", p.Name, err)
			}
		}
		if p.Default != nil {
			def, ok := p.Default.(string)
			if !ok {
				return fmt.Errorf("parameter %s: default %v is not a string", p.Name, p.Default)
			}
			if re != nil && !re.MatchString(def) {
				return fmt.Errorf("parameter %s: default %q does not match pattern", p.Name, def)
			}
		}
	case TypeInteger:
		if p.MinValue != nil && p.MaxValue != nil && *p.MinValue > *p.MaxValue {
			return fmt.Errorf("parameter %s: min_value exceeds max_value", p.Name)
		}
		if p.Default != nil {
			def, ok := integerValue(p.Default)
			if !ok {
				return fmt.Errorf("parameter %s: default %v is not an integer", p.Name, p.Default)
			}
			if p.MinValue != nil && def < *p.MinValue {
				return fmt.Errorf("parameter %s: default %d below min_value", p.Name, def)
			}
			if p.MaxValue != nil && def > *p.MaxValue {
				return fmt.Errorf("parameter %s: default %d above max_value", p.Name, def)
			}
		}
	case TypeBoolean:
		if p.Default != nil {
			if _, ok := p.Default.(bool); !ok {
				return fmt.Errorf("parameter %s: default %v is not a boolean", p.Name, p.Default)
			}
		}
	case TypeEnum:
		if len(p.EnumValues) == 0 {
			return fmt.Errorf("parameter %s: enum type requires enum_values", p.Name)
		}
		if p.Default != nil {
			def, ok := p.Default.(string)
			if !ok || !contains(p.EnumValues, def) {
				return fmt.Errorf("parameter %s: default %v not in enum_values", p.Name, p.Default)
			}
		}
	default:
		return fmt.Errorf("parameter %s: unknown type %q", p.Name, p.Type)
	}

	if p.Required && p.Default != nil {
		return fmt.Errorf("parameter %s: required parameter cannot declare a default", p.Name)
	}

	return nil
}

// ToolSpec is the immutable description of one invocable tool. Specs are
// built once (from code or from a catalog file) and never mutated; a
// reload replaces the whole spec by name.
type ToolSpec struct {
	Name           string      `json:"name" yaml:"name"`
	DisplayName    string      `json:"display_name" yaml:"display_name"`
	Description    string      `json:"description" yaml:"description"`
	Category       string      `json:"category,omitempty" yaml:"category"`
	Platform       Platform    `json:"platform,omitempty" yaml:"platform"`
	Version        string      `json:"version,omitempty" yaml:"version"`
	Source         Source      `json:"source" yaml:"source"`
	Parameters     []Parameter `json:"parameters,omitempty" yaml:"parameters"`
	TimeoutSeconds int         `json:"timeout_seconds" yaml:"timeout_seconds"`
	RequiresAdmin  bool        `json:"requires_admin" yaml:"requires_admin"`
	MaxOutputBytes int         `json:"max_output_bytes" yaml:"max_output_bytes"`
	RedactPatterns []string    `json:"redact_patterns,omitempty" yaml:"redact_patterns"`
	Tags           []string    `json:"tags,omitempty" yaml:"tags"`
	AssetAware     bool        `json:"asset_aware" yaml:"asset_aware"`

	// Command is the argv template for catalog-defined local tools.
	// Placeholders of the form {{param}} are substituted with validated
	// parameter values before execution. Built-ins use Handler instead.
	Command []string `json:"command,omitempty" yaml:"command"`

	// Handler is set only for built-in tools defined in code.
	Handler Handler `json:"-" yaml:"-"`

	// Origin records where the spec came from (a file path or "builtin")
	// for override diagnostics.
	Origin string `json:"-" yaml:"-"`
}

const (
	// DefaultTimeoutSeconds applies when a spec declares no timeout.
	DefaultTimeoutSeconds = 30
	// DefaultMaxOutputBytes applies when a spec declares no output cap.
	DefaultMaxOutputBytes = 64 * 1024
)

// Normalize fills defaulted fields in place. Called once at load time.
func (s *ToolSpec) Normalize() {
	if s.Platform == "" {
		s.Platform = PlatformCross
	}
	if s.Source == "" {
		s.Source = SourceLocal
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if s.MaxOutputBytes <= 0 {
		s.MaxOutputBytes = DefaultMaxOutputBytes
	}
}

// Validate checks the spec and all of its parameter declarations.
func (s *ToolSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if s.DisplayName == "" {
		return fmt.Errorf("tool %s: display_name cannot be empty", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("tool %s: description cannot be empty", s.Name)
	}

	switch s.Source {
	case SourceLocal, SourcePipeline:
	default:
		return fmt.Errorf("tool %s: unknown source %q", s.Name, s.Source)
	}

	switch s.Platform {
	case PlatformWindows, PlatformLinux, PlatformCross:
	default:
		return fmt.Errorf("tool %s: unknown platform %q", s.Name, s.Platform)
	}

	seen := make(map[string]bool, len(s.Parameters))
	for _, p := range s.Parameters {
		if seen[p.Name] {
			return fmt.Errorf("tool %s: duplicate parameter %s", s.Name, p.Name)
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			return fmt.Errorf("tool %s: %w", s.Name, err)
		}
	}

	for _, pat := range s.RedactPatterns {
		if _, err := regexp.Compile(pat); err != nil {
			return fmt.Errorf("tool %s: invalid redact pattern %q: %w", s.Name, pat, err)
		}
	}

	return nil
}

// Param returns the declared parameter with the given name.
func (s *ToolSpec) Param(name string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// HasHostParam reports whether the tool declares a host parameter,
// which makes it a candidate for asset intelligence enrichment.
func (s *ToolSpec) HasHostParam() bool {
	_, ok := s.Param("host")
	return ok
}

// integerValue accepts the integer encodings YAML and JSON decoders
// produce for a declared default.
func integerValue(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
