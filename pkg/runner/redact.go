package runner

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

const redactedPlaceholder = "[REDACTED]"

// redactor scrubs secrets from output and error messages before they
// leave the runner. Built per execution from the tool's declared
// patterns plus the literal values of any injected credentials.
type redactor struct {
	patterns []*regexp.Regexp
	literals []string
}

func newRedactor(patterns []string, secretValues []string) *redactor {
	r := &redactor{literals: secretValues}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			// Spec validation rejects bad patterns at load time; a bad
			// pattern here means a built-in registered with one.
			log.Warn().Str("pattern", p).Err(err).Msg("Skipping invalid redact pattern")
			continue
		}
		r.patterns = append(r.patterns, re)
	}
	return r
}

// scrubString returns the redacted string and whether anything changed.
func (r *redactor) scrubString(s string) (string, bool) {
	changed := false
	for _, lit := range r.literals {
		if lit == "" {
			continue
		}
		next := replaceAllLiteral(s, lit)
		if next != s {
			changed = true
			s = next
		}
	}
	for _, re := range r.patterns {
		next := re.ReplaceAllString(s, redactedPlaceholder)
		if next != s {
			changed = true
			s = next
		}
	}
	return s, changed
}

// scrub redacts arbitrary output. Structured values are scrubbed via
// their JSON rendering and replaced with the scrubbed structure when a
// secret was found, so no secret can hide inside a nested field.
func (r *redactor) scrub(output interface{}) (interface{}, bool) {
	switch v := output.(type) {
	case nil:
		return nil, false
	case string:
		return r.scrubStringValue(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			s, changed := r.scrubString(toString(v))
			return s, changed
		}
		scrubbed, changed := r.scrubString(string(raw))
		if !changed {
			return output, false
		}
		var back interface{}
		if err := json.Unmarshal([]byte(scrubbed), &back); err != nil {
			return scrubbed, true
		}
		return back, true
	}
}

func (r *redactor) scrubStringValue(s string) (interface{}, bool) {
	out, changed := r.scrubString(s)
	return out, changed
}

func replaceAllLiteral(s, lit string) string {
	return strings.ReplaceAll(s, lit, redactedPlaceholder)
}

func toString(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
