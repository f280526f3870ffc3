package logger

import (
	"io"
	"regexp"
)

// Redactor scrubs credential material from the log stream. This is the
// last line of defense: the runner already redacts tool output, but a
// stray debug line must not leak a password either.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a redactor with default patterns covering the
// credential shapes this gateway handles.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Passwords in key=value or JSON form
			regexp.MustCompile(`(?i)password["\s:=]+[^\s",}]+`),
			regexp.MustCompile(`(?i)passwd["\s:=]+[^\s",}]+`),

			// Bearer tokens and API keys
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
			regexp.MustCompile(`(?i)api[_-]?key["\s:=]+[a-zA-Z0-9._-]{8,}`),

			// WinRM/SSH connection strings with embedded credentials
			regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^:/\s]+:[^@\s]+@`),

			// Generic secrets and tokens
			regexp.MustCompile(`(?i)secret["\s:=]+[^\s",}]+`),
			regexp.MustCompile(`(?i)token["\s:=]+[a-zA-Z0-9._-]{16,}`),
		},
	}
}

// AddPattern adds a custom redaction pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact scrubs sensitive material from a string.
func (r *Redactor) Redact(s string) string {
	result := s
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// Wrap returns a writer that redacts everything passing through it.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

func (w *redactingWriter) Write(p []byte) (n int, err error) {
	redacted := w.redactor.Redact(string(p))
	return w.writer.Write([]byte(redacted))
}
