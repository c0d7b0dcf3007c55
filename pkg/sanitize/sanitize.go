// Package sanitize strips markup and control characters from user supplied text
// before it reaches storage or outbound email.
package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer wraps a bluemonday policy that removes every tag.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New returns a Sanitizer using bluemonday's strict policy.
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Line cleans a single line field: markup and control characters are removed
// and runs of whitespace collapse to one space.
func (s *Sanitizer) Line(raw string) string {
	cleaned := s.strip(raw)
	return strings.Join(strings.Fields(cleaned), " ")
}

// Text cleans a multi-line field, keeping newlines and tabs.
func (s *Sanitizer) Text(raw string) string {
	cleaned := s.strip(strings.ReplaceAll(raw, "\r\n", "\n"))
	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Email cleans an address. Only surrounding whitespace is trimmed; anything
// inside is left for the validator to reject.
func (s *Sanitizer) Email(raw string) string {
	return strings.TrimSpace(s.strip(raw))
}

// maxDecodePasses bounds how many layers of entity encoding are peeled off.
const maxDecodePasses = 4

// strip removes markup, decoding entities between passes so encoded tags like
// "&lt;b&gt;" are stripped too.
func (s *Sanitizer) strip(raw string) string {
	if raw == "" {
		return ""
	}
	return removeControls(s.decodeStable(raw))
}

func (s *Sanitizer) decodeStable(raw string) string {
	current := raw
	for i := 0; i < maxDecodePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(current))
		if next == current {
			return next
		}
		current = next
	}
	// Still changing: keep the entities encoded rather than emit markup.
	return s.policy.Sanitize(current)
}

func removeControls(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, text)
}
