// Package validation holds the field rules shared by the services. Binding
// tags cover the HTTP surface; these rules also guard callers that bypass it.
package validation

import (
	"regexp"
	"unicode/utf8"
)

// Field limits, matching the column sizes in the migrations
const (
	NameMaxLength     = 100
	BannerIDMaxLength = 32
	PhoneMaxLength    = 32
	TitleMaxLength    = 200
)

// EmailPattern accepts the addresses the campus directory issues
var EmailPattern = `(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	Email *regexp.Regexp
}{
	Email: regexp.MustCompile(EmailPattern),
}

// StringValidation checks a single string value
type StringValidation struct {
	Value    string
	MinLen   int
	MaxLen   int
	Required bool
	Pattern  *regexp.Regexp
}

// NewStringValidation creates a required string validation
func NewStringValidation(value string) *StringValidation {
	return &StringValidation{
		Value:    value,
		Required: true,
	}
}

// WithMinLength sets minimum length in runes
func (v *StringValidation) WithMinLength(min int) *StringValidation {
	v.MinLen = min
	return v
}

// WithMaxLength sets maximum length in runes
func (v *StringValidation) WithMaxLength(max int) *StringValidation {
	v.MaxLen = max
	return v
}

// WithPattern sets regex pattern
func (v *StringValidation) WithPattern(pattern *regexp.Regexp) *StringValidation {
	v.Pattern = pattern
	return v
}

// WithRequired sets if field is required
func (v *StringValidation) WithRequired(required bool) *StringValidation {
	v.Required = required
	return v
}

// Validate reports the first rule the value breaks, or "" when it passes.
func (v *StringValidation) Validate() string {
	if v.Value == "" {
		if v.Required {
			return "is required"
		}
		return ""
	}

	n := utf8.RuneCountInString(v.Value)
	if v.MinLen > 0 && n < v.MinLen {
		return "is too short"
	}
	if v.MaxLen > 0 && n > v.MaxLen {
		return "is too long"
	}
	if v.Pattern != nil && !v.Pattern.MatchString(v.Value) {
		return "has an invalid format"
	}
	return ""
}

// IsEmail reports whether s looks like a deliverable address
func IsEmail(s string) bool {
	return CompiledPatterns.Email.MatchString(s)
}

// Name validates a person's first or last name
func Name(value string) *StringValidation {
	return NewStringValidation(value).WithMaxLength(NameMaxLength)
}

// Email validates an address; optional addresses may be empty
func Email(value string, required bool) *StringValidation {
	return NewStringValidation(value).WithPattern(CompiledPatterns.Email).WithRequired(required)
}
