package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("ana.diaz@example.edu"))
	assert.True(t, IsEmail("New.Advisor@Example.EDU"))
	assert.False(t, IsEmail("not-an-email"))
	assert.False(t, IsEmail("a@b"))
	assert.False(t, IsEmail("Ana Diaz <ana@example.edu>"))
}

func TestStringValidation(t *testing.T) {
	tests := []struct {
		name string
		v    *StringValidation
		want string
	}{
		{"required empty", Name(""), "is required"},
		{"optional empty", Email("", false), ""},
		{"too long", Name(strings.Repeat("a", NameMaxLength+1)), "is too long"},
		{"multibyte within limit", Name(strings.Repeat("ü", NameMaxLength)), ""},
		{"too short", NewStringValidation("a").WithMinLength(2), "is too short"},
		{"bad format", Email("nope", true), "has an invalid format"},
		{"ok", Email("ana@example.edu", true), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Validate())
		})
	}
}
