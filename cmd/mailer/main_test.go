package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportStartupError(t *testing.T) {
	var buf bytes.Buffer
	reportStartupError(&buf, errors.New("JWT secret is required"))
	assert.Equal(t, "mailer: failed to load configuration: JWT secret is required\n", buf.String())
}
