package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateOffsetLimit(t *testing.T) {
	offset, limit := CalculateOffsetLimit(3, 20)
	assert.EqualValues(t, 40, offset)
	assert.Equal(t, 20, limit)

	offset, limit = CalculateOffsetLimit(0, 500)
	assert.EqualValues(t, 0, offset)
	assert.Equal(t, DefaultPageSize, limit)
}

func TestNewPaginationInfo(t *testing.T) {
	p := NewPaginationInfo(27, 2, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 2, p.CurrentPage)

	p = NewPaginationInfo(27, 9, 10)
	assert.Equal(t, 3, p.CurrentPage)

	p = NewPaginationInfo(0, 1, 10)
	assert.Equal(t, 1, p.TotalPages)
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2024-10-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseTime("2024-10-01T09:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 1, 7, 30, 0, 0, time.UTC), got)

	_, err = ParseTime("yesterday")
	assert.Error(t, err)

	none, err := ParseOptionalTime("")
	require.NoError(t, err)
	assert.Nil(t, none)
}
