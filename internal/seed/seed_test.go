package seed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/repositories/memory"
)

func TestAcademicYearTerms(t *testing.T) {
	terms := AcademicYearTerms(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))
	require.Len(t, terms, 3)
	assert.Equal(t, "2024F", terms[0].ID)
	assert.Equal(t, "2025S", terms[1].ID)
	assert.Equal(t, "2025U", terms[2].ID)

	assert.Equal(t, "2025F", AcademicYearTerms(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))[0].ID)
}

func TestCreateDefaultData_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, CreateDefaultData(ctx, store, now, zerolog.Nop()))
	require.NoError(t, CreateDefaultData(ctx, store, now, zerolog.Nop()))

	types, err := store.Repos().InterventionTypes.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, types, len(DefaultInterventionTypes))

	terms, err := store.Repos().Terms.List(ctx)
	require.NoError(t, err)
	assert.Len(t, terms, 3)

	admin, err := store.Repos().Users.GetByEmail(ctx, AdminEmail)
	require.NoError(t, err)
	assert.True(t, admin.IsActive)
}
