package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

func TestStudentService_CreateAndDeactivate(t *testing.T) {
	f := newFixture(t)
	advisorID := f.advisor.UserID

	id, err := f.students.Create(f.ctx, f.admin, CreateStudentRequest{
		BannerID:         " B00000099 ",
		FirstName:        "Cleo",
		LastName:         "Park",
		Email:            "cleo@example.edu",
		FirstGeneration:  true,
		PrimaryAdvisorID: &advisorID,
	})
	require.NoError(t, err)

	s, err := f.students.Get(f.ctx, f.advisor, id)
	require.NoError(t, err)
	assert.Equal(t, "B00000099", s.BannerID)
	assert.Equal(t, models.EnrollmentActive, s.EnrollmentStatus)

	require.NoError(t, f.students.SetEnrollmentStatus(f.ctx, f.admin, id, models.EnrollmentWithdrawn))
	require.NoError(t, f.students.SetEnrollmentStatus(f.ctx, f.admin, id, models.EnrollmentWithdrawn))

	s, err = f.students.Get(f.ctx, f.admin, id)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentWithdrawn, s.EnrollmentStatus)

	entries := f.auditFor(models.EntityStudent, id)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionStudentCreated, entries[0].Action)
	assert.Equal(t, models.ActionStudentStatusChanged, entries[1].Action)
}

func TestStudentService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	studentUser := f.studentActor.UserID
	missing := int64(999)

	cases := map[string]CreateStudentRequest{
		"no banner id":        {FirstName: "A", LastName: "B"},
		"bad email":           {BannerID: "X1", FirstName: "A", LastName: "B", Email: "not-an-email"},
		"advisor not advisor": {BannerID: "X1", FirstName: "A", LastName: "B", PrimaryAdvisorID: &studentUser},
		"unknown advisor":     {BannerID: "X1", FirstName: "A", LastName: "B", PrimaryAdvisorID: &missing},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.students.Create(f.ctx, f.admin, req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	_, err := f.students.Create(f.ctx, f.admin, CreateStudentRequest{BannerID: "B00000042", FirstName: "A", LastName: "B"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.students.Create(f.ctx, f.advisor, CreateStudentRequest{BannerID: "X2", FirstName: "A", LastName: "B"})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestStudentService_List(t *testing.T) {
	f := newFixture(t)

	items, total, err := f.students.List(f.ctx, f.advisor, repositories.StudentFilter{Search: "diaz"}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, f.studentID, items[0].ID)

	_, _, err = f.students.List(f.ctx, f.studentActor, repositories.StudentFilter{}, 1, 20)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, _, err = f.students.List(f.ctx, f.advisor, repositories.StudentFilter{EnrollmentStatus: "Expelled"}, 1, 20)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestStudentService_Terms(t *testing.T) {
	f := newFixture(t)

	err := f.students.UpsertTerm(f.ctx, f.admin, models.Term{
		ID: "2025S", Name: "Spring 2025",
		StartDate: time.Date(2025, 1, 13, 15, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	terms, err := f.students.ListTerms(f.ctx, f.studentActor)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "2025S", terms[0].ID)
	assert.Equal(t, time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), terms[0].StartDate)

	err = f.students.UpsertTerm(f.ctx, f.admin, models.Term{ID: "bad", Name: "Backwards", StartDate: f.now, EndDate: f.now.AddDate(0, -1, 0)})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUserService(t *testing.T) {
	f := newFixture(t)

	id, err := f.users.Create(f.ctx, f.admin, CreateUserRequest{Email: " New.Advisor@Example.edu", FirstName: "Ned", LastName: "Vo", Role: models.RoleAdvisor})
	require.NoError(t, err)

	u, err := f.users.GetByID(f.ctx, auth.Actor{UserID: id, Role: models.RoleAdvisor}, id)
	require.NoError(t, err)
	assert.Equal(t, "new.advisor@example.edu", u.Email)
	assert.True(t, u.IsActive)

	_, err = f.users.GetByID(f.ctx, f.advisor, id)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.users.Create(f.ctx, f.admin, CreateUserRequest{Email: "new.advisor@example.edu", FirstName: "N", LastName: "V", Role: models.RoleAdvisor})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	_, err = f.users.Create(f.ctx, f.admin, CreateUserRequest{Email: "bot@example.edu", FirstName: "N", LastName: "V", Role: models.RoleSystem})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	entries := f.auditFor(models.EntityUser, id)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionUserCreated, entries[0].Action)
}
