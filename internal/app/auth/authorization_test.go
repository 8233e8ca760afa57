package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories/memory"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

func TestCapabilityTable(t *testing.T) {
	cases := []struct {
		role models.RoleType
		cap  Capability
		want bool
	}{
		{models.RoleSystem, CapRecordAssessment, true},
		{models.RoleAdmin, CapRecordAssessment, true},
		{models.RoleAdvisor, CapRecordAssessment, false},
		{models.RoleStudent, CapRecordAssessment, false},
		{models.RoleAdvisor, CapManageInterventions, true},
		{models.RoleSystem, CapManageInterventions, false},
		{models.RoleStudent, CapRequestIntervention, true},
		{models.RoleAdvisor, CapRequestIntervention, false},
		{models.RoleStudent, CapNotify, false},
		{models.RoleSystem, CapNotify, true},
		{models.RoleAdvisor, CapReadAudit, false},
		{models.RoleAdmin, CapReadAudit, true},
		{models.RoleAdvisor, CapManageStudents, false},
		{models.RoleType("guest"), CapReadOwnNotifications, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Allows(tc.role, tc.cap), "%s/%s", tc.role, tc.cap)
	}
}

func TestRequire_OwnScopeIsNotEnough(t *testing.T) {
	authz := NewAuthorizationService(memory.New().Repos().Students)
	student := Actor{UserID: 5, Role: models.RoleStudent}

	assert.NoError(t, authz.RequireAny(student, CapReadInterventions))
	err := authz.Require(student, CapReadInterventions)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestRequireForStudent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repos := store.Repos()

	userID, err := repos.Users.Create(ctx, &models.User{Email: "ana@example.edu", Role: models.RoleStudent, IsActive: true})
	require.NoError(t, err)
	own, err := repos.Students.Create(ctx, &models.Student{BannerID: "B1", FirstName: "Ana", LastName: "Diaz", UserID: &userID})
	require.NoError(t, err)
	other, err := repos.Students.Create(ctx, &models.Student{BannerID: "B2", FirstName: "Bo", LastName: "Eng"})
	require.NoError(t, err)

	authz := NewAuthorizationService(repos.Students)
	student := Actor{UserID: userID, Role: models.RoleStudent}

	assert.NoError(t, authz.RequireForStudent(ctx, student, CapReadAssessments, own))
	assert.ErrorIs(t, authz.RequireForStudent(ctx, student, CapReadAssessments, other), apperrors.ErrPermissionDenied)

	advisor := Actor{UserID: 99, Role: models.RoleAdvisor}
	assert.NoError(t, authz.RequireForStudent(ctx, advisor, CapReadAssessments, other))

	unlinked := Actor{UserID: 1234, Role: models.RoleStudent}
	assert.ErrorIs(t, authz.RequireForStudent(ctx, unlinked, CapReadAssessments, own), apperrors.ErrPermissionDenied)
}

func TestActorAuditID(t *testing.T) {
	assert.Nil(t, System().AuditID())
	assert.True(t, System().IsSystem())
	id := Actor{UserID: 7, Role: models.RoleAdvisor}.AuditID()
	require.NotNil(t, id)
	assert.Equal(t, int64(7), *id)
}
