package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

func scoresOf(overall float64) models.RiskScores {
	return models.RiskScores{Overall: overall, Academic: 0.9, Engagement: 0.7, Financial: 0.6, Wellness: 0.5}
}

func (f *fixture) record(overall float64) int64 {
	f.t.Helper()
	id, err := f.ledger.RecordAssessment(f.ctx, auth.System(), RecordAssessmentRequest{
		StudentID:    f.studentID,
		TermID:       "2024F",
		Scores:       scoresOf(overall),
		ModelVersion: "v2.1",
	})
	require.NoError(f.t, err)
	return id
}

func TestRecordAssessment_SupersedesCurrent(t *testing.T) {
	f := newFixture(t)

	first := f.record(0.82)
	current, err := f.ledger.GetCurrentForTerm(f.ctx, f.advisor, f.studentID, "2024F")
	require.NoError(t, err)
	assert.Equal(t, first, current.ID)
	assert.Equal(t, models.RiskCritical, current.Category)
	assert.True(t, current.IsCurrent)
	assert.Equal(t, f.now, current.CalculatedAt)

	second := f.record(0.41)
	current, err = f.ledger.GetCurrent(f.ctx, f.advisor, f.studentID)
	require.NoError(t, err)
	assert.Equal(t, second, current.ID)
	assert.Equal(t, models.RiskMedium, current.Category)

	n, err := f.store.Repos().Assessments.CountCurrent(f.ctx, f.studentID, "2024F")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	history, total, err := f.ledger.GetHistory(f.ctx, f.advisor, f.studentID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, history, 2)
	assert.Equal(t, second, history[0].ID)
	assert.False(t, history[1].IsCurrent)
}

func TestRecordAssessment_AuditsOncePerRecord(t *testing.T) {
	f := newFixture(t)

	first := f.record(0.2)
	second := f.record(0.3)

	entries := f.auditFor(models.EntityRiskAssessment, first)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionRiskAssessmentRecorded, entries[0].Action)
	assert.Nil(t, entries[0].ActorID)
	assert.Empty(t, entries[0].Before)

	entries = f.auditFor(models.EntityRiskAssessment, second)
	require.Len(t, entries, 1)
	assert.Contains(t, string(entries[0].Before), `"isCurrent":false`)
	assert.Contains(t, string(entries[0].After), `"category":"Medium"`)
}

func TestRecordAssessment_EscalatesOnlyOnEnteringHigherCategory(t *testing.T) {
	f := newFixture(t)

	f.record(0.2)
	assert.Empty(t, f.inbox(f.advisor.UserID))

	f.record(0.55)
	alerts := f.inbox(f.advisor.UserID)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.NotifyHighRiskAlert, alerts[0].Type)
	assert.Equal(t, models.NotificationHigh, alerts[0].Priority)

	f.record(0.6)
	assert.Len(t, f.inbox(f.advisor.UserID), 1, "High to High is not an escalation")

	f.record(0.9)
	alerts = f.inbox(f.advisor.UserID)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.NotificationUrgent, alerts[0].Priority)

	assert.EqualValues(t, 2, f.emailCount())
	assert.Equal(t, 2, f.pub.count())
}

func TestRecordAssessment_Validation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]RecordAssessmentRequest{
		"score above one":  {StudentID: f.studentID, TermID: "2024F", ModelVersion: "v1", Scores: scoresOf(1.2)},
		"negative score":   {StudentID: f.studentID, TermID: "2024F", ModelVersion: "v1", Scores: models.RiskScores{Overall: 0.5, Wellness: -0.1}},
		"missing version":  {StudentID: f.studentID, TermID: "2024F", Scores: scoresOf(0.5)},
		"unknown term":     {StudentID: f.studentID, TermID: "2031S", ModelVersion: "v1", Scores: scoresOf(0.5)},
		"unknown student":  {StudentID: 999, TermID: "2024F", ModelVersion: "v1", Scores: scoresOf(0.5)},
		"confidence range": {StudentID: f.studentID, TermID: "2024F", ModelVersion: "v1", Scores: scoresOf(0.5), Confidence: ptr(3.0)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ledger.RecordAssessment(f.ctx, auth.System(), req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	_, total, err := f.store.Repos().Assessments.ListByStudent(f.ctx, f.studentID, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRecordAssessment_RequiresCapability(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.RecordAssessment(f.ctx, f.advisor, RecordAssessmentRequest{
		StudentID: f.studentID, TermID: "2024F", ModelVersion: "v1", Scores: scoresOf(0.5),
	})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestRecordAssessment_RollsBackOnStorageFailure(t *testing.T) {
	f := newFixture(t)
	first := f.record(0.2)

	f.store.FailOn("audit.append", errors.New("disk full"))
	_, err := f.ledger.RecordAssessment(f.ctx, auth.System(), RecordAssessmentRequest{
		StudentID: f.studentID, TermID: "2024F", ModelVersion: "v1", Scores: scoresOf(0.95),
	})
	assert.ErrorIs(t, err, apperrors.ErrStorage)

	current, err := f.store.Repos().Assessments.GetCurrentForTerm(f.ctx, f.studentID, "2024F")
	require.NoError(t, err)
	assert.Equal(t, first, current.ID, "previous assessment stays current")
	assert.Empty(t, f.inbox(f.advisor.UserID))
	assert.Zero(t, f.pub.count())
	assert.Zero(t, f.emailCount())
}

func TestRecordAssessment_ConcurrentWritersLeaveOneCurrent(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.ledger.RecordAssessment(f.ctx, auth.System(), RecordAssessmentRequest{
				StudentID: f.studentID, TermID: "2024F", ModelVersion: "v1", Scores: scoresOf(float64(i) / 20),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	n, err := f.store.Repos().Assessments.CountCurrent(f.ctx, f.studentID, "2024F")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, total, err := f.store.Repos().Assessments.ListByStudent(f.ctx, f.studentID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 20, total)
}

func TestGetCurrent_StudentSeesOnlyOwnRecords(t *testing.T) {
	f := newFixture(t)
	f.record(0.4)

	got, err := f.ledger.GetCurrent(f.ctx, f.studentActor, f.studentID)
	require.NoError(t, err)
	assert.Equal(t, f.studentID, got.StudentID)

	_, err = f.ledger.GetCurrent(f.ctx, f.studentActor, f.otherStudentID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, err = f.ledger.GetCurrent(f.ctx, f.advisor, f.otherStudentID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
