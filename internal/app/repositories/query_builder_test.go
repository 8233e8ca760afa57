package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/models"
)

func TestBuildInterventionList_PendingForAdvisor(t *testing.T) {
	advisor := int64(7)
	sql, args, err := buildInterventionList(InterventionFilter{
		AdvisorID: &advisor,
		Statuses:  []models.InterventionStatus{models.StatusPending, models.StatusScheduled},
		Order:     OrderPriority,
	}, 0, 20)
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM interventions WHERE (advisor_id = $1 AND status IN ($2,$3))")
	assert.Contains(t, sql, "ORDER BY "+priorityRankSQL+" DESC, scheduled_at ASC NULLS LAST")
	assert.Contains(t, sql, "LIMIT 20")
	assert.Equal(t, []interface{}{int64(7), models.StatusPending, models.StatusScheduled}, args)
}

func TestBuildInterventionList_FollowUpsDue(t *testing.T) {
	advisor := int64(3)
	required := true
	due := time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC)
	sql, args, err := buildInterventionList(InterventionFilter{
		AdvisorID:        &advisor,
		Statuses:         []models.InterventionStatus{models.StatusCompleted},
		FollowUpRequired: &required,
		FollowUpDueBy:    &due,
		WithoutFollowUp:  true,
		Order:            OrderFollowUpDate,
	}, 0, 0)
	require.NoError(t, err)

	assert.Contains(t, sql, "follow_up_required = $3")
	assert.Contains(t, sql, "follow_up_date <= $4")
	assert.Contains(t, sql, "NOT EXISTS (SELECT 1 FROM interventions f WHERE f.follow_up_of = interventions.intervention_id)")
	assert.NotContains(t, sql, "LIMIT")
	assert.Len(t, args, 4)
}

func TestBuildInterventionList_UpcomingReminders(t *testing.T) {
	from := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	sql, args, err := buildInterventionList(InterventionFilter{
		Statuses:        []models.InterventionStatus{models.StatusScheduled},
		ScheduledFrom:   &from,
		ScheduledBefore: &to,
		ReminderDue:     true,
		Order:           OrderScheduled,
	}, 0, 50)
	require.NoError(t, err)

	assert.Contains(t, sql, "status IN ($1)")
	assert.Contains(t, sql, "scheduled_at >= $2")
	assert.Contains(t, sql, "scheduled_at < $3")
	assert.Contains(t, sql, "reminded_for IS DISTINCT FROM scheduled_at")
	assert.Equal(t, []interface{}{models.StatusScheduled, from, to}, args)
}

func TestBuildInterventionList_NoFilter(t *testing.T) {
	sql, args, err := buildInterventionList(InterventionFilter{}, 10, 5)
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE (1=1)")
	assert.Contains(t, sql, "ORDER BY created_at DESC, intervention_id DESC")
	assert.Contains(t, sql, "LIMIT 5 OFFSET 10")
	assert.Empty(t, args)
}

func TestBuildClaimBatch(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	sql, args, err := buildClaimBatch(10, now, 5*time.Minute)
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE email_queue SET status = $1, leased_until = $2")
	assert.Contains(t, sql, "WHERE email_id IN (SELECT email_id FROM email_queue WHERE (status = $3 OR (status = $4 AND leased_until < $5))")
	assert.Contains(t, sql, "LIMIT 10 FOR UPDATE SKIP LOCKED)")
	assert.Contains(t, sql, "RETURNING email_id, notification_id")
	require.Len(t, args, 5)
	assert.Equal(t, models.EmailSending, args[0])
	assert.Equal(t, now.Add(5*time.Minute), args[1])
	assert.Equal(t, models.EmailPending, args[2])
}

func TestStudentPredicate_Search(t *testing.T) {
	sql, args, err := studentPredicate(StudentFilter{Search: " smith ", EnrollmentStatus: models.EnrollmentActive}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "enrollment_status = ?")
	assert.Contains(t, sql, "first_name ILIKE ?")
	assert.Equal(t, models.EnrollmentActive, args[0])
	assert.Equal(t, "%smith%", args[1])
}

func TestAuditPredicate(t *testing.T) {
	actor := int64(9)
	sql, args, err := auditPredicate(AuditFilter{ActorID: &actor, EntityType: models.EntityIntervention}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(actor_id = ? AND entity_type = ?)", sql)
	assert.Equal(t, []interface{}{int64(9), models.EntityIntervention}, args)
}

func TestCompletionRate(t *testing.T) {
	s := &models.InterventionStats{
		Total: 10,
		ByStatus: map[models.InterventionStatus]int64{
			models.StatusPending:   2,
			models.StatusCompleted: 4,
			models.StatusCancelled: 4,
		},
	}
	assert.InDelta(t, 0.5, CompletionRate(s), 1e-9)
	assert.Zero(t, CompletionRate(&models.InterventionStats{ByStatus: map[models.InterventionStatus]int64{}}))
}

func TestSortEmailsForDelivery(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []*models.EmailMessage{
		{ID: 1, Priority: models.NotificationNormal, CreatedAt: t0},
		{ID: 2, Priority: models.NotificationUrgent, CreatedAt: t0.Add(time.Hour)},
		{ID: 3, Priority: models.NotificationNormal, CreatedAt: t0.Add(-time.Hour)},
		{ID: 4, Priority: models.NotificationHigh, CreatedAt: t0},
	}
	SortEmailsForDelivery(msgs)

	ids := []int64{}
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{2, 4, 3, 1}, ids)
}
