package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

func TestNotify_CreatesQueuesAndPublishes(t *testing.T) {
	f := newFixture(t)

	id, err := f.notifications.Notify(f.ctx, f.advisor, NotifyRequest{
		UserID:  f.studentActor.UserID,
		Type:    models.NotifyAnnouncement,
		Title:   "Registration opens Monday",
		Message: "Meet me before you register.",
		Email:   true,
	})
	require.NoError(t, err)

	inbox := f.inbox(f.studentActor.UserID)
	require.Len(t, inbox, 1)
	assert.Equal(t, id, inbox[0].ID)
	assert.Equal(t, models.NotificationNormal, inbox[0].Priority)
	assert.Equal(t, 1, f.pub.count())
	assert.EqualValues(t, 1, f.emailCount())

	entries := f.auditFor(models.EntityNotification, id)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionNotificationSent, entries[0].Action)
	assert.Equal(t, &f.advisor.UserID, entries[0].ActorID)
}

func TestNotify_NothingPublishedOnRollback(t *testing.T) {
	f := newFixture(t)

	f.store.FailOn("audit.append", errors.New("disk full"))
	_, err := f.notifications.Notify(f.ctx, f.advisor, NotifyRequest{
		UserID: f.studentActor.UserID, Type: models.NotifyAnnouncement, Title: "Hi", Email: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.Empty(t, f.inbox(f.studentActor.UserID))
	assert.Zero(t, f.pub.count())
	assert.Zero(t, f.emailCount())
}

func TestNotify_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.notifications.Notify(f.ctx, f.advisor, NotifyRequest{UserID: f.studentActor.UserID, Type: "x"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.notifications.Notify(f.ctx, f.advisor, NotifyRequest{UserID: f.studentActor.UserID, Type: "x", Title: "t", Priority: "Loud"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.notifications.Notify(f.ctx, f.advisor, NotifyRequest{UserID: 999, Type: "x", Title: "t"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.notifications.Notify(f.ctx, f.studentActor, NotifyRequest{UserID: f.advisor.UserID, Type: "x", Title: "t"})
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}

func TestBroadcast_IsAllOrNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.notifications.Broadcast(f.ctx, auth.System(), []int64{f.studentActor.UserID, 999}, NotifyRequest{Type: "x", Title: "t"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.inbox(f.studentActor.UserID))

	ids, err := f.notifications.Broadcast(f.ctx, auth.System(), []int64{f.studentActor.UserID, f.advisor.UserID}, NotifyRequest{Type: "x", Title: "t"})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Len(t, f.inbox(f.advisor.UserID), 1)
	assert.Zero(t, f.emailCount(), "email was not requested")

	entries := f.auditFor(models.EntityNotification, ids[0])
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorID)
}

func TestNotify_EmailDisabled(t *testing.T) {
	f := newFixture(t)
	authz := auth.NewAuthorizationService(f.store.Repos().Students)
	quiet := NewNotificationService(f.store, authz, f.audit, nil, false, zerolog.Nop())

	_, err := quiet.Notify(f.ctx, f.advisor, NotifyRequest{UserID: f.studentActor.UserID, Type: "x", Title: "t", Email: true})
	require.NoError(t, err)
	assert.Zero(t, f.emailCount())
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	id, err := f.notifications.Notify(f.ctx, f.advisor, NotifyRequest{UserID: f.studentActor.UserID, Type: "x", Title: "t"})
	require.NoError(t, err)

	err = f.notifications.MarkRead(f.ctx, f.advisor, id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "other users' notifications are invisible")

	require.NoError(t, f.notifications.MarkRead(f.ctx, f.studentActor, id))
	require.NoError(t, f.notifications.MarkRead(f.ctx, f.studentActor, id))
	assert.Empty(t, f.inbox(f.studentActor.UserID))

	entries := f.auditFor(models.EntityNotification, id)
	require.Len(t, entries, 2, "sent + one read")
	assert.Equal(t, models.ActionNotificationRead, entries[1].Action)

	n, err := f.store.Repos().Notifications.GetByID(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	require.NotNil(t, n.ReadAt)
	assert.Equal(t, f.now, *n.ReadAt)
}

func TestMarkAllRead(t *testing.T) {
	f := newFixture(t)
	_, err := f.notifications.Broadcast(f.ctx, f.advisor, []int64{f.studentActor.UserID, f.studentActor.UserID, f.advisor.UserID}, NotifyRequest{Type: "x", Title: "t"})
	require.NoError(t, err)

	count, err := f.notifications.MarkAllRead(f.ctx, f.studentActor)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	assert.Empty(t, f.inbox(f.studentActor.UserID))
	assert.Len(t, f.inbox(f.advisor.UserID), 1)

	count, err = f.notifications.MarkAllRead(f.ctx, f.studentActor)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, f.auditFor(models.EntityUser, f.studentActor.UserID), 1)
}

func TestUnreadFor(t *testing.T) {
	f := newFixture(t)
	_, err := f.notifications.Notify(f.ctx, f.advisor, NotifyRequest{UserID: f.studentActor.UserID, Type: "x", Title: "t"})
	require.NoError(t, err)

	items, err := f.notifications.UnreadFor(f.ctx, f.studentActor, f.studentActor.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = f.notifications.UnreadFor(f.ctx, f.studentActor, f.advisor.UserID, 0)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	items, err = f.notifications.UnreadFor(f.ctx, f.admin, f.studentActor.UserID, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestEnqueue_SameKeyKeepsOneMessage(t *testing.T) {
	f := newFixture(t)

	first := f.enqueue("ana@example.edu", models.NotificationHigh)
	second := f.enqueue("ana@example.edu", models.NotificationHigh)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, f.emailCount())
}

func TestNotifyTx_EmailKeyDeduplicates(t *testing.T) {
	f := newFixture(t)
	req := NotifyRequest{
		UserID: f.studentActor.UserID, Type: models.NotifyAnnouncement, Title: "Advising week",
		Email: true, EmailKey: "announcement:advising-week",
	}

	for i := 0; i < 2; i++ {
		err := f.store.WithTx(f.ctx, func(ctx context.Context, r *repositories.Repositories) error {
			_, err := f.notifications.NotifyTx(ctx, r, nil, req)
			return err
		})
		require.NoError(t, err)
	}
	assert.Len(t, f.inbox(f.studentActor.UserID), 2)
	assert.EqualValues(t, 1, f.emailCount())

	// the same event still reaches a second recipient
	err := f.store.WithTx(f.ctx, func(ctx context.Context, r *repositories.Repositories) error {
		other := req
		other.UserID = f.advisor.UserID
		_, err := f.notifications.NotifyTx(ctx, r, nil, other)
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.emailCount())

	// without a key each notification gets its own message
	_, err = f.notifications.Notify(f.ctx, f.advisor, NotifyRequest{
		UserID: f.studentActor.UserID, Type: models.NotifyAnnouncement, Title: "Reminder", Email: true,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.emailCount())
}
