package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/pkg/email"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
}

func (s *fakeSender) Send(_ context.Context, msg *email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[msg.To] {
		return errors.New("550 mailbox unavailable")
	}
	s.sent = append(s.sent, msg.To)
	return nil
}

func (f *fixture) enqueue(to string, priority models.NotificationPriority) int64 {
	f.t.Helper()
	id, err := f.store.Repos().Emails.Enqueue(f.ctx, &models.EmailMessage{
		DedupKey:  to + string(priority),
		ToEmail:   to,
		Subject:   "Subject",
		BodyText:  "Body",
		Priority:  priority,
		CreatedAt: f.now,
	})
	require.NoError(f.t, err)
	return id
}

func newOutbox(f *fixture, sender email.Sender, cfg OutboxConfig) *emailOutboxServiceImpl {
	svc := NewEmailOutboxService(f.store, sender, cfg, zerolog.Nop()).(*emailOutboxServiceImpl)
	svc.now = func() time.Time { return f.now }
	return svc
}

func TestProcessBatch_SendsAndRetries(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{failFor: map[string]bool{"bounce@example.edu": true}}
	outbox := newOutbox(f, sender, OutboxConfig{BatchSize: 10, MaxAttempts: 2})

	ok := f.enqueue("ana@example.edu", models.NotificationNormal)
	bad := f.enqueue("bounce@example.edu", models.NotificationUrgent)

	result, err := outbox.ProcessBatch(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Claimed: 2, Sent: 1, Retried: 1}, result)

	m, err := f.store.Repos().Emails.GetByID(f.ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, models.EmailSent, m.Status)
	assert.Equal(t, 1, m.Attempts)

	m, err = f.store.Repos().Emails.GetByID(f.ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, models.EmailPending, m.Status)
	assert.Equal(t, "550 mailbox unavailable", m.LastError)

	result, err = outbox.ProcessBatch(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Claimed: 1, Failed: 1}, result)

	stats, err := outbox.QueueStats(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[models.EmailSent])
	assert.EqualValues(t, 1, stats[models.EmailFailed])

	result, err = outbox.ProcessBatch(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Claimed, "failed messages are not retried again")
}

func TestProcessBatch_RespectsBatchSizeAndPriority(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{}
	outbox := newOutbox(f, sender, OutboxConfig{BatchSize: 1, Concurrency: 1})

	f.enqueue("low@example.edu", models.NotificationLow)
	f.enqueue("urgent@example.edu", models.NotificationUrgent)

	result, err := outbox.ProcessBatch(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, []string{"urgent@example.edu"}, sender.sent)
}

func TestProcessBatch_ExpiredLeaseIsReclaimed(t *testing.T) {
	f := newFixture(t)
	outbox := newOutbox(f, &fakeSender{}, OutboxConfig{Lease: time.Minute})
	id := f.enqueue("ana@example.edu", models.NotificationNormal)

	// a worker claimed the message and died before reporting back
	claimed, err := f.store.Repos().Emails.ClaimBatch(f.ctx, 10, f.now, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	result, err := outbox.ProcessBatch(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Claimed, "lease still held")

	f.now = f.now.Add(2 * time.Minute)
	result, err = outbox.ProcessBatch(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	m, err := f.store.Repos().Emails.GetByID(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.EmailSent, m.Status)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	sender := &fakeSender{}
	outbox := newOutbox(f, sender, OutboxConfig{PollInterval: 10 * time.Millisecond})
	f.enqueue("ana@example.edu", models.NotificationNormal)

	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan error, 1)
	go func() { done <- outbox.Run(ctx) }()

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("outbox did not stop")
	}
}
