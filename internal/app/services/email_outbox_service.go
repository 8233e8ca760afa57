package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/email"
)

// OutboxConfig tunes the email queue drain
type OutboxConfig struct {
	BatchSize    int
	MaxAttempts  int
	Concurrency  int
	PollInterval time.Duration
	// Lease is how long a claimed message stays invisible to other workers
	Lease time.Duration
}

func (c *OutboxConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 5 * time.Minute
	}
}

// BatchResult summarizes one ProcessBatch call
type BatchResult struct {
	Claimed int
	Sent    int
	Retried int
	Failed  int
}

// EmailOutboxService drains the email queue. Delivery is at-least-once: a
// worker that dies after sending but before MarkSent leaves the message to be
// re-claimed once its lease expires.
type EmailOutboxService interface {
	ProcessBatch(ctx context.Context) (BatchResult, error)
	Run(ctx context.Context) error
	QueueStats(ctx context.Context) (map[models.EmailStatus]int64, error)
}

type emailOutboxServiceImpl struct {
	store  repositories.Store
	sender email.Sender
	config OutboxConfig
	now    Clock
	logger zerolog.Logger
}

// NewEmailOutboxService creates a new EmailOutboxService
func NewEmailOutboxService(store repositories.Store, sender email.Sender, config OutboxConfig, logger zerolog.Logger) EmailOutboxService {
	config.applyDefaults()
	return &emailOutboxServiceImpl{
		store:  store,
		sender: sender,
		config: config,
		now:    systemClock,
		logger: logger,
	}
}

func (s *emailOutboxServiceImpl) ProcessBatch(ctx context.Context) (BatchResult, error) {
	repos := s.store.Repos()
	msgs, err := repos.Emails.ClaimBatch(ctx, s.config.BatchSize, s.now(), s.config.Lease)
	if err != nil {
		return BatchResult{}, err
	}
	if len(msgs) == 0 {
		return BatchResult{}, nil
	}

	var sent, retried, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, m := range msgs {
		m := m
		g.Go(func() error {
			sendErr := s.sender.Send(gctx, &email.Message{
				To:      m.ToEmail,
				Subject: m.Subject,
				HTML:    m.BodyHTML,
				Text:    m.BodyText,
			})
			if sendErr == nil {
				if err := repos.Emails.MarkSent(gctx, m.ID, s.now()); err != nil {
					return err
				}
				sent.Add(1)
				return nil
			}

			status, err := repos.Emails.MarkAttemptFailed(gctx, m.ID, sendErr.Error(), s.config.MaxAttempts)
			if err != nil {
				return err
			}
			if status == models.EmailFailed {
				failed.Add(1)
				s.logger.Warn().Err(sendErr).Int64("emailID", m.ID).Str("to", m.ToEmail).Msg("Email permanently failed")
			} else {
				retried.Add(1)
				s.logger.Debug().Err(sendErr).Int64("emailID", m.ID).Msg("Email send failed, will retry")
			}
			return nil
		})
	}
	err = g.Wait()

	result := BatchResult{
		Claimed: len(msgs),
		Sent:    int(sent.Load()),
		Retried: int(retried.Load()),
		Failed:  int(failed.Load()),
	}
	if err != nil {
		return result, err
	}
	s.logger.Info().
		Int("claimed", result.Claimed).
		Int("sent", result.Sent).
		Int("retried", result.Retried).
		Int("failed", result.Failed).
		Msg("Email batch processed")
	return result, nil
}

// Run polls until ctx is cancelled. Full batches are followed immediately by
// another claim; storage errors are logged and retried on the next tick.
func (s *emailOutboxServiceImpl) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info().
		Int("batchSize", s.config.BatchSize).
		Int("concurrency", s.config.Concurrency).
		Dur("pollInterval", s.config.PollInterval).
		Msg("Email outbox started")

	for {
		for {
			result, err := s.ProcessBatch(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return nil
				}
				s.logger.Error().Err(err).Msg("Error processing email batch")
				break
			}
			if result.Claimed < s.config.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Email outbox stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *emailOutboxServiceImpl) QueueStats(ctx context.Context) (map[models.EmailStatus]int64, error) {
	return s.store.Repos().Emails.CountByStatus(ctx)
}
