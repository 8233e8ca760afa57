package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
)

// ReminderConfig tunes the upcoming-intervention sweep
type ReminderConfig struct {
	// Window is how far ahead a scheduled intervention is reminded
	Window   time.Duration
	Interval time.Duration
}

func (c *ReminderConfig) applyDefaults() {
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
}

// ReminderService reminds advisors of their upcoming interventions. Each
// schedule is reminded once; moving an intervention makes it eligible again.
type ReminderService interface {
	SweepOnce(ctx context.Context) (int, error)
	Run(ctx context.Context) error
}

type reminderServiceImpl struct {
	store         repositories.Store
	notifications NotificationService
	config        ReminderConfig
	now           Clock
	logger        zerolog.Logger
}

// NewReminderService creates a new ReminderService
func NewReminderService(store repositories.Store, notifications NotificationService, config ReminderConfig, logger zerolog.Logger) ReminderService {
	config.applyDefaults()
	return &reminderServiceImpl{
		store:         store,
		notifications: notifications,
		config:        config,
		now:           systemClock,
		logger:        logger,
	}
}

func (s *reminderServiceImpl) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	until := now.Add(s.config.Window)
	candidates, _, err := s.store.Repos().Interventions.List(ctx, repositories.InterventionFilter{
		Statuses:        []models.InterventionStatus{models.StatusScheduled},
		ScheduledFrom:   &now,
		ScheduledBefore: &until,
		ReminderDue:     true,
		Order:           repositories.OrderScheduled,
	}, 0, 0)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, c := range candidates {
		ok, err := s.remind(ctx, c.ID, now, until)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	if sent > 0 {
		s.logger.Info().Int("reminded", sent).Msg("Intervention reminders queued")
	}
	return sent, nil
}

// remind notifies the advisor and stamps the schedule in one transaction.
// The row is re-read under lock so a concurrent sweep or reschedule wins cleanly.
func (s *reminderServiceImpl) remind(ctx context.Context, id int64, now, until time.Time) (bool, error) {
	d := &Dispatch{}
	reminded := false
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		i, err := r.Interventions.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if i.Status != models.StatusScheduled || !i.ReminderDue() ||
			i.ScheduledAt.Before(now) || !i.ScheduledAt.Before(until) {
			return nil
		}

		student, err := r.Students.GetByID(ctx, i.StudentID)
		if err != nil {
			return err
		}
		location := i.Location
		if location == "" {
			location = "TBD"
		}
		if _, err := s.notifications.NotifyTx(ctx, r, d, NotifyRequest{
			UserID: i.AdvisorID,
			Type:   models.NotifyInterventionReminder,
			Title:  "Upcoming Intervention: " + student.FullName(),
			Message: fmt.Sprintf("\"%s\" with %s. %s Location: %s.",
				i.Title, student.FullName(), describeSchedule(i.ScheduledAt), location),
			Priority: notificationPriorityFor(i.Priority),
			Related:  &models.EntityRef{Type: models.EntityIntervention, ID: i.ID},
			Email:    true,
			EmailKey: fmt.Sprintf("reminder:%d:%d", i.ID, i.ScheduledAt.Unix()),
		}); err != nil {
			return err
		}

		at := *i.ScheduledAt
		i.RemindedFor = &at
		i.UpdatedAt = now
		if err := r.Interventions.Update(ctx, i); err != nil {
			return err
		}
		reminded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	s.notifications.Flush(ctx, d)
	return reminded, nil
}

// Run sweeps until ctx is cancelled; storage errors are logged and retried on the next tick.
func (s *reminderServiceImpl) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("window", s.config.Window).
		Dur("interval", s.config.Interval).
		Msg("Intervention reminders started")

	for {
		if _, err := s.SweepOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Err(err).Msg("Error sweeping intervention reminders")
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Intervention reminders stopped")
			return nil
		case <-ticker.C:
		}
	}
}
