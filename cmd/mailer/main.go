// Command mailer drains the email outbox written by the API process and
// queues reminders for upcoming interventions.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	appAuth "github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/app/services"
	"github.com/yigit/earlyalert/internal/bootstrap"
	"github.com/yigit/earlyalert/internal/db"
	"github.com/yigit/earlyalert/internal/pkg/realtime"
)

func main() {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger()
	if err != nil {
		reportStartupError(os.Stderr, err)
		os.Exit(1)
	}
	lgr = lgr.With().Str("component", "mailer").Logger()

	if !cfg.Email.Enabled && !cfg.Reminders.Enabled {
		lgr.Warn().Msg("Email delivery and reminders are disabled in configuration; nothing to do")
		return
	}

	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		os.Exit(1)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := repositories.NewPostgresStore(database)
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Email.Enabled {
		outbox := services.NewEmailOutboxService(
			store,
			bootstrap.NewEmailSender(cfg, lgr),
			services.OutboxConfig{
				BatchSize:    cfg.Email.BatchSize,
				MaxAttempts:  cfg.Email.MaxAttempts,
				Concurrency:  cfg.Email.Concurrency,
				PollInterval: cfg.EmailPollInterval(),
			},
			lgr,
		)
		if stats, err := outbox.QueueStats(ctx); err == nil {
			lgr.Info().Interface("queue", stats).Msg("Mailer started")
		}
		g.Go(func() error { return outbox.Run(gctx) })
	}

	if cfg.Reminders.Enabled {
		// Reminders reach open API connections only when the bus is shared over Redis
		var publisher services.Publisher
		if cfg.Realtime.RedisAddr != "" {
			bus, err := realtime.NewRedisBus(ctx, realtime.RedisConfig{
				Addr:     cfg.Realtime.RedisAddr,
				Password: cfg.Realtime.RedisPassword,
				DB:       cfg.Realtime.RedisDB,
				Channel:  cfg.Realtime.RedisChannel,
			}, lgr)
			if err != nil {
				lgr.Warn().Err(err).Msg("Realtime bus unavailable; reminders are stored without live push")
			} else {
				defer bus.Close()
				publisher = realtime.NewNotifier(bus)
			}
		}

		authz := appAuth.NewAuthorizationService(store.Repos().Students)
		audit := services.NewAuditService(store, authz, lgr)
		notifications := services.NewNotificationService(store, authz, audit, publisher, cfg.Email.Enabled, lgr)
		reminders := services.NewReminderService(store, notifications, services.ReminderConfig{
			Window:   cfg.ReminderWindow(),
			Interval: cfg.ReminderInterval(),
		}, lgr.With().Str("component", "reminders").Logger())
		g.Go(func() error { return reminders.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		lgr.Error().Err(err).Msg("Mailer stopped with error")
		return
	}
	lgr.Info().Msg("Mailer stopped")
}

// reportStartupError writes failures that happen before logging is configured
func reportStartupError(w io.Writer, err error) {
	fmt.Fprintf(w, "mailer: failed to load configuration: %v\n", err)
}
