package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	appRepos "github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/bootstrap"
	"github.com/yigit/earlyalert/internal/config"
	"github.com/yigit/earlyalert/internal/db"
	"github.com/yigit/earlyalert/internal/pkg/realtime"
	"github.com/yigit/earlyalert/internal/seed"
)

// Server holds the state for the HTTP server.
type Server struct {
	config   *config.Config
	router   *gin.Engine
	database *db.PostgresDB
	bus      realtime.Bus
	hub      *realtime.Hub
	logger   zerolog.Logger
	http     *http.Server

	// cancels the realtime forwarder started during setup
	stopRealtime context.CancelFunc
}

// NewServer creates and initializes a new server instance by calling bootstrap functions.
func NewServer() (*Server, error) {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to load config or setup logger: %w", err)
	}

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelSetup()

	database, err := bootstrap.SetupDatabase(setupCtx, cfg, lgr)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	store := appRepos.NewPostgresStore(database)

	if cfg.Database.Seed {
		if err := seed.CreateDefaultData(setupCtx, store, time.Now(), lgr); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to seed reference data: %w", err)
		}
	}

	realtimeCtx, stopRealtime := context.WithCancel(context.Background())
	bus, hub, err := bootstrap.SetupRealtime(realtimeCtx, cfg, lgr)
	if err != nil {
		stopRealtime()
		database.Close()
		return nil, fmt.Errorf("failed to setup realtime notifications: %w", err)
	}

	deps := bootstrap.BuildDependencies(cfg, store, database, bus, hub, lgr)
	router := bootstrap.SetupRouter(cfg, deps, lgr)

	return &Server{
		config:       cfg,
		router:       router,
		database:     database,
		bus:          bus,
		hub:          hub,
		logger:       lgr,
		stopRealtime: stopRealtime,
	}, nil
}

// Run starts the HTTP server and the websocket hub and blocks until a
// termination signal arrives or one of them fails.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.http = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		s.logger.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info().Msg("Shutdown requested, stopping server...")
		return s.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown gracefully stops the server and closes resources.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout())
	defer cancel()

	var errs []error

	if s.http != nil {
		s.logger.Info().Msg("Shutting down HTTP server...")
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("HTTP server shutdown error")
			errs = append(errs, err)
		} else {
			s.logger.Info().Msg("HTTP server gracefully stopped.")
		}
	}

	if s.stopRealtime != nil {
		s.stopRealtime()
	}
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Realtime bus close error")
		}
	}

	if s.database != nil {
		s.logger.Info().Msg("Closing database connection pool...")
		s.database.Close()
	}

	s.logger.Info().Msg("Server shutdown process complete.")
	return errors.Join(errs...)
}
