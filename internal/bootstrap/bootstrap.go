// Package bootstrap wires configuration, logging, storage, services and the
// HTTP router together. It is shared by the API and mailer processes.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	appAuth "github.com/yigit/earlyalert/internal/app/auth"
	appControllers "github.com/yigit/earlyalert/internal/app/controllers"
	appMigrations "github.com/yigit/earlyalert/internal/app/migrations"
	appModels "github.com/yigit/earlyalert/internal/app/models"
	appRepos "github.com/yigit/earlyalert/internal/app/repositories"
	appRoutes "github.com/yigit/earlyalert/internal/app/routes"
	appServices "github.com/yigit/earlyalert/internal/app/services"
	"github.com/yigit/earlyalert/internal/config"
	"github.com/yigit/earlyalert/internal/db"
	appMiddleware "github.com/yigit/earlyalert/internal/middleware"
	pkgAuth "github.com/yigit/earlyalert/internal/pkg/auth"
	"github.com/yigit/earlyalert/internal/pkg/email"
	"github.com/yigit/earlyalert/internal/pkg/logger"
	"github.com/yigit/earlyalert/internal/pkg/realtime"
)

// DefaultConfigPath is used when EARLYALERT_CONFIG is not set
var DefaultConfigPath = filepath.Join("configs", "config.yaml")

// Dependencies holds all the application dependencies
type Dependencies struct {
	Store        appRepos.Store
	JWTService   *pkgAuth.JWTService
	AuthzService *appAuth.AuthorizationService

	AuditService        appServices.AuditService
	NotificationService appServices.NotificationService
	RiskLedgerService   appServices.RiskLedgerService
	InterventionService appServices.InterventionService
	StudentService      appServices.StudentService
	UserService         appServices.UserService

	AuthMiddleware *appMiddleware.AuthMiddleware
	Controllers    appRoutes.Controllers
	Hub            *realtime.Hub

	Logger zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := config.GetEnv("EARLYALERT_CONFIG", DefaultConfigPath)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logger.Configure(logger.ConfigFromStrings(cfg.Logging.Level, cfg.Logging.Format))

	lgr := logger.Get()
	lgr.Info().Str("logLevel", cfg.Logging.Level).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		database.Close()
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	lgr.Info().Str("path", migrationsDir).Msg("Running database migrations...")
	if err := appMigrations.NewMigrator(database.Pool).MigrateFromDirectory(ctx, migrationsDir); err != nil {
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return database, nil
}

// SetupRealtime creates the websocket hub and connects it to the fan-out
// bus. Without a Redis address notifications only reach clients of this
// instance. The hub must be started with Hub.Run.
func SetupRealtime(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (realtime.Bus, *realtime.Hub, error) {
	hubLogger := lgr.With().Str("component", "realtime").Logger()
	hub := realtime.NewHub(hubLogger)

	var bus realtime.Bus
	if cfg.Realtime.RedisAddr == "" {
		bus = realtime.NewLocalBus()
	} else {
		var err error
		bus, err = realtime.NewRedisBus(ctx, realtime.RedisConfig{
			Addr:     cfg.Realtime.RedisAddr,
			Password: cfg.Realtime.RedisPassword,
			DB:       cfg.Realtime.RedisDB,
			Channel:  cfg.Realtime.RedisChannel,
		}, hubLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect realtime bus: %w", err)
		}
		lgr.Info().Str("addr", cfg.Realtime.RedisAddr).Msg("Realtime notifications fan out over Redis")
	}

	if err := realtime.Attach(ctx, bus, hub); err != nil {
		_ = bus.Close()
		return nil, nil, err
	}
	return bus, hub, nil
}

// NewEmailSender builds the outbound mail transport from the email section
func NewEmailSender(cfg *config.Config, lgr zerolog.Logger) email.Sender {
	return email.NewSender(email.SMTPConfig{
		Host:      cfg.Email.Host,
		Port:      cfg.Email.Port,
		Username:  cfg.Email.Username,
		Password:  cfg.Email.Password,
		FromName:  cfg.Email.FromName,
		FromEmail: cfg.Email.FromEmail,
		UseTLS:    cfg.Email.UseTLS,
	}, lgr.With().Str("component", "email").Logger())
}

// RiskThresholds converts the risk section of the configuration
func RiskThresholds(cfg *config.Config) appModels.RiskThresholds {
	return appModels.RiskThresholds{
		Critical: cfg.Risk.CriticalThreshold,
		High:     cfg.Risk.HighThreshold,
		Medium:   cfg.Risk.MediumThreshold,
	}
}

// BuildDependencies initializes services and controllers on top of store.
// pinger backs the health check and may be nil; hub may be nil when live
// push is not wanted.
func BuildDependencies(cfg *config.Config, store appRepos.Store, pinger appControllers.Pinger, bus realtime.Bus, hub *realtime.Hub, lgr zerolog.Logger) *Dependencies {
	deps := &Dependencies{Store: store, Hub: hub, Logger: lgr}
	component := func(name string) zerolog.Logger {
		return lgr.With().Str("component", name).Logger()
	}

	deps.AuthzService = appAuth.NewAuthorizationService(store.Repos().Students)
	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:   cfg.JWT.Secret,
		TokenIssuer: cfg.JWT.Issuer,
	})

	var publisher appServices.Publisher
	if bus != nil {
		publisher = realtime.NewNotifier(bus)
	}

	deps.AuditService = appServices.NewAuditService(store, deps.AuthzService, component("audit"))
	deps.NotificationService = appServices.NewNotificationService(store, deps.AuthzService, deps.AuditService, publisher, cfg.Email.Enabled, component("notifications"))
	deps.RiskLedgerService = appServices.NewRiskLedgerService(store, deps.AuthzService, deps.NotificationService, deps.AuditService, RiskThresholds(cfg), component("risk_ledger"))
	deps.InterventionService = appServices.NewInterventionService(store, deps.AuthzService, deps.NotificationService, deps.AuditService, cfg.Followups.DefaultWindowDays, component("interventions"))
	deps.StudentService = appServices.NewStudentService(store, deps.AuthzService, deps.AuditService, component("students"))
	deps.UserService = appServices.NewUserService(store, deps.AuthzService, deps.AuditService, component("users"))

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.Controllers = appRoutes.Controllers{
		Health:        appControllers.NewHealthController(pinger),
		Students:      appControllers.NewStudentController(deps.StudentService),
		Assessments:   appControllers.NewAssessmentController(deps.RiskLedgerService),
		Interventions: appControllers.NewInterventionController(deps.InterventionService),
		Notifications: appControllers.NewNotificationController(deps.NotificationService),
		Audit:         appControllers.NewAuditController(deps.AuditService),
		Users:         appControllers.NewUserController(deps.UserService),
	}
	if hub != nil {
		deps.Controllers.Realtime = realtime.NewHandler(hub, cfg.AllowedOrigins(), component("websocket"))
	}

	return deps
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(appMiddleware.RequestLogger(lgr.With().Str("component", "http").Logger()))
	router.Use(appMiddleware.CORS(cfg.AllowedOrigins()))

	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware)

	return router
}
