package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	appControllers "github.com/yigit/campusreg/internal/app/controllers"
	appMigrations "github.com/yigit/campusreg/internal/app/migrations"
	appRepos "github.com/yigit/campusreg/internal/app/repositories"
	appRoutes "github.com/yigit/campusreg/internal/app/routes"
	appServices "github.com/yigit/campusreg/internal/app/services"
	"github.com/yigit/campusreg/internal/config"
	"github.com/yigit/campusreg/internal/db"
	appMiddleware "github.com/yigit/campusreg/internal/middleware"
	"github.com/yigit/campusreg/internal/pkg/breaker"
	"github.com/yigit/campusreg/internal/pkg/logger"
	"github.com/yigit/campusreg/internal/pkg/metrics"
	"github.com/yigit/campusreg/internal/pkg/oauth"
	"github.com/yigit/campusreg/internal/pkg/session"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	ClaimService     appServices.ClaimService
	SignInService    appServices.SignInService // nil without an identity provider
	SessionService   appServices.SessionService
	DraftService     appServices.DraftService
	AuthController   *appControllers.AuthController
	ClaimController  *appControllers.ClaimController
	DraftController  *appControllers.DraftController
	HealthController *appControllers.HealthController
	Repos            *appRepos.Repositories
	Sessions         session.Store
	Metrics          *metrics.Metrics
	Logger           zerolog.Logger

	// closers run on shutdown, in order
	closers []io.Closer
}

// Close releases the session backend
func (d *Dependencies) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join("configs", "config.yaml")
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	lgr := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: strings.ToLower(cfg.Logging.Format) == "text",
	})
	lgr.Info().Str("logLevel", cfg.Logging.Level).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	ctx := context.Background()

	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(ctx, cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	lgr.Info().Str("dir", migrationsDir).Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(database.Pool, lgr)
	if err := migrator.MigrateFromDirectory(ctx, migrationsDir); err != nil {
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return database, nil
}

// SetupSessionStore picks Redis when an address is configured and process
// memory otherwise.
func SetupSessionStore(cfg *config.Config, lgr zerolog.Logger) (session.Store, io.Closer, error) {
	if cfg.Redis.Addr == "" {
		lgr.Warn().Msg("No Redis address configured, keeping sessions in process memory")
		store := session.NewMemoryStore(cfg.Session.PendingTTL, cfg.Session.TTL)
		return store, closerFunc(func() error { store.Close(); return nil }), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	cb := breaker.New("redis-sessions", cfg.Redis.BreakerTimeout, lgr)
	store := session.NewRedisStore(client, cb, session.RedisOptions{
		KeyPrefix:  cfg.Redis.KeyPrefix,
		PendingTTL: cfg.Session.PendingTTL,
		SessionTTL: cfg.Session.TTL,
	})
	lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Redis session store ready")
	return store, client, nil
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	sessions, closer, err := SetupSessionStore(cfg, lgr)
	if err != nil {
		return nil, err
	}
	deps.Sessions = sessions
	deps.closers = append(deps.closers, closer)

	deps.Metrics = metrics.New(prometheus.DefaultRegisterer)
	deps.Repos = appRepos.NewRepositories(database)

	promoter := appServices.NewSessionPromoter(sessions, deps.Repos.ApplicantRepository, logger.WithComponent("promoter"))
	deps.ClaimService = appServices.NewClaimService(
		deps.Repos.ApplicantRepository,
		sessions,
		promoter,
		deps.Metrics,
		logger.WithComponent("claims"),
	)
	deps.SessionService = appServices.NewSessionService(sessions)
	deps.DraftService = appServices.NewDraftService(deps.Repos.DraftRepository, deps.Metrics)

	if cfg.OAuthEnabled() {
		provider := oauth.NewGoogleProvider(oauth.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			JWKSURL:      cfg.OAuth.JWKSURL,
			Issuers:      cfg.OAuth.Issuers,
			HostedDomain: cfg.OAuth.HostedDomain,
		})
		deps.SignInService = appServices.NewSignInService(
			provider,
			deps.Repos.ApplicantRepository,
			sessions,
			promoter,
			deps.Metrics,
			logger.WithComponent("signin"),
		)
	} else {
		lgr.Warn().Msg("OAuth client id not configured, sign-in routes are disabled")
	}

	deps.AuthController = appControllers.NewAuthController(
		deps.SignInService,
		deps.SessionService,
		cfg.App.SelectRolePath,
		cfg.App.DashboardPath,
	)
	deps.ClaimController = appControllers.NewClaimController(deps.ClaimService, cfg.App.DashboardPath)
	deps.DraftController = appControllers.NewDraftController(deps.DraftService)
	deps.HealthController = appControllers.NewHealthController(map[string]appControllers.Pinger{
		"database": database,
		"sessions": sessions,
	}, lgr)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	switch strings.ToLower(cfg.Server.Mode) {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	lgr.Info().Str("mode", gin.Mode()).Msg("Gin mode set")

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger(logger.WithComponent("http")))

	appRoutes.SetupRouter(router, appRoutes.Handlers{
		AuthController:   deps.AuthController,
		ClaimController:  deps.ClaimController,
		DraftController:  deps.DraftController,
		HealthController: deps.HealthController,
		SessionService:   deps.SessionService,
		SessionCookie: appMiddleware.SessionCookieConfig{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
			TTL:    cfg.Session.TTL,
		},
	})

	return router
}
