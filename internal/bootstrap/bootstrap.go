package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appAuth "github.com/yigit/classmarket/internal/app/auth"
	appControllers "github.com/yigit/classmarket/internal/app/controllers"
	appJobs "github.com/yigit/classmarket/internal/app/jobs"
	appMigrations "github.com/yigit/classmarket/internal/app/migrations"
	appRepos "github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/app/repositories/memory"
	"github.com/yigit/classmarket/internal/app/repositories/mongodb"
	"github.com/yigit/classmarket/internal/app/repositories/postgres"
	appRoutes "github.com/yigit/classmarket/internal/app/routes"
	appServices "github.com/yigit/classmarket/internal/app/services"
	"github.com/yigit/classmarket/internal/config"
	"github.com/yigit/classmarket/internal/db"
	appMiddleware "github.com/yigit/classmarket/internal/middleware"
	pkgAuth "github.com/yigit/classmarket/internal/pkg/auth"
	"github.com/yigit/classmarket/internal/pkg/charge"
	"github.com/yigit/classmarket/internal/pkg/helpers"
	"github.com/yigit/classmarket/internal/pkg/logger"
	"github.com/yigit/classmarket/internal/pkg/metrics"
	"github.com/yigit/classmarket/internal/seed"
)

// Store is an opened store driver together with its repositories
type Store struct {
	Driver string
	Repos  *appRepos.Repositories
	close  func(ctx context.Context) error
}

// Close releases the store connection
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Dependencies holds all the application dependencies
type Dependencies struct {
	AuthService       appServices.AuthService
	UserService       appServices.UserService
	ClassService      appServices.ClassService
	CartService       appServices.CartService
	PaymentService    appServices.PaymentService
	EnrollmentService appServices.EnrollmentService
	CatalogService    appServices.CatalogService

	AuthController    *appControllers.AuthController
	UserController    *appControllers.UserController
	ClassController   *appControllers.ClassController
	CartController    *appControllers.CartController
	PaymentController *appControllers.PaymentController
	CatalogController *appControllers.CatalogController

	AuthMiddleware *appMiddleware.AuthMiddleware
	Repos          *appRepos.Repositories
	JWTService     *pkgAuth.JWTService
	RoleGate       *appAuth.RoleGate
	Metrics        *metrics.Metrics
	Scheduler      *cron.Cron
	Logger         zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupStore opens the configured store driver, prepares its schema and seeds default data.
func SetupStore(cfg *config.Config, lgr zerolog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var store *Store
	switch driver := strings.ToLower(cfg.Database.Driver); driver {
	case config.DriverPostgres:
		lgr.Info().Msg("Establishing database connection...")
		database, err := db.NewPostgresDB(cfg)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to connect to database")
			return nil, err
		}
		lgr.Info().Msg("Database connection successfully established.")

		migrationsDir := cfg.Database.MigrationsDir
		if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
			database.Pool.Close()
			lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
			return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
		}

		lgr.Info().Msg("Running database migrations...")
		if err := appMigrations.NewMigrator(database.Pool).MigrateFromDirectory(ctx, migrationsDir); err != nil {
			database.Pool.Close()
			lgr.Error().Err(err).Msg("Database migration error")
			return nil, fmt.Errorf("database migrations failed: %w", err)
		}
		lgr.Info().Msg("Database migrations successfully applied.")

		store = &Store{Driver: driver, Repos: postgres.NewRepositories(database.Pool), close: database.Close}

	case config.DriverMongo:
		lgr.Info().Msg("Establishing mongo connection...")
		database, err := db.NewMongoDB(cfg)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to connect to mongo")
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, database.Database); err != nil {
			_ = database.Close(context.Background())
			lgr.Error().Err(err).Msg("Failed to create mongo indexes")
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		lgr.Info().Str("database", cfg.Database.Name).Msg("Mongo connection established, indexes ensured.")

		store = &Store{Driver: driver, Repos: mongodb.NewRepositories(database.Database), close: database.Close}

	case config.DriverMemory:
		lgr.Warn().Msg("Using the in-memory store; data is lost on restart")
		store = &Store{Driver: driver, Repos: memory.NewRepositories()}

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	if err := seed.CreateDefaultData(ctx, store.Repos.UserRepository, cfg.Seed.AdminEmail, lgr); err != nil {
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}

	return store, nil
}

// BuildDependencies initializes application services, controllers and jobs on repos.
func BuildDependencies(cfg *config.Config, repos *appRepos.Repositories, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr, Repos: repos}

	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New("classmarket")
	}

	storeTimeout := helpers.ParseDuration(cfg.Enrollment.StoreTimeout, 5*time.Second)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})
	deps.RoleGate = appAuth.NewRoleGate(repos.UserRepository)

	authority := charge.NewStripeClient(charge.Config{
		SecretKey:  cfg.Payment.SecretKey,
		BaseURL:    cfg.Payment.BaseURL,
		Timeout:    helpers.ParseDuration(cfg.Payment.Timeout, 10*time.Second),
		MaxRetries: cfg.Payment.MaxRetries,
	})

	deps.AuthService = appServices.NewAuthService(deps.JWTService, lgr)
	deps.UserService = appServices.NewUserService(repos.UserRepository, deps.RoleGate, lgr)
	deps.ClassService = appServices.NewClassService(repos.ClassRepository, deps.RoleGate, appServices.ClassServiceConfig{
		StrictSeatCheck: cfg.Enrollment.StrictSeatCheck,
		StoreTimeout:    storeTimeout,
	}, deps.Metrics, lgr)
	deps.CartService = appServices.NewCartService(repos.CartRepository, storeTimeout, lgr)
	deps.PaymentService = appServices.NewPaymentService(repos.PaymentRepository, authority, cfg.Payment.Currency, deps.Metrics, lgr)
	deps.EnrollmentService = appServices.NewEnrollmentService(repos, deps.ClassService, deps.CartService, authority, appServices.EnrollmentConfig{
		StoreTimeout:   storeTimeout,
		LeaseDuration:  helpers.ParseDuration(cfg.Enrollment.LeaseDuration, 30*time.Second),
		IdempotencyTTL: helpers.ParseDuration(cfg.Enrollment.IdempotencyTTL, 24*time.Hour),
		VerifyCharge:   cfg.Enrollment.VerifyCharge,
	}, deps.Metrics, lgr)
	deps.CatalogService = appServices.NewCatalogService(repos.InstructorRepository, repos.ReviewRepository)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, deps.RoleGate)

	deps.AuthController = appControllers.NewAuthController(deps.AuthService, lgr)
	deps.UserController = appControllers.NewUserController(deps.UserService)
	deps.ClassController = appControllers.NewClassController(deps.ClassService)
	deps.CartController = appControllers.NewCartController(deps.CartService)
	deps.PaymentController = appControllers.NewPaymentController(deps.PaymentService, deps.EnrollmentService)
	deps.CatalogController = appControllers.NewCatalogController(deps.CatalogService)

	deps.Scheduler = appJobs.NewScheduler()
	if cfg.Enrollment.PurgeSchedule != "" {
		if _, err := appJobs.RegisterPurge(deps.Scheduler, cfg.Enrollment.PurgeSchedule, deps.EnrollmentService, time.Minute, lgr); err != nil {
			return nil, err
		}
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger())
	if deps.Metrics != nil {
		router.Use(appMiddleware.Metrics(deps.Metrics))
		router.GET(cfg.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}

	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.UserController,
		deps.ClassController,
		deps.CartController,
		deps.PaymentController,
		deps.CatalogController,
		deps.AuthMiddleware,
	)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
