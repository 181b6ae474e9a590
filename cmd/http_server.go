package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/audit"
	auditPostgres "github.com/frahmantamala/innovation-portal/internal/audit/postgres"
	"github.com/frahmantamala/innovation-portal/internal/auth"
	authPostgres "github.com/frahmantamala/innovation-portal/internal/auth/postgres"
	"github.com/frahmantamala/innovation-portal/internal/core/events"
	"github.com/frahmantamala/innovation-portal/internal/initiative"
	initiativePostgres "github.com/frahmantamala/innovation-portal/internal/initiative/postgres"
	"github.com/frahmantamala/innovation-portal/internal/mailer"
	"github.com/frahmantamala/innovation-portal/internal/maintenance"
	"github.com/frahmantamala/innovation-portal/internal/obs"
	"github.com/frahmantamala/innovation-portal/internal/permission"
	permissionPostgres "github.com/frahmantamala/innovation-portal/internal/permission/postgres"
	"github.com/frahmantamala/innovation-portal/internal/role"
	rolePostgres "github.com/frahmantamala/innovation-portal/internal/role/postgres"
	"github.com/frahmantamala/innovation-portal/internal/submission"
	submissionPostgres "github.com/frahmantamala/innovation-portal/internal/submission/postgres"
	"github.com/frahmantamala/innovation-portal/internal/transport"
	"github.com/frahmantamala/innovation-portal/internal/transport/rest"
	"github.com/frahmantamala/innovation-portal/internal/transport/swagger"
	"github.com/frahmantamala/innovation-portal/internal/user"
	userPostgres "github.com/frahmantamala/innovation-portal/internal/user/postgres"
	"github.com/frahmantamala/innovation-portal/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// Dependencies holds everything the server owns and must release on shutdown.
type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	Gorm       *gorm.DB
	Router     *chi.Mux
	Logger     *slog.Logger
	EventBus   *events.EventBus
	Mailer     *mailer.Dispatcher
	Cleaner    *maintenance.Cleaner
	Handlers   rest.Handlers
	RateLimits *auth.RateLimiter
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	metricsPath := ""
	if deps.Config.Observability.Metrics.Enabled {
		obs.Init()
		metricsPath = deps.Config.Observability.Metrics.Path
	}

	rest.RegisterAllRoutes(deps.Router, deps.Handlers, rest.RouterOptions{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		MetricsPath:    metricsPath,
	}, deps.Logger)

	if err := deps.Cleaner.Start(); err != nil {
		deps.Logger.Error("failed to start maintenance schedule", "error", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			shutdown(deps, nil)
			os.Exit(1)
		}
	}

	shutdown(deps, server)
	deps.Logger.Info("Server stopped")
}

// shutdown stops intake first, then drains background work, then closes the database.
func shutdown(deps *Dependencies, server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	}

	select {
	case <-deps.Cleaner.Stop().Done():
	case <-ctx.Done():
		deps.Logger.Warn("maintenance jobs did not finish before shutdown timeout")
	}

	deps.EventBus.Wait()

	if err := deps.Mailer.Shutdown(ctx); err != nil {
		deps.Logger.Error("Mail dispatcher shutdown error", "error", err)
	}

	if err := deps.DB.Close(); err != nil {
		deps.Logger.Error("Database close error", "error", err)
	}
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	configureLogging(config)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	openAPI, err := swagger.Load(context.Background(), config.Server.OpenAPIPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	lg.Info("openapi document loaded",
		"title", openAPI.Title(),
		"version", openAPI.Version(),
		"paths", openAPI.PathCount())

	eventBus := events.NewEventBus(lg)
	recorder := audit.NewRecorder(auditPostgres.NewAuditRepository(db), lg)
	resolver := permission.NewResolver(permissionPostgres.NewPermissionRepository(gormDB), lg)

	dispatcher := mailer.NewDispatcher(mailer.NewSender(config.Mailer, lg), mailer.Config{
		MaxWorkers: config.Mailer.MaxWorkers,
		QueueSize:  config.Mailer.QueueSize,
	}, lg)

	limiter := auth.NewRateLimiter(config.RateLimit)
	authRepo := authPostgres.NewRepository(gormDB)
	authService, err := auth.NewService(authRepo, config.Auth, limiter, dispatcher, recorder, lg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	userService := user.NewService(userPostgres.NewUserRepository(gormDB), resolver, recorder, lg)
	submissionService := submission.NewService(submissionPostgres.NewSubmissionRepository(gormDB), resolver, recorder, eventBus, lg)
	roleService := role.NewService(rolePostgres.NewRoleRepository(gormDB), recorder, lg)

	initiativeService := initiative.NewService(initiativePostgres.NewInitiativeRepository(gormDB), recorder, eventBus, lg)
	initiative.NewEventHandler(initiativeService, lg).RegisterEventHandlers(eventBus)

	cleaner := maintenance.NewCleaner(authRepo, lg,
		maintenance.WithSessionSchedule(config.Maintenance.SessionSchedule),
		maintenance.WithOTPSchedule(config.Maintenance.OTPSchedule),
		maintenance.WithSweeper(limiter),
	)

	base := transport.NewBaseHandler(lg)
	handlers := rest.Handlers{
		Health: rest.NewHealthHandler(base, db),
		Auth: auth.NewHandler(authService, auth.CookieConfig{
			Name:   config.Auth.CookieName,
			Secure: config.Auth.CookieSecure,
		}),
		RBAC:       auth.NewRBACAuthorization(resolver, lg),
		User:       user.NewHandler(userService),
		Submission: submission.NewHandler(submissionService),
		Initiative: initiative.NewHandler(initiativeService),
		Role:       role.NewHandler(base, roleService),
		Audit:      audit.NewHandler(recorder),
		OpenAPI:    openAPI,
	}

	return &Dependencies{
		Config:     config,
		DB:         db,
		Gorm:       gormDB,
		Router:     chi.NewRouter(),
		Logger:     lg,
		EventBus:   eventBus,
		Mailer:     dispatcher,
		Cleaner:    cleaner,
		Handlers:   handlers,
		RateLimits: limiter,
	}, nil
}

// initDB opens the pgx-backed connection pool shared by sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm wraps the existing pool so both toolkits share one set of connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
