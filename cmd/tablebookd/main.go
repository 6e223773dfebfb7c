package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/oakandember/tablebook/internal/escalation"
	"github.com/oakandember/tablebook/internal/health"
	"github.com/oakandember/tablebook/internal/httpserver"
	"github.com/oakandember/tablebook/internal/notify"
	"github.com/oakandember/tablebook/internal/oplog"
	"github.com/oakandember/tablebook/internal/store/gormstore"
	"github.com/oakandember/tablebook/internal/store/pgstore"
	"github.com/oakandember/tablebook/pkg/booking"
)

const (
	flagDatabaseURL         = "database-url"
	flagListenAddr          = "listen-addr"
	flagBrokerURL           = "broker-url"
	flagAllowedOrigins      = "allowed-origins"
	flagHealthInterval      = "health-interval"
	flagStoreEngine         = "store-engine"
	configKeyDatabaseURL    = "database_url"
	configKeyListenAddr     = "listen_addr"
	configKeyBrokerURL      = "broker_url"
	configKeyAllowedOrigins = "allowed_origins"
	configKeyHealthInterval = "health_interval"
	configKeyStoreEngine    = "store_engine"
	defaultDatabaseURL      = "sqlite:///tmp/tablebook.db"
	defaultHTTPListenAddr   = ":8080"
	storeEngineGorm         = "gorm"
	storeEnginePgx          = "pgx"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	BrokerURL      string
	AllowedOrigins string
	HealthInterval time.Duration
	StoreEngine    string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tablebookd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "tablebookd",
		Short:         "Restaurant table booking HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")
	cmd.Flags().String(flagListenAddr, defaultHTTPListenAddr, "HTTP listen address")
	cmd.Flags().String(flagBrokerURL, "", "AMQP broker URL for event publishing (optional)")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-delimited CORS origins")
	cmd.Flags().Duration(flagHealthInterval, 30*time.Second, "health evaluation interval")
	cmd.Flags().String(flagStoreEngine, storeEngineGorm, "persistence engine: gorm or pgx (pgx needs a postgres URL)")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		configKeyDatabaseURL:    "DATABASE_URL",
		configKeyListenAddr:     "LISTEN_ADDR",
		configKeyBrokerURL:      "AMQP_URL",
		configKeyAllowedOrigins: "ALLOWED_ORIGINS",
		configKeyHealthInterval: "HEALTH_INTERVAL",
		configKeyStoreEngine:    "STORE_ENGINE",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flagBindings := map[string]string{
		configKeyDatabaseURL:    flagDatabaseURL,
		configKeyListenAddr:     flagListenAddr,
		configKeyBrokerURL:      flagBrokerURL,
		configKeyAllowedOrigins: flagAllowedOrigins,
		configKeyHealthInterval: flagHealthInterval,
		configKeyStoreEngine:    flagStoreEngine,
	}
	for key, flag := range flagBindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultHTTPListenAddr
	}
	cfg.BrokerURL = viper.GetString(configKeyBrokerURL)
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.HealthInterval = viper.GetDuration(configKeyHealthInterval)
	cfg.StoreEngine = viper.GetString(configKeyStoreEngine)
	if cfg.StoreEngine == "" {
		cfg.StoreEngine = storeEngineGorm
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = stores.cleanup() }()

	clock := func() time.Time { return time.Now().UTC() }

	var publisher booking.EventPublisher
	if cfg.BrokerURL != "" {
		amqpPublisher := notify.NewPublisher(cfg.BrokerURL, logger)
		defer func() { _ = amqpPublisher.Close() }()
		publisher = amqpPublisher
	}

	callbackOptions := []escalation.ServiceOption{escalation.WithLogger(logger)}
	if publisher != nil {
		callbackOptions = append(callbackOptions, escalation.WithEventPublisher(publisher))
	}
	callbackService, err := escalation.NewService(stores.callbacks, clock, callbackOptions...)
	if err != nil {
		return fmt.Errorf("callback service init: %w", err)
	}

	bookingOptions := []booking.ServiceOption{
		booking.WithOperationLogger(oplog.New(logger)),
		booking.WithEscalationSink(callbackService),
	}
	if publisher != nil {
		bookingOptions = append(bookingOptions, booking.WithEventPublisher(publisher))
	}
	bookingService, err := booking.NewService(stores.bookings, clock, bookingOptions...)
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}

	monitor, err := health.NewMonitor(stores.metrics, health.Config{EvaluationInterval: cfg.HealthInterval}, clock)
	if err != nil {
		return fmt.Errorf("health monitor init: %w", err)
	}
	runner, err := health.NewRunner(monitor, stores.lister, logger)
	if err != nil {
		return fmt.Errorf("health runner init: %w", err)
	}
	go runner.Run(ctx)

	return httpserver.Run(ctx, httpserver.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: httpserver.ParseAllowedOrigins(cfg.AllowedOrigins),
	}, httpserver.Dependencies{
		Bookings:  bookingService,
		Callbacks: callbackService,
		Health:    runner,
		Monitor:   monitor,
		Calls:     stores.calls,
		Logger:    logger,
	})
}

// backends bundles the persistence interfaces so the gorm and pgx engines
// are interchangeable above this point.
type backends struct {
	bookings  booking.Store
	callbacks escalation.Store
	metrics   health.MetricsStore
	lister    health.RestaurantLister
	calls     health.CallRecorder
	cleanup   func() error
}

func openStores(ctx context.Context, cfg *runtimeConfig) (backends, error) {
	switch cfg.StoreEngine {
	case storeEngineGorm:
		return openGormStores(ctx, cfg.DatabaseURL)
	case storeEnginePgx:
		return openPgxStores(ctx, cfg.DatabaseURL)
	default:
		return backends{}, fmt.Errorf("unsupported store engine %q", cfg.StoreEngine)
	}
}

func openGormStores(ctx context.Context, dsn string) (backends, error) {
	gormDB, cleanup, driver, err := openDatabase(ctx, dsn)
	if err != nil {
		return backends{}, err
	}
	if err := prepareSchema(gormDB, driver); err != nil {
		_ = cleanup()
		return backends{}, err
	}
	store := gormstore.New(gormDB)
	return backends{
		bookings:  store,
		callbacks: gormstore.NewCallbackStore(gormDB),
		metrics:   store,
		lister:    store,
		calls:     store,
		cleanup:   cleanup,
	}, nil
}

func openPgxStores(ctx context.Context, dsn string) (backends, error) {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return backends{}, fmt.Errorf("store engine %q requires a postgres URL", storeEnginePgx)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return backends{}, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return backends{}, err
	}
	store := pgstore.New(pool)
	return backends{
		bookings:  store,
		callbacks: pgstore.NewCallbackStore(pool),
		metrics:   store,
		lister:    store,
		calls:     store,
		cleanup:   func() error { pool.Close(); return nil },
	}, nil
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "tablebook.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	if err := gormstore.Migrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
