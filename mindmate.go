// Package mindmate wires the MindMate stress-assessment server.
//
// Binaries construct it with options and run it until the context ends:
//
//	app, err := mindmate.New(ctx,
//	    mindmate.WithVersion(version),
//	    mindmate.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
package mindmate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mindmate-health/mindmate/internal/auth"
	"github.com/mindmate-health/mindmate/internal/config"
	"github.com/mindmate-health/mindmate/internal/notify"
	"github.com/mindmate-health/mindmate/internal/ratelimit"
	"github.com/mindmate-health/mindmate/internal/server"
	"github.com/mindmate-health/mindmate/internal/service/accounts"
	"github.com/mindmate-health/mindmate/internal/service/stress"
	"github.com/mindmate-health/mindmate/internal/storage"
	"github.com/mindmate-health/mindmate/internal/storage/postgres"
	"github.com/mindmate-health/mindmate/internal/storage/sqlite"
	"github.com/mindmate-health/mindmate/internal/telemetry"
	"github.com/mindmate-health/mindmate/migrations"
)

const (
	shutdownTimeout    = 15 * time.Second
	sessionSweepPeriod = time.Minute
)

// App is the MindMate server lifecycle. Construct with New, run with Run.
type App struct {
	cfg          config.Config
	store        storage.Store
	accounts     *accounts.Service
	srv          *server.Server
	memSessions  *auth.MemorySessionStore // nil when sessions live in Redis
	redis        *redis.Client            // nil unless a Redis backend is configured
	limiter      ratelimit.Limiter
	alerts       notify.Publisher
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
	closeOnce    sync.Once
}

// New loads configuration, opens storage, runs migrations and wires every
// subsystem. It does not accept connections until Run is called.
func New(ctx context.Context, opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}
	version := o.version
	if version == "" {
		version = "dev"
	}
	logger.Info("mindmate starting", "version", version, "port", cfg.Port, "db_driver", cfg.DBDriver)

	a := &App{cfg: cfg, logger: logger, version: version}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	a.otelShutdown, err = telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		ServiceName: cfg.ServiceName,
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if a.store, err = openStore(ctx, cfg, logger); err != nil {
		return nil, err
	}

	if cfg.SessionBackend == config.SessionsRedis {
		if a.redis, err = openRedis(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
	}

	var sessions auth.SessionStore
	if a.redis != nil {
		sessions = auth.NewRedisSessionStore(a.redis, cfg.SessionTTL)
		logger.Info("sessions: redis", "ttl", cfg.SessionTTL)
	} else {
		a.memSessions = auth.NewMemorySessionStore(cfg.SessionTTL)
		sessions = a.memSessions
		logger.Info("sessions: memory (lost on restart)", "ttl", cfg.SessionTTL)
	}

	switch {
	case cfg.AuthRateLimit <= 0:
		a.limiter = ratelimit.NoopLimiter{}
		logger.Info("auth rate limiting: disabled")
	case a.redis != nil:
		window := time.Duration(float64(cfg.AuthRateBurst) / cfg.AuthRateLimit * float64(time.Second))
		a.limiter = ratelimit.NewRedisLimiter(a.redis, cfg.AuthRateBurst, window)
		logger.Info("auth rate limiting: redis (fixed window)", "limit", cfg.AuthRateBurst, "window", window)
	default:
		a.limiter = ratelimit.NewMemoryLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)
		logger.Info("auth rate limiting: memory (in-process token bucket)",
			"rps", cfg.AuthRateLimit, "burst", cfg.AuthRateBurst)
	}

	if cfg.MQTTBroker != "" {
		pub, err := notify.NewMQTTPublisher(notify.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Topic:    cfg.MQTTAlertTopic,
		})
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		a.alerts = pub
		logger.Info("alerts: mqtt", "broker", cfg.MQTTBroker, "topic", cfg.MQTTAlertTopic)
	} else {
		a.alerts = notify.NoopPublisher{}
		logger.Info("alerts: disabled (no MQTT_BROKER)")
	}

	a.accounts = accounts.New(a.store, sessions, cfg.AdminBypassToken, logger)
	a.srv = server.New(server.ServerConfig{
		Store:               a.store,
		Accounts:            a.accounts,
		Stress:              stress.New(a.store, a.alerts, logger),
		AuthLimiter:         a.limiter,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		LegacyStressErrors:  cfg.LegacyStressErrors,
	})

	ok = true
	return a, nil
}

func loadConfig(o resolvedOptions) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.dbDriver != "" {
		cfg.DBDriver = o.dbDriver
		cfg.SQLitePath = o.sqlitePath
		cfg.DatabaseURL = o.databaseURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		if err := db.RunMigrations(ctx, migrations.Postgres()); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return db, nil
	default:
		db, err := sqlite.New(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		if err := db.RunMigrations(ctx, migrations.SQLite()); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return db, nil
	}
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// Handler returns the root HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Accounts exposes account provisioning for the admin CLI.
func (a *App) Accounts() *accounts.Service {
	return a.accounts
}

// Run serves HTTP and runs background maintenance until ctx is cancelled or
// the server fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", "error", err)
		}
		return nil
	})

	if a.memSessions != nil {
		g.Go(func() error {
			a.sessionSweepLoop(gctx)
			return nil
		})
	}

	err := g.Wait()
	a.close(context.Background())
	a.logger.Info("mindmate stopped")
	return err
}

// Close releases resources without serving. Use it when New succeeded but
// Run will not be called, as in the admin CLI.
func (a *App) Close() {
	a.close(context.Background())
}

func (a *App) sessionSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.memSessions.Sweep(); n > 0 {
				a.logger.Debug("expired sessions swept", "count", n)
			}
		}
	}
}

func (a *App) close(ctx context.Context) {
	a.closeOnce.Do(func() { a.release(ctx) })
}

func (a *App) release(ctx context.Context) {
	if a.alerts != nil {
		if err := a.alerts.Close(); err != nil {
			a.logger.Warn("alert publisher close failed", "error", err)
		}
	}
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("storage close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
}
