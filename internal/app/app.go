// Package app wires the configured store, the link use case and the HTTP
// server, and runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shortlinks/internal/adapter/delivery/http"
	"github.com/vadimbarashkov/shortlinks/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shortlinks/internal/adapter/repository/redis"
	"github.com/vadimbarashkov/shortlinks/internal/config"
	"github.com/vadimbarashkov/shortlinks/internal/entity"
	"github.com/vadimbarashkov/shortlinks/internal/shortcode"
	"github.com/vadimbarashkov/shortlinks/internal/usecase"
	"github.com/vadimbarashkov/shortlinks/migrations"
	"github.com/vadimbarashkov/shortlinks/pkg/metrics"
	pgconn "github.com/vadimbarashkov/shortlinks/pkg/postgres"
	redisconn "github.com/vadimbarashkov/shortlinks/pkg/redis"
	"github.com/vadimbarashkov/shortlinks/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

type linkStore interface {
	FindByOriginalURL(ctx context.Context, originalURL string) (*entity.Link, error)
	Save(ctx context.Context, id uuid.UUID, shortCode, originalURL string) (*entity.Link, error)
	FindByShortCode(ctx context.Context, shortCode string) (*entity.Link, error)
	IncrementClicks(ctx context.Context, shortCode string) (*entity.Link, error)
	List(ctx context.Context) ([]*entity.Link, error)
	Remove(ctx context.Context, id uuid.UUID) (bool, error)
}

// NewLogger builds the service logger: JSON at info level in prod, concise
// text at debug level otherwise.
func NewLogger(env string, w io.Writer) *httplog.Logger {
	opts := httplog.Options{
		JSON:     env == config.EnvProd,
		LogLevel: slog.LevelDebug,
		Concise:  env != config.EnvProd,
	}
	if env == config.EnvProd {
		opts.LogLevel = slog.LevelInfo
	}
	if w != nil {
		opts.Writer = w
	}

	return httplog.NewLogger("url-shortener", opts)
}

// openStore connects to the configured backend. The returned closer releases
// the connection pool.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (linkStore, io.Closer, error) {
	const op = "app.openStore"

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		dsn := cfg.Postgres.DSN()

		db, err := pgconn.New(
			ctx,
			dsn,
			pgconn.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			pgconn.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			pgconn.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			pgconn.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}

		if err := pgconn.RunMigrations(migrations.FS, ".", dsn); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		logger.Info("using postgres link store", slog.String("host", cfg.Postgres.Host), slog.String("db", cfg.Postgres.DB))
		return postgres.NewLinkRepository(db), db, nil

	case config.DriverRedis:
		client, err := redisconn.New(
			ctx,
			cfg.Redis.Addr,
			redisconn.WithPassword(cfg.Redis.Password),
			redisconn.WithDB(cfg.Redis.DB),
			redisconn.WithDialTimeout(cfg.Redis.DialTimeout),
			redisconn.WithPoolSize(cfg.Redis.PoolSize),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}

		logger.Info("using redis link store", slog.String("addr", cfg.Redis.Addr), slog.Int("db", cfg.Redis.DB))
		return redis.NewLinkRepository(client), client, nil

	default:
		return nil, nil, fmt.Errorf("%s: unknown storage driver %q", op, cfg.Storage.Driver)
	}
}

// newHandler assembles the use case and the router on top of store.
func newHandler(cfg *config.Config, logger *httplog.Logger, store linkStore, reg *prometheus.Registry) (http.Handler, error) {
	const op = "app.newHandler"

	gen, err := shortcode.New(
		shortcode.WithLength(cfg.ShortCode.Length),
		shortcode.WithAlphabet(cfg.ShortCode.Alphabet),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create short code generator: %w", op, err)
	}

	m := metrics.New(reg)

	uc := usecase.New(store, gen,
		usecase.WithMaxRetries(cfg.ShortCode.MaxRetries),
		usecase.WithStoreTimeout(cfg.Storage.Timeout),
		usecase.WithMetrics(m),
	)

	r := delivery.NewRouter(logger, uc,
		delivery.WithBaseURL(cfg.BaseURL),
		delivery.WithMetrics(m, reg),
	)

	return otelhttp.NewHandler(r, "http"), nil
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := NewLogger(cfg.Env, nil)

	shutdownTracing := tracing.ShutdownFunc(tracing.Noop)
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.New(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
		if err != nil {
			return fmt.Errorf("%s: failed to set up tracing: %w", op, err)
		}
		shutdownTracing = shutdown
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := shutdownTracing(ctx); err != nil {
			logger.Error("failed to shut down tracing", slog.Any("err", err))
		}
	}()

	store, closer, err := openStore(ctx, cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler, err := newHandler(cfg, logger, store, reg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	server := newServer(ctx, cfg, handler)

	logger.Info("starting http server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

	listen := server.ListenAndServe
	if cfg.HTTPServer.TLS() {
		listen = func() error {
			return server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		}
	}

	if err := serve(ctx, server, listen, logger.Logger); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// newServer builds the HTTP server. Request contexts keep the values of ctx
// but not its cancellation, so requests still running at shutdown finish
// their store calls.
func newServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        handler,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}
}

// serve runs listen until ctx is done, then shuts server down and waits for
// in-flight requests.
func serve(ctx context.Context, server *http.Server, listen func() error, logger *slog.Logger) error {
	const op = "app.serve"

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
