package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	tshttp "github.com/Strob0t/ticketslack/internal/adapter/http"
	tsnats "github.com/Strob0t/ticketslack/internal/adapter/nats"
	tsotel "github.com/Strob0t/ticketslack/internal/adapter/otel"
	"github.com/Strob0t/ticketslack/internal/adapter/postgres"
	tsristretto "github.com/Strob0t/ticketslack/internal/adapter/ristretto"
	tsslack "github.com/Strob0t/ticketslack/internal/adapter/slack"
	"github.com/Strob0t/ticketslack/internal/config"
	"github.com/Strob0t/ticketslack/internal/logger"
	"github.com/Strob0t/ticketslack/internal/middleware"
	"github.com/Strob0t/ticketslack/internal/resilience"
	"github.com/Strob0t/ticketslack/internal/secrets"
	"github.com/Strob0t/ticketslack/internal/service"
)

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		err = runAdmin(os.Args[2:])
	} else {
		err = run(os.Args[1:])
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"nats", cfg.NATS.URL != "",
		"breaker", cfg.Breaker.MaxFailures > 0,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOtel, err := tsotel.Setup(ctx, cfg.OTEL, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(flushCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := tsotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	patterns, err := tsristretto.NewPatterns(cfg.Cache.MaxPatterns)
	if err != nil {
		return fmt.Errorf("pattern cache: %w", err)
	}
	defer patterns.Close()

	// --- Services ---

	store := postgres.NewStore(pool, log)
	settings := service.NewSettingsService(store, cfg.Host.BaseURL)
	dispatcher := service.NewDispatcher(settings, store, store, newNotifier(cfg, metrics),
		service.WithPatternCache(patterns),
		service.WithMetrics(metrics),
	)

	// NATS is optional; without it events arrive over HTTP only.
	var bus *tsnats.Bus
	if cfg.NATS.URL != "" {
		bus, err = tsnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.Durable)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = bus.Close() }()

		snapshot, err := settings.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("settings: %w", err)
		}
		for _, sig := range service.Subscriptions(snapshot) {
			cancel, err := bus.Subscribe(ctx, sig, dispatcher.Handle)
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", sig, err)
			}
			defer cancel()
		}
	}

	// Shared secrets rotate on SIGHUP without a restart.
	vault, err := secrets.NewVault(secrets.ConfigLoader(func() (*config.Config, error) {
		c, _, err := config.LoadWithCLI(flags)
		return c, err
	}))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	// --- HTTP ---

	r := chi.NewRouter()
	r.Use(tsotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(middleware.RequestID)
	r.Use(tshttp.Logger)
	r.Use(tshttp.SecurityHeaders)
	r.Use(tshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", healthHandler(pool, bus))
	tshttp.MountRoutes(r, &tshttp.Handlers{Dispatcher: dispatcher, Settings: settings},
		vault, cfg.Ingress.SignatureHeader)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reloadSecrets(gctx, vault)
		return nil
	})
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		if bus != nil {
			if err := bus.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}

// reloadSecrets reloads vault on every SIGHUP until ctx is done.
func reloadSecrets(ctx context.Context, vault *secrets.Vault) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := vault.Reload(); err != nil {
				slog.Error("secret reload failed", "error", err)
				continue
			}
			slog.Info("secrets reloaded", "admin_token", vault.Redacted(secrets.KeyAdminToken))
		}
	}
}

// newNotifier builds the webhook notifier, guarded by a circuit breaker when
// one is configured.
func newNotifier(cfg *config.Config, metrics *tsotel.Metrics) *tsslack.Notifier {
	opts := []tsslack.Option{tsslack.WithHTTPClient(tsotel.HTTPClient(cfg.Delivery.Timeout))}

	if cfg.Breaker.MaxFailures > 0 {
		b := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		b.OnStateChange = func(from, to resilience.State) {
			slog.Warn("delivery breaker state changed", "from", from.String(), "to", to.String())
			metrics.BreakerTransitions.Add(context.Background(), 1, metric.WithAttributes(
				attribute.String("from", from.String()),
				attribute.String("to", to.String()),
			))
		}
		opts = append(opts, tsslack.WithBreaker(b))
	}

	return tsslack.NewNotifier(opts...)
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(pool *pgxpool.Pool, bus *tsnats.Bus) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		NATS     string `json:"nats"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok", Postgres: "ok", NATS: "disabled"}
		code := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			status.Status, status.Postgres = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
		if bus != nil {
			status.NATS = "ok"
			if !bus.IsConnected() {
				status.Status, status.NATS = "degraded", "disconnected"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
