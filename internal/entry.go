// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/plantcare/internal/api"
	"github.com/starford/plantcare/internal/garden"
	"github.com/starford/plantcare/internal/inbox"
	"github.com/starford/plantcare/internal/journal"
	"github.com/starford/plantcare/internal/mcpserver"
	"github.com/starford/plantcare/internal/metrics"
	"github.com/starford/plantcare/internal/plantstore"
	"github.com/starford/plantcare/internal/reminder"
	"github.com/starford/plantcare/internal/species"
	"github.com/starford/plantcare/internal/sse"
	"github.com/starford/plantcare/internal/storage"
)

// core holds the components every command needs.
type core struct {
	metrics *metrics.Metrics
	store   *plantstore.Client
	species *species.Client
	journal *journal.DB
	garden  *garden.Garden
}

func (c *core) Close() {
	c.species.Close()
	if err := c.journal.Close(); err != nil {
		slog.Warn("journal close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout, now: time.Now}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setupLogger installs the JSON logger as the default. MCP mode speaks the
// protocol on stdout, so logs go to stderr there.
func setupLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func buildCore(app *application, m *metrics.Metrics, gardenOpts ...garden.Option) (*core, error) {
	cfg := app.config

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}

	store := plantstore.New(plantstore.Config{
		BaseURL: cfg.Store.BaseURL,
		Timeout: cfg.Store.Timeout,
		Metrics: m,
	})
	sp := species.NewClient(species.Config{
		BaseURL:     cfg.Species.BaseURL,
		APIKey:      cfg.Species.APIKey,
		Timeout:     cfg.Species.Timeout,
		CacheTTL:    cfg.Species.CacheTTL,
		RateLimitMS: cfg.Species.RateLimitMS,
		Metrics:     m,
	})

	opts := append([]garden.Option{
		garden.WithWateringLog(db),
		garden.WithMetrics(m),
		garden.WithClock(app.now),
	}, gardenOpts...)
	g := garden.New(store, sp, opts...)

	return &core{metrics: m, store: store, species: sp, journal: db, garden: g}, nil
}

// Run starts the HTTP server, the reminder scheduler and, when enabled, the
// photo inbox watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := setupLogger(cfg, os.Stdout)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_url", cfg.Store.BaseURL),
		slog.String("journal_path", cfg.Journal.Path),
		slog.Duration("reminder_interval", cfg.Reminders.Interval),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	broker := sse.NewBroker(cfg.App.HTTP.EventThrottle, m)
	defer broker.Close()

	c, err := buildCore(app, m, garden.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.garden.Refresh(ctx); err != nil {
		logger.Warn("initial plant fetch failed", slog.String("error", err.Error()))
	}

	scheduler := reminder.New(c.garden,
		reminder.WithInterval(cfg.Reminders.Interval),
		reminder.WithPublisher(broker),
		reminder.WithRecorder(c.journal),
		reminder.WithMetrics(c.metrics))

	var box *inbox.Inbox
	if cfg.Inbox.Enabled {
		fsStore, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		box = inbox.New(fsStore, c.garden, c.journal,
			inbox.WithSettle(cfg.Inbox.Settle),
			inbox.WithMetrics(c.metrics))
	}

	apiRouter := api.NewRouter(api.Deps{
		Garden:      c.garden,
		Species:     c.species,
		History:     c.journal,
		Events:      broker,
		Metrics:     c.metrics,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(c))
	r.Handle("/metrics", c.metrics.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	if box != nil {
		g.Go(func() error {
			return box.Run(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// readyHandler reports ready once the plant store has answered.
func readyHandler(c *core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.store.List(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":"unavailable","error":%q}`, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// RunMCP serves the MCP tools on stdin/stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	setupLogger(app.config, os.Stderr)

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	c, err := buildCore(app, m)
	if err != nil {
		return err
	}
	defer c.Close()

	slog.Info("MCP server starting on stdio")
	return mcpserver.New(c.garden, c.species, app.version).ServeStdio()
}

// CheckReminders fetches the plants once and prints the reminders due now.
// Printed reminders are recorded in the journal.
func CheckReminders(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	setupLogger(app.config, os.Stderr)

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	c, err := buildCore(app, m)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.garden.Refresh(ctx); err != nil {
		return fmt.Errorf("fetch plants: %w", err)
	}
	due := reminder.New(c.garden, reminder.WithRecorder(c.journal), reminder.WithMetrics(c.metrics)).Check()
	if len(due) == 0 {
		_, err := fmt.Fprintln(app.out, "No plants need watering.")
		return err
	}
	lines := make([]string, len(due))
	for i, r := range due {
		lines[i] = r.Message
	}
	_, err = fmt.Fprintln(app.out, strings.Join(lines, "\n\n"))
	return err
}
