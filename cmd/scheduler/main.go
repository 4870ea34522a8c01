package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/example/music-school-scheduler/internal/activity"
	"github.com/example/music-school-scheduler/internal/application"
	"github.com/example/music-school-scheduler/internal/auth"
	"github.com/example/music-school-scheduler/internal/config"
	httptransport "github.com/example/music-school-scheduler/internal/http"
	"github.com/example/music-school-scheduler/internal/logging"
	"github.com/example/music-school-scheduler/internal/persistence/memory"
	"github.com/example/music-school-scheduler/internal/persistence/sqlite"
	"github.com/example/music-school-scheduler/internal/school"
)

func main() {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "scheduler:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "hash-token" {
		return hashToken(args[1:], stdout)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.NewJSON(stdout, cfg.ParsedLogLevel)

	srv, err := newServer(ctx, cfg, logger, time.Now)
	if err != nil {
		logger.Error("failed to start scheduler", "error", err)
		return err
	}
	defer srv.Close()

	return srv.Serve(ctx)
}

// hashToken prints the argon2id hash to place in SCHEDULER_API_TOKEN_HASH.
func hashToken(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	params := auth.DefaultArgon2idParams
	memoryKiB := fs.Uint("memory", uint(params.Memory), "argon2id memory in KiB")
	iterations := fs.Uint("iterations", uint(params.Iterations), "argon2id iterations")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: scheduler hash-token [-memory KiB] [-iterations n] <token>")
	}
	params.Memory = uint32(*memoryKiB)
	params.Iterations = uint32(*iterations)

	encoded, err := auth.HashToken(strings.TrimSpace(fs.Arg(0)), params)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, encoded)
	return err
}

// server bundles the wired scheduling stack and its HTTP handler.
type server struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *sqlite.ActivityStore
	service *application.SchedulingService
	handler http.Handler
}

func newServer(ctx context.Context, cfg config.Config, logger *slog.Logger, now func() time.Time) (*server, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	verifier, err := auth.NewVerifier(cfg.APITokenHash)
	if err != nil {
		return nil, fmt.Errorf("api token hash: %w", err)
	}

	registry := school.NewRegistry()
	if cfg.SeedFile != "" {
		registry, err = school.LoadSeedFile(cfg.SeedFile, loc)
		if err != nil {
			return nil, err
		}
	}
	teachers, students, rooms := registry.Counts()
	logger.Info("school directory loaded", "teachers", teachers, "students", students, "rooms", rooms)

	store, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	activities := memory.New(store)
	loaded, err := activities.Load(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load activities: %w", err)
	}

	service := application.NewSchedulingServiceWithLogger(
		activities,
		registry,
		activity.RandomSuffix,
		now,
		logger,
		application.WithLocation(loc),
		application.WithPreviewTTL(cfg.PreviewCacheTTL),
		application.WithUsageSink(usageLogger(logger)),
	)
	restored, err := service.Restore(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("restore calendars: %w", err)
	}
	logger.Info("activities restored", "loaded", loaded, "holding_slots", restored)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Activities: httptransport.NewActivityHandler(service, logger),
		Directory:  httptransport.NewDirectoryHandler(registry, now, logger),
		Auth:       httptransport.RequireToken(verifier, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RateLimit(cfg.RateLimit, cfg.RateBurst, logger),
		},
		Logger: logger,
	})

	return &server{cfg: cfg, logger: logger, store: store, service: service, handler: handler}, nil
}

// usageLogger records hour consumption until a billing system consumes the events.
func usageLogger(logger *slog.Logger) application.UsageSink {
	return application.UsageSinkFunc(func(ctx context.Context, event application.UsageEvent) {
		logger.InfoContext(ctx, "student hours charged",
			"activity_id", event.ActivityID,
			"student_id", event.StudentID,
			"hours", event.Hours,
			"consumed", event.Consumed,
			"reason", event.Reason,
		)
	})
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.HTTPPort),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("scheduler API listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shutdown server", "error", err)
			return err
		}
		s.logger.Info("scheduler API stopped")
		return nil
	})
	return g.Wait()
}

// Close releases the database.
func (s *server) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close storage", "error", err)
	}
}
