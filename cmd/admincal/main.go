package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beekhof/admin-calendar/internal/auth"
	"github.com/beekhof/admin-calendar/internal/booking"
	calclient "github.com/beekhof/admin-calendar/internal/calendar"
	"github.com/beekhof/admin-calendar/internal/config"
	"github.com/beekhof/admin-calendar/internal/inquiry"
	"github.com/beekhof/admin-calendar/internal/observability/metrics"
	"github.com/beekhof/admin-calendar/internal/reminder"
	"github.com/beekhof/admin-calendar/internal/sync"
	"github.com/beekhof/admin-calendar/internal/web"
	appmigrations "github.com/beekhof/admin-calendar/migrations"
	"github.com/beekhof/admin-calendar/pkg/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `Admin Calendar

Serves the concierge admin calendar: Google Calendar events merged with
internally booked inquiries, 30 minute slot availability, and booking into
either source.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -h, --help                    Show this help message and exit
    -v, --verbose                 Enable verbose output (show DEBUG logs)
    --config FILE                 Path to a JSON or YAML config file (optional)
    --env-file FILE               Path to a .env file loaded before anything else (default: .env)
    --listen ADDR                 HTTP listen address (overrides LISTEN_ADDR, default :8080)
    --timezone NAME               IANA time zone used for calendar days (overrides TIMEZONE)
    --calendar-id ID              Google calendar id (overrides GOOGLE_CALENDAR_ID)
    --google-credentials-path PATH Path to Google OAuth credentials JSON file
                                  (overrides config file and GOOGLE_CREDENTIALS_PATH env var)
    --database-url URL            Postgres URL for the inquiry table (overrides DATABASE_URL)
                                  Inquiries are kept in memory when empty
    --migrate                     Apply database migrations before serving

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables
    3. Config file (--config)
    4. Defaults

ENVIRONMENT VARIABLES:
        GOOGLE_CALENDAR_ID        Calendar shown on the board
        GOOGLE_API_KEY            API key for read access without sign-in
        GOOGLE_OAUTH_CLIENT_ID    OAuth client for creating events
        GOOGLE_OAUTH_CLIENT_SECRET
        OAUTH_REDIRECT_URL        Callback registered with Google (default: http://localhost:8080/oauth/callback)
        DATABASE_URL              Postgres URL for the inquiry table
        REMINDER_WEBHOOK_URL      Reminder scheduler (default: http://localhost:3003/api/schedule-reminder)
        ADMIN_JWT_SECRET          HMAC secret for admin bearer tokens
        REFRESH_CRON              Cron spec for periodic reloads, e.g. "*/15 * * * *"
        LISTEN_ADDR, LOG_LEVEL, TIMEZONE, WEEK_START

    Missing Google values do not stop the server; they are listed in the
    configuration banner of the calendar response.

EXAMPLES:
    # Serve with in-memory inquiries
    GOOGLE_CALENDAR_ID=clinic@group.calendar.google.com %s

    # Serve against Postgres, applying migrations first
    %s --database-url postgres://localhost/concierge --migrate

    # Show help
    %s --help

`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	verboseFlag := flag.Bool("verbose", false, "Enable verbose output (show DEBUG logs)")
	verboseFlagShort := flag.Bool("v", false, "Enable verbose output (shorthand)")
	configFile := flag.String("config", "", "Path to JSON or YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "Path to a .env file")
	listen := flag.String("listen", "", "HTTP listen address (overrides LISTEN_ADDR)")
	timezone := flag.String("timezone", "", "IANA time zone (overrides TIMEZONE)")
	calendarID := flag.String("calendar-id", "", "Google calendar id (overrides GOOGLE_CALENDAR_ID)")
	googleCredentialsPath := flag.String("google-credentials-path", "", "Path to Google OAuth credentials JSON file (overrides GOOGLE_CREDENTIALS_PATH)")
	databaseURL := flag.String("database-url", "", "Postgres URL (overrides DATABASE_URL)")
	runMigrations := flag.Bool("migrate", false, "Apply database migrations before serving")
	flag.Parse()

	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	flags := config.Flags{
		Listen:                *listen,
		Timezone:              *timezone,
		GoogleCalendarID:      *calendarID,
		GoogleCredentialsPath: *googleCredentialsPath,
		DatabaseURL:           *databaseURL,
	}
	if *verboseFlag || *verboseFlagShort {
		flags.LogLevel = "debug"
	}

	cfg, err := config.LoadConfig(*configFile, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	if err := run(cfg, *runMigrations, logger); err != nil {
		logger.Error("admin calendar stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, migrate bool, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if missing := cfg.Missing(); len(missing) > 0 {
		logger.Warn("google calendar is not fully configured", "missing", missing)
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET is empty; admin endpoints will reject every request")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	calendarMetrics := metrics.NewCalendarMetrics(registry)

	// Inquiry storage
	var repo inquiry.Repository
	if cfg.DatabaseURL != "" {
		if migrate {
			if err := appmigrations.Up(cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("database migrations applied")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		repo = inquiry.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL is empty; inquiries are kept in memory")
		repo = inquiry.NewInMemoryRepository()
	}

	// Google access: API key for anonymous reads, session token once connected
	factory := calclient.NewFactory(cfg.GoogleAPIKey)
	authorizer := auth.NewAuthorizer(
		auth.NewOAuthConfig(cfg.GoogleOAuthClientID, cfg.GoogleOAuthClientSecret, cfg.OAuthRedirectURL),
		auth.NewMemoryTokenStore(),
	)

	reminders := reminder.NewQueue(cfg.ReminderWebhookURL, reminder.DefaultQueueSize, nil, calendarMetrics, logger.With("component", "reminder"))
	reminders.Start(ctx)

	syncer := sync.NewSyncer(factory, repo, cfg.GoogleCalendarID, loc, calendarMetrics, logger.With("component", "sync"))
	board := booking.NewBoard(syncer, authorizer, reminders, booking.Options{
		WeekStart: cfg.FirstWeekday(),
		Missing:   cfg.Missing(),
		Metrics:   calendarMetrics,
		Logger:    logger.With("component", "board"),
	})
	board.Load(ctx)

	if cfg.RefreshCron != "" {
		scheduler, err := booking.ScheduleRefresh(ctx, cfg.RefreshCron, board)
		if err != nil {
			return err
		}
		defer scheduler.Stop()
		logger.Info("periodic refresh enabled", "schedule", cfg.RefreshCron)
	}

	server := web.NewServer(web.Config{
		Board:          board,
		OAuth:          authorizer,
		Logger:         logger.With("component", "http"),
		AdminJWTSecret: cfg.AdminJWTSecret,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin calendar listening", "addr", cfg.Listen, "timezone", loc.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	if err := reminders.Close(shutdownCtx); err != nil {
		logger.Warn("reminder queue not drained", "error", err)
	}
	return nil
}
