package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/openclinic/booking-platform/internal/agent"
	"github.com/openclinic/booking-platform/internal/api/router"
	"github.com/openclinic/booking-platform/internal/calendar"
	appconfig "github.com/openclinic/booking-platform/internal/config"
	"github.com/openclinic/booking-platform/internal/notify"
	"github.com/openclinic/booking-platform/internal/observability/metrics"
	"github.com/openclinic/booking-platform/internal/patients"
	"github.com/openclinic/booking-platform/internal/scheduling"
	"github.com/openclinic/booking-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Metrics registry with process/runtime collectors plus booking metrics.
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(promRegistry)

	// External calendar mirroring is optional; without credentials the
	// engine runs against a no-op source.
	var calendarSource calendar.Source = calendar.Disabled{}
	if cfg.CalendarEnabled {
		gs, err := calendar.NewGoogleSource(ctx, calendar.GoogleConfig{
			CalendarID:      cfg.GoogleCalendarID,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			logger.Error("failed to initialize Google Calendar source", "error", err)
			os.Exit(1)
		}
		calendarSource = gs
		logger.Info("Google Calendar mirroring enabled", "calendar_id", cfg.GoogleCalendarID)
	}

	// Email confirmations fall back to a log-only stub without an API key.
	var emailSender notify.EmailSender
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		emailSender = sender
	} else {
		emailSender = notify.NewStubEmailSender(logger)
		logger.Info("SendGrid not configured, email confirmations are log-only")
	}
	notifier := notify.NewService(emailSender, pool, logger)

	store := scheduling.NewPostgresStore(pool)
	engine := scheduling.NewEngine(scheduling.EngineConfig{
		Store:                 store,
		Calendar:              calendarSource,
		Notifier:              notifier,
		Logger:                logger,
		Metrics:               bookingMetrics,
		CalendarFetchTimeout:  cfg.CalendarFetchTimeout,
		CalendarMirrorTimeout: cfg.CalendarMirrorTimeout,
	})
	schedulingHandler := scheduling.NewHandler(engine, logger)

	patientRepo := patients.NewPostgresRepository(pool)
	patientsHandler := patients.NewHandler(patientRepo, logger)

	// Conversational agent is optional; the REST API works without it.
	var chatHandler *agent.Handler
	var geminiClient *agent.GeminiClient
	if cfg.GeminiAPIKey != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = redisClient.Close() }()

		logStore := agent.NewLogStore(pool, logger)
		tools := agent.NewToolRegistry(engine, patientRepo, logStore)
		geminiClient, err = agent.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, tools.Declarations())
		if err != nil {
			logger.Error("failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		sessions := agent.NewSessionStore(redisClient, cfg.SessionTTL)
		agentService := agent.NewService(agent.ServiceConfig{
			LLM:       geminiClient,
			Registry:  tools,
			Sessions:  sessions,
			Logger:    logger,
			MaxRounds: cfg.AgentMaxRounds,
		})
		chatHandler = agent.NewHandler(agentService, logger)
		logger.Info("conversational agent enabled", "model", cfg.GeminiModelID)
	} else {
		logger.Info("GEMINI_API_KEY not set, conversational agent disabled")
	}

	r := router.New(&router.Config{
		Logger:             logger,
		SchedulingHandler:  schedulingHandler,
		PatientsHandler:    patientsHandler,
		ChatHandler:        chatHandler,
		MetricsHandler:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if geminiClient != nil {
		geminiClient.Close()
	}

	logger.Info("server stopped")
}
