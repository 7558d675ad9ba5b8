package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openclinic/booking-platform/internal/agent"
	httpmiddleware "github.com/openclinic/booking-platform/internal/http/middleware"
	"github.com/openclinic/booking-platform/internal/patients"
	"github.com/openclinic/booking-platform/internal/scheduling"
	"github.com/openclinic/booking-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	SchedulingHandler  *scheduling.Handler
	PatientsHandler    *patients.Handler
	ChatHandler        *agent.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.SchedulingHandler != nil {
		r.Get("/services", cfg.SchedulingHandler.ListServices)
		r.Get("/availability", cfg.SchedulingHandler.ListAvailability)
		r.Post("/appointments", cfg.SchedulingHandler.Book)
		r.Delete("/appointments/{appointmentID}", cfg.SchedulingHandler.Cancel)
	}

	if cfg.PatientsHandler != nil {
		r.Route("/patients", func(pr chi.Router) {
			pr.Post("/", cfg.PatientsHandler.Create)
			pr.Get("/lookup", cfg.PatientsHandler.Lookup)
			pr.Get("/{patientID}", cfg.PatientsHandler.Get)
			if cfg.SchedulingHandler != nil {
				pr.Get("/{patientID}/appointments", cfg.SchedulingHandler.ListForPatient)
			}
		})
	}

	// Conversational endpoint takes LLM round trips per call, so it gets
	// its own per-IP rate limit.
	if cfg.ChatHandler != nil {
		r.With(httpmiddleware.RateLimit(5, 10)).Post("/chat", cfg.ChatHandler.Chat)
	}

	return r
}
