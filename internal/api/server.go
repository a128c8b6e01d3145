// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/models"
	"github.com/safebase-monitor/internal/scheduler"
	"github.com/safebase-monitor/internal/service"
	"github.com/safebase-monitor/internal/types"
)

// Service interfaces for dependency injection and testing

// AnalyzeServiceInterface defines the on-demand analysis operations.
type AnalyzeServiceInterface interface {
	Analyze(ctx context.Context, userID string, tier types.UserTier, target string) (*service.AnalysisResult, error)
	AnalyzeContract(ctx context.Context, userID string, tier types.UserTier, address string) (*service.AnalysisResult, error)
	AnalyzeURL(ctx context.Context, userID string, tier types.UserTier, url string) (*service.AnalysisResult, error)
}

// MonitorServiceInterface defines the watchlist monitoring operations.
type MonitorServiceInterface interface {
	Add(ctx context.Context, userID, address string) (*service.AddResult, error)
	Remove(ctx context.Context, userID, address string) error
	List(ctx context.Context, userID string) ([]*models.WatchedAddress, error)
	GetSettings(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	UpdateSettings(ctx context.Context, prefs *models.NotificationPreferences) (*models.NotificationPreferences, error)
	History(ctx context.Context, userID, address string, from, to time.Time, limit int) ([]types.Snapshot, error)
}

// ChatAssistantInterface defines the chat proxy operation.
type ChatAssistantInterface interface {
	Ask(ctx context.Context, question string, analysisContext map[string]interface{}) (string, error)
}

// SchedulerStatusProvider exposes poll loop state for the health endpoint.
type SchedulerStatusProvider interface {
	Status() scheduler.SchedulerStatus
}

// Server represents the HTTP API server.
type Server struct {
	router         *mux.Router
	httpServer     *http.Server
	analyzeService AnalyzeServiceInterface
	monitorService MonitorServiceInterface
	chatAssistant  ChatAssistantInterface
	schedStatus    SchedulerStatusProvider
	logger         *logging.Logger
	config         *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	FreeTierRPS     int
	PaidTierRPS     int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	analyzeService AnalyzeServiceInterface,
	monitorService MonitorServiceInterface,
	chatAssistant ChatAssistantInterface,
	schedStatus SchedulerStatusProvider,
	logger *logging.Logger,
) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		analyzeService: analyzeService,
		monitorService: monitorService,
		chatAssistant:  chatAssistant,
		schedStatus:    schedStatus,
		logger:         logger.WithField("component", "api"),
		config:         config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.FreeTierRPS, s.config.PaidTierRPS)

	// Middleware order matters: logging wraps everything, rate limiting
	// runs after CORS so preflights are never throttled.
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	// Routes register GET/POST only, so OPTIONS preflights land on the
	// method-not-allowed handler; mux skips route middleware for those, so
	// CORS has to be applied here explicitly.
	s.router.MethodNotAllowedHandler = CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, ErrCodeInvalidInput, "Method not allowed", nil)
	}))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Analysis endpoints
	api.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
	api.HandleFunc("/analyze/contract", s.handleAnalyzeContract).Methods("POST")
	api.HandleFunc("/analyze/url", s.handleAnalyzeURL).Methods("POST")

	// Monitoring endpoints
	api.HandleFunc("/monitor/add", s.handleMonitorAdd).Methods("POST")
	api.HandleFunc("/monitor/remove", s.handleMonitorRemove).Methods("POST")
	api.HandleFunc("/monitor/list", s.handleMonitorList).Methods("GET")
	api.HandleFunc("/monitor/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/monitor/settings", s.handleUpdateSettings).Methods("POST")
	api.HandleFunc("/monitor/history/{address}", s.handleMonitorHistory).Methods("GET")

	// Chat assistant proxy
	api.HandleFunc("/chat", s.handleChat).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "safebase-monitor",
	}
	if s.schedStatus != nil {
		response["scheduler"] = s.schedStatus.Status()
	}
	respondJSON(w, http.StatusOK, response)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
