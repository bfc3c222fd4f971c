// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/workpulse/internal/adapters/broadcast"
	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/internal/domain/schedule"
	"github.com/okian/workpulse/internal/domain/stats"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/pkg/logger"
)

const defaultKeepAlive = 15 * time.Second

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Protocol operations.
	Handle(ctx context.Context, req types.Request) (any, error)
	Click(ctx context.Context, req types.ClickDetected) types.ClickResult
	UpdateSchedule(ctx context.Context, s *schedule.Schedule) (types.ScheduleAck, error)
	TrackingStatus(ctx context.Context) (types.TrackingStatus, error)
	ForceStart(ctx context.Context) (types.TrackingStatus, error)

	// Activity reads and maintenance.
	Snapshot(ctx context.Context) (model.Snapshot, error)
	Summary(ctx context.Context) (stats.Summary, error)
	ResetStats(ctx context.Context) error
	Cleanup(ctx context.Context) (int, error)
	CleanupWithRetention(ctx context.Context, days int) (int, error)

	// Observer registry.
	Observers() []string
	ConnectObserver(ctx context.Context, url string) (*broadcast.StreamObserver, error)
	DisconnectObserver(ctx context.Context, o *broadcast.StreamObserver)
	PingObserver(ctx context.Context, id string) (types.PingResponse, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	messageHandler  *MessageHandler
	activityHandler *ActivityHandler
	observerHandler *ObserverHandler
	logger          logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	keepAlive time.Duration
	logger    logger.Logger
}

// WithKeepAlive sets the interval of comment frames on observer streams.
func WithKeepAlive(d time.Duration) ServerOption {
	return func(c *serverConfig) {
		if d > 0 {
			c.keepAlive = d
		}
	}
}

// WithLogger sets the logger of the handlers.
func WithLogger(l logger.Logger) ServerOption {
	return func(c *serverConfig) { c.logger = l }
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	cfg := serverConfig{keepAlive: defaultKeepAlive, logger: logger.Get().Named("api")}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		messageHandler:  NewMessageHandler(deps),
		activityHandler: NewActivityHandler(deps),
		observerHandler: NewObserverHandler(deps, cfg.keepAlive, cfg.logger),
		logger:          cfg.logger,
	}
}

// Register attaches all HTTP routes to r. Other packages may have added
// routes to r already.
func (s *Server) Register(ctx context.Context, r chi.Router) {
	r.Group(func(r chi.Router) {
		s.routes(r)
	})
	s.logger.Info(ctx, "http routes registered")
}

func (s *Server) routes(r chi.Router) {
	r.Use(middleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", MetricsMiddleware(s.messageHandler.HandleMessage, "messages"))
		r.Post("/clicks", MetricsMiddleware(s.messageHandler.HandleClick, "clicks"))
		r.Put("/schedule", MetricsMiddleware(s.messageHandler.HandleSchedule, "schedule"))
		r.Get("/status", MetricsMiddleware(s.messageHandler.HandleStatus, "status"))
		r.Post("/tracking/force-start", MetricsMiddleware(s.messageHandler.HandleForceStart, "force_start"))

		r.Get("/stats", MetricsMiddleware(s.activityHandler.HandleSnapshot, "activity"))
		r.Delete("/stats", MetricsMiddleware(s.activityHandler.HandleReset, "activity_reset"))
		r.Get("/stats/summary", MetricsMiddleware(s.activityHandler.HandleSummary, "activity_summary"))
		r.Post("/stats/cleanup", MetricsMiddleware(s.activityHandler.HandleCleanup, "activity_cleanup"))

		r.Get("/observers", MetricsMiddleware(s.observerHandler.HandleList, "observers"))
		r.Get("/observers/stream", s.observerHandler.HandleStream)
		r.Post("/observers/{id}/ping", MetricsMiddleware(s.observerHandler.HandlePing, "observer_ping"))
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrMalformed),
		errors.Is(err, types.ErrMissingPayload),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, types.ErrUnknownAction):
		return http.StatusBadRequest, "unknown_action"
	case errors.Is(err, schedule.ErrInvalidSchedule),
		errors.Is(err, schedule.ErrInvalidClock):
		return http.StatusBadRequest, "invalid_schedule"
	case errors.Is(err, stats.ErrInvalidRetention):
		return http.StatusBadRequest, "invalid_retention"
	case errors.Is(err, broadcast.ErrUnknownObserver),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrDeliveryFailure):
		return http.StatusBadGateway, "delivery_failure"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
