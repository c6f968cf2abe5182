// Package gateway serves log compaction over HTTP and websocket.
//
// DESIGN: One Gateway owns every long-lived component:
//   - Router:     worker pools per strategy (router.go)
//   - Store:      originals and cached results, keyed by content ID
//   - Usage:      optional SQLite usage statistics
//   - Forwarder:  optional model client for /v1/diagnose
//   - Monitoring: logger, request logger, metrics, alerts, telemetry
//
// FLOW (per request):
//  1. Middleware: panic recovery → rate limit → logging → security
//  2. Handler decodes and validates the body (handlers.go)
//  3. Router runs the pipe for the requested strategy
//  4. record() fans the outcome out to metrics, telemetry and usage
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compresr/squeeze/external"
	"github.com/compresr/squeeze/internal/config"
	"github.com/compresr/squeeze/internal/monitoring"
	"github.com/compresr/squeeze/internal/store"
	"github.com/compresr/squeeze/internal/tokens"
	"github.com/compresr/squeeze/internal/usage"
)

// Gateway is the squeeze HTTP server.
type Gateway struct {
	cfg       *config.Config
	server    *http.Server
	router    *Router
	store     store.Store
	usage     *usage.Store // nil when disabled
	tokens    *tokens.Counter
	forwarder *external.Forwarder // nil when disabled

	logger        *monitoring.Logger
	requestLogger *monitoring.RequestLogger
	metrics       *monitoring.MetricsCollector
	alerts        *monitoring.AlertManager
	tracker       *monitoring.Tracker

	rateLimiter  *rateLimiter
	maxBodyBytes int64
	startedAt    time.Time
}

// New builds a Gateway from cfg. The returned gateway owns the store, the
// usage database and the telemetry files; call Shutdown to release them.
func New(cfg *config.Config) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := monitoring.New(cfg.Monitoring.LoggerConfig())

	tracker, err := monitoring.NewTracker(cfg.Monitoring.TelemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	var usageStore *usage.Store
	if cfg.Usage.Enabled {
		usageStore, err = usage.Open(cfg.Usage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open usage database: %w", err)
		}
	}

	var forwarder *external.Forwarder
	if cfg.Forwarder.Enabled {
		forwarder, err = external.NewForwarder(context.Background(), cfg.Forwarder)
		if err != nil {
			if usageStore != nil {
				_ = usageStore.Close()
			}
			return nil, fmt.Errorf("failed to init forwarder: %w", err)
		}
	}

	st := store.NewMemoryStoreWithDualTTL(cfg.Store.OriginalTTL, cfg.Store.CompactedTTL)

	maxBody := cfg.Server.MaxBodyBytes
	if maxBody == 0 {
		maxBody = DefaultMaxBodyBytes
	}

	g := &Gateway{
		cfg:           cfg,
		router:        NewRouter(cfg, st),
		store:         st,
		usage:         usageStore,
		tokens:        tokens.NewCounter(cfg.Tokens),
		forwarder:     forwarder,
		logger:        logger,
		requestLogger: monitoring.NewRequestLogger(logger),
		metrics:       monitoring.NewMetricsCollector(),
		alerts:        monitoring.NewAlertManager(logger, cfg.Monitoring.AlertConfig()),
		tracker:       tracker,
		rateLimiter:   newRateLimiter(cfg.Server.RateLimit),
		maxBodyBytes:  maxBody,
		startedAt:     time.Now(),
	}

	g.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      g.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return g, nil
}

// Handler returns the full middleware-wrapped handler.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	g.setupRoutes(mux)
	return g.panicRecovery(g.rateLimit(g.loggingMiddleware(g.security(mux))))
}

func (g *Gateway) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /stats", g.handleStats)
	mux.HandleFunc("POST /v1/compact", g.handleCompact)
	mux.HandleFunc("POST /compress", g.handleCompress)
	mux.HandleFunc("POST /transform", g.handleTransform)
	mux.HandleFunc("GET /v1/original/{id}", g.handleOriginal)
	mux.HandleFunc("POST /v1/diagnose", g.handleDiagnose)
	mux.HandleFunc("GET /v1/stream", g.handleStream)
}

// Start listens and serves until Shutdown is called.
func (g *Gateway) Start() error {
	log.Info().
		Str("addr", g.server.Addr).
		Bool("forwarder", g.forwarder != nil).
		Bool("usage", g.usage != nil).
		Msg("squeeze gateway listening")

	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	err := g.server.Shutdown(ctx)

	g.rateLimiter.close()
	if cerr := g.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if g.usage != nil {
		if cerr := g.usage.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if cerr := g.tracker.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// writeJSON writes v with status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}

// writeError writes the JSON error envelope.
func (g *Gateway) writeError(w http.ResponseWriter, msg, errType string, status int) {
	g.writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Message: msg, Type: errType}})
}
