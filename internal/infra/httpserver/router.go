package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	appai "github.com/bryanwahyu/n0dr1e/internal/application/ai"
	appscans "github.com/bryanwahyu/n0dr1e/internal/application/scans"
	appthreats "github.com/bryanwahyu/n0dr1e/internal/application/threats"
	domai "github.com/bryanwahyu/n0dr1e/internal/domain/ai"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
	"github.com/bryanwahyu/n0dr1e/internal/middleware"
)

// Options wires the router. Only the three services are required.
type Options struct {
	Scans   *appscans.Service
	Threats *appthreats.Service
	AI      *appai.Service

	Metrics     *middleware.Metrics
	RateLimiter *middleware.RateLimiter
	APIKeys     map[string]string
	CORSOrigins []string
	// Health checkers for /health; "database" also gates /ready.
	Health map[string]middleware.HealthChecker
	Logger *slog.Logger
}

type Router struct {
	scansSvc   *appscans.Service
	threatsSvc *appthreats.Service
	aiSvc      *appai.Service
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		scansSvc:   opts.Scans,
		threatsSvc: opts.Threats,
		aiSvc:      opts.AI,
		logger:     logger,
		upgrader:   websocket.Upgrader{CheckOrigin: originChecker(opts.CORSOrigins)},
	}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(logger))
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Middleware)
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(opts.CORSOrigins),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateLimiter != nil {
		mux.Use(opts.RateLimiter.Middleware)
	}

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Health["database"]))
	mux.Get("/live", middleware.LivenessHandler)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics.Handler())
	}

	mux.Route("/v1/{user}", func(rt chi.Router) {
		rt.Use(middleware.RequireUser)

		rt.Get("/profile", r.wrap(r.handleProfile))

		rt.Post("/scans", r.wrap(r.handleStartScan))
		rt.Get("/scans", r.wrap(r.handleListScans))
		rt.Get("/scans/current", r.wrap(r.handleCurrent))
		rt.Delete("/scans/current", r.wrap(r.handleStopScan))
		rt.Get("/scans/current/stream", r.handleStream)
		rt.Get("/scans/{id}", r.wrap(r.handleGetScan))
		rt.Get("/summary", r.wrap(r.handleSummary))

		rt.Get("/threats", r.wrap(r.handleListThreats))
		rt.Post("/threats/{id}/quarantine", r.wrap(r.handleQuarantine))
		rt.Post("/threats/{id}/delete", r.wrap(r.handleDelete))
		rt.Post("/threats/{id}/ignore", r.wrap(r.handleIgnore))
		rt.Get("/threats/{id}/advice", r.wrap(r.handleAdvice))
		rt.Get("/quarantine", r.wrap(r.handleListQuarantine))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			r.writeError(w, req, err)
		}
	}
}

type errorBody struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
}

// statusOf maps error categories to HTTP codes.
func statusOf(err error) int {
	if errors.Is(err, domai.ErrQuotaExceeded) {
		return http.StatusTooManyRequests
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryAuthorization:
		return http.StatusForbidden
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryPrecondition:
		return http.StatusConflict
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		r.logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		report(req, err)
	}
	writeJSON(w, code, errorBody{Error: err.Error(), Category: string(errors.CategoryOf(err))})
}

// report sends server errors to Sentry. Without sentry.Init it is a no-op.
func report(req *http.Request, err error) {
	if errors.Is(err, domai.ErrQuotaExceeded) || errors.Is(err, errors.ErrUnavailable) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("component", "httpserver")
		scope.SetTag("category", string(errors.CategoryOf(err)))
		scope.SetTag("route", req.URL.Path)
		scope.SetUser(sentry.User{ID: chi.URLParam(req, "user")})
		if fields := errors.ContextOf(err); len(fields) > 0 {
			scope.SetContext("error", fields)
		}
		sentry.CaptureException(err)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(req *http.Request, op string, v any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, 1<<20))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return errors.New(err).Category(errors.CategoryValidation).Op(op).Msg("invalid JSON body").Build()
	}
	return nil
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// originChecker allows websocket upgrades from the configured CORS origins.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(req *http.Request) bool {
		if len(allowed) == 0 || allowed["*"] {
			return true
		}
		origin := req.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// pingPeriod keeps idle progress streams alive through proxies.
const pingPeriod = 30 * time.Second
