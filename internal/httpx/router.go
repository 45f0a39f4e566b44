package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/asad/bluectl/internal/config"
	"github.com/asad/bluectl/internal/core"
	"github.com/asad/bluectl/internal/logging"
)

// EdgeRouter receives every emulator request and dispatches it to the
// service mounted under the first path segment (/blob, /queue, /table).
type EdgeRouter struct {
	router chi.Router
}

// NewEdgeRouter mounts every enabled service from registry. Service routes
// require a Shared Key signature for the development account.
func NewEdgeRouter(cfg *config.Config, logger logging.Logger, registry *core.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestIDHeader)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		core.WriteJSON(w, http.StatusOK, map[string]any{
			"status":   "healthy",
			"service":  "bluectl",
			"services": enabledNames(cfg, registry),
		})
	})

	for _, service := range registry.Services() {
		if !cfg.IsServiceEnabled(service.Name()) {
			logger.Info("skipping service (not enabled)",
				logging.String("service", service.Name()),
			)
			continue
		}
		logger.Info("registering service routes",
			logging.String("service", service.Name()),
		)
		r.Route("/"+service.Name(), func(r chi.Router) {
			r.Use(SharedKeyAuth(emulatorAccounts, logger))
			service.RegisterRoutes(r)
		})
	}

	return &EdgeRouter{router: r}
}

// ServeHTTP implements http.Handler.
func (er *EdgeRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	er.router.ServeHTTP(w, r)
}

func enabledNames(cfg *config.Config, registry *core.Registry) []string {
	names := make([]string, 0, len(registry.Services()))
	for _, s := range registry.Services() {
		if cfg.IsServiceEnabled(s.Name()) {
			names = append(names, s.Name())
		}
	}
	return names
}

// requestIDHeader echoes the client request id and exposes the server one.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("x-ms-client-request-id"); id != "" {
			w.Header().Set("x-ms-client-request-id", id)
		}
		w.Header().Set("x-ms-request-id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r)
	})
}

// requestLoggingMiddleware logs method, path, status and latency of each request.
func requestLoggingMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.String("query", r.URL.RawQuery),
				logging.Int("status", ww.Status()),
				logging.Duration("latency_ms", time.Since(start)),
				logging.String("client_request_id", r.Header.Get("x-ms-client-request-id")),
				logging.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
