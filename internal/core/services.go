package core

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// Service is the interface every emulated storage service implements.
type Service interface {
	// Name returns the service identifier ("blob", "queue", "table"). It is
	// also the path prefix the edge router mounts the service under.
	Name() string

	// RegisterRoutes sets up HTTP routes on a sub-router scoped to the prefix.
	RegisterRoutes(router chi.Router)
}

// Registry holds the services available to the edge router.
type Registry struct {
	services []Service
}

// NewRegistry returns a registry containing services.
func NewRegistry(services ...Service) *Registry {
	r := &Registry{}
	for _, s := range services {
		r.Register(s)
	}
	return r
}

// Register adds a service. A service registered under an existing name replaces it.
func (r *Registry) Register(s Service) {
	for i, existing := range r.services {
		if existing.Name() == s.Name() {
			r.services[i] = s
			return
		}
	}
	r.services = append(r.services, s)
}

// Services returns the registered services in registration order.
func (r *Registry) Services() []Service {
	return r.services
}

// WriteError writes the error body the storage clients decode:
// {"error":{"code":"...","message":"..."}}.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteJSON(w, statusCode, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

// URLParam returns the unescaped value of a route parameter. chi matches on
// RawPath whenever the request carries one, which leaves parameters escaped.
func URLParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
