package handlers

import "net/http"

// HealthReporter exposes the cached database health flag.
type HealthReporter interface {
	Healthy() bool
}

// Headers a health probe must not carry.
var disallowedProbeHeaders = []string{"Authorization", "Content-Type", "Cookie"}

// HealthHandler answers liveness probes.
type HealthHandler struct {
	health HealthReporter
}

func NewHealthHandler(health HealthReporter) *HealthHandler {
	return &HealthHandler{health: health}
}

// NoStore marks every response of the wrapped handler uncacheable,
// including 405 and 503 answers written before the handler runs.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setNoStore(w.Header())
		next.ServeHTTP(w, r)
	})
}

func setNoStore(h http.Header) {
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
}

// Check answers 503 while the database is down, 400 for a probe that carries
// a query, a body or a disallowed header, and 200 otherwise. All answers are
// empty and uncacheable.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	setNoStore(w.Header())

	if !h.health.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if hasQuery(r) || hasBody(r) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	for _, name := range disallowedProbeHeaders {
		if _, ok := r.Header[name]; ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
