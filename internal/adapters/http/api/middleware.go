// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/circolo-dev/fantacircolo/internal/adapters/auth"
	service "github.com/circolo-dev/fantacircolo/internal/app"
	"github.com/circolo-dev/fantacircolo/internal/domain/model"
	"github.com/circolo-dev/fantacircolo/pkg/metrics"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(wrapped.statusCode))
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, durationMs)
	}
}

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// principalResolver turns a request's bearer token into the gated user. The
// allow-list check and first-login provisioning run on every resolution,
// mirroring an auth-state observer.
type principalResolver struct {
	verifier auth.Verifier
	deps     Dependencies
}

func newPrincipalResolver(verifier auth.Verifier, deps Dependencies) *principalResolver {
	return &principalResolver{verifier: verifier, deps: deps}
}

// user resolves the request to a signed-in, allow-listed user.
func (p *principalResolver) user(r *http.Request) (model.User, error) {
	token := bearerToken(r)
	if token == "" {
		return model.User{}, service.ErrNotAuthenticated
	}
	principal, err := p.verifier.Verify(r.Context(), token)
	if err != nil {
		return model.User{}, err
	}
	return p.deps.SignIn(r.Context(), principal)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix))
}
