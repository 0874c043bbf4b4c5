// Package http provides net/http middleware that enforces the hookgen daily quota.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

// UserIDExtractor extracts the user ID from an HTTP request
// Return empty string if user is not authenticated
type UserIDExtractor func(r *http.Request) string

// Config holds middleware configuration
type Config struct {
	// Guard runs the quota check and commit (required)
	Guard *hookgen.Guard

	// GetUserID extracts user ID from request (required)
	GetUserID UserIDExtractor

	// OnQuotaExceeded is called when quota is exceeded
	// If nil, returns 429 JSON with the quota state
	OnQuotaExceeded func(w http.ResponseWriter, r *http.Request, a hookgen.Admission)

	// OnUnauthorized is called when user is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)
}

// Middleware checks the quota before next runs and commits one generation
// when next answers with a 2xx status.
func Middleware(config Config) func(http.Handler) http.Handler {
	if config.Guard == nil {
		panic("hookgen/http: Config.Guard is required")
	}
	if config.GetUserID == nil {
		panic("hookgen/http: Config.GetUserID is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := config.GetUserID(r)
			if userID == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "User authentication required"})
				}
				return
			}

			ctx := r.Context()
			adm := config.Guard.Admit(ctx, userID)
			for k, v := range adm.Headers() {
				w.Header().Set(k, v)
			}
			if !adm.Allowed() {
				if config.OnQuotaExceeded != nil {
					config.OnQuotaExceeded(w, r, adm)
				} else {
					writeJSON(w, http.StatusTooManyRequests, adm.Exceeded())
				}
				return
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(ctx, UserIDKey, userID)))
			_ = config.Guard.Settle(ctx, adm, rec.Status()) //nolint:errcheck // logged by the guard
		})
	}
}

// HandlerFunc creates an HTTP middleware that enforces quota limits (HandlerFunc version)
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return middleware(next).ServeHTTP
	}
}

// statusRecorder remembers the status code the wrapped handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Status returns the written status, or 200 if the handler wrote nothing.
func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ContextKey is a type for context keys
type ContextKey string

const (
	// UserIDKey is the context key under which the middleware stores the admitted user ID
	UserIDKey ContextKey = "hookgen:userID"
)

// UserID returns the user ID the middleware admitted, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

// FromContext returns an UserIDExtractor that gets user ID from request context
func FromContext(key interface{}) UserIDExtractor {
	return func(r *http.Request) string {
		if userID, ok := r.Context().Value(key).(string); ok {
			return userID
		}
		return ""
	}
}

// FromHeader returns an UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}
