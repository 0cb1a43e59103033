package adapthttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"attendance/internal/app"
	"attendance/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	operatorContextKey  contextKey = "operator"
	requestIDContextKey contextKey = "request_id"
)

// External request ids longer than this are replaced, to keep log
// fields bounded.
const requestIDMaxLen = 64

// authMiddleware resolves the session cookie to an operator.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Auth can be disabled for tests and trusted-network deployments.
		if s.disableAuth {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie("session")
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
			return
		}

		op, err := s.authSvc.Validate(r.Context(), cookie.Value)
		if errors.Is(err, app.ErrTokenNotFound) || errors.Is(err, app.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, "unauthorized", errors.New("unauthorized"))
			return
		}
		if err != nil {
			writeTransitionError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), operatorContextKey, op)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDMiddleware honours an inbound X-Request-ID or generates one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := context.WithValue(r.Context(), requestIDContextKey, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs one line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		rid, _ := r.Context().Value(requestIDContextKey).(string)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", rid),
		)
	})
}

// operatorFrom returns the authenticated operator, if any.
func operatorFrom(ctx context.Context) *domain.Operator {
	op, _ := ctx.Value(operatorContextKey).(*domain.Operator)
	return op
}
