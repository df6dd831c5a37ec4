package httputil

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/logger"
)

type contextKey string

const (
	RequestIDKey   contextKey = "request_id"
	requestInfoKey contextKey = "request_info"
)

const maxRequestIDLength = 64

// requestInfo is filled by inner handlers and read by Logger once the
// request completes
type requestInfo struct {
	operatorID string
}

// RequestID middleware reuses a well-formed X-Request-ID or generates one
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// SetOperator records the authenticated operator for the access log
func SetOperator(ctx context.Context, operatorID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.operatorID = operatorID
	}
}

// Logger middleware writes one access log line per request. Server errors
// log at error level and client errors at warn level.
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

			var ev *zerolog.Event
			switch {
			case wrapped.statusCode >= 500:
				ev = log.Error()
			case wrapped.statusCode >= 400:
				ev = log.Warn()
			default:
				ev = log.Info()
			}

			ev.Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Int("bytes", wrapped.bytes).
				Dur("duration", time.Since(start)).
				Str("operator_id", info.operatorID).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer turns a panic into a 500 with the standard error body
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error().
						Str("request_id", GetRequestID(r.Context())).
						Str("panic", fmt.Sprint(rec)).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					ErrorLocalized(w, r, errors.Internal("panic"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
