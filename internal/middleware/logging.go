package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/portal-be/internal/logger"
)

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns a request id, honouring one supplied by the caller.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// Logging emits one access log line per request.
func Logging(log *zap.Logger, next http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("request_id", logger.RequestID(r.Context())),
			zap.Int("status", rec.status),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", logger.MaskIP(clientIP(r))),
		}
		if ua := r.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}

		if rec.status >= http.StatusInternalServerError {
			log.Error("request failed", fields...)
			return
		}
		log.Info("request completed", fields...)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
