package statusapi

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"transkribator/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Debug("status request",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", rec.status),
				logging.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logging.ErrorWithContext(logger, "panic recovered", "status_api_panic",
						logging.Any("error", err),
						logging.String("stack", string(debug.Stack())),
						logging.String("path", r.URL.Path),
					)
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
