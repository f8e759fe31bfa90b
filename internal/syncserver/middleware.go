package syncserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rune-vcs/rune/internal/auth"
)

// statusRecorder wraps http.ResponseWriter to capture the status code for
// logging, mirroring internal/server/middleware.go's statusRecorder.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// requestLogger logs method, path, status, and duration for each request.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sr.status,
			"duration", time.Since(start).Round(time.Microsecond),
			"ip", getClientIP(r),
		)
	})
}

// writeDeadline wraps a handler to set a per-response write deadline using
// ResponseController, bounding how long push/upload handlers may take to
// write their response.
func writeDeadline(d time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		_ = rc.SetWriteDeadline(time.Now().Add(d))
		next(w, r)
	}
}

// requirePerm wraps next with the auth package's bearer-token permission
// gate, using this server's audit-logging Store. Every endpoint except
// /health requires a token with the indicated permission; /sync/info
// requires read.
func (s *Server) requirePerm(permission auth.Permission, next http.HandlerFunc) http.HandlerFunc {
	return auth.RequireHTTP(s.cfg.Auth, permission, next)
}
