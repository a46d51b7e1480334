package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a request logging middleware using zerolog. Requests
// carrying a classroom or recipient identity get it logged, so one
// room's or one user's traffic can be traced without request bodies.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// The gateway hijacks the socket connection: the response
			// writer must stay unwrapped, and the entry describes a
			// session, not a request/response pair.
			if r.URL.Path == "/api/socket" {
				next.ServeHTTP(w, r)
				logger.Info().
					Str("uid", r.URL.Query().Get("uid")).
					Dur("session", time.Since(start)).
					Str("remote_addr", r.RemoteAddr).
					Msg("socket session closed")
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				evt := logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr)
				if uid := r.URL.Query().Get("uid"); uid != "" {
					evt = evt.Str("uid", uid)
				}
				if classID := r.URL.Query().Get("classId"); classID != "" {
					evt = evt.Str("class_id", classID)
				}
				evt.Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
