package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"social-link-bot/internal/httpresp"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request once the handler returns.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := log.Info()
			if status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// Recoverer turns a handler panic into a 500 envelope. The stack is only
// returned to the caller outside production.
func Recoverer(rw *httpresp.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil || rec == http.ErrAbortHandler {
					if rec != nil {
						panic(rec)
					}
					return
				}

				stack := debug.Stack()
				rw.Log.Error().
					Interface("panic", rec).
					Bytes("stack", stack).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("panic in http handler")
				rw.InternalServerError(w, r, "Error interno del servidor", map[string]any{
					"panic": fmt.Sprint(rec),
					"stack": string(stack),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
