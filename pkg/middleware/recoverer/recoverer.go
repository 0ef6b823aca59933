// Package recoverer turns handler panics into JSON error responses.
package recoverer

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// New returns a middleware that recovers from panics, logs them with the
// request id and answers 500 with body rendered as JSON.
// http.ErrAbortHandler is re-raised so the server can abort the connection.
func New(logger *slog.Logger, body any) func(http.Handler) http.Handler {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error(
					"panic recovered",
					slog.Group(op,
						slog.Any("panic", rvr),
						slog.String("request_id", middleware.GetReqID(r.Context())),
						slog.String("stack", string(debug.Stack())),
					),
				)

				if r.Header.Get("Connection") != "Upgrade" {
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, body)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
