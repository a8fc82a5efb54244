package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/ledgerbook/internal/handler"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
)

// Recovery turns a handler panic into a logged 500. http.ErrAbortHandler is
// re-raised so net/http can abort the connection as intended.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cw := newCaptureWriter(w, false)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logging.FromContext(r.Context()).Error("panic recovered",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			if !cw.wroteHeader {
				handler.RespondAppError(cw, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(cw, r)
	})
}
