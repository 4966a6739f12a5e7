package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/hray3182/chronoparse/internal/errcode"
)

// Recover turns a handler panic into an INTERNAL_ERROR response.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", v,
					"stack", string(debug.Stack()),
				)
				e := errcode.Wrap(errcode.InternalError, fmt.Errorf("panic: %v", v), "internal server error", "Retry later or contact support")
				_ = errcode.Write(w, e, time.Now())
			}()
			next.ServeHTTP(w, r)
		})
	}
}
