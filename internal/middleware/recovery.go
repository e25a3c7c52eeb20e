package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/2beens/engblog/internal/telemetry/metrics"
	"github.com/2beens/engblog/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PanicRecovery turns a handler panic into a 500 and records it on the request span.
// http.ErrAbortHandler is re-panicked, net/http uses it to abort a response on purpose.
func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				panicErr := fmt.Errorf("panic serving %s %s: %v", req.Method, req.URL.Path, rec)
				log.Errorf("http: %s\n%s", panicErr, debug.Stack())

				span := trace.SpanFromContext(req.Context())
				span.RecordError(panicErr)
				span.SetStatus(codes.Error, "panic")

				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}
				pkg.WriteJSON(w, map[string]any{
					"success": false,
					"error":   "internal server error",
				}, http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, req)
		})
	}
}
