package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	weberrors "github.com/nickoftime/keyvault-spo/internal/web/errors"
	"github.com/nickoftime/keyvault-spo/pkg/logger"
	"github.com/nickoftime/keyvault-spo/web/pages"
)

// Recovery returns a middleware that recovers from panics, logs them and
// renders the error page.
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				correlationID := logger.CorrelationIDFromContext(r.Context())
				if correlationID == "" {
					correlationID = weberrors.NewCorrelationID()
				}

				logEntry := weberrors.NewErrorLogEntry(
					correlationID,
					weberrors.CodeInternalError,
					"panic recovered",
				)

				log.Error("panic recovered",
					"error", rec,
					"correlation_id", logEntry.CorrelationID,
					"error_code", logEntry.ErrorCode,
					"stack_trace", string(debug.Stack()),
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
				)

				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("Cache-Control", "no-cache, no-store")
				w.WriteHeader(http.StatusInternalServerError)
				if err := pages.Error(pages.ErrorData{CorrelationID: correlationID}).Render(context.WithoutCancel(r.Context()), w); err != nil {
					log.Error("rendering error page", "error", err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
