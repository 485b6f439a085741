package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	weberrors "github.com/nickoftime/keyvault-spo/internal/web/errors"
	"github.com/nickoftime/keyvault-spo/pkg/logger"
)

// CorrelationIDHeader carries the correlation id in both directions.
const CorrelationIDHeader = "X-Correlation-ID"

// Correlation assigns every request a correlation id. A well-formed inbound
// id is kept; anything else is replaced with a fresh one.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if !weberrors.ValidCorrelationID(id) {
			id = weberrors.NewCorrelationID()
		}

		ctx := logger.ContextWithCorrelationID(r.Context(), id)
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = logger.ContextWithRequestID(ctx, reqID)
		}

		w.Header().Set(CorrelationIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
