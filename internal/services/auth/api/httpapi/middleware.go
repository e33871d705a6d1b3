package httpapi

import (
	"net/http"

	"github.com/louisbranch/gatehouse/internal/platform/requestctx"
	"github.com/nrednav/cuid2"
)

// RequestIDHeader carries the request id in responses.
const RequestIDHeader = "X-Request-Id"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := cuid2.Generate()
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(requestctx.WithRequestID(r.Context(), requestID)))
	})
}
