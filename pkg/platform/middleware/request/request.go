// Package request provides correlation-ID and request-time middleware shared
// by every route.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"tenderwatch/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// ID assigns a correlation ID to each request, honoring one supplied by the
// caller, and echoes it on the response.
func ID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Time pins the request arrival time in the context so all downstream reads of
// "now" within one request agree.
func Time(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), requestcontext.Now(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
