// Package middleware wires the authorization pipeline into HTTP request
// handling: authentication, tenant scope resolution, resource ownership
// verification, and requirement enforcement.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lnkday/authcore/pkg/contextkeys"
)

// RequestIDHeader carries the request ID to downstream services.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a UUID, preferring an inbound header so
// IDs survive hops between services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
