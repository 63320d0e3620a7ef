// Package middleware provides HTTP middleware: principal attribution,
// request IDs, and per-client rate limiting.
package middleware

import (
	"context"
	"net/http"
)

// PrincipalHeader carries the caller identity. Authentication happens in
// front of this service; the engine only records provenance.
const PrincipalHeader = "X-Principal"

// DefaultPrincipal is recorded when no identity header is present.
const DefaultPrincipal = "anonymous"

type principalKey struct{}

// Principal returns middleware that extracts the caller identity from the
// X-Principal header and stores it in the request context. created_by and
// audit attribution downstream read it from there.
func Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get(PrincipalHeader)
		if name == "" {
			name = DefaultPrincipal
		}
		ctx := context.WithValue(r.Context(), principalKey{}, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the caller identity stored by Principal.
func PrincipalFromContext(ctx context.Context) string {
	name, _ := ctx.Value(principalKey{}).(string)
	if name == "" {
		return DefaultPrincipal
	}
	return name
}
