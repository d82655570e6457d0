package middleware

import (
	"context"
	"net/http"
)

// HeaderTenantID carries the caller's tenant on every API request.
const HeaderTenantID = "X-Tenant-ID"

type tenantCtxKey struct{}

// TenantID is middleware that extracts the tenant ID from the X-Tenant-ID
// header and stores it in the request context. Every store query is filtered
// by tenant, so a request without one is rejected with 400.
func TenantID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid := r.Header.Get(HeaderTenantID)
		if tid == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"X-Tenant-ID header is required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTenantID(r.Context(), tid)))
	})
}

// WithTenantID returns a context carrying tid.
func WithTenantID(ctx context.Context, tid string) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tid)
}

// TenantIDFromContext returns the tenant ID stored in ctx, or "" if absent.
func TenantIDFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(tenantCtxKey{}).(string)
	return tid
}
