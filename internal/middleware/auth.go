package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"accizard/internal/domain"
)

const (
	HeaderAPIKey       = "X-API-Key"
	HeaderOperatorID   = "X-Operator-ID"
	HeaderOperatorName = "X-Operator-Name"
)

type operatorKey struct{}

// APIKeyMiddleware rejects requests without the configured key.
func APIKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(HeaderAPIKey)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Operator reads the operator identity set by the host application.
func Operator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op := domain.Operator{
			ID:   strings.TrimSpace(r.Header.Get(HeaderOperatorID)),
			Name: strings.TrimSpace(r.Header.Get(HeaderOperatorName)),
		}
		if op.ID == "" {
			op.ID = "anonymous"
		}
		if op.Name == "" {
			op.Name = op.ID
		}
		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
	})
}

func WithOperator(ctx context.Context, op domain.Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

func OperatorFrom(ctx context.Context) domain.Operator {
	if op, ok := ctx.Value(operatorKey{}).(domain.Operator); ok {
		return op
	}
	return domain.Operator{ID: "anonymous", Name: "anonymous"}
}
