package relay

import (
	"context"
	"net/http"
)

type contextKey[T any] struct{}

// SetValue stores a typed value in the request context. For use in middleware.
func SetValue[T any](r *http.Request, val T) *http.Request {
	ctx := context.WithValue(r.Context(), contextKey[T]{}, val)
	return r.WithContext(ctx)
}

// GetValue retrieves a typed value from a context.
func GetValue[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

// ContextValue extracts a value placed in the request context by SetValue,
// failing with code when it is absent.
func ContextValue[T any](code int) Param[T] {
	return Extract("context", func(r *http.Request) Result[T] {
		v, ok := GetValue[T](r.Context())
		if !ok {
			return Empty[T](code)
		}
		return Of(v)
	})
}
