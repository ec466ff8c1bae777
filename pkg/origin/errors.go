package origin

import (
	"context"
	"fmt"
)

// Error is a hard origin failure: the request never produced a response.
// Origin responses with error status codes are not errors.
type Error struct {
	Method string
	URL    string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("origin %s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

type routeKey struct{}

// defaultRoute labels requests that carry no route name.
const defaultRoute = "default"

// WithRoute returns a context carrying the classifier rule name used to label
// origin metrics.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return defaultRoute
}
