package facegate

import "context"

type originContextKey struct{}

// WithOrigin attaches an origin tag (terminal name, station id, remote
// address) to ctx. The engine stamps it onto attempt records and audit
// events. When absent, attempts are tagged "local".
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originContextKey{}, origin)
}

func originFromContext(ctx context.Context) string {
	if ctx == nil {
		return "local"
	}

	origin, _ := ctx.Value(originContextKey{}).(string)
	if origin == "" {
		return "local"
	}

	return origin
}
