package queue

import "context"

type reqIDKey struct{}

// ContextWithRequestID stores the inbound request id so publishers can stamp
// it onto event headers.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reqIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(reqIDKey{}).(string)
	return id
}
