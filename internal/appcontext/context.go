package appcontext

import (
	"context"
)

type contextKey string

var (
	commandKey   contextKey = "command"
	requestIdKey contextKey = "requestId"
)

// WithCommand marks ctx as running inside the named engine command
func WithCommand(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, commandKey, name)
}

func CommandFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(commandKey).(string)
	return name, ok
}

func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKey, requestId)
}

func RequestIdFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIdKey).(string)
	return id, ok
}
