package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxClientID
	ctxRole
)

func WithIdentity(ctx context.Context, userID, clientID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxClientID, clientID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

// ClientID returns the billing account the caller is scoped to.
// Staff tokens have none; callers must handle the error.
func ClientID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxClientID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("client_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
