package common

import "context"

type ctxKey string

const userIDKey ctxKey = "auth/user-id"

// WithUserID attaches the verified customer id to the context. The auth
// middleware is the only writer.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID reports the authenticated customer id, if the request carried a
// valid token. Anonymous shoppers get ok = false.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
