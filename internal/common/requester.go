package common

import "context"

type ctxKey string

const requesterKey ctxKey = "auth/requester-id"

// WithRequesterID stores the authenticated requester on ctx.
func WithRequesterID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requesterKey, id)
}

// RequesterID returns the authenticated requester, if any.
func RequesterID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requesterKey).(string)
	return id, ok && id != ""
}
