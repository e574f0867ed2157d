package booking

import (
	"context"
	"strings"
)

type contextKey string

const idempotencyKey contextKey = "bookingIdempotencyKey"

// maxIdempotencyKeyLen bounds what clients may store alongside a booking.
const maxIdempotencyKeyLen = 128

// NewContextWithIdempotencyKey attaches a client supplied key to ctx. Blank
// keys are ignored so that callers can pass a raw header value.
func NewContextWithIdempotencyKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}

	return context.WithValue(ctx, idempotencyKey, key)
}

func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKey).(string)

	return key, ok && key != ""
}
