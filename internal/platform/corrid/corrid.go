// Package corrid carries a per-message correlation id through a context,
// generalized from the teacher's pkg/database ctxzap.Extract(ctx) idiom:
// instead of a zap logger stashed on the context, we stash a plain string
// id that every log line and outbound message can pick up.
package corrid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithCorrelationID returns a context carrying id, or a freshly generated
// one if id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the correlation id carried by ctx, or "" if none was
// set.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
