package auditctx

import "context"

// Actor captures contextual information about the caller that initiated a request.
// For session requests the account fields are populated; agent requests carry
// the agent name in Email and unauthenticated requests carry only network data.
type Actor struct {
	AccountID string
	Email     string
	IPAddress string
	UserAgent string
}

type actorContextKey struct{}

// WithActor injects actor metadata into the supplied context, returning a derived
// context that callers pass down into service layers for audit logging.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext extracts previously stored actor metadata from the context.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
