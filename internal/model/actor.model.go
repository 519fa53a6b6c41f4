package model

import "context"

// Actor is the acting user attached to every mutating call. Who the user
// actually is (auth, roles) is established upstream; this core only needs
// a stable id for audit fields.
type Actor struct {
	ID string
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
