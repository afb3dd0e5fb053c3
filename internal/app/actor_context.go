package app

import (
	"context"

	"github.com/hylla/metricops/internal/domain"
)

// actorContextKey stores context keys for resolved caller identity.
type actorContextKey struct{}

// WithActor attaches a normalized actor to context. Invalid actors are not attached.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	normalized, err := domain.NewActor(actor.ID, actor.Role)
	if err != nil {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, normalized)
}

// ActorFromContext returns the actor attached by WithActor, when present.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	if !ok || actor.ID == "" {
		return domain.Actor{}, false
	}
	return actor, true
}
