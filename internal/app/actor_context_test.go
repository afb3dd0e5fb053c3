package app

import (
	"context"
	"testing"

	"github.com/hylla/metricops/internal/domain"
)

// TestActorContextRoundTrip verifies normalized actors survive context attachment.
func TestActorContextRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), domain.Actor{ID: " u1 ", Role: "LEAD"})
	actor, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if actor.ID != "u1" || actor.Role != domain.RoleLead {
		t.Fatalf("unexpected actor %#v", actor)
	}
}

// TestActorContextRejectsInvalidActor verifies invalid identities are never attached.
func TestActorContextRejectsInvalidActor(t *testing.T) {
	ctx := WithActor(context.Background(), domain.Actor{ID: "u1", Role: "root"})
	if _, ok := ActorFromContext(ctx); ok {
		t.Fatal("expected invalid role to be dropped")
	}
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("expected empty context to carry no actor")
	}
}
