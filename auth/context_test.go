package auth

import (
	"context"
	"testing"
)

func TestPrincipalFromContextMissing(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	if ok {
		t.Fatal("expected no principal on bare context")
	}
}

func TestWithPrincipalRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{AuthType: AuthTypeBearer, ClientID: "svc-1"})
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		t.Fatal("expected principal present")
	}
	if p.AuthType != AuthTypeBearer || p.ClientID != "svc-1" {
		t.Fatalf("unexpected principal: %+v", p)
	}
}
