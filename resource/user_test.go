package resource

import (
	"context"
	"fmt"
	"testing"

	"github.com/pranems/scimserver/internal/patch"
	"github.com/pranems/scimserver/internal/storage"
	"github.com/pranems/scimserver/scim"
)

var dsnCounter int

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dsnCounter++
	dsn := fmt.Sprintf("file:resourceusertest%d?mode=memory&cache=private", dsnCounter)
	s, err := storage.Open(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEndpointID(t *testing.T, store *storage.Store) string {
	t.Helper()
	ep := &storage.Endpoint{Name: "tenant", Config: map[string]any{}}
	if err := store.CreateEndpoint(context.Background(), ep); err != nil {
		t.Fatalf("create endpoint: %v", err)
	}
	return ep.ID
}

func TestUserServiceCreateAssignsID(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)

	res, err := svc.Create(context.Background(), epID, map[string]any{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if stringField(res, "id") == "" {
		t.Fatal("expected generated id")
	}
}

func TestUserServiceCreateRejectsWrongSchema(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)

	_, err := svc.Create(context.Background(), epID, map[string]any{
		"userName": "bjensen",
		"schemas":  []any{"urn:ietf:params:scim:schemas:core:2.0:Group"},
	})
	if err == nil {
		t.Fatal("expected error for mismatched schema")
	}
	scimErr, ok := err.(*scim.SCIMError)
	if !ok {
		t.Fatalf("expected *scim.SCIMError, got %T", err)
	}
	if scimErr.ScimType != scim.ScimTypeInvalidSyntax {
		t.Fatalf("expected scimType invalidSyntax, got %q", scimErr.ScimType)
	}
}

func TestUserServiceCreateRejectsDuplicateUserName(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, epID, map[string]any{"userName": "bjensen"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.Create(ctx, epID, map[string]any{"userName": "bjensen"}); err == nil {
		t.Fatal("expected uniqueness error")
	}
}

func TestUserServiceCreateRejectsDuplicateExternalID(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, epID, map[string]any{"userName": "bjensen", "externalId": "ext-1"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.Create(ctx, epID, map[string]any{"userName": "ajensen", "externalId": "ext-1"}); err == nil {
		t.Fatal("expected uniqueness error on externalId")
	}
}

func TestUserServiceGetSetsLocation(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)
	ctx := context.Background()

	created, err := svc.Create(ctx, epID, map[string]any{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	id := stringField(created, "id")

	h := scim.NewHandler("https://example.com")
	got, err := svc.Get(ctx, epID, id, h)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	meta := got["meta"].(map[string]any)
	if meta["location"] == "" {
		t.Fatal("expected location to be set")
	}
}

func TestUserServiceReplaceRejectsUniquenessConflict(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, epID, map[string]any{"userName": "bjensen"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	second, err := svc.Create(ctx, epID, map[string]any{"userName": "ajensen"})
	if err != nil {
		t.Fatalf("create second user: %v", err)
	}
	secondID := stringField(second, "id")

	_, err = svc.Replace(ctx, epID, secondID, map[string]any{"userName": "bjensen"}, nil)
	if err == nil {
		t.Fatal("expected uniqueness conflict on replace")
	}
}

func TestUserServiceReplaceAllowsKeepingOwnUserName(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)
	ctx := context.Background()

	created, err := svc.Create(ctx, epID, map[string]any{"userName": "bjensen", "active": true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	id := stringField(created, "id")

	replaced, err := svc.Replace(ctx, epID, id, map[string]any{"userName": "bjensen", "active": false}, nil)
	if err != nil {
		t.Fatalf("replace user: %v", err)
	}
	if replaced["active"] != false {
		t.Fatalf("expected active=false, got %+v", replaced)
	}
}

func TestUserServicePatchReassertsUniqueness(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, epID, map[string]any{"userName": "bjensen"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	second, err := svc.Create(ctx, epID, map[string]any{"userName": "ajensen"})
	if err != nil {
		t.Fatalf("create second user: %v", err)
	}
	secondID := stringField(second, "id")

	ops := []scim.PatchOperation{{Op: "replace", Path: "userName", Value: "bjensen"}}
	_, err = svc.Patch(ctx, epID, secondID, ops, patch.Options{}, nil)
	if err == nil {
		t.Fatal("expected uniqueness conflict on patch")
	}
}

func TestUserServiceDelete(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)
	ctx := context.Background()

	created, err := svc.Create(ctx, epID, map[string]any{"userName": "bjensen"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	id := stringField(created, "id")

	if err := svc.Delete(ctx, epID, id); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := svc.Get(ctx, epID, id, nil); err == nil {
		t.Fatal("expected user to be gone")
	}
}

func TestUserServiceListAppliesFilter(t *testing.T) {
	store := newTestStore(t)
	svc := NewUserService(store)
	epID := newTestEndpointID(t, store)
	ctx := context.Background()

	if _, err := svc.Create(ctx, epID, map[string]any{"userName": "alice"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.Create(ctx, epID, map[string]any{"userName": "bob"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	resp, err := svc.List(ctx, epID, scim.QueryParams{Filter: `userName eq "alice"`, Count: 10}, nil)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if resp.TotalResults != 1 {
		t.Fatalf("expected 1 result, got %d", resp.TotalResults)
	}
}

func TestEqualFoldURN(t *testing.T) {
	if !equalFoldURN(scim.SchemaUser, "URN:IETF:PARAMS:SCIM:SCHEMAS:CORE:2.0:USER") {
		t.Error("expected case-insensitive match")
	}
	if equalFoldURN(scim.SchemaUser, scim.SchemaGroup) {
		t.Error("expected mismatch for different URNs")
	}
}
