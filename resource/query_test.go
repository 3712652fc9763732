package resource

import (
	"testing"

	"github.com/pranems/scimserver/scim"
)

func sampleUsers() []map[string]any {
	return []map[string]any{
		{
			"id":       "1",
			"userName": "bjensen",
			"active":   true,
			"name":     map[string]any{"givenName": "Barbara", "familyName": "Jensen"},
			"schemas":  []string{scim.SchemaUser},
		},
		{
			"id":       "2",
			"userName": "ajensen",
			"active":   false,
			"name":     map[string]any{"givenName": "Alice", "familyName": "Jensen"},
			"schemas":  []string{scim.SchemaUser},
		},
	}
}

func TestAttributeSelectorIncludesOnlyRequested(t *testing.T) {
	sel := NewAttributeSelector([]string{"userName"}, nil)
	out := sel.Project(sampleUsers()[0])

	if _, ok := out["active"]; ok {
		t.Fatalf("expected active excluded from projection, got %+v", out)
	}
	if out["userName"] != "bjensen" {
		t.Fatalf("expected userName projected, got %+v", out)
	}
	if _, ok := out["id"]; !ok {
		t.Fatal("expected id to always be present (core attribute)")
	}
}

func TestAttributeSelectorExcludedAttributes(t *testing.T) {
	sel := NewAttributeSelector(nil, []string{"active"})
	out := sel.Project(sampleUsers()[0])
	if _, ok := out["active"]; ok {
		t.Fatal("expected active to be excluded")
	}
	if out["userName"] != "bjensen" {
		t.Fatalf("expected userName retained, got %+v", out)
	}
}

func TestAttributeSelectorSubAttributes(t *testing.T) {
	sel := NewAttributeSelector([]string{"name.givenName"}, nil)
	out := sel.Project(sampleUsers()[0])
	name, ok := out["name"].(map[string]any)
	if !ok {
		t.Fatalf("expected name object projected, got %+v", out)
	}
	if _, ok := name["familyName"]; ok {
		t.Fatalf("expected familyName excluded from sub-attribute projection, got %+v", name)
	}
	if name["givenName"] != "Barbara" {
		t.Fatalf("expected givenName retained, got %+v", name)
	}
}

func TestSortResourcesAscendingAndDescending(t *testing.T) {
	users := sampleUsers()
	asc := SortResources(users, "userName", "ascending")
	if asc[0]["userName"] != "ajensen" {
		t.Fatalf("expected ajensen first ascending, got %+v", asc[0]["userName"])
	}

	desc := SortResources(users, "userName", "descending")
	if desc[0]["userName"] != "bjensen" {
		t.Fatalf("expected bjensen first descending, got %+v", desc[0]["userName"])
	}
}

func TestApplyPaginationClampsStartIndex(t *testing.T) {
	users := sampleUsers()
	paged, startIndex, itemsPerPage := ApplyPagination(users, 0, 1)
	if startIndex != 1 {
		t.Fatalf("expected startIndex clamped to 1, got %d", startIndex)
	}
	if itemsPerPage != 1 || len(paged) != 1 {
		t.Fatalf("expected 1 item, got %d", len(paged))
	}
}

func TestApplyPaginationPastEndReturnsEmpty(t *testing.T) {
	users := sampleUsers()
	paged, _, itemsPerPage := ApplyPagination(users, 10, 5)
	if len(paged) != 0 || itemsPerPage != 0 {
		t.Fatalf("expected empty page past end, got %+v", paged)
	}
}

func TestFilterResourcesAppliesFilterExpression(t *testing.T) {
	users := sampleUsers()
	out, err := FilterResources(users, `active eq true`)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(out) != 1 || out[0]["userName"] != "bjensen" {
		t.Fatalf("expected only bjensen to match, got %+v", out)
	}
}

func TestFilterResourcesInvalidFilterReturnsError(t *testing.T) {
	_, err := FilterResources(sampleUsers(), `userName eq`)
	if err == nil {
		t.Fatal("expected error for invalid filter")
	}
}

func TestProcessListQueryWrapsListResponse(t *testing.T) {
	users := sampleUsers()
	params := scim.QueryParams{Count: 10, StartIndex: 1}
	resp, err := ProcessListQuery(users, params)
	if err != nil {
		t.Fatalf("process list query: %v", err)
	}
	if resp.TotalResults != 2 {
		t.Fatalf("expected 2 total results, got %d", resp.TotalResults)
	}
	if len(resp.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resp.Resources))
	}
}
