package scim

import (
	"net/http/httptest"
	"testing"
)

func TestParseQueryParamsDefaults(t *testing.T) {
	h := NewHandler("https://example.com")
	r := httptest.NewRequest("GET", "/Users", nil)
	params, err := h.ParseQueryParams(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params.StartIndex != 1 || params.Count != DefaultCount || params.SortOrder != "ascending" {
		t.Fatalf("unexpected defaults: %+v", params)
	}
}

func TestParseQueryParamsClampsCountToMax(t *testing.T) {
	h := NewHandler("https://example.com")
	r := httptest.NewRequest("GET", "/Users?count=99999", nil)
	params, err := h.ParseQueryParams(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params.Count != MaxCount {
		t.Fatalf("expected count clamped to %d, got %d", MaxCount, params.Count)
	}
}

func TestParseQueryParamsAcceptsAttributesAndExcluded(t *testing.T) {
	h := NewHandler("https://example.com")
	r := httptest.NewRequest("GET", "/Users?attributes=userName&excludedAttributes=active", nil)
	params, err := h.ParseQueryParams(r)
	if err != nil {
		t.Fatalf("expected attributes and excludedAttributes to be accepted together: %v", err)
	}
	if len(params.Attributes) != 1 || params.Attributes[0] != "userName" {
		t.Fatalf("unexpected attributes: %+v", params.Attributes)
	}
	if len(params.ExcludedAttr) != 1 || params.ExcludedAttr[0] != "active" {
		t.Fatalf("unexpected excludedAttributes: %+v", params.ExcludedAttr)
	}
}

func TestParseQueryParamsSplitsAttributeList(t *testing.T) {
	h := NewHandler("https://example.com")
	r := httptest.NewRequest("GET", "/Users?attributes=userName,%20active", nil)
	params, err := h.ParseQueryParams(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(params.Attributes) != 2 || params.Attributes[0] != "userName" || params.Attributes[1] != "active" {
		t.Fatalf("unexpected attributes: %+v", params.Attributes)
	}
}

func TestResourceLocationDefaultTenant(t *testing.T) {
	h := NewHandler("https://example.com/")
	got := h.ResourceLocation("", "Users", "123")
	want := "https://example.com/scim/v2/Users/123"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestResourceLocationTenantScoped(t *testing.T) {
	h := NewHandler("https://example.com")
	got := h.ResourceLocation("ep-1", "Groups", "456")
	want := "https://example.com/scim/endpoints/ep-1/Groups/456"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
