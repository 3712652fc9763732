package scim

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestETagGeneratorGenerateIsDeterministic(t *testing.T) {
	g := NewETagGenerator()
	a := g.Generate("2024-01-01T00:00:00.000Z")
	b := g.Generate("2024-01-01T00:00:00.000Z")
	if a != b {
		t.Fatalf("expected deterministic ETag, got %q vs %q", a, b)
	}
	if a[:3] != `W/"` {
		t.Fatalf("expected weak ETag prefix, got %q", a)
	}
}

func TestETagGeneratorGenerateDiffersForDifferentInput(t *testing.T) {
	g := NewETagGenerator()
	a := g.Generate("2024-01-01T00:00:00.000Z")
	b := g.Generate("2024-01-02T00:00:00.000Z")
	if a == b {
		t.Fatal("expected different timestamps to produce different ETags")
	}
}

func TestCheckPreconditionsIfMatchMismatchFails(t *testing.T) {
	g := NewETagGenerator()
	r := httptest.NewRequest(http.MethodPut, "/Users/1", nil)
	r.Header.Set("If-Match", `W/"stale"`)

	status, err := g.CheckPreconditions(r, `W/"current"`)
	if status != http.StatusPreconditionFailed || err == nil {
		t.Fatalf("expected 412, got status=%d err=%v", status, err)
	}
}

func TestCheckPreconditionsIfMatchSuccess(t *testing.T) {
	g := NewETagGenerator()
	r := httptest.NewRequest(http.MethodPut, "/Users/1", nil)
	r.Header.Set("If-Match", `W/"current"`)

	status, err := g.CheckPreconditions(r, `W/"current"`)
	if status != 0 || err != nil {
		t.Fatalf("expected no short-circuit, got status=%d err=%v", status, err)
	}
}

func TestCheckPreconditionsIfNoneMatchGetReturns304(t *testing.T) {
	g := NewETagGenerator()
	r := httptest.NewRequest(http.MethodGet, "/Users/1", nil)
	r.Header.Set("If-None-Match", `W/"current"`)

	status, err := g.CheckPreconditions(r, `W/"current"`)
	if status != http.StatusNotModified || err != nil {
		t.Fatalf("expected 304, got status=%d err=%v", status, err)
	}
}

func TestCheckPreconditionsIfNoneMatchWriteReturns412(t *testing.T) {
	g := NewETagGenerator()
	r := httptest.NewRequest(http.MethodPut, "/Users/1", nil)
	r.Header.Set("If-None-Match", `W/"current"`)

	status, err := g.CheckPreconditions(r, `W/"current"`)
	if status != http.StatusPreconditionFailed || err == nil {
		t.Fatalf("expected 412 on write with matching If-None-Match, got status=%d err=%v", status, err)
	}
}

func TestCheckPreconditionsWildcardIfMatch(t *testing.T) {
	g := NewETagGenerator()
	r := httptest.NewRequest(http.MethodPut, "/Users/1", nil)
	r.Header.Set("If-Match", "*")

	status, err := g.CheckPreconditions(r, `W/"anything"`)
	if status != 0 || err != nil {
		t.Fatalf("expected wildcard to match existing resource, got status=%d err=%v", status, err)
	}
}

func TestSetETagSetsHeader(t *testing.T) {
	g := NewETagGenerator()
	w := httptest.NewRecorder()
	g.SetETag(w, `W/"abc"`)
	if got := w.Header().Get("ETag"); got != `W/"abc"` {
		t.Fatalf("expected ETag header set, got %q", got)
	}
}
