package patch

import (
	"testing"

	"github.com/pranems/scimserver/scim"
)

func baseOptions() Options {
	return Options{
		VerbosePatchSupported:     false,
		AllowRemoveAllMembers:     true,
		AllowAddMultipleMembers:   false,
		AllowRemoveMultipleMembers: false,
	}
}

func TestApplyReplaceSimpleAttribute(t *testing.T) {
	proc := NewProcessor(baseOptions())
	res := map[string]any{"active": true}
	ops := []scim.PatchOperation{{Op: "replace", Path: "active", Value: false}}
	if err := proc.Apply(res, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res["active"] != false {
		t.Fatalf("expected active=false, got %v", res["active"])
	}
}

func TestApplyAddNoPathMergesRootKeys(t *testing.T) {
	proc := NewProcessor(baseOptions())
	res := map[string]any{"userName": "bjensen"}
	ops := []scim.PatchOperation{{Op: "add", Value: map[string]any{"nickName": "bee", "id": "should-be-ignored"}}}
	if err := proc.Apply(res, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res["nickName"] != "bee" {
		t.Fatalf("expected nickName set, got %+v", res)
	}
	if _, present := res["id"]; present {
		t.Fatalf("expected id to be stripped, got %+v", res)
	}
}

func TestApplyRemoveRequiresPath(t *testing.T) {
	proc := NewProcessor(baseOptions())
	res := map[string]any{"active": true}
	ops := []scim.PatchOperation{{Op: "remove"}}
	if err := proc.Apply(res, ops); err == nil {
		t.Fatal("expected error for remove with no path")
	}
}

func TestApplyReplaceEmptyStringRemovesAttribute(t *testing.T) {
	proc := NewProcessor(baseOptions())
	res := map[string]any{"nickName": "bee"}
	ops := []scim.PatchOperation{{Op: "replace", Path: "nickName", Value: ""}}
	if err := proc.Apply(res, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, present := res["nickName"]; present {
		t.Fatalf("expected nickName removed, got %+v", res)
	}
}

func TestApplyDotNotationRequiresVerbosePatchSupported(t *testing.T) {
	opts := baseOptions()
	opts.VerbosePatchSupported = false
	proc := NewProcessor(opts)
	res := map[string]any{}
	ops := []scim.PatchOperation{{Op: "replace", Path: "name.givenName", Value: "John"}}
	if err := proc.Apply(res, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, nested := res["name"]; nested {
		t.Fatalf("expected no nested name object without VerbosePatchSupported, got %+v", res)
	}

	opts.VerbosePatchSupported = true
	proc = NewProcessor(opts)
	res = map[string]any{}
	if err := proc.Apply(res, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}
	name, ok := res["name"].(map[string]any)
	if !ok || name["givenName"] != "John" {
		t.Fatalf("expected nested name.givenName=John, got %+v", res)
	}
}

func TestApplyValuePathReplacesMatchingArrayElement(t *testing.T) {
	proc := NewProcessor(baseOptions())
	res := map[string]any{
		"emails": []any{
			map[string]any{"value": "old@example.com", "type": "work", "primary": true},
		},
	}
	ops := []scim.PatchOperation{{
		Op:    "replace",
		Path:  `emails[type eq "work"].value`,
		Value: "new@example.com",
	}}
	if err := proc.Apply(res, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}
	emails := res["emails"].([]any)
	got := emails[0].(map[string]any)["value"]
	if got != "new@example.com" {
		t.Fatalf("expected updated email value, got %v", got)
	}
}

func TestApplyMembersRemoveAllRequiresFlag(t *testing.T) {
	opts := baseOptions()
	opts.AllowRemoveAllMembers = false
	proc := NewProcessor(opts)
	res := map[string]any{"members": []any{map[string]any{"value": "u1"}}}
	ops := []scim.PatchOperation{{Op: "remove", Path: "members"}}
	if err := proc.Apply(res, ops); err == nil {
		t.Fatal("expected error removing all members without AllowRemoveAllMembers")
	}

	opts.AllowRemoveAllMembers = true
	proc = NewProcessor(opts)
	res = map[string]any{"members": []any{map[string]any{"value": "u1"}}}
	if err := proc.Apply(res, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}
	members := res["members"].([]any)
	if len(members) != 0 {
		t.Fatalf("expected members cleared, got %+v", members)
	}
}

func TestApplyMembersAddMultipleRequiresFlag(t *testing.T) {
	opts := baseOptions()
	opts.AllowAddMultipleMembers = false
	proc := NewProcessor(opts)
	res := map[string]any{"members": []any{}}
	ops := []scim.PatchOperation{{
		Op:   "add",
		Path: "members",
		Value: []any{
			map[string]any{"value": "u1"},
			map[string]any{"value": "u2"},
		},
	}}
	if err := proc.Apply(res, ops); err == nil {
		t.Fatal("expected error adding multiple members without flag")
	}

	opts.AllowAddMultipleMembers = true
	proc = NewProcessor(opts)
	res = map[string]any{"members": []any{}}
	if err := proc.Apply(res, ops); err != nil {
		t.Fatalf("apply: %v", err)
	}
	members := res["members"].([]any)
	if len(members) != 2 {
		t.Fatalf("expected 2 members added, got %+v", members)
	}
}

func TestApplyMembersRemoveMultipleRequiresFlag(t *testing.T) {
	opts := baseOptions()
	opts.AllowRemoveMultipleMembers = false
	proc := NewProcessor(opts)
	res := map[string]any{"members": []any{
		map[string]any{"value": "u1"},
		map[string]any{"value": "u2"},
	}}
	ops := []scim.PatchOperation{{
		Op:   "remove",
		Path: `members[value eq "u1" or value eq "u2"]`,
	}}
	if err := proc.Apply(res, ops); err == nil {
		t.Fatal("expected error removing multiple members without flag")
	}
}

func TestApplyUnknownOpReturnsError(t *testing.T) {
	proc := NewProcessor(baseOptions())
	res := map[string]any{}
	ops := []scim.PatchOperation{{Op: "bogus", Path: "active", Value: true}}
	if err := proc.Apply(res, ops); err == nil {
		t.Fatal("expected error for unknown op")
	}
}
