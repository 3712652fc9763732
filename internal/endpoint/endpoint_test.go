package endpoint

import (
	"context"
	"testing"
)

func TestResolveFlagsDefaults(t *testing.T) {
	f := ResolveFlags(nil)
	if !f.PatchOpAllowRemoveAllMembers {
		t.Fatal("expected PatchOpAllowRemoveAllMembers to default true")
	}
	if f.VerbosePatchSupported || f.MultiOpPatchRequestAddMultipleMembersToGroup || f.MultiOpPatchRequestRemoveMultipleMembersFromGroup {
		t.Fatalf("expected all other flags to default false, got %+v", f)
	}
}

func TestResolveFlagsFromBoolValues(t *testing.T) {
	f := ResolveFlags(map[string]any{
		"VerbosePatchSupported":        true,
		"PatchOpAllowRemoveAllMembers": false,
	})
	if !f.VerbosePatchSupported {
		t.Fatal("expected VerbosePatchSupported true")
	}
	if f.PatchOpAllowRemoveAllMembers {
		t.Fatal("expected PatchOpAllowRemoveAllMembers overridden to false")
	}
}

func TestResolveFlagsFromStringValuesCaseInsensitive(t *testing.T) {
	f := ResolveFlags(map[string]any{
		"MultiOpPatchRequestAddMultipleMembersToGroup": "TRUE",
		"MultiOpPatchRequestRemoveMultipleMembersFromGroup": "False",
	})
	if !f.MultiOpPatchRequestAddMultipleMembersToGroup {
		t.Fatal("expected string \"TRUE\" to coerce to true")
	}
	if f.MultiOpPatchRequestRemoveMultipleMembersFromGroup {
		t.Fatal("expected string \"False\" to coerce to false")
	}
}

func TestResolveFlagsUnrecognizedValueFallsBackToDefault(t *testing.T) {
	f := ResolveFlags(map[string]any{
		"VerbosePatchSupported": "not-a-bool",
	})
	if f.VerbosePatchSupported {
		t.Fatal("expected unrecognized string value to fall back to default (false)")
	}
}

func TestIDFromContextRoundTrip(t *testing.T) {
	if got := IDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty string for bare context, got %q", got)
	}

	var seen string
	err := RunWithContext(context.Background(), "ep-123", func(ctx context.Context) error {
		seen = IDFromContext(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("RunWithContext: %v", err)
	}
	if seen != "ep-123" {
		t.Fatalf("expected ep-123, got %q", seen)
	}
}
