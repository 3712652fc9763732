package filter

import "testing"

func resource() map[string]any {
	return map[string]any{
		"userName": "jsmith",
		"active":   true,
		"emails": []any{
			map[string]any{"value": "j@example.com", "type": "work"},
			map[string]any{"value": "home@example.com", "type": "home"},
		},
		"name": map[string]any{"givenName": "John", "familyName": "Smith"},
	}
}

func TestParseAndMatchEq(t *testing.T) {
	expr, err := NewParser(`userName eq "jsmith"`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !expr.Matches(resource()) {
		t.Fatal("expected match")
	}
}

func TestParseAndMatchCaseInsensitiveAttribute(t *testing.T) {
	expr, err := NewParser(`USERNAME eq "jsmith"`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !expr.Matches(resource()) {
		t.Fatal("expected case-insensitive attribute match")
	}
}

func TestParseAndMatchAnd(t *testing.T) {
	expr, err := NewParser(`userName eq "jsmith" and active eq true`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !expr.Matches(resource()) {
		t.Fatal("expected match")
	}
}

func TestParseAndMatchComplexPath(t *testing.T) {
	expr, err := NewParser(`emails[type eq "work"].value eq "j@example.com"`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !expr.Matches(resource()) {
		t.Fatal("expected complex path match")
	}
}

func TestParseAndMatchNot(t *testing.T) {
	expr, err := NewParser(`not (userName eq "other")`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !expr.Matches(resource()) {
		t.Fatal("expected not-match to match")
	}
}

func TestParseContainsStartsEndsWith(t *testing.T) {
	cases := []string{
		`userName co "smit"`,
		`userName sw "js"`,
		`userName ew "th"`,
	}
	for _, c := range cases {
		expr, err := NewParser(c).Parse()
		if err != nil {
			t.Fatalf("parse %q: %v", c, err)
		}
		if !expr.Matches(resource()) {
			t.Fatalf("expected %q to match", c)
		}
	}
}

func TestParseWithPushdownUserName(t *testing.T) {
	expr, hint, err := ParseWithPushdown(`userName eq "jsmith"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if expr == nil {
		t.Fatal("expected non-nil expr")
	}
	if hint == nil || hint.Attribute != "username" || hint.Value != "jsmith" {
		t.Fatalf("expected pushdown hint, got %+v", hint)
	}
}

func TestParseWithPushdownNoHintForUnsupportedAttribute(t *testing.T) {
	_, hint, err := ParseWithPushdown(`active eq true`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if hint != nil {
		t.Fatalf("expected no pushdown hint, got %+v", hint)
	}
}

func TestParseWithPushdownNoHintForAndExpression(t *testing.T) {
	_, hint, err := ParseWithPushdown(`userName eq "jsmith" and active eq true`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if hint != nil {
		t.Fatalf("expected no pushdown hint for compound expression, got %+v", hint)
	}
}

func TestInvalidFilterReturnsError(t *testing.T) {
	_, err := NewParser(`userName eq`).Parse()
	if err == nil {
		t.Fatal("expected parse error")
	}
}
