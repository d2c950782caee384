package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-oidfed/registrar/storage/model"
)

func mustJSON(t *testing.T, data string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("invalid test json: %v", err)
	}
	return m
}

func rule(name, path string, vt model.ValidationType, value string) model.ValidationRule {
	return model.ValidationRule{
		RuleName:        name,
		EntityType:      model.RuleEntityTypeOP,
		FieldPath:       path,
		ValidationType:  vt,
		ValidationValue: value,
		IsActive:        true,
	}
}

func TestResolve(t *testing.T) {
	tree := Tree(
		mustJSON(t, `{"issuer":"https://op.example.org","empty":"","nothing":null,"list":["a","b"]}`),
		mustJSON(t, `{"keys":[{"kid":"k1"}]}`),
	)
	tests := []struct {
		path     string
		expected any
		absent   bool
	}{
		{path: "metadata.issuer", expected: "https://op.example.org"},
		{path: "metadata.empty", expected: ""},
		{path: "metadata.nothing", expected: nil},
		{path: "metadata.list.1", expected: "b"},
		{path: "jwks.keys.0.kid", expected: "k1"},
		{path: "metadata.missing", absent: true},
		{path: "metadata.list.2", absent: true},
		{path: "metadata.list.x", absent: true},
		{path: "metadata.issuer.deeper", absent: true},
		{path: "other", absent: true},
		{path: "", absent: true},
	}
	for _, test := range tests {
		t.Run(
			test.path, func(t *testing.T) {
				got := Resolve(tree, test.path)
				if test.absent {
					if !IsAbsent(got) {
						t.Errorf("expected absent, got %v", got)
					}
					return
				}
				if IsAbsent(got) || got != test.expected {
					t.Errorf("expected %v, got %v", test.expected, got)
				}
			},
		)
	}
}

func TestRequiredAndExists(t *testing.T) {
	metadata := mustJSON(t, `{"a":null,"b":"","c":[],"d":{},"e":"x"}`)
	tests := []struct {
		field    string
		required bool
		exists   bool
	}{
		{field: "a", required: false, exists: true},
		{field: "b", required: false, exists: true},
		{field: "c", required: false, exists: true},
		{field: "d", required: false, exists: true},
		{field: "e", required: true, exists: true},
		{field: "f", required: false, exists: false},
	}
	for _, test := range tests {
		t.Run(
			test.field, func(t *testing.T) {
				res := Evaluate(
					model.EntityTypeOP, metadata, nil,
					[]model.ValidationRule{rule("r", "metadata."+test.field, model.ValidationRequired, "")},
				)
				if res.Passed != test.required {
					t.Errorf("required: expected %v, got %v", test.required, res.Passed)
				}
				res = Evaluate(
					model.EntityTypeOP, metadata, nil,
					[]model.ValidationRule{rule("r", "metadata."+test.field, model.ValidationExists, "")},
				)
				if res.Passed != test.exists {
					t.Errorf("exists: expected %v, got %v", test.exists, res.Passed)
				}
			},
		)
	}
}

func TestExactValue(t *testing.T) {
	metadata := mustJSON(
		t, `{"openid_provider":{"grant_types_supported":["authorization_code"],"name":"op","n":5}}`,
	)
	tests := []struct {
		name     string
		path     string
		value    string
		expectOK bool
	}{
		{name: "json list", path: "metadata.openid_provider.grant_types_supported", value: `["authorization_code"]`, expectOK: true},
		{name: "json list mismatch", path: "metadata.openid_provider.grant_types_supported", value: `["implicit"]`},
		{name: "literal string", path: "metadata.openid_provider.name", value: `op`, expectOK: true},
		{name: "json string", path: "metadata.openid_provider.name", value: `"op"`, expectOK: true},
		{name: "number", path: "metadata.openid_provider.n", value: `5`, expectOK: true},
		{name: "number as string", path: "metadata.openid_provider.n", value: `"5"`},
		{name: "absent", path: "metadata.openid_provider.missing", value: `null`},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				res := Evaluate(
					model.EntityTypeOP, metadata, nil,
					[]model.ValidationRule{rule("r", test.path, model.ValidationExactValue, test.value)},
				)
				if res.Passed != test.expectOK {
					t.Errorf("expected %v, got %v", test.expectOK, res.Passed)
				}
			},
		)
	}
}

func TestRegexIsFullMatch(t *testing.T) {
	r := []model.ValidationRule{rule("https", "metadata.issuer", model.ValidationRegex, `https://.*`)}
	for value, expected := range map[string]bool{
		"https://op.example.org":     true,
		"http://op.example.org":      false,
		"see https://op.example.org": false,
	} {
		res := Evaluate(model.EntityTypeOP, map[string]any{"issuer": value}, nil, r)
		if res.Passed != expected {
			t.Errorf("%q: expected %v, got %v", value, expected, res.Passed)
		}
	}
	res := Evaluate(model.EntityTypeOP, map[string]any{"issuer": 42}, nil, r)
	if res.Passed {
		t.Error("non-string value must not match")
	}
}

func TestRangeBoundaries(t *testing.T) {
	r := []model.ValidationRule{
		rule("max_age", "metadata.max_age", model.ValidationRange, `{"min":60,"max":3600}`),
	}
	for value, expected := range map[float64]bool{
		30:   false,
		60:   true,
		3600: true,
		3700: false,
	} {
		res := Evaluate(model.EntityTypeOP, map[string]any{"max_age": value}, nil, r)
		if res.Passed != expected {
			t.Errorf("%v: expected %v, got %v", value, expected, res.Passed)
		}
	}
	res := Evaluate(model.EntityTypeOP, map[string]any{"max_age": "100"}, nil, r)
	if res.Passed {
		t.Error("string must not satisfy a range")
	}
	open := []model.ValidationRule{rule("min_only", "metadata.max_age", model.ValidationRange, `{"min":60}`)}
	if !Evaluate(model.EntityTypeOP, map[string]any{"max_age": 1e9}, nil, open).Passed {
		t.Error("missing max must not bound the range")
	}
}

func TestAllViolationsAreCollected(t *testing.T) {
	rules := []model.ValidationRule{
		rule("issuer", "metadata.issuer", model.ValidationRequired, ""),
		rule("keys", "jwks.keys", model.ValidationRequired, ""),
		rule("name", "metadata.organization_name", model.ValidationExists, ""),
	}
	rules[0].ErrorMessage = "Issuer required"
	res := Evaluate(model.EntityTypeOP, map[string]any{"organization_name": "x"}, map[string]any{}, rules)
	if res.Passed {
		t.Fatal("expected failure")
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %+v", res.Violations)
	}
	if res.Violations[0].RuleName != "issuer" || res.Violations[0].Message != "Issuer required" {
		t.Errorf("unexpected first violation: %+v", res.Violations[0])
	}
	if res.Violations[1].RuleName != "keys" || res.Violations[1].Message == "" {
		t.Errorf("unexpected second violation: %+v", res.Violations[1])
	}
	var verr *Error
	if !errors.As(res.Err(), &verr) || len(verr.Violations) != 2 {
		t.Errorf("expected *Error with 2 violations, got %v", res.Err())
	}
}

func TestApplicability(t *testing.T) {
	rp := rule("rp", "metadata.client_name", model.ValidationRequired, "")
	rp.EntityType = model.RuleEntityTypeRP
	both := rule("both", "jwks.keys", model.ValidationRequired, "")
	both.EntityType = model.RuleEntityTypeBoth
	inactive := rule("inactive", "metadata.x", model.ValidationRequired, "")
	inactive.IsActive = false

	res := Evaluate(model.EntityTypeOP, nil, nil, []model.ValidationRule{rp, both, inactive})
	if len(res.Violations) != 1 || res.Violations[0].RuleName != "both" {
		t.Errorf("expected only the BOTH rule to apply, got %+v", res.Violations)
	}
}

func TestMisconfiguredRule(t *testing.T) {
	bad := rule("bad", "metadata.issuer", model.ValidationRegex, `([`)
	if err := CheckRule(bad); err == nil {
		t.Error("expected CheckRule to reject invalid regex")
	}
	if err := CheckRule(rule("bad-range", "metadata.x", model.ValidationRange, `[1,2]`)); err == nil {
		t.Error("expected CheckRule to reject invalid range")
	}
	res := Evaluate(
		model.EntityTypeOP, map[string]any{"issuer": "https://op.example.org"}, nil,
		[]model.ValidationRule{bad, rule("ok", "metadata.issuer", model.ValidationRequired, "")},
	)
	if res.Passed || len(res.Violations) != 1 || res.Violations[0].RuleName != "bad" {
		t.Errorf("expected a violation for the misconfigured rule only, got %+v", res.Violations)
	}
}
