// Package validation evaluates administrator defined eligibility rules
// against the metadata and jwks of a candidate entity.
package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"github.com/pkg/errors"

	"github.com/go-oidfed/registrar/storage/model"
)

type checkFunc func(v any) bool

// Rule is a compiled ValidationRule
type Rule struct {
	model.ValidationRule
	check checkFunc
	// compileErr is set for rules whose payload is unusable; such rules
	// always report a violation
	compileErr error
}

// Compile turns a ValidationRule into a Rule with a ready-to-run check
func Compile(rule model.ValidationRule) (Rule, error) {
	check, err := compileCheck(rule.ValidationType, rule.ValidationValue)
	if err != nil {
		return Rule{}, errors.Wrapf(err, "rule '%s'", rule.RuleName)
	}
	return Rule{
		ValidationRule: rule,
		check:          check,
	}, nil
}

// CheckRule reports whether rule is well-formed and can be compiled
func CheckRule(rule model.ValidationRule) error {
	if rule.RuleName == "" || rule.FieldPath == "" {
		return errors.New("rule_name and field_path are required")
	}
	if !rule.EntityType.Valid() {
		return errors.Errorf("entity_type must be OP, RP, or BOTH, not '%s'", rule.EntityType)
	}
	_, err := Compile(rule)
	return err
}

func compileCheck(t model.ValidationType, payload string) (checkFunc, error) {
	switch t {
	case model.ValidationRequired:
		return checkRequired, nil
	case model.ValidationExists:
		return func(v any) bool { return !IsAbsent(v) }, nil
	case model.ValidationExactValue:
		return compileExactValue(payload), nil
	case model.ValidationRegex:
		re, err := regexp.Compile("^(?:" + payload + ")$")
		if err != nil {
			return nil, errors.Wrap(err, "invalid regex")
		}
		return func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}, nil
	case model.ValidationRange:
		return compileRange(payload)
	default:
		return nil, errors.Errorf("unknown validation type '%s'", t)
	}
}

func checkRequired(v any) bool {
	if IsAbsent(v) || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// compileExactValue parses payload as JSON; payloads that are not valid
// JSON are compared as literal strings
func compileExactValue(payload string) checkFunc {
	var expected any
	if err := json.Unmarshal([]byte(payload), &expected); err != nil {
		expected = payload
	}
	return func(v any) bool {
		if IsAbsent(v) {
			return false
		}
		return reflect.DeepEqual(expected, normalize(v))
	}
}

type bounds struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func compileRange(payload string) (checkFunc, error) {
	var b bounds
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, errors.Wrap(err, "range must be an object with optional numeric min and max")
	}
	if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		return nil, errors.Errorf("range min %v is greater than max %v", *b.Min, *b.Max)
	}
	return func(v any) bool {
		f, ok := normalize(v).(float64)
		if !ok {
			return false
		}
		return (b.Min == nil || f >= *b.Min) && (b.Max == nil || f <= *b.Max)
	}, nil
}

// Violation is a failed rule
type Violation struct {
	RuleName string `json:"rule_name"`
	Message  string `json:"message"`
}

// Result is the outcome of evaluating a RuleSet
type Result struct {
	Passed     bool
	Violations []Violation
}

// Err returns an *Error carrying the violations if the evaluation failed,
// otherwise nil
func (r Result) Err() error {
	if r.Passed {
		return nil
	}
	return &Error{Violations: r.Violations}
}

func (r Rule) appliesTo(entityType model.EntityType) bool {
	return r.IsActive && r.EntityType.AppliesTo(entityType)
}

func (r Rule) message() string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	if r.compileErr != nil {
		return fmt.Sprintf("rule '%s' is misconfigured: %v", r.RuleName, r.compileErr)
	}
	return fmt.Sprintf("field '%s' failed %s check", r.FieldPath, r.ValidationType)
}

// RuleSet is a compiled set of rules
type RuleSet struct {
	rules []Rule
}

// NewRuleSet compiles rules. Rules that do not compile stay in the set and
// produce a violation whenever they apply.
func NewRuleSet(rules []model.ValidationRule) *RuleSet {
	set := &RuleSet{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		compiled, err := Compile(r)
		if err != nil {
			compiled = Rule{
				ValidationRule: r,
				compileErr:     err,
			}
		}
		set.rules = append(set.rules, compiled)
	}
	return set
}

// Evaluate checks all applicable rules against the candidate data and
// collects every violation
func (s *RuleSet) Evaluate(entityType model.EntityType, metadata, jwks map[string]any) Result {
	tree := Tree(metadata, jwks)
	res := Result{Passed: true}
	for _, r := range s.rules {
		if !r.appliesTo(entityType) {
			continue
		}
		if r.compileErr == nil && r.check(Resolve(tree, r.FieldPath)) {
			continue
		}
		res.Passed = false
		res.Violations = append(
			res.Violations, Violation{
				RuleName: r.RuleName,
				Message:  r.message(),
			},
		)
	}
	return res
}

// Evaluate compiles rules and evaluates them against the candidate data
func Evaluate(entityType model.EntityType, metadata, jwks map[string]any, rules []model.ValidationRule) Result {
	return NewRuleSet(rules).Evaluate(entityType, metadata, jwks)
}
