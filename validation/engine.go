package validation

import (
	"github.com/go-oidfed/registrar/storage/model"
)

// Engine evaluates the currently stored active rules
type Engine struct {
	rules model.ValidationRuleStore
}

// NewEngine returns an Engine reading rules from store
func NewEngine(store model.ValidationRuleStore) *Engine {
	return &Engine{rules: store}
}

// Validate loads the active rules for entityType and evaluates them
func (e *Engine) Validate(entityType model.EntityType, metadata, jwks map[string]any) (Result, error) {
	rules, err := e.rules.List(model.RuleEntityType(entityType), true)
	if err != nil {
		return Result{}, err
	}
	return NewRuleSet(rules).Evaluate(entityType, metadata, jwks), nil
}
