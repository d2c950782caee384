package model

import (
	"time"
)

// RuleEntityType selects the entity types a ValidationRule applies to
type RuleEntityType string

// Constants for RuleEntityType
const (
	RuleEntityTypeOP   RuleEntityType = "OP"
	RuleEntityTypeRP   RuleEntityType = "RP"
	RuleEntityTypeBoth RuleEntityType = "BOTH"
)

// Valid reports whether the rule entity type is OP, RP, or BOTH.
func (t RuleEntityType) Valid() bool {
	switch t {
	case RuleEntityTypeOP, RuleEntityTypeRP, RuleEntityTypeBoth:
		return true
	}
	return false
}

// AppliesTo reports whether a rule with this type applies to entities of
// the passed EntityType
func (t RuleEntityType) AppliesTo(entityType EntityType) bool {
	return t == RuleEntityTypeBoth || string(t) == string(entityType)
}

// ValidationType names the check a ValidationRule performs
type ValidationType string

// Constants for ValidationType
const (
	ValidationRequired   ValidationType = "required"
	ValidationExists     ValidationType = "exists"
	ValidationExactValue ValidationType = "exact_value"
	ValidationRegex      ValidationType = "regex"
	ValidationRange      ValidationType = "range"
)

// Valid reports whether the validation type is known.
func (t ValidationType) Valid() bool {
	switch t {
	case ValidationRequired, ValidationExists, ValidationExactValue, ValidationRegex, ValidationRange:
		return true
	}
	return false
}

// ValidationRule is an administrator defined eligibility rule that is
// checked against the metadata and jwks of an entity at registration time
type ValidationRule struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	RuleName        string         `gorm:"uniqueIndex;size:128;not null" json:"rule_name"`
	EntityType      RuleEntityType `gorm:"index;size:8;not null" json:"entity_type"`
	FieldPath       string         `gorm:"size:512;not null" json:"field_path"`
	ValidationType  ValidationType `gorm:"size:32;not null" json:"validation_type"`
	ValidationValue string         `gorm:"type:text" json:"validation_value,omitempty"`
	ErrorMessage    string         `gorm:"type:text" json:"error_message,omitempty"`
	IsActive        bool           `gorm:"index" json:"is_active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ValidationRuleUpdate holds the updatable fields of a ValidationRule; nil
// fields are left untouched
type ValidationRuleUpdate struct {
	RuleName        *string         `json:"rule_name,omitempty"`
	EntityType      *RuleEntityType `json:"entity_type,omitempty"`
	FieldPath       *string         `json:"field_path,omitempty"`
	ValidationType  *ValidationType `json:"validation_type,omitempty"`
	ValidationValue *string         `json:"validation_value,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	IsActive        *bool           `json:"is_active,omitempty"`
}

// Apply applies the update to the passed rule
func (u ValidationRuleUpdate) Apply(rule *ValidationRule) {
	if u.RuleName != nil {
		rule.RuleName = *u.RuleName
	}
	if u.EntityType != nil {
		rule.EntityType = *u.EntityType
	}
	if u.FieldPath != nil {
		rule.FieldPath = *u.FieldPath
	}
	if u.ValidationType != nil {
		rule.ValidationType = *u.ValidationType
	}
	if u.ValidationValue != nil {
		rule.ValidationValue = *u.ValidationValue
	}
	if u.ErrorMessage != nil {
		rule.ErrorMessage = *u.ErrorMessage
	}
	if u.IsActive != nil {
		rule.IsActive = *u.IsActive
	}
}

// ValidationRuleStore is an interface to administer ValidationRule rows
type ValidationRuleStore interface {
	// Create stores a new rule; it returns an AlreadyExistsError if the rule
	// name is taken
	Create(rule *ValidationRule) error
	// Get returns the rule with the passed id or a NotFoundError
	Get(id uint) (*ValidationRule, error)
	// List returns rules ordered by id; an empty entityType matches all rules,
	// otherwise rules for that type and BOTH are returned
	List(entityType RuleEntityType, activeOnly bool) ([]ValidationRule, error)
	// Update applies the update and returns the stored rule
	Update(id uint, update ValidationRuleUpdate, check func(ValidationRule) error) (*ValidationRule, error)
	// Delete removes a rule or returns a NotFoundError
	Delete(id uint) error
}
