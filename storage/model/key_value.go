package model

import (
	"gorm.io/datatypes"
)

// Scopes and keys of the runtime settings kept in the KeyValueStore
const (
	KeyValueScopeGlobal               = ""
	KeyValueScopeEntityConfiguration  = "entity_configuration"
	KeyValueScopeSubordinateStatement = "subordinate_statement"

	KeyValueKeyLifetime         = "lifetime"
	KeyValueKeyOrganizationName = "organization_name"
)

// KeyValue is a JSON value stored under (Scope, Key). Values set here
// override the corresponding settings from the config file.
type KeyValue struct {
	Scope     string         `gorm:"primaryKey;size:64" json:"scope"`
	Key       string         `gorm:"primaryKey;size:64" json:"key"`
	Value     datatypes.JSON `json:"value"`
	CreatedAt int            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int            `gorm:"autoUpdateTime" json:"updated_at"`
}

// KeyValueStore defines the operations for key-value storage.
type KeyValueStore interface {
	// Get retrieves the value for a (scope, key). Returns (nil, nil) if not found.
	Get(scope, key string) (datatypes.JSON, error)
	// GetAs unmarshals the value for a (scope, key) into out and reports
	// whether a value was found
	GetAs(scope, key string, out any) (bool, error)
	// Set stores/replaces the value for a (scope, key).
	Set(scope, key string, value datatypes.JSON) error
	// SetAny marshals v and stores it for a (scope, key).
	SetAny(scope, key string, v any) error
	// Delete removes the entry for a (scope, key). No error if missing.
	Delete(scope, key string) error
}
