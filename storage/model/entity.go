package model

import (
	"time"

	"gorm.io/datatypes"
)

// EntityType is the protocol role of a federation entity
type EntityType string

// Constants for EntityType
const (
	EntityTypeOP EntityType = "OP"
	EntityTypeRP EntityType = "RP"
)

// Valid reports whether the entity type is OP or RP.
func (t EntityType) Valid() bool {
	return t == EntityTypeOP || t == EntityTypeRP
}

// Entity is a registered subordinate of this federation
type Entity struct {
	ID             uint              `gorm:"primarykey" json:"-"`
	EntityID       string            `gorm:"uniqueIndex;size:255;not null" json:"entity_id"`
	EntityType     EntityType        `gorm:"index;size:8" json:"entity_type"`
	Status         Status            `gorm:"index" json:"status"`
	Metadata       datatypes.JSONMap `json:"metadata"`
	JWKS           datatypes.JSONMap `json:"jwks"`
	AuthorityHints []string          `gorm:"serializer:json" json:"authority_hints,omitempty"`
	TrustMarks     datatypes.JSON    `json:"trust_marks,omitempty"`
	RegisteredAt   time.Time         `gorm:"autoCreateTime" json:"registered_at"`
	LastUpdated    time.Time         `gorm:"autoUpdateTime" json:"last_updated"`
}

// EntitySummary is the short listing view of an Entity
type EntitySummary struct {
	EntityID     string     `json:"entity_id"`
	EntityType   EntityType `json:"entity_type"`
	Status       Status     `json:"status"`
	RegisteredAt time.Time  `json:"registered_at"`
}

// Summary returns the EntitySummary for this Entity
func (e Entity) Summary() EntitySummary {
	return EntitySummary{
		EntityID:     e.EntityID,
		EntityType:   e.EntityType,
		Status:       e.Status,
		RegisteredAt: e.RegisteredAt,
	}
}

// EntityStore is an interface to store Entity rows
type EntityStore interface {
	// Insert stores a new entity; it returns an AlreadyExistsError if the
	// entity id is already taken
	Insert(entity *Entity) error
	// Get returns the entity for the passed id or (nil, nil) if there is none
	Get(entityID string) (*Entity, error)
	// List returns entities in insertion order; zero filters match everything
	List(entityType EntityType, status *Status) ([]Entity, error)
	// UpdateStatus sets the status of an entity, it returns a NotFoundError if
	// the entity does not exist
	UpdateStatus(entityID string, status Status) error
	// Delete removes an entity row
	Delete(entityID string) error
}
