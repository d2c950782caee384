// Package registry keeps the admitted subordinate entities of the
// federation and their lifecycle.
package registry

import (
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/storage/model"
)

// Registration holds the data of a new entity
type Registration struct {
	EntityID       string
	EntityType     model.EntityType
	Metadata       map[string]any
	JWKS           map[string]any
	AuthorityHints []string
	TrustMarks     json.RawMessage
}

// Registry manages Entity rows
type Registry struct {
	store model.EntityStore
}

// New returns a Registry on top of the passed store
func New(store model.EntityStore) *Registry {
	return &Registry{store: store}
}

var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusActive},
	model.StatusActive:    {model.StatusSuspended, model.StatusRevoked},
	model.StatusSuspended: {model.StatusActive, model.StatusRevoked},
}

// CanTransition reports whether an entity may change from one status to
// another
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Register stores a new entity with status pending
func (r *Registry) Register(reg Registration) (*model.Entity, error) {
	if reg.EntityID == "" {
		return nil, errors.New("entity id must not be empty")
	}
	if !reg.EntityType.Valid() {
		return nil, errors.Errorf("invalid entity type '%s'", reg.EntityType)
	}
	existing, err := r.store.Get(reg.EntityID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &DuplicateEntityError{EntityID: reg.EntityID}
	}
	entity := &model.Entity{
		EntityID:       reg.EntityID,
		EntityType:     reg.EntityType,
		Status:         model.StatusPending,
		Metadata:       reg.Metadata,
		JWKS:           reg.JWKS,
		AuthorityHints: reg.AuthorityHints,
	}
	if len(reg.TrustMarks) > 0 {
		entity.TrustMarks = []byte(reg.TrustMarks)
	}
	if err = r.store.Insert(entity); err != nil {
		var exists model.AlreadyExistsError
		if errors.As(err, &exists) {
			// lost a concurrent registration race
			return nil, &DuplicateEntityError{EntityID: reg.EntityID}
		}
		return nil, err
	}
	log.WithField("entity_id", entity.EntityID).WithField("entity_type", entity.EntityType).
		Info("registered entity")
	return entity, nil
}

// Get returns the entity or a model.NotFoundError
func (r *Registry) Get(entityID string) (*model.Entity, error) {
	entity, err := r.store.Get(entityID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, model.NotFoundErrorFmt("entity '%s' not found", entityID)
	}
	return entity, nil
}

// List returns registered entities in registration order. An empty
// entityType and a nil status match all entities.
func (r *Registry) List(entityType model.EntityType, status *model.Status) ([]model.Entity, error) {
	return r.store.List(entityType, status)
}

// Activate moves a pending entity to active
func (r *Registry) Activate(entityID string) error {
	return r.SetStatus(entityID, model.StatusActive)
}

// SetStatus changes the status of an entity if the lifecycle allows it
func (r *Registry) SetStatus(entityID string, status model.Status) error {
	entity, err := r.Get(entityID)
	if err != nil {
		return err
	}
	if !CanTransition(entity.Status, status) {
		return &InvalidTransitionError{
			EntityID: entityID,
			From:     entity.Status,
			To:       status,
		}
	}
	if err = r.store.UpdateStatus(entityID, status); err != nil {
		return err
	}
	log.WithFields(
		log.Fields{
			"entity_id": entityID,
			"from":      entity.Status.String(),
			"to":        status.String(),
		},
	).Info("changed entity status")
	return nil
}

// Discard removes a registration that is still pending. Entities in any
// other state are left untouched.
func (r *Registry) Discard(entityID string) error {
	entity, err := r.store.Get(entityID)
	if err != nil || entity == nil {
		return err
	}
	if entity.Status != model.StatusPending {
		return errors.Errorf("refusing to discard entity '%s' with status %s", entityID, entity.Status)
	}
	if err = r.store.Delete(entityID); err != nil {
		return err
	}
	log.WithField("entity_id", entityID).Debug("discarded pending registration")
	return nil
}
