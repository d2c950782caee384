package registry

import (
	"fmt"

	"github.com/go-oidfed/registrar/storage/model"
)

// DuplicateEntityError is returned if an entity id is already registered
type DuplicateEntityError struct {
	EntityID string
}

// Error implements the error interface
func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("entity '%s' is already registered", e.EntityID)
}

// InvalidTransitionError is returned for a status change that the entity
// lifecycle does not allow
type InvalidTransitionError struct {
	EntityID string
	From, To model.Status
}

// Error implements the error interface
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("entity '%s' cannot change status from %s to %s", e.EntityID, e.From, e.To)
}
