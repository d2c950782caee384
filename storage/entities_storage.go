package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/go-oidfed/registrar/storage/model"
)

// EntityStorage implements the model.EntityStore interface
type EntityStorage struct {
	db *gorm.DB
}

// Insert stores a new entity. The unique index on entity_id is the backstop
// against concurrent registrations of the same id.
func (s *EntityStorage) Insert(entity *model.Entity) error {
	err := s.db.Create(entity).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.AlreadyExistsErrorFmt("entity '%s' is already registered", entity.EntityID)
	}
	return errors.Wrap(err, "failed to insert entity")
}

// Get retrieves an entity by entity ID
func (s *EntityStorage) Get(entityID string) (*model.Entity, error) {
	var entity model.Entity
	err := s.db.Where("entity_id = ?", entityID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find entity")
	}
	return &entity, nil
}

// List returns entities in insertion order, optionally filtered by type and
// status
func (s *EntityStorage) List(entityType model.EntityType, status *model.Status) (
	entities []model.Entity, err error,
) {
	query := s.db.Order("id")
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err = errors.Wrap(query.Find(&entities).Error, "failed to query entities")
	return
}

// UpdateStatus changes the status of an entity
func (s *EntityStorage) UpdateStatus(entityID string, status model.Status) error {
	res := s.db.Model(&model.Entity{}).Where("entity_id = ?", entityID).Update("status", status)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update entity status")
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("entity '%s' not found", entityID)
	}
	return nil
}

// Delete removes an entity
func (s *EntityStorage) Delete(entityID string) error {
	return errors.Wrap(
		s.db.Where("entity_id = ?", entityID).Delete(&model.Entity{}).Error,
		"failed to delete entity",
	)
}
