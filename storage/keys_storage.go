package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-oidfed/registrar/storage/model"
)

// SigningKeyStorage implements model.SigningKeyStore backed by the database.
type SigningKeyStorage struct {
	db *gorm.DB
}

// Active returns the active signing key or (nil, nil) if none exists.
func (s *SigningKeyStorage) Active() (*model.SigningKey, error) {
	var key model.SigningKey
	err := s.db.Where("active_slot = ?", model.ActiveKeySlot).First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load active signing key")
	}
	return &key, nil
}

// InsertActiveIfAbsent inserts key as the active key. If another active key
// already exists the insert is a no-op and false is returned; callers then
// re-read the winner with Active.
func (s *SigningKeyStorage) InsertActiveIfAbsent(key *model.SigningKey) (bool, error) {
	slot := model.ActiveKeySlot
	key.ActiveSlot = &slot
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(key)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, errors.Wrap(res.Error, "failed to insert signing key")
	}
	return res.RowsAffected > 0, nil
}

// Promote stores key as the new active key and retains the previously
// active key as inactive.
func (s *SigningKeyStorage) Promote(key *model.SigningKey) error {
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			if err := tx.Model(&model.SigningKey{}).
				Where("active_slot IS NOT NULL").
				Update("active_slot", nil).Error; err != nil {
				return errors.Wrap(err, "failed to retire active signing key")
			}
			slot := model.ActiveKeySlot
			key.ActiveSlot = &slot
			return errors.Wrap(tx.Create(key).Error, "failed to store signing key")
		},
	)
}

// All returns all keys, oldest first.
func (s *SigningKeyStorage) All() (keys []model.SigningKey, err error) {
	err = errors.Wrap(s.db.Order("id").Find(&keys).Error, "failed to list signing keys")
	return
}

// Retain stores key as an inactive key. Retained keys are published in the
// key set but never used for signing.
func (s *SigningKeyStorage) Retain(key *model.SigningKey) error {
	key.ActiveSlot = nil
	err := s.db.Create(key).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.AlreadyExistsErrorFmt("signing key '%s' already exists", key.KID)
	}
	return errors.Wrap(err, "failed to store signing key")
}
