package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/go-oidfed/registrar/storage/model"
)

// KeyValueStorage implements model.KeyValueStore. It holds the runtime
// overrides admins set through the admin api, e.g. the statement lifetime.
type KeyValueStorage struct {
	db *gorm.DB
}

// KeyValue returns the scoped key-value storage
func (s *Storage) KeyValue() *KeyValueStorage {
	return &KeyValueStorage{db: s.db}
}

func kvWhere(scope, key string) *model.KeyValue {
	return &model.KeyValue{
		Scope: scope,
		Key:   key,
	}
}

// Get returns the raw JSON value for (scope, key) or nil, nil
func (s *KeyValueStorage) Get(scope, key string) (datatypes.JSON, error) {
	var kv model.KeyValue
	err := s.db.Where(kvWhere(scope, key)).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s/%s", scope, key)
	}
	if len(kv.Value) == 0 {
		return nil, nil
	}
	return kv.Value, nil
}

// Set upserts the value for (scope, key)
func (s *KeyValueStorage) Set(scope, key string, value datatypes.JSON) error {
	kv := kvWhere(scope, key)
	kv.Value = value
	err := s.db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: "scope"},
				{Name: "key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		},
	).Create(kv).Error
	return errors.Wrapf(err, "failed to write %s/%s", scope, key)
}

// Delete removes (scope, key); a missing key is not an error
func (s *KeyValueStorage) Delete(scope, key string) error {
	return errors.Wrapf(
		s.db.Where(kvWhere(scope, key)).Delete(&model.KeyValue{}).Error,
		"failed to delete %s/%s", scope, key,
	)
}

// GetAs decodes the value for (scope, key) into out and reports whether a
// value was present
func (s *KeyValueStorage) GetAs(scope, key string, out any) (bool, error) {
	raw, err := s.Get(scope, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return false, errors.Wrapf(err, "invalid value stored at %s/%s", scope, key)
	}
	return true, nil
}

// SetAny encodes v as JSON and stores it at (scope, key)
func (s *KeyValueStorage) SetAny(scope, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	return s.Set(scope, key, data)
}
