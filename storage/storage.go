package storage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/go-oidfed/registrar/storage/model"
)

// Storage is a GORM-based storage implementation
type Storage struct {
	db         *gorm.DB
	userParams Argon2idParams
}

var models = []any{
	&model.SigningKey{},
	&model.Entity{},
	&model.EntityStatement{},
	&model.ValidationRule{},
	&model.KeyValue{},
	&model.User{},
}

// NewStorage creates a new GORM-based storage
func NewStorage(config Config) (*Storage, error) {
	db, err := Connect(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto migrate the schemas
	if err = db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Fill user hash params with defaults if zero values
	params := config.UsersHash
	if params.Time == 0 {
		params = defaultArgon2idParams()
	}

	return &Storage{
		db:         db,
		userParams: params,
	}, nil
}

// DB returns the underlying gorm.DB
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// SigningKeyStorage returns a SigningKeyStorage
func (s *Storage) SigningKeyStorage() *SigningKeyStorage {
	return &SigningKeyStorage{db: s.db}
}

// EntityStorage returns an EntityStorage
func (s *Storage) EntityStorage() *EntityStorage {
	return &EntityStorage{db: s.db}
}

// StatementStorage returns a StatementStorage
func (s *Storage) StatementStorage() *StatementStorage {
	return &StatementStorage{db: s.db}
}

// ValidationRuleStorage returns a ValidationRuleStorage
func (s *Storage) ValidationRuleStorage() *ValidationRuleStorage {
	return &ValidationRuleStorage{db: s.db}
}
