package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/zachmann/go-utils/fileutils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// legacyTimeLayouts are the timestamp formats sqlite's CURRENT_TIMESTAMP and
// python's datetime adapter write
var legacyTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	time.RFC3339Nano,
}

type legacySigningKey struct {
	KID        string `gorm:"column:kid"`
	KeyType    string `gorm:"column:key_type"`
	PrivateKey string `gorm:"column:private_key"`
	PublicKey  string `gorm:"column:public_key"`
	IsActive   bool   `gorm:"column:is_active"`
	CreatedAt  string `gorm:"column:created_at"`
}

func (legacySigningKey) TableName() string {
	return "signing_keys"
}

func (k legacySigningKey) created() time.Time {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, k.CreatedAt); err == nil {
			return t
		}
	}
	return time.Time{}
}

type legacyEntity struct {
	EntityID   string `gorm:"column:entity_id"`
	EntityType string `gorm:"column:entity_type"`
	Metadata   string `gorm:"column:metadata"`
	JWKS       string `gorm:"column:jwks"`
	Status     string `gorm:"column:status"`
}

func (legacyEntity) TableName() string {
	return "entities"
}

type legacyValidationRule struct {
	RuleName        string  `gorm:"column:rule_name"`
	EntityType      string  `gorm:"column:entity_type"`
	FieldPath       string  `gorm:"column:field_path"`
	ValidationType  string  `gorm:"column:validation_type"`
	ValidationValue *string `gorm:"column:validation_value"`
	ErrorMessage    *string `gorm:"column:error_message"`
	IsActive        bool    `gorm:"column:is_active"`
}

func (legacyValidationRule) TableName() string {
	return "validation_rules"
}

// legacyDB is a read-only view on the sqlite database of the previous
// registrar deployment
type legacyDB struct {
	db *gorm.DB
}

func openLegacyDB(path string) (*legacyDB, error) {
	if !fileutils.FileExists(path) {
		return nil, errors.Errorf("legacy database '%s' does not exist", path)
	}
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=ro", path)), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not open legacy database")
	}
	return &legacyDB{db: db}, nil
}

func (l *legacyDB) hasTable(name string) bool {
	return l.db.Migrator().HasTable(name)
}

// signingKeys returns the legacy keys, oldest first
func (l *legacyDB) signingKeys() ([]legacySigningKey, error) {
	var keys []legacySigningKey
	if !l.hasTable(legacySigningKey{}.TableName()) {
		return nil, nil
	}
	if err := l.db.Find(&keys).Error; err != nil {
		return nil, errors.Wrap(err, "could not read legacy signing keys")
	}
	sort.SliceStable(
		keys, func(i, j int) bool {
			return keys[i].created().Before(keys[j].created())
		},
	)
	return keys, nil
}

func (l *legacyDB) entities() ([]legacyEntity, error) {
	var entities []legacyEntity
	if !l.hasTable(legacyEntity{}.TableName()) {
		return nil, nil
	}
	err := l.db.Find(&entities).Error
	return entities, errors.Wrap(err, "could not read legacy entities")
}

func (l *legacyDB) validationRules() ([]legacyValidationRule, error) {
	var rules []legacyValidationRule
	if !l.hasTable(legacyValidationRule{}.TableName()) {
		return nil, nil
	}
	err := l.db.Find(&rules).Error
	return rules, errors.Wrap(err, "could not read legacy validation rules")
}

func (l *legacyDB) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
