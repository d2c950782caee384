package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/go-oidfed/registrar/storage/model"
)

// ValidationRuleStorage implements model.ValidationRuleStore
type ValidationRuleStorage struct {
	db *gorm.DB
}

func ruleExists(name string) error {
	return model.AlreadyExistsErrorFmt("validation rule '%s' already exists", name)
}

// Create stores a new rule
func (s *ValidationRuleStorage) Create(rule *model.ValidationRule) error {
	rule.ID = 0
	// is_active has no column default, so a false value is written as is
	err := s.db.Create(rule).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ruleExists(rule.RuleName)
	}
	return errors.Wrap(err, "failed to create validation rule")
}

func (*ValidationRuleStorage) get(db *gorm.DB, id uint) (*model.ValidationRule, error) {
	var rule model.ValidationRule
	if err := db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFoundErrorFmt("validation rule %d not found", id)
		}
		return nil, errors.Wrap(err, "failed to load validation rule")
	}
	return &rule, nil
}

// Get returns a rule by id
func (s *ValidationRuleStorage) Get(id uint) (*model.ValidationRule, error) {
	return s.get(s.db, id)
}

// List returns rules ordered by id. A non-empty entityType selects rules for
// that type and rules for BOTH.
func (s *ValidationRuleStorage) List(entityType model.RuleEntityType, activeOnly bool) (
	rules []model.ValidationRule, err error,
) {
	query := s.db.Order("id")
	if entityType != "" {
		types := []model.RuleEntityType{entityType}
		if entityType != model.RuleEntityTypeBoth {
			types = append(types, model.RuleEntityTypeBoth)
		}
		query = query.Where("entity_type IN ?", types)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err = errors.Wrap(query.Find(&rules).Error, "failed to list validation rules")
	return
}

// Update applies update to the rule with the passed id. check is called with
// the updated rule before it is written; a non-nil error aborts the update.
func (s *ValidationRuleStorage) Update(
	id uint, update model.ValidationRuleUpdate, check func(model.ValidationRule) error,
) (*model.ValidationRule, error) {
	var updated *model.ValidationRule
	err := s.db.Transaction(
		func(tx *gorm.DB) error {
			rule, err := s.get(tx, id)
			if err != nil {
				return err
			}
			update.Apply(rule)
			if check != nil {
				if err = check(*rule); err != nil {
					return err
				}
			}
			if err = tx.Save(rule).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ruleExists(rule.RuleName)
				}
				return errors.Wrap(err, "failed to update validation rule")
			}
			updated = rule
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a rule
func (s *ValidationRuleStorage) Delete(id uint) error {
	res := s.db.Delete(&model.ValidationRule{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete validation rule")
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("validation rule %d not found", id)
	}
	return nil
}
