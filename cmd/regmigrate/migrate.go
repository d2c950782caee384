package main

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/keys"
	"github.com/go-oidfed/registrar/storage"
	"github.com/go-oidfed/registrar/storage/model"
	"github.com/go-oidfed/registrar/validation"
)

// legacyKeyAlgorithm is the algorithm the previous deployment signed with;
// its key_type column only ever says RSA
const legacyKeyAlgorithm = "RS256"

// report counts the outcome of one migration step
type report struct {
	Imported int
	Skipped  int
	Failed   int
}

func (r report) fields(step string) log.Fields {
	return log.Fields{
		"step":     step,
		"imported": r.Imported,
		"skipped":  r.Skipped,
		"failed":   r.Failed,
	}
}

type migrator struct {
	src     *legacyDB
	dst     *storage.Storage
	dryRun  bool
	promote bool
}

func (m *migrator) run() (map[string]report, error) {
	reports := make(map[string]report, 3)
	for _, step := range []struct {
		name string
		fn   func() (report, error)
	}{
		{"keys", m.migrateKeys},
		{"entities", m.migrateEntities},
		{"rules", m.migrateRules},
	} {
		r, err := step.fn()
		if err != nil {
			return reports, errors.WithMessagef(err, "%s migration failed", step.name)
		}
		log.WithFields(r.fields(step.name)).Info("migration step completed")
		reports[step.name] = r
	}
	return reports, nil
}

func convertKey(k legacySigningKey) model.SigningKey {
	return model.SigningKey{
		KID:        k.KID,
		Algorithm:  legacyKeyAlgorithm,
		PrivateKey: k.PrivateKey,
		PublicKey:  k.PublicKey,
		CreatedAt:  k.created(),
	}
}

// migrateKeys imports all legacy keys under their legacy kid. The newest
// active legacy key becomes the active key unless the destination already
// has one; then it is retained, or promoted if requested.
func (m *migrator) migrateKeys() (r report, err error) {
	legacyKeys, err := m.src.signingKeys()
	if err != nil {
		return
	}
	activeIdx := -1
	for i, k := range legacyKeys {
		if k.IsActive {
			activeIdx = i
		}
	}
	store := m.dst.SigningKeyStorage()
	existing, err := store.All()
	if err != nil {
		return
	}
	known := make(map[string]bool, len(existing))
	for _, k := range existing {
		known[k.KID] = true
	}
	for i, lk := range legacyKeys {
		key := convertKey(lk)
		logger := log.WithField("kid", key.KID)
		if known[key.KID] {
			logger.Debug("signing key already present")
			r.Skipped++
			continue
		}
		if err = keys.Check(key); err != nil {
			logger.WithError(err).Warn("skipping unusable signing key")
			r.Failed++
			err = nil
			continue
		}
		if m.dryRun {
			r.Imported++
			continue
		}
		if i != activeIdx {
			if err = store.Retain(&key); err != nil {
				return
			}
			r.Imported++
			continue
		}
		if m.promote {
			err = store.Promote(&key)
		} else {
			var inserted bool
			inserted, err = store.InsertActiveIfAbsent(&key)
			if err == nil && !inserted {
				logger.Warn("destination already has an active key, retaining legacy active key")
				err = store.Retain(&key)
			}
		}
		if err != nil {
			return
		}
		logger.Info("imported legacy active signing key")
		r.Imported++
	}
	return
}

func decodeJSONObject(data string) (map[string]any, error) {
	if strings.TrimSpace(data) == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, errors.WithStack(err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func convertEntity(e legacyEntity) (*model.Entity, error) {
	entityType := model.EntityType(strings.ToUpper(e.EntityType))
	if !entityType.Valid() {
		return nil, errors.Errorf("invalid entity type '%s'", e.EntityType)
	}
	status, err := model.ParseStatus(strings.ToLower(strings.TrimSpace(e.Status)))
	if err != nil {
		return nil, err
	}
	metadata, err := decodeJSONObject(e.Metadata)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid metadata")
	}
	jwks, err := decodeJSONObject(e.JWKS)
	if err != nil {
		return nil, errors.WithMessage(err, "invalid jwks")
	}
	return &model.Entity{
		EntityID:   e.EntityID,
		EntityType: entityType,
		Status:     status,
		Metadata:   metadata,
		JWKS:       jwks,
	}, nil
}

// migrateEntities imports registered entities with their status. Issued
// statements are not migrated; they are re-issued on the next fetch.
func (m *migrator) migrateEntities() (r report, err error) {
	legacyEntities, err := m.src.entities()
	if err != nil {
		return
	}
	store := m.dst.EntityStorage()
	for _, le := range legacyEntities {
		logger := log.WithField("entity_id", le.EntityID)
		entity, cErr := convertEntity(le)
		if cErr != nil {
			logger.WithError(cErr).Warn("skipping invalid legacy entity")
			r.Failed++
			continue
		}
		existing, gErr := store.Get(entity.EntityID)
		if gErr != nil {
			return r, gErr
		}
		if existing != nil {
			logger.Debug("entity already registered")
			r.Skipped++
			continue
		}
		if !m.dryRun {
			if err = store.Insert(entity); err != nil {
				return
			}
		}
		r.Imported++
	}
	return
}

func convertRule(lr legacyValidationRule) model.ValidationRule {
	rule := model.ValidationRule{
		RuleName:       lr.RuleName,
		EntityType:     model.RuleEntityType(strings.ToUpper(lr.EntityType)),
		FieldPath:      lr.FieldPath,
		ValidationType: model.ValidationType(strings.ToLower(lr.ValidationType)),
		IsActive:       lr.IsActive,
	}
	if lr.ValidationValue != nil {
		rule.ValidationValue = *lr.ValidationValue
	}
	if lr.ErrorMessage != nil {
		rule.ErrorMessage = *lr.ErrorMessage
	}
	return rule
}

func (m *migrator) migrateRules() (r report, err error) {
	legacyRules, err := m.src.validationRules()
	if err != nil {
		return
	}
	store := m.dst.ValidationRuleStorage()
	existing, err := store.List("", false)
	if err != nil {
		return
	}
	known := make(map[string]bool, len(existing))
	for _, rule := range existing {
		known[rule.RuleName] = true
	}
	for _, lr := range legacyRules {
		logger := log.WithField("rule_name", lr.RuleName)
		rule := convertRule(lr)
		if known[rule.RuleName] {
			logger.Debug("validation rule already present")
			r.Skipped++
			continue
		}
		if cErr := validation.CheckRule(rule); cErr != nil {
			logger.WithError(cErr).Warn("skipping invalid legacy validation rule")
			r.Failed++
			continue
		}
		if !m.dryRun {
			if err = store.Create(&rule); err != nil {
				return
			}
		}
		known[rule.RuleName] = true
		r.Imported++
	}
	return
}
