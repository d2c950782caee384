package adminapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	oidfed "github.com/go-oidfed/lib"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/storage/model"
	"github.com/go-oidfed/registrar/validation"
)

// invalidRuleError marks a rule that was rejected by validation.CheckRule
type invalidRuleError struct {
	err error
}

func (e invalidRuleError) Error() string {
	return e.err.Error()
}

func checkRule(rule model.ValidationRule) error {
	if err := validation.CheckRule(rule); err != nil {
		return invalidRuleError{err: err}
	}
	return nil
}

func ruleID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ruleValue returns the stored form of a validation_value; a json string is
// stored unquoted, any other json value (e.g. a range object) as its json text
func ruleValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", err
	}
	return compact.String(), nil
}

// registerValidationRules wires the CRUD handlers for validation rules
func registerValidationRules(r fiber.Router, rules model.ValidationRuleStore) {
	g := r.Group("/validation-rules")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			entityType := model.RuleEntityType(c.Query("entity_type"))
			if entityType != "" && !entityType.Valid() {
				return c.Status(fiber.StatusBadRequest).JSON(
					oidfed.ErrorInvalidRequest("entity_type must be OP, RP, or BOTH"),
				)
			}
			activeOnly := true
			if v := c.Query("active_only"); v != "" {
				var err error
				if activeOnly, err = strconv.ParseBool(v); err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(
						oidfed.ErrorInvalidRequest("active_only must be a boolean"),
					)
				}
			}
			list, err := rules.List(entityType, activeOnly)
			if err != nil {
				return storeError(c, err)
			}
			return c.JSON(list)
		},
	)

	type createReq struct {
		RuleName        string               `json:"rule_name"`
		EntityType      model.RuleEntityType `json:"entity_type"`
		FieldPath       string               `json:"field_path"`
		ValidationType  model.ValidationType `json:"validation_type"`
		ValidationValue json.RawMessage      `json:"validation_value"`
		ErrorMessage    string               `json:"error_message"`
		IsActive        *bool                `json:"is_active"`
	}
	g.Post(
		"/", func(c *fiber.Ctx) error {
			var req createReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid body"))
			}
			value, err := ruleValue(req.ValidationValue)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid validation_value"))
			}
			rule := model.ValidationRule{
				RuleName:        req.RuleName,
				EntityType:      req.EntityType,
				FieldPath:       req.FieldPath,
				ValidationType:  req.ValidationType,
				ValidationValue: value,
				ErrorMessage:    req.ErrorMessage,
				IsActive:        req.IsActive == nil || *req.IsActive,
			}
			if err := validation.CheckRule(rule); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest(err.Error()))
			}
			if err := rules.Create(&rule); err != nil {
				return storeError(c, err)
			}
			log.WithField("rule", rule.RuleName).WithField("admin", adminUser(c)).Info("created validation rule")
			return c.Status(fiber.StatusCreated).JSON(rule)
		},
	)

	g.Get(
		"/:id", func(c *fiber.Ctx) error {
			id, ok := ruleID(c)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid rule id"))
			}
			rule, err := rules.Get(id)
			if err != nil {
				return storeError(c, err)
			}
			return c.JSON(rule)
		},
	)

	type updateReq struct {
		model.ValidationRuleUpdate
		ValidationValue json.RawMessage `json:"validation_value"`
	}
	g.Put(
		"/:id", func(c *fiber.Ctx) error {
			id, ok := ruleID(c)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid rule id"))
			}
			var req updateReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid body"))
			}
			if req.ValidationValue != nil {
				value, err := ruleValue(req.ValidationValue)
				if err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid validation_value"))
				}
				req.ValidationRuleUpdate.ValidationValue = &value
			}
			rule, err := rules.Update(id, req.ValidationRuleUpdate, checkRule)
			if err != nil {
				var invalid invalidRuleError
				if errors.As(err, &invalid) {
					return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest(invalid.Error()))
				}
				return storeError(c, err)
			}
			log.WithField("rule", rule.RuleName).WithField("admin", adminUser(c)).Info("updated validation rule")
			return c.JSON(rule)
		},
	)

	g.Delete(
		"/:id", func(c *fiber.Ctx) error {
			id, ok := ruleID(c)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid rule id"))
			}
			if err := rules.Delete(id); err != nil {
				return storeError(c, err)
			}
			log.WithField("rule_id", id).WithField("admin", adminUser(c)).Info("deleted validation rule")
			return c.SendStatus(fiber.StatusNoContent)
		},
	)
}
