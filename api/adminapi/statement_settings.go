package adminapi

import (
	"time"

	oidfed "github.com/go-oidfed/lib"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/statements"
	"github.com/go-oidfed/registrar/storage/model"
)

type lifetimeBody struct {
	// Lifetime in seconds
	Lifetime int64 `json:"lifetime"`
}

type organizationNameBody struct {
	OrganizationName string `json:"organization_name"`
}

// registerStatementSettings wires the runtime settings of issued statements:
// the lifetime of subordinate statements and the organization name
// published in the own statement
func registerStatementSettings(
	r fiber.Router, issuer *statements.Issuer, kv model.KeyValueStore, invalidateOwn fiber.Handler,
) {
	r.Get(
		"/statements/lifetime", func(c *fiber.Ctx) error {
			return c.JSON(lifetimeBody{Lifetime: int64(issuer.Lifetime() / time.Second)})
		},
	)
	r.Put(
		"/statements/lifetime", func(c *fiber.Ctx) error {
			var req lifetimeBody
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid body"))
			}
			if req.Lifetime <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(
					oidfed.ErrorInvalidRequest("lifetime must be a positive number of seconds"),
				)
			}
			if err := kv.SetAny(
				model.KeyValueScopeSubordinateStatement, model.KeyValueKeyLifetime, req.Lifetime,
			); err != nil {
				return storeError(c, err)
			}
			log.WithField("lifetime", req.Lifetime).WithField("admin", adminUser(c)).
				Info("changed statement lifetime")
			return c.JSON(req)
		},
	)

	r.Get(
		"/entity-configuration/organization-name", func(c *fiber.Ctx) error {
			var name string
			if _, err := kv.GetAs(
				model.KeyValueScopeEntityConfiguration, model.KeyValueKeyOrganizationName, &name,
			); err != nil {
				return storeError(c, err)
			}
			return c.JSON(organizationNameBody{OrganizationName: name})
		},
	)
	r.Put(
		"/entity-configuration/organization-name", invalidateOwn, func(c *fiber.Ctx) error {
			var req organizationNameBody
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid body"))
			}
			var err error
			if req.OrganizationName == "" {
				err = kv.Delete(model.KeyValueScopeEntityConfiguration, model.KeyValueKeyOrganizationName)
			} else {
				err = kv.SetAny(
					model.KeyValueScopeEntityConfiguration, model.KeyValueKeyOrganizationName, req.OrganizationName,
				)
			}
			if err != nil {
				return storeError(c, err)
			}
			return c.JSON(req)
		},
	)
}
