package adminapi

import (
	"errors"
	"net/url"
	"strings"

	oidfed "github.com/go-oidfed/lib"
	"github.com/gofiber/fiber/v2"

	"github.com/go-oidfed/registrar/registry"
	"github.com/go-oidfed/registrar/statements"
	"github.com/go-oidfed/registrar/storage/model"
)

const localsSubject = "subject"

func entityIDParam(c *fiber.Ctx) string {
	id, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		id = c.Params("*")
	}
	if !strings.HasPrefix(id, "http://") && !strings.HasPrefix(id, "https://") {
		id = "https://" + id
	}
	return id
}

// registerEntities wires handlers to inspect registered entities and to
// change their status
func registerEntities(r fiber.Router, reg *registry.Registry, issuer *statements.Issuer) {
	g := r.Group("/entities")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			entityType := model.EntityType(c.Query("entity_type"))
			if entityType != "" && !entityType.Valid() {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("entity_type must be OP or RP"))
			}
			var status *model.Status
			if v := c.Query("status"); v != "" {
				s, err := model.ParseStatus(v)
				if err != nil {
					return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest(err.Error()))
				}
				status = &s
			}
			entities, err := reg.List(entityType, status)
			if err != nil {
				return storeError(c, err)
			}
			summaries := make([]model.EntitySummary, len(entities))
			for i, e := range entities {
				summaries[i] = e.Summary()
			}
			return c.JSON(summaries)
		},
	)

	type statusReq struct {
		EntityID string        `json:"entity_id"`
		Status   *model.Status `json:"status"`
	}
	g.Put(
		"/status", subordinateStatementCacheInvalidationMiddleware(issuer), func(c *fiber.Ctx) error {
			var req statusReq
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest("invalid body"))
			}
			if req.EntityID == "" || req.Status == nil {
				return c.Status(fiber.StatusBadRequest).JSON(
					oidfed.ErrorInvalidRequest("entity_id and status are required"),
				)
			}
			if err := reg.SetStatus(req.EntityID, *req.Status); err != nil {
				var transition *registry.InvalidTransitionError
				if errors.As(err, &transition) {
					return c.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest(transition.Error()))
				}
				return storeError(c, err)
			}
			c.Locals(localsSubject, req.EntityID)
			entity, err := reg.Get(req.EntityID)
			if err != nil {
				return storeError(c, err)
			}
			return c.JSON(entity.Summary())
		},
	)

	g.Get(
		"/*", func(c *fiber.Ctx) error {
			entity, err := reg.Get(entityIDParam(c))
			if err != nil {
				return storeError(c, err)
			}
			return c.JSON(entity)
		},
	)
}
