// Package adminapi implements the administrative http api of the registrar.
package adminapi

import (
	"errors"

	oidfed "github.com/go-oidfed/lib"
	"github.com/gofiber/fiber/v2"
	"github.com/lestrrat-go/jwx/v3/jwk"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/registry"
	"github.com/go-oidfed/registrar/statements"
	"github.com/go-oidfed/registrar/storage/model"
)

// Options controls optional features of the admin API registration.
type Options struct {
	// UsersEnabled controls whether the user management API is mounted.
	UsersEnabled bool
}

// KeyManager manages the federation signing keys
type KeyManager interface {
	Rotate() (model.SigningKey, error)
	PublicKeySet() (jwk.Set, error)
}

// Dependencies are the components the admin API operates on
type Dependencies struct {
	EntityID string
	Storages model.Backends
	Keys     KeyManager
	Registry *registry.Registry
	Issuer   *statements.Issuer
}

// Register mounts all admin API routes under the provided group.
func Register(r fiber.Router, deps Dependencies, opts *Options) {
	// Optional authentication middleware for all admin routes
	r.Use(authMiddleware(deps.Storages.Users))

	registerValidationRules(r, deps.Storages.Rules)
	registerEntities(r, deps.Registry, deps.Issuer)
	invalidateOwn := entityConfigurationCacheInvalidationMiddleware(deps.EntityID, deps.Issuer)
	registerKeys(r, deps.Keys, deps.Storages.Keys, invalidateOwn)
	registerStatementSettings(r, deps.Issuer, deps.Storages.KV, invalidateOwn)
	// Users management
	if opts == nil || opts.UsersEnabled {
		registerUsers(r, deps.Storages.Users)
	}
}

// storeError renders errors returned by the storage layer
func storeError(c *fiber.Ctx, err error) error {
	var notFound model.NotFoundError
	var exists model.AlreadyExistsError
	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(oidfed.ErrorNotFound(notFound.Error()))
	case errors.As(err, &exists):
		return c.Status(fiber.StatusConflict).JSON(oidfed.ErrorInvalidRequest(exists.Error()))
	}
	log.WithError(err).WithField("path", c.Path()).Error("admin request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(oidfed.ErrorServerError(err.Error()))
}
