package adminapi

import (
	"github.com/go-oidfed/lib/cache"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/statements"
)

// entityConfigurationCacheInvalidationMiddleware clears the cached own
// statement of the federation, both the short-lived http cache and the
// statement cache, for requests that successfully changed its content.
// It should be attached only to non-GET routes.
func entityConfigurationCacheInvalidationMiddleware(entityID string, issuer *statements.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		status := c.Response().StatusCode()
		if status < 200 || status >= 400 {
			return nil
		}
		if err := cache.Delete(cache.Key(cache.KeyEntityConfiguration, entityID)); err != nil {
			log.WithError(err).Warn("could not delete cached entity configuration")
		}
		if err := issuer.InvalidateOwn(); err != nil {
			log.WithError(err).Warn("could not invalidate own entity statement")
		}
		return nil
	}
}

// subordinateStatementCacheInvalidationMiddleware drops the cached statement
// of the subordinate whose id the handler stored in the request locals
func subordinateStatementCacheInvalidationMiddleware(issuer *statements.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		status := c.Response().StatusCode()
		if status < 200 || status >= 400 {
			return nil
		}
		subject, _ := c.Locals(localsSubject).(string)
		if subject == "" {
			return nil
		}
		if err := issuer.Invalidate(subject); err != nil {
			log.WithError(err).WithField("entity_id", subject).Warn("could not invalidate entity statement")
		}
		return nil
	}
}
