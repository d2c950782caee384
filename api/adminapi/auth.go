package adminapi

import (
	"encoding/base64"
	"strings"

	oidfed "github.com/go-oidfed/lib"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/storage/model"
)

const localsAdminUser = "admin_user"

// authMiddleware enforces optional authentication for admin API routes.
// As long as no user exists all requests are allowed; afterwards HTTP Basic
// authentication against the UsersStore is required.
func authMiddleware(users model.UsersStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		count, err := users.Count()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(oidfed.ErrorServerError(err.Error()))
		}
		if count == 0 {
			return c.Next()
		}

		username, password, ok := parseBasicAuth(c)
		if !ok {
			return unauthorized(c, "missing credentials")
		}
		user, err := users.Authenticate(username, password)
		if err != nil {
			log.WithField("user", username).WithField("ip", c.IP()).Info("admin authentication failed")
			return unauthorized(c, "invalid credentials")
		}
		c.Locals(localsAdminUser, user.Username)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, description string) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="registrar admin"`)
	return c.Status(fiber.StatusUnauthorized).JSON(
		fiber.Map{
			"error":             "invalid_client",
			"error_description": description,
		},
	)
}

// parseBasicAuth extracts Basic auth credentials from request headers
func parseBasicAuth(c *fiber.Ctx) (username, password string, ok bool) {
	auth := c.Get(fiber.HeaderAuthorization)
	const prefix = "Basic "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", "", false
	}
	b, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(b), ":")
	return
}

// adminUser returns the name of the authenticated admin user or an empty
// string while the api is open
func adminUser(c *fiber.Ctx) string {
	name, _ := c.Locals(localsAdminUser).(string)
	return name
}
