package adminapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lestrrat-go/jwx/v3/jwk"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/storage/model"
)

type keyInfo struct {
	KID       string    `json:"kid"`
	Alg       string    `json:"alg"`
	Active    bool      `json:"active"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
}

func newKeyInfo(k model.SigningKey) keyInfo {
	return keyInfo{
		KID:       k.KID,
		Alg:       k.Algorithm,
		Active:    k.IsActive(),
		PublicKey: k.PublicKey,
		CreatedAt: k.CreatedAt,
	}
}

type keysResponse struct {
	Keys []keyInfo `json:"keys"`
	JWKS jwk.Set   `json:"jwks"`
}

// registerKeys wires routes for listing and rotating the federation signing
// keys
func registerKeys(r fiber.Router, manager KeyManager, store model.SigningKeyStore, invalidateOwn fiber.Handler) {
	g := r.Group("/keys")

	g.Get(
		"/", func(c *fiber.Ctx) error {
			set, err := manager.PublicKeySet()
			if err != nil {
				return storeError(c, err)
			}
			all, err := store.All()
			if err != nil {
				return storeError(c, err)
			}
			res := keysResponse{
				Keys: make([]keyInfo, len(all)),
				JWKS: set,
			}
			for i, k := range all {
				res.Keys[i] = newKeyInfo(k)
			}
			return c.JSON(res)
		},
	)

	g.Post(
		"/rotate", invalidateOwn, func(c *fiber.Ctx) error {
			key, err := manager.Rotate()
			if err != nil {
				return storeError(c, err)
			}
			log.WithField("kid", key.KID).WithField("admin", adminUser(c)).Info("rotated signing key")
			return c.Status(fiber.StatusCreated).JSON(newKeyInfo(key))
		},
	)
}
