// Package statements fetches, issues, and caches entity statements.
package statements

import (
	"encoding/json"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/internal/utils"
	"github.com/go-oidfed/registrar/storage/model"
)

// DefaultLifetime is the validity period of issued statements
const DefaultLifetime = 24 * time.Hour

// EntityStatementType is the typ header of entity statements
const EntityStatementType = "entity-statement+jwt"

// Signer signs statements and publishes the federation keys
type Signer interface {
	Sign(payload []byte, headers map[string]any) ([]byte, error)
	PublicKeySet() (jwk.Set, error)
}

// EntitySource looks up registered entities. Unknown ids must result in a
// model.NotFoundError.
type EntitySource interface {
	Get(entityID string) (*model.Entity, error)
}

// Claims is the payload of an issued entity statement
type Claims struct {
	Issuer         string          `json:"iss"`
	Subject        string          `json:"sub"`
	IssuedAt       int64           `json:"iat"`
	ExpiresAt      int64           `json:"exp"`
	JWKS           any             `json:"jwks"`
	Metadata       map[string]any  `json:"metadata"`
	AuthorityHints []string        `json:"authority_hints,omitempty"`
	TrustMarks     json.RawMessage `json:"trust_marks,omitempty"`
}

// Config configures an Issuer
type Config struct {
	// FederationID is the entity id of this federation, the iss of all
	// statements
	FederationID string
	// Lifetime of issued statements; DefaultLifetime if zero
	Lifetime         time.Duration
	OrganizationName string
	FetchEndpoint    string
	ListEndpoint     string
	RegisterEndpoint string
	// FederationEntityExtra holds additional federation_entity metadata of
	// the own statement
	FederationEntityExtra map[string]any
}

// Issuer builds, signs, and caches entity statements
type Issuer struct {
	conf     Config
	signer   Signer
	entities EntitySource
	store    model.StatementStore
	kv       model.KeyValueStore
	now      func() time.Time
}

// NewIssuer creates a new Issuer. kv may be nil, runtime overrides are then
// not available.
func NewIssuer(
	conf Config, signer Signer, entities EntitySource, store model.StatementStore, kv model.KeyValueStore,
) *Issuer {
	if conf.Lifetime <= 0 {
		conf.Lifetime = DefaultLifetime
	}
	return &Issuer{
		conf:     conf,
		signer:   signer,
		entities: entities,
		store:    store,
		kv:       kv,
		now:      time.Now,
	}
}

// SetClock replaces the clock used for iat, exp, and cache freshness
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// FederationID returns the issuer of the statements
func (i *Issuer) FederationID() string {
	return i.conf.FederationID
}

func (i *Issuer) lifetime(scope string) time.Duration {
	if i.kv == nil {
		return i.conf.Lifetime
	}
	var seconds int64
	found, err := i.kv.GetAs(scope, model.KeyValueKeyLifetime, &seconds)
	if err != nil {
		log.WithError(err).WithField("scope", scope).Warn("could not read lifetime override")
		return i.conf.Lifetime
	}
	if !found || seconds <= 0 {
		return i.conf.Lifetime
	}
	return time.Duration(seconds) * time.Second
}

// Lifetime returns the effective lifetime of subordinate statements
func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime(model.KeyValueScopeSubordinateStatement)
}

func (i *Issuer) sign(claims Claims, entityID string) (*model.EntityStatement, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	signed, err := i.signer.Sign(payload, map[string]any{"typ": EntityStatementType})
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	stmt := &model.EntityStatement{
		EntityID:  entityID,
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		Statement: string(signed),
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}
	if err = i.store.Put(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

func issuable(status model.Status) bool {
	return status == model.StatusPending || status == model.StatusActive
}

// Issue issues a new statement for entity and caches it
func (i *Issuer) Issue(entity *model.Entity) (*model.EntityStatement, error) {
	if !issuable(entity.Status) {
		return nil, &ExpiredAndUnrenewableError{
			Subject: entity.EntityID,
			Status:  entity.Status,
		}
	}
	now := i.now().Unix()
	claims := Claims{
		Issuer:         i.conf.FederationID,
		Subject:        entity.EntityID,
		IssuedAt:       now,
		ExpiresAt:      now + int64(i.Lifetime()/time.Second),
		JWKS:           map[string]any(entity.JWKS),
		Metadata:       entity.Metadata,
		AuthorityHints: entity.AuthorityHints,
	}
	if len(entity.TrustMarks) > 0 && string(entity.TrustMarks) != "null" {
		claims.TrustMarks = json.RawMessage(entity.TrustMarks)
	}
	stmt, err := i.sign(claims, entity.EntityID)
	if err != nil {
		return nil, err
	}
	log.WithField("sub", entity.EntityID).WithField("exp", claims.ExpiresAt).Debug("issued entity statement")
	return stmt, nil
}

// GetOrRenew returns the current statement for subject. A cached statement
// is used while it has not expired, otherwise a new one is issued. Only
// active entities get statements.
func (i *Issuer) GetOrRenew(subject string) (string, error) {
	entity, err := i.entities.Get(subject)
	if err != nil {
		return "", err
	}
	if entity.Status != model.StatusActive {
		return "", &ExpiredAndUnrenewableError{
			Subject: subject,
			Status:  entity.Status,
		}
	}
	cached, err := i.store.Latest(subject, i.now().Unix())
	if err != nil {
		return "", err
	}
	if cached != nil {
		return cached.Statement, nil
	}
	stmt, err := i.Issue(entity)
	if err != nil {
		return "", err
	}
	return stmt.Statement, nil
}

func (i *Issuer) organizationName() string {
	if i.kv != nil {
		var name string
		found, err := i.kv.GetAs(model.KeyValueScopeEntityConfiguration, model.KeyValueKeyOrganizationName, &name)
		if err != nil {
			log.WithError(err).Warn("could not read organization name override")
		}
		if found && name != "" {
			return name
		}
	}
	return i.conf.OrganizationName
}

func (i *Issuer) federationEntityMetadata() map[string]any {
	own := map[string]any{}
	for k, v := range map[string]string{
		"organization_name":                i.organizationName(),
		"federation_fetch_endpoint":        i.conf.FetchEndpoint,
		"federation_list_endpoint":         i.conf.ListEndpoint,
		"federation_registration_endpoint": i.conf.RegisterEndpoint,
	} {
		if v != "" {
			own[k] = v
		}
	}
	return utils.MergeMaps(true, i.conf.FederationEntityExtra, own)
}

// OwnStatement returns the self-signed statement of the federation. It is
// cached like subordinate statements.
func (i *Issuer) OwnStatement() (string, error) {
	id := i.conf.FederationID
	now := i.now().Unix()
	cached, err := i.store.Latest(id, now)
	if err != nil {
		return "", err
	}
	if cached != nil {
		return cached.Statement, nil
	}
	set, err := i.signer.PublicKeySet()
	if err != nil {
		return "", &SigningError{Err: err}
	}
	claims := Claims{
		Issuer:    id,
		Subject:   id,
		IssuedAt:  now,
		ExpiresAt: now + int64(i.lifetime(model.KeyValueScopeEntityConfiguration)/time.Second),
		JWKS:      set,
		Metadata: map[string]any{
			"federation_entity": i.federationEntityMetadata(),
		},
	}
	stmt, err := i.sign(claims, id)
	if err != nil {
		return "", err
	}
	return stmt.Statement, nil
}

// InvalidateOwn drops the cached own statement, e.g. after a key rotation
func (i *Issuer) InvalidateOwn() error {
	return i.store.Invalidate(i.conf.FederationID)
}

// Invalidate drops the cached statements of subject
func (i *Issuer) Invalidate(subject string) error {
	return i.store.Invalidate(subject)
}

// Purge deletes expired statements from the cache
func (i *Issuer) Purge() (int64, error) {
	n, err := i.store.Purge(i.now().Unix())
	if err != nil {
		return 0, err
	}
	log.WithField("count", n).Info("purged expired entity statements")
	return n, nil
}
