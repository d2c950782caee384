package statements

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"

	"github.com/go-oidfed/registrar/keys"
	"github.com/go-oidfed/registrar/registry"
	"github.com/go-oidfed/registrar/storage"
	"github.com/go-oidfed/registrar/storage/model"
)

const testFederationID = "https://fed.example.org"

type testEnv struct {
	issuer   *Issuer
	registry *registry.Registry
	keys     *keys.Manager
	kv       model.KeyValueStore
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := storage.NewStorage(
		storage.Config{
			Driver:  storage.DriverSQLite,
			DataDir: t.TempDir(),
		},
	)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	km, err := keys.NewManager(s.SigningKeyStorage(), keys.Config{})
	if err != nil {
		t.Fatalf("failed to create key manager: %v", err)
	}
	env := &testEnv{
		registry: registry.New(s.EntityStorage()),
		keys:     km,
		kv:       s.KeyValue(),
		now:      time.Unix(1_700_000_000, 0),
	}
	env.issuer = NewIssuer(
		Config{
			FederationID:     testFederationID,
			OrganizationName: "Example Federation",
			FetchEndpoint:    testFederationID + "/fetch",
			ListEndpoint:     testFederationID + "/list",
			RegisterEndpoint: testFederationID + "/register",
		},
		km, env.registry, s.StatementStorage(), env.kv,
	)
	env.issuer.SetClock(func() time.Time { return env.now })
	return env
}

func (env *testEnv) register(t *testing.T, id string, status model.Status) *model.Entity {
	t.Helper()
	e, err := env.registry.Register(
		registry.Registration{
			EntityID:       id,
			EntityType:     model.EntityTypeOP,
			Metadata:       map[string]any{"openid_provider": map[string]any{"issuer": id}},
			JWKS:           map[string]any{"keys": []any{map[string]any{"kty": "RSA", "kid": "op"}}},
			AuthorityHints: []string{testFederationID},
			TrustMarks:     json.RawMessage(`[{"id":"https://tm.example.org","trust_mark":"x"}]`),
		},
	)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if status != model.StatusPending {
		if err = env.registry.Activate(id); err != nil {
			t.Fatalf("activate failed: %v", err)
		}
		if status != model.StatusActive {
			if err = env.registry.SetStatus(id, status); err != nil {
				t.Fatalf("set status failed: %v", err)
			}
		}
	}
	e, _ = env.registry.Get(id)
	return e
}

func (env *testEnv) verify(t *testing.T, token string) Claims {
	t.Helper()
	set, err := env.keys.PublicKeySet()
	if err != nil {
		t.Fatalf("public key set failed: %v", err)
	}
	payload, err := jws.Verify([]byte(token), jws.WithKeySet(set))
	if err != nil {
		t.Fatalf("statement does not verify: %v", err)
	}
	msg, err := jws.Parse([]byte(token))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if typ, _ := msg.Signatures()[0].ProtectedHeaders().Type(); typ != EntityStatementType {
		t.Errorf("unexpected typ %s", typ)
	}
	var claims Claims
	if err = json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	return claims
}

func TestIssueAndRenew(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, testEntityID, model.StatusActive)

	token, err := env.issuer.GetOrRenew(testEntityID)
	if err != nil {
		t.Fatalf("get statement failed: %v", err)
	}
	claims := env.verify(t, token)
	if claims.Issuer != testFederationID || claims.Subject != testEntityID {
		t.Errorf("unexpected iss/sub: %s %s", claims.Issuer, claims.Subject)
	}
	if claims.ExpiresAt-claims.IssuedAt != 86400 {
		t.Errorf("expected lifetime of 86400s, got %d", claims.ExpiresAt-claims.IssuedAt)
	}
	if len(claims.AuthorityHints) != 1 || claims.AuthorityHints[0] != testFederationID {
		t.Errorf("unexpected authority hints %v", claims.AuthorityHints)
	}
	if len(claims.TrustMarks) == 0 {
		t.Error("trust marks missing")
	}

	env.now = env.now.Add(time.Hour)
	cached, err := env.issuer.GetOrRenew(testEntityID)
	if err != nil {
		t.Fatalf("get statement failed: %v", err)
	}
	if cached != token {
		t.Error("expected the cached statement to be returned while it is valid")
	}

	// exactly at exp the statement is no longer valid
	env.now = time.Unix(claims.ExpiresAt, 0)
	renewed, err := env.issuer.GetOrRenew(testEntityID)
	if err != nil {
		t.Fatalf("renewal failed: %v", err)
	}
	if renewed == token {
		t.Fatal("expired statement was returned")
	}
	renewedClaims := env.verify(t, renewed)
	if renewedClaims.ExpiresAt <= env.now.Unix() {
		t.Errorf("renewed statement is not valid: exp=%d now=%d", renewedClaims.ExpiresAt, env.now.Unix())
	}
}

func TestLifetimeOverride(t *testing.T) {
	env := newTestEnv(t)
	if err := env.kv.SetAny(model.KeyValueScopeSubordinateStatement, model.KeyValueKeyLifetime, 3600); err != nil {
		t.Fatalf("set lifetime failed: %v", err)
	}
	e := env.register(t, testEntityID, model.StatusPending)
	stmt, err := env.issuer.Issue(e)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if stmt.ExpiresAt-stmt.IssuedAt != 3600 {
		t.Errorf("expected lifetime 3600, got %d", stmt.ExpiresAt-stmt.IssuedAt)
	}
}

func TestStatementsForInactiveEntities(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, testEntityID, model.StatusActive)
	if _, err := env.issuer.GetOrRenew(testEntityID); err != nil {
		t.Fatalf("get statement failed: %v", err)
	}
	if err := env.registry.SetStatus(testEntityID, model.StatusSuspended); err != nil {
		t.Fatalf("suspend failed: %v", err)
	}
	var unrenewable *ExpiredAndUnrenewableError
	if _, err := env.issuer.GetOrRenew(testEntityID); !errors.As(err, &unrenewable) {
		t.Fatalf("expected ExpiredAndUnrenewableError, got %v", err)
	}
	suspended, _ := env.registry.Get(testEntityID)
	if _, err := env.issuer.Issue(suspended); !errors.As(err, &unrenewable) {
		t.Errorf("expected ExpiredAndUnrenewableError from Issue, got %v", err)
	}

	var notFound model.NotFoundError
	if _, err := env.issuer.GetOrRenew("https://unknown.example.org"); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

type failingSigner struct {
	err error
}

func (f failingSigner) Sign([]byte, map[string]any) ([]byte, error) {
	return nil, f.err
}

func (f failingSigner) PublicKeySet() (jwk.Set, error) {
	return nil, f.err
}

func TestSigningError(t *testing.T) {
	env := newTestEnv(t)
	genErr := &keys.KeyGenerationError{Err: errors.New("no entropy")}
	env.issuer.signer = failingSigner{err: genErr}
	e := env.register(t, testEntityID, model.StatusPending)
	_, err := env.issuer.Issue(e)
	var signingErr *SigningError
	if !errors.As(err, &signingErr) {
		t.Fatalf("expected SigningError, got %v", err)
	}
	var keyErr *keys.KeyGenerationError
	if !errors.As(err, &keyErr) {
		t.Errorf("KeyGenerationError not reachable: %v", err)
	}
	if _, err = env.issuer.OwnStatement(); !errors.As(err, &signingErr) {
		t.Errorf("expected SigningError for own statement, got %v", err)
	}
}

func TestOwnStatement(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.issuer.OwnStatement()
	if err != nil {
		t.Fatalf("own statement failed: %v", err)
	}
	claims := env.verify(t, token)
	if claims.Issuer != testFederationID || claims.Subject != testFederationID {
		t.Errorf("unexpected iss/sub: %s %s", claims.Issuer, claims.Subject)
	}
	if len(claims.AuthorityHints) != 0 {
		t.Errorf("own statement must not have authority hints: %v", claims.AuthorityHints)
	}
	fe, _ := claims.Metadata["federation_entity"].(map[string]any)
	if fe["organization_name"] != "Example Federation" ||
		fe["federation_fetch_endpoint"] != testFederationID+"/fetch" {
		t.Errorf("unexpected federation_entity metadata %v", fe)
	}

	again, _ := env.issuer.OwnStatement()
	if again != token {
		t.Error("expected cached own statement")
	}
	rotated, err := env.keys.Rotate()
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if err = env.issuer.InvalidateOwn(); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	fresh, err := env.issuer.OwnStatement()
	if err != nil {
		t.Fatalf("own statement failed: %v", err)
	}
	msg, _ := jws.Parse([]byte(fresh))
	if kid, _ := msg.Signatures()[0].ProtectedHeaders().KeyID(); kid != rotated.KID {
		t.Errorf("expected statement signed with rotated key %s, got %s", rotated.KID, kid)
	}
	jwks, _ := env.verify(t, fresh).JWKS.(map[string]any)
	if ks, _ := jwks["keys"].([]any); len(ks) != 2 {
		t.Errorf("expected old and new key in jwks, got %v", jwks)
	}
}

func TestPurge(t *testing.T) {
	env := newTestEnv(t)
	e := env.register(t, testEntityID, model.StatusPending)
	if _, err := env.issuer.Issue(e); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	n, err := env.issuer.Purge()
	if err != nil || n != 0 {
		t.Fatalf("expected nothing to purge, got %d, %v", n, err)
	}
	env.now = env.now.Add(48 * time.Hour)
	n, err = env.issuer.Purge()
	if err != nil || n != 1 {
		t.Errorf("expected one purged statement, got %d, %v", n, err)
	}
}
