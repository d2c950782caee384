// Package keys manages the federation signing key.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"io"
	"strings"
	"sync"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/storage/model"
)

// MinRSAKeyLen is the smallest accepted RSA modulus size
const MinRSAKeyLen = 2048

// Config configures a Manager
type Config struct {
	// Algorithm is the RSA JWS algorithm; defaults to RS256
	Algorithm jwa.SignatureAlgorithm
	// RSAKeyLen is the modulus size of generated keys; defaults to 2048
	RSAKeyLen int
	// Rand is the entropy source for key generation; defaults to
	// crypto/rand.Reader
	Rand io.Reader
}

// Manager owns the active signing key. The key is created lazily on first
// use, persisted, and reused afterwards; the storage is authoritative and
// arbitrates concurrent first-use creation.
type Manager struct {
	store  model.SigningKeyStore
	alg    jwa.SignatureAlgorithm
	keyLen int
	rand   io.Reader
	newRSA func(io.Reader, int) (*rsa.PrivateKey, error)

	mu     sync.Mutex
	active *signingKey
}

type signingKey struct {
	record  model.SigningKey
	alg     jwa.SignatureAlgorithm
	private jwk.Key
	public  jwk.Key
}

func isRSAAlgorithm(alg jwa.SignatureAlgorithm) bool {
	name := alg.String()
	return strings.HasPrefix(name, "RS") || strings.HasPrefix(name, "PS")
}

// NewManager creates a new Manager on top of the passed store
func NewManager(store model.SigningKeyStore, conf Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("keys: no signing key store given")
	}
	alg := conf.Algorithm
	if alg.String() == "" {
		alg = jwa.RS256()
	}
	if !isRSAAlgorithm(alg) {
		return nil, errors.Errorf("keys: unsupported signing algorithm '%s', only RSA algorithms are supported", alg)
	}
	keyLen := conf.RSAKeyLen
	if keyLen == 0 {
		keyLen = MinRSAKeyLen
	}
	if keyLen < MinRSAKeyLen {
		return nil, errors.Errorf("keys: rsa key length %d is below the minimum of %d", keyLen, MinRSAKeyLen)
	}
	r := conf.Rand
	if r == nil {
		r = rand.Reader
	}
	return &Manager{
		store:  store,
		alg:    alg,
		keyLen: keyLen,
		rand:   r,
		newRSA: rsa.GenerateKey,
	}, nil
}

// Algorithm returns the algorithm used for newly generated keys
func (m *Manager) Algorithm() jwa.SignatureAlgorithm {
	return m.alg
}

// GetOrCreateActiveKey returns the active signing key, creating and
// persisting one if none exists yet
func (m *Manager) GetOrCreateActiveKey() (model.SigningKey, error) {
	k, err := m.activeKey()
	if err != nil {
		return model.SigningKey{}, err
	}
	return k.record, nil
}

func (m *Manager) activeKey() (*signingKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return m.active, nil
	}
	row, err := m.store.Active()
	if err != nil {
		return nil, err
	}
	if row == nil {
		candidate, err := m.generate()
		if err != nil {
			return nil, err
		}
		inserted, err := m.store.InsertActiveIfAbsent(candidate)
		if err != nil {
			return nil, err
		}
		if inserted {
			log.WithField("kid", candidate.KID).Info("generated new federation signing key")
		} else {
			log.Debug("another instance created the signing key first, using that one")
		}
		if row, err = m.store.Active(); err != nil {
			return nil, err
		}
		if row == nil {
			return nil, errors.New("keys: active signing key vanished after creation")
		}
	}
	if m.active, err = loadKey(*row); err != nil {
		return nil, err
	}
	return m.active, nil
}

// Rotate generates a new signing key and makes it the active key. The old
// key is retained and stays in the PublicKeySet.
func (m *Manager) Rotate() (model.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate, err := m.generate()
	if err != nil {
		return model.SigningKey{}, err
	}
	if err = m.store.Promote(candidate); err != nil {
		return model.SigningKey{}, err
	}
	k, err := loadKey(*candidate)
	if err != nil {
		return model.SigningKey{}, err
	}
	m.active = k
	log.WithField("kid", candidate.KID).Info("rotated federation signing key")
	return k.record, nil
}

// Reset drops the in-process copy of the active key, so that the next use
// re-reads it from the storage
func (m *Manager) Reset() {
	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
}

func (m *Manager) generate() (*model.SigningKey, error) {
	sk, err := m.newRSA(m.rand, m.keyLen)
	if err != nil {
		return nil, &KeyGenerationError{Err: err}
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(sk)
	if err != nil {
		return nil, &KeyGenerationError{Err: err}
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&sk.PublicKey)
	if err != nil {
		return nil, &KeyGenerationError{Err: err}
	}
	pub, err := jwk.Import(&sk.PublicKey)
	if err != nil {
		return nil, &KeyGenerationError{Err: err}
	}
	if err = jwk.AssignKeyID(pub); err != nil {
		return nil, &KeyGenerationError{Err: err}
	}
	kid, _ := pub.KeyID()
	return &model.SigningKey{
		KID:        kid,
		Algorithm:  m.alg.String(),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})),
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
	}, nil
}

func publicJWK(record model.SigningKey) (jwk.Key, jwa.SignatureAlgorithm, error) {
	var alg jwa.SignatureAlgorithm
	block, _ := pem.Decode([]byte(record.PublicKey))
	if block == nil {
		return nil, alg, errors.Errorf("keys: invalid public key pem for kid '%s'", record.KID)
	}
	raw, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, alg, errors.Wrapf(err, "keys: could not parse public key '%s'", record.KID)
	}
	key, err := jwk.Import(raw)
	if err != nil {
		return nil, alg, errors.WithStack(err)
	}
	alg, ok := jwa.LookupSignatureAlgorithm(record.Algorithm)
	if !ok {
		return nil, alg, errors.Errorf("keys: unknown algorithm '%s' for kid '%s'", record.Algorithm, record.KID)
	}
	for k, v := range map[string]any{
		jwk.KeyIDKey:     record.KID,
		jwk.KeyUsageKey:  "sig",
		jwk.AlgorithmKey: alg,
	} {
		if err = key.Set(k, v); err != nil {
			return nil, alg, errors.WithStack(err)
		}
	}
	return key, alg, nil
}

// Check reports whether record holds a usable key pair: PKCS#8 private key,
// PKIX public key, and a known algorithm.
func Check(record model.SigningKey) error {
	_, err := loadKey(record)
	return err
}

func loadKey(record model.SigningKey) (*signingKey, error) {
	block, _ := pem.Decode([]byte(record.PrivateKey))
	if block == nil {
		return nil, errors.Errorf("keys: invalid private key pem for kid '%s'", record.KID)
	}
	raw, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrapf(err, "keys: could not parse private key '%s'", record.KID)
	}
	private, err := jwk.Import(raw)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err = private.Set(jwk.KeyIDKey, record.KID); err != nil {
		return nil, errors.WithStack(err)
	}
	public, alg, err := publicJWK(record)
	if err != nil {
		return nil, err
	}
	return &signingKey{
		record:  record,
		alg:     alg,
		private: private,
		public:  public,
	}, nil
}

// PublicKeySet returns the public keys of all signing keys, the active one
// and retained ones. The active key is created if it does not exist yet.
func (m *Manager) PublicKeySet() (jwk.Set, error) {
	if _, err := m.activeKey(); err != nil {
		return nil, err
	}
	records, err := m.store.All()
	if err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	for _, r := range records {
		key, _, err := publicJWK(r)
		if err != nil {
			return nil, err
		}
		if err = set.AddKey(key); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return set, nil
}

// Sign signs payload with the active key, using the algorithm the key was
// created for, and returns the compact JWS. The kid and alg headers are
// always set; headers adds further protected headers, e.g. typ.
func (m *Manager) Sign(payload []byte, headers map[string]any) ([]byte, error) {
	k, err := m.activeKey()
	if err != nil {
		return nil, err
	}
	hdrs := jws.NewHeaders()
	for name, v := range headers {
		if err = hdrs.Set(name, v); err != nil {
			return nil, errors.Wrapf(err, "keys: invalid header '%s'", name)
		}
	}
	if err = hdrs.Set(jws.KeyIDKey, k.record.KID); err != nil {
		return nil, errors.WithStack(err)
	}
	signed, err := jws.Sign(payload, jws.WithKey(k.alg, k.private, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return nil, errors.Wrap(err, "keys: signing failed")
	}
	return signed, nil
}
