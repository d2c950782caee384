package config

import (
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/pkg/errors"

	"github.com/go-oidfed/registrar/keys"
)

// SigningConf configures the federation signing keys
type SigningConf struct {
	Alg       string                 `yaml:"alg"`
	Algorithm jwa.SignatureAlgorithm `yaml:"-"`
	RSAKeyLen int                    `yaml:"rsa_key_len"`
}

var defaultSigningConf = SigningConf{
	Alg:       "RS256",
	RSAKeyLen: 2048,
}

func (c *SigningConf) validate() error {
	var ok bool
	c.Algorithm, ok = jwa.LookupSignatureAlgorithm(c.Alg)
	if !ok {
		return errors.New("unknown algorithm " + c.Alg)
	}
	if c.RSAKeyLen < keys.MinRSAKeyLen {
		return errors.Errorf("rsa_key_len must be at least %d", keys.MinRSAKeyLen)
	}
	return nil
}

// KeysConfig returns the keys.Config for this SigningConf
func (c SigningConf) KeysConfig() keys.Config {
	return keys.Config{
		Algorithm: c.Algorithm,
		RSAKeyLen: c.RSAKeyLen,
	}
}
