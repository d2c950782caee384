package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const argon2idPrefix = "$argon2id$v=19$"

func defaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
		SaltLen:     16,
	}
}

func (p Argon2idParams) withDefaults() Argon2idParams {
	if p.Time == 0 {
		return defaultArgon2idParams()
	}
	return p
}

func (p Argon2idParams) sameCost(o Argon2idParams) bool {
	return p.Time == o.Time && p.MemoryKiB == o.MemoryKiB && p.Parallelism == o.Parallelism &&
		p.KeyLen == o.KeyLen && p.SaltLen == o.SaltLen
}

// phcHash is a decoded argon2id hash in PHC string format:
// $argon2id$v=19$m=<mem>,t=<time>,p=<par>$<salt>$<hash>
type phcHash struct {
	params Argon2idParams
	salt   []byte
	hash   []byte
}

func (h phcHash) String() string {
	return fmt.Sprintf(
		"%sm=%d,t=%d,p=%d$%s$%s", argon2idPrefix,
		h.params.MemoryKiB, h.params.Time, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.hash),
	)
}

func newPasswordHash(password string, p Argon2idParams) (string, error) {
	p = p.withDefaults()
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.WithStack(err)
	}
	return phcHash{
		params: p,
		salt:   salt,
		hash:   argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLen),
	}.String(), nil
}

func parsePHC(encoded string) (h phcHash, err error) {
	if !strings.HasPrefix(encoded, argon2idPrefix) {
		err = errors.New("unsupported password hash format")
		return
	}
	parts := strings.Split(strings.TrimPrefix(encoded, argon2idPrefix), "$")
	if len(parts) != 3 {
		err = errors.New("malformed argon2id hash")
		return
	}
	for _, field := range strings.Split(parts[0], ",") {
		name, value, _ := strings.Cut(field, "=")
		var v uint64
		switch name {
		case "m":
			v, err = strconv.ParseUint(value, 10, 32)
			h.params.MemoryKiB = uint32(v)
		case "t":
			v, err = strconv.ParseUint(value, 10, 32)
			h.params.Time = uint32(v)
		case "p":
			v, err = strconv.ParseUint(value, 10, 8)
			h.params.Parallelism = uint8(v)
		}
		if err != nil {
			err = errors.Wrapf(err, "malformed argon2id parameter '%s'", field)
			return
		}
	}
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[1]); err != nil {
		err = errors.WithStack(err)
		return
	}
	if h.hash, err = base64.RawStdEncoding.DecodeString(parts[2]); err != nil {
		err = errors.WithStack(err)
		return
	}
	h.params.SaltLen = uint32(len(h.salt))
	h.params.KeyLen = uint32(len(h.hash))
	return
}

// matches reports whether password produces the stored hash
func (h phcHash) matches(password string) bool {
	p := h.params
	dk := argon2.IDKey([]byte(password), h.salt, p.Time, p.MemoryKiB, p.Parallelism, uint32(len(h.hash)))
	return subtle.ConstantTimeCompare(dk, h.hash) == 1
}
