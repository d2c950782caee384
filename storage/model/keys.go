package model

import (
	"time"
)

// ActiveKeySlot is the value of SigningKey.ActiveSlot for the one key that
// is used for signing
const ActiveKeySlot uint8 = 1

// SigningKey is a federation signing key. Only the active key carries an
// ActiveSlot; the unique index on that column guarantees a single active key.
type SigningKey struct {
	ID         uint      `gorm:"primarykey" json:"-"`
	KID        string    `gorm:"uniqueIndex;size:128;not null" json:"kid"`
	Algorithm  string    `gorm:"size:16;not null" json:"alg"`
	PrivateKey string    `gorm:"type:text;not null" json:"-"`
	PublicKey  string    `gorm:"type:text;not null" json:"public_key"`
	ActiveSlot *uint8    `gorm:"uniqueIndex" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsActive reports whether this key is the active signing key
func (k SigningKey) IsActive() bool {
	return k.ActiveSlot != nil
}

// SigningKeyStore is an interface to store SigningKey rows
type SigningKeyStore interface {
	// Active returns the active key or (nil, nil) if no key exists yet
	Active() (*SigningKey, error)
	// InsertActiveIfAbsent inserts the key as active key unless an active key
	// is already present; it reports whether the key was inserted
	InsertActiveIfAbsent(key *SigningKey) (bool, error)
	// Promote stores the key as new active key and demotes the previous one
	Promote(key *SigningKey) error
	// All returns all keys, active and retained, oldest first
	All() ([]SigningKey, error)
}
