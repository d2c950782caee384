package keys

import (
	"fmt"
)

// KeyGenerationError is returned if a new signing key could not be
// generated, e.g. because the entropy source failed
type KeyGenerationError struct {
	Err error
}

// Error implements the error interface
func (e *KeyGenerationError) Error() string {
	return fmt.Sprintf("signing key generation failed: %v", e.Err)
}

// Unwrap returns the cause
func (e *KeyGenerationError) Unwrap() error {
	return e.Err
}
