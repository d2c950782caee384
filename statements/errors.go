package statements

import (
	"fmt"

	"github.com/go-oidfed/registrar/storage/model"
)

// FetchError is returned if the self-asserted statement of an entity could
// not be retrieved or is unusable
type FetchError struct {
	EntityID string
	Err      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	return fmt.Sprintf("could not fetch entity statement for '%s': %v", e.EntityID, e.Err)
}

// Unwrap returns the cause
func (e *FetchError) Unwrap() error {
	return e.Err
}

// SigningError is returned if a statement could not be signed
type SigningError struct {
	Err error
}

// Error implements the error interface
func (e *SigningError) Error() string {
	return fmt.Sprintf("could not sign entity statement: %v", e.Err)
}

// Unwrap returns the cause
func (e *SigningError) Unwrap() error {
	return e.Err
}

// ExpiredAndUnrenewableError is returned if no statement may be issued for
// an entity because of its status
type ExpiredAndUnrenewableError struct {
	Subject string
	Status  model.Status
}

// Error implements the error interface
func (e *ExpiredAndUnrenewableError) Error() string {
	return fmt.Sprintf("no statement can be issued for '%s' with status %s", e.Subject, e.Status)
}
