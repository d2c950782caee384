// Package workflow drives the registration of a new subordinate entity
// from fetching its self-asserted statement to the issued statement.
package workflow

import (
	"context"
	"fmt"
	"net/url"

	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/registry"
	"github.com/go-oidfed/registrar/statements"
	"github.com/go-oidfed/registrar/storage/model"
	"github.com/go-oidfed/registrar/validation"
)

// Stage is a state of the registration state machine
type Stage string

// Stages in their order; Failed is terminal
const (
	StageFetching    Stage = "FETCHING"
	StageValidating  Stage = "VALIDATING"
	StageRegistering Stage = "REGISTERING"
	StageIssuing     Stage = "ISSUING"
	StageDone        Stage = "DONE"
	StageFailed      Stage = "FAILED"
)

// StageError tells in which stage a registration failed. The component
// error stays reachable with errors.As.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("registration failed in stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the cause
func (e *StageError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves self-asserted statements
type Fetcher interface {
	Fetch(ctx context.Context, entityID string) (*statements.RemoteStatement, error)
}

// Validator evaluates the eligibility rules
type Validator interface {
	Validate(entityType model.EntityType, metadata, jwks map[string]any) (validation.Result, error)
}

// Registry stores entities
type Registry interface {
	Register(reg registry.Registration) (*model.Entity, error)
	Activate(entityID string) error
	Discard(entityID string) error
}

// Issuer issues statements
type Issuer interface {
	FederationID() string
	Issue(entity *model.Entity) (*model.EntityStatement, error)
	Invalidate(subject string) error
}

// Result is the outcome of a successful registration
type Result struct {
	EntityID string `json:"entity_id"`
	// StatementRef is where the statement for the entity can be fetched
	StatementRef string `json:"fetch_endpoint"`
}

// Workflow registers entities
type Workflow struct {
	fetcher       Fetcher
	validator     Validator
	registry      Registry
	issuer        Issuer
	fetchEndpoint string
}

// New creates a new Workflow. fetchEndpoint is the url of the federation
// fetch endpoint used in Result.StatementRef.
func New(fetcher Fetcher, validator Validator, reg Registry, issuer Issuer, fetchEndpoint string) *Workflow {
	return &Workflow{
		fetcher:       fetcher,
		validator:     validator,
		registry:      reg,
		issuer:        issuer,
		fetchEndpoint: fetchEndpoint,
	}
}

// StatementRef returns the fetch url for the statement about entityID
func StatementRef(fetchEndpoint, entityID string) string {
	return fetchEndpoint + "?" + url.Values{"sub": {entityID}}.Encode()
}

// Register runs the registration of entityID. Nothing is written before
// validation passed; if issuing fails the pending entity is removed again.
func (w *Workflow) Register(ctx context.Context, entityID string, entityType model.EntityType) (*Result, error) {
	logger := log.WithField("entity_id", entityID)
	fail := func(stage Stage, err error) (*Result, error) {
		logger.WithError(err).WithField("stage", string(stage)).Info("registration failed")
		return nil, &StageError{
			Stage: stage,
			Err:   err,
		}
	}

	// the federation's own statement is cached under its id
	if entityID == w.issuer.FederationID() {
		return fail(StageRegistering, &registry.DuplicateEntityError{EntityID: entityID})
	}

	logger.WithField("stage", string(StageFetching)).Debug("registration stage")
	remote, err := w.fetcher.Fetch(ctx, entityID)
	if err != nil {
		return fail(StageFetching, err)
	}

	logger.WithField("stage", string(StageValidating)).Debug("registration stage")
	res, err := w.validator.Validate(entityType, remote.Metadata, remote.JWKS)
	if err != nil {
		return fail(StageValidating, err)
	}
	if err = res.Err(); err != nil {
		return fail(StageValidating, err)
	}

	logger.WithField("stage", string(StageRegistering)).Debug("registration stage")
	entity, err := w.registry.Register(
		registry.Registration{
			EntityID:       entityID,
			EntityType:     entityType,
			Metadata:       remote.Metadata,
			JWKS:           remote.JWKS,
			AuthorityHints: remote.AuthorityHints,
			TrustMarks:     remote.TrustMarks,
		},
	)
	if err != nil {
		return fail(StageRegistering, err)
	}

	logger.WithField("stage", string(StageIssuing)).Debug("registration stage")
	issued := false
	if _, err = w.issuer.Issue(entity); err == nil {
		issued = true
		err = w.registry.Activate(entityID)
	}
	if err != nil {
		if issued {
			if invErr := w.issuer.Invalidate(entityID); invErr != nil {
				logger.WithError(invErr).Error("could not drop statement of discarded registration")
			}
		}
		if discardErr := w.registry.Discard(entityID); discardErr != nil {
			logger.WithError(discardErr).Error("could not discard pending registration")
		}
		return fail(StageIssuing, err)
	}

	logger.WithField("stage", string(StageDone)).Info("entity registered")
	return &Result{
		EntityID:     entityID,
		StatementRef: StatementRef(w.fetchEndpoint, entityID),
	}, nil
}
