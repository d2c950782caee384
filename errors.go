package registrar

import (
	"encoding/json"
	"errors"

	oidfed "github.com/go-oidfed/lib"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/go-oidfed/registrar/registry"
	"github.com/go-oidfed/registrar/statements"
	"github.com/go-oidfed/registrar/storage/model"
	"github.com/go-oidfed/registrar/validation"
	"github.com/go-oidfed/registrar/workflow"
)

// handleError is the fiber error handler; it renders errors that escaped a
// handler as oidfed error responses
func handleError(ctx *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		ctx.Status(fiberErr.Code)
		if fiberErr.Code == fiber.StatusNotFound {
			return ctx.JSON(oidfed.ErrorNotFound(fiberErr.Message))
		}
		if fiberErr.Code < fiber.StatusInternalServerError {
			return ctx.JSON(oidfed.ErrorInvalidRequest(fiberErr.Message))
		}
		return ctx.JSON(oidfed.ErrorServerError(fiberErr.Message))
	}
	return writeError(ctx, err)
}

// errorBody returns the json object of an oidfed error so that further
// members can be added
func errorBody(e any) fiber.Map {
	body := fiber.Map{}
	data, err := json.Marshal(e)
	if err == nil {
		_ = json.Unmarshal(data, &body)
	}
	return body
}

// writeError maps the error taxonomy of the registrar to http responses
func writeError(ctx *fiber.Ctx, err error) error {
	var (
		stageErr       *workflow.StageError
		validationErr  *validation.Error
		fetchErr       *statements.FetchError
		duplicateErr   *registry.DuplicateEntityError
		transitionErr  *registry.InvalidTransitionError
		unrenewableErr *statements.ExpiredAndUnrenewableError
		notFoundErr    model.NotFoundError
		existsErr      model.AlreadyExistsError
	)
	switch {
	case errors.As(err, &validationErr):
		body := errorBody(oidfed.ErrorInvalidRequest("entity does not satisfy the validation rules"))
		if errors.As(err, &stageErr) {
			body["stage"] = stageErr.Stage
		}
		violations := validationErr.Violations
		if violations == nil {
			violations = []validation.Violation{}
		}
		body["validation_errors"] = violations
		return ctx.Status(fiber.StatusBadRequest).JSON(body)
	case errors.As(err, &fetchErr):
		body := errorBody(oidfed.ErrorInvalidRequest(fetchErr.Error()))
		if errors.As(err, &stageErr) {
			body["stage"] = stageErr.Stage
		}
		return ctx.Status(fiber.StatusBadRequest).JSON(body)
	case errors.As(err, &duplicateErr):
		return ctx.Status(fiber.StatusConflict).JSON(oidfed.ErrorInvalidRequest(duplicateErr.Error()))
	case errors.As(err, &existsErr):
		return ctx.Status(fiber.StatusConflict).JSON(oidfed.ErrorInvalidRequest(existsErr.Error()))
	case errors.As(err, &transitionErr):
		return ctx.Status(fiber.StatusBadRequest).JSON(oidfed.ErrorInvalidRequest(transitionErr.Error()))
	case errors.As(err, &unrenewableErr):
		return ctx.Status(fiber.StatusNotFound).JSON(oidfed.ErrorNotFound(unrenewableErr.Error()))
	case errors.As(err, &notFoundErr):
		return ctx.Status(fiber.StatusNotFound).JSON(oidfed.ErrorNotFound(notFoundErr.Error()))
	}
	log.WithError(err).WithField("path", ctx.Path()).Error("request failed")
	return ctx.Status(fiber.StatusInternalServerError).JSON(oidfed.ErrorServerError(err.Error()))
}
