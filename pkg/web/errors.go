package web

import (
	"errors"

	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/dukex/stepflow/pkg/templates"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, detail string, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithDetail(detail + ": " + err.Error())

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(conflictDetail(err))

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrSessionNotFound):
		return notFound(c, "session_not_found", "workflow is not open for editing")

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case graph.IsStepNotFound(err):
		return notFound(c, "step_not_found", "step not found")

	case errors.Is(err, templates.ErrTemplateNotFound):
		return notFound(c, "template_not_found", "template not found")

	default:
		return internalError(c, "unexpected error", err)
	}
}

func conflictDetail(err error) string {
	if errors.Is(err, graph.ErrLastTrigger) {
		return "Cannot delete the only trigger"
	}

	return err.Error()
}
