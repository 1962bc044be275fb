// Package web provides HTTP handlers and REST API endpoints for editing workflows.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	editor    *services.Editor
	validator *validator.Validate
}

func NewAPIHandlers(editor *services.Editor, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		editor:    editor,
		validator: validator,
	}
}

// Register mounts the workflow editing routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Post("/import", h.ImportWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Delete("/:id/session", h.CloseWorkflow)

	w.Post("/:id/steps", h.AddStep)
	w.Patch("/:id/steps/:stepId", h.UpdateStep)
	w.Delete("/:id/steps/:stepId", h.DeleteStep)

	w.Post("/:id/connections", h.Connect)
	w.Delete("/:id/connections", h.Disconnect)

	w.Get("/:id/canvas", h.GetCanvas)
	w.Post("/:id/canvas/events", h.HandleCanvasEvent)

	w.Post("/:id/save", h.SaveWorkflow)
	w.Get("/:id/export", h.ExportWorkflow)

	router.Get("/templates", h.GetTemplates)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.editor.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Stepflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Stepflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"dirty_sessions": len(h.editor.DirtySessions()),
		"timestamp":      time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.editor.Workflows(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"templates": h.editor.Templates(),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	snapshot, err := h.editor.Create(c.Context(), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(snapshot)
}

func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	if len(c.Body()) == 0 {
		return badRequest(c, "Request body is required")
	}

	snapshot, err := h.editor.Import(c.Context(), c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(snapshot)
}

// GetWorkflow returns the editing session of a workflow, opening it from
// persistence when needed.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	snapshot, err := h.editor.Open(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(snapshot)
}

func (h *APIHandlers) CloseWorkflow(c fiber.Ctx) error {
	if err := h.editor.Close(c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	id, err := h.session(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	doc, err := h.editor.Save(c.Context(), id)
	if err != nil {
		if services.IsNotFoundError(err) {
			return handleServiceError(c, err)
		}

		return internalError(c, events.WorkflowSaveFailed{}.Notice().Message, err)
	}

	return c.JSON(SaveResponse{
		Workflow: doc,
		Notice:   events.WorkflowSaved{}.Notice(),
	})
}

// ExportWorkflow downloads the reconciled workflow as a JSON file.
func (h *APIHandlers) ExportWorkflow(c fiber.Ctx) error {
	id, err := h.session(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	out, err := h.editor.Export(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Attachment(out.FileName)

	return c.Send(out.Data)
}

// session makes sure the workflow named by the id route parameter has an
// open editing session and returns its id.
func (h *APIHandlers) session(c fiber.Ctx) (string, error) {
	id := c.Params("id")

	_, err := h.editor.Open(c.Context(), id)

	return id, err
}
