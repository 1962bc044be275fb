package web

import (
	"github.com/dukex/stepflow/pkg/canvas"
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) AddStep(c fiber.Ctx) error {
	id, err := h.session(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req AddStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step, err := h.editor.AddStep(c.Context(), id, req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	id, err := h.session(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req UpdateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step, err := h.editor.UpdateStep(c.Context(), id, c.Params("stepId"), req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(step)
}

func (h *APIHandlers) DeleteStep(c fiber.Ctx) error {
	id, err := h.session(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := h.editor.DeleteStep(c.Context(), id, c.Params("stepId")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) Connect(c fiber.Ctx) error {
	id, err := h.session(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req ConnectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	changed, err := h.editor.Connect(c.Context(), id, req.toService())
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.connections(c, id, changed)
}

func (h *APIHandlers) Disconnect(c fiber.Ctx) error {
	id, err := h.session(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var req DisconnectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	changed, err := h.editor.Disconnect(c.Context(), id, req.From, req.To)
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.connections(c, id, changed)
}

func (h *APIHandlers) connections(c fiber.Ctx, id string, changed bool) error {
	snapshot, err := h.editor.Snapshot(id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ConnectionResponse{
		Changed:     changed,
		Connections: snapshot.Connections,
	})
}

func (h *APIHandlers) GetCanvas(c fiber.Ctx) error {
	id, err := h.session(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	g, err := h.editor.Canvas(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(g)
}

// HandleCanvasEvent applies a renderer interaction and returns the new
// projection for the renderer to draw.
func (h *APIHandlers) HandleCanvasEvent(c fiber.Ctx) error {
	id, err := h.session(c)
	if err != nil {
		return handleServiceError(c, err)
	}

	var ev canvas.Event
	if err := c.Bind().JSON(&ev); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(ev); err != nil {
		return badRequest(c, err.Error())
	}

	result, g, err := h.editor.HandleCanvasEvent(c.Context(), id, ev)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(CanvasEventResponse{Result: result, Canvas: g})
}
