package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/studio-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type StudioHandler struct {
	studio *services.StudioService
}

func NewStudioHandler(studio *services.StudioService) *StudioHandler {
	return &StudioHandler{studio: studio}
}

func (h *StudioHandler) Generate(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}
	var req dto.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	task, err := h.studio.Generate(c.UserContext(), userID, services.GenerationRequest{
		Prompt:       req.Prompt,
		Style:        req.Style,
		Instrumental: req.Instrumental,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPromptRequired), errors.Is(err, services.ErrPromptTooLong):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrQuotaExhausted):
			return errorJSON(c, fiber.StatusForbidden, err.Error())
		}
		middleware.RequestLogger(c).Error("generation failed", "operation", "studio_generate", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Generation request failed")
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *StudioHandler) GetTask(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return middleware.Unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorJSON(c, fiber.StatusNotFound, "Task not found")
	}

	task, err := h.studio.GetTask(c.UserContext(), userID, id)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Task not found")
		}
		middleware.RequestLogger(c).Error("task read failed", "operation", "studio_task", "task_id", id, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load task")
	}
	return c.JSON(task)
}
