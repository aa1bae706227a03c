package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/service"
	"github.com/makeasinger/studio/pkg/response"
)

type GenerationHandler struct {
	service   *service.GenerationService
	validator *validator.Validate
}

func NewGenerationHandler(svc *service.GenerationService, v *validator.Validate) *GenerationHandler {
	return &GenerationHandler{
		service:   svc,
		validator: v,
	}
}

// Instrumental handles POST /api/generate/instrumental
func (h *GenerationHandler) Instrumental(c *fiber.Ctx) error {
	var req model.InstrumentalRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	result, err := h.service.Instrumental(c.Context(), &req)
	if err != nil {
		return serviceError(c, err, "Job")
	}

	return response.Accepted(c, result)
}

// Melody handles POST /api/generate/melody
func (h *GenerationHandler) Melody(c *fiber.Ctx) error {
	var req model.MelodyRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	result, err := h.service.Melody(c.Context(), &req)
	if err != nil {
		return serviceError(c, err, "Job")
	}

	return response.Accepted(c, result)
}

// Vocal handles POST /api/synthesize/vocal
func (h *GenerationHandler) Vocal(c *fiber.Ctx) error {
	var req model.VocalRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	result, err := h.service.Vocal(c.Context(), &req)
	if err != nil {
		return serviceError(c, err, "Voice profile")
	}

	return response.Accepted(c, result)
}

// Mix handles POST /api/mix
func (h *GenerationHandler) Mix(c *fiber.Ctx) error {
	var req model.MixRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	result, err := h.service.Mix(c.Context(), &req)
	if err != nil {
		return serviceError(c, err, "Job")
	}

	return response.Accepted(c, result)
}

// Video handles POST /api/generate/video
func (h *GenerationHandler) Video(c *fiber.Ctx) error {
	var req model.VideoRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	result, err := h.service.Video(c.Context(), &req)
	if err != nil {
		return serviceError(c, err, "Job")
	}

	return response.Accepted(c, result)
}

// Create handles POST /api/generate/create
func (h *GenerationHandler) Create(c *fiber.Ctx) error {
	var req model.CreateRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	result, err := h.service.Create(c.Context(), &req)
	if err != nil {
		return serviceError(c, err, "Voice profile")
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/job/:jobId/status
func (h *GenerationHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		return serviceError(c, err, "Job")
	}

	return response.OK(c, result)
}

// InFlight handles GET /api/jobs/inflight
func (h *GenerationHandler) InFlight(c *fiber.Ctx) error {
	result, err := h.service.InFlight(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}
