package handler

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/service"
	"github.com/makeasinger/studio/pkg/response"
)

const (
	maxClipSize  = 10 * 1024 * 1024 // 10MB
	maxClipCount = 30
)

type VoiceHandler struct {
	service *service.VoiceService
}

func NewVoiceHandler(svc *service.VoiceService) *VoiceHandler {
	return &VoiceHandler{service: svc}
}

// Upload handles POST /api/upload/voice
func (h *VoiceHandler) Upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return response.ValidationError(c, "Multipart form is required", nil)
	}

	files := form.File["files"]
	if len(files) == 0 {
		return response.ValidationError(c, "Upload at least 1 file", nil)
	}
	// Extra clips are ignored
	if len(files) > maxClipCount {
		files = files[:maxClipCount]
	}

	up := &service.VoiceUpload{
		Name:   formValue(c, "name", "Custom Voice"),
		Locale: model.Locale(formValue(c, "locale", string(model.LocaleBengali))),
		Gender: formValue(c, "gender", "female"),
	}
	if !up.Locale.Valid() {
		return response.ValidationError(c, "Invalid locale. Supported: bn, hi, en", map[string]interface{}{
			"locale": up.Locale,
		})
	}

	for _, file := range files {
		if !strings.EqualFold(filepath.Ext(file.Filename), ".wav") {
			return response.ValidationError(c, "Only WAV files allowed", map[string]interface{}{
				"file": file.Filename,
			})
		}
		if file.Size > maxClipSize {
			return response.ValidationError(c, "Clip exceeds 10MB", map[string]interface{}{
				"file":     file.Filename,
				"maxSize":  maxClipSize,
				"fileSize": file.Size,
			})
		}

		f, err := file.Open()
		if err != nil {
			return response.ServiceError(c, "Failed to open file")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return response.ServiceError(c, "Failed to read file")
		}
		up.Clips = append(up.Clips, service.Clip{Name: file.Filename, Data: data})
	}

	result, err := h.service.Upload(c.Context(), up)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Delete handles DELETE /api/voice/:voiceId
func (h *VoiceHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), c.Params("voiceId")); err != nil {
		return serviceError(c, err, "Voice profile")
	}

	return response.OK(c, fiber.Map{"deleted": true})
}

func formValue(c *fiber.Ctx, key, fallback string) string {
	if v := strings.TrimSpace(c.FormValue(key)); v != "" {
		return v
	}
	return fallback
}
