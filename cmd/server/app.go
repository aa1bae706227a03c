package main

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/makeasinger/studio/internal/config"
	"github.com/makeasinger/studio/internal/handler"
	"github.com/makeasinger/studio/internal/middleware"
	"github.com/makeasinger/studio/internal/service"
	ws "github.com/makeasinger/studio/internal/websocket"
	"github.com/makeasinger/studio/pkg/response"
)

// services is everything the HTTP layer needs
type services struct {
	generation *service.GenerationService
	projects   *service.ProjectService
	voices     *service.VoiceService
	hub        *ws.Hub
	limiter    *middleware.RateLimiter
	metrics    http.Handler
	assetsDir  string // served statically when non-empty
}

func newApp(cfg *config.Config, svc *services, log *zap.Logger) *fiber.App {
	validate := validator.New()

	projectHandler := handler.NewProjectHandler(svc.projects, validate)
	generationHandler := handler.NewGenerationHandler(svc.generation, validate)
	voiceHandler := handler.NewVoiceHandler(svc.voices)

	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestLogger(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", handler.Root)
	app.Get("/health", handler.Health)
	if svc.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(svc.metrics))
	}
	if svc.assetsDir != "" {
		app.Static(cfg.Storage.PublicPath, svc.assetsDir)
	}

	api := app.Group("/api")

	// Project routes
	api.Post("/projects", projectHandler.Create)
	api.Get("/projects/:projectId", projectHandler.Get)

	// Generation routes
	generate := svc.limiter.GenerateLimit(cfg.RateLimit.GeneratePerHour)
	api.Post("/generate/instrumental", generate, generationHandler.Instrumental)
	api.Post("/generate/melody", generate, generationHandler.Melody)
	api.Post("/generate/video", generate, generationHandler.Video)
	api.Post("/generate/create", generate, generationHandler.Create)
	api.Post("/synthesize/vocal", generate, generationHandler.Vocal)
	api.Post("/mix", generate, generationHandler.Mix)

	// Job routes
	api.Get("/job/:jobId/status", generationHandler.Status)
	api.Get("/jobs/inflight", generationHandler.InFlight)

	// Voice routes
	api.Post("/upload/voice", svc.limiter.UploadLimit(cfg.RateLimit.UploadPerHour), voiceHandler.Upload)
	api.Delete("/voice/:voiceId", voiceHandler.Delete)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		svc.hub.HandleConnection(c, c.Params("jobId"))
	}))

	return app
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		log.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Error(err),
		)
		return err
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	if code == fiber.StatusNotFound {
		errCode = response.CodeNotFound
	}
	return response.Error(c, code, errCode, message, nil)
}
