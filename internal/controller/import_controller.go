package controller

import (
	"fmt"
	"os"
	"path/filepath"

	"syllabus-calendar-be/internal/config"
	"syllabus-calendar-be/internal/pkg/serverutils"
	"syllabus-calendar-be/internal/service"
	"syllabus-calendar-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IImportController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
	Logs(ctx *fiber.Ctx) error
}

type importController struct {
	importService service.IImportService
	uploadDir     string
}

func NewImportController(importService service.IImportService, appCfg config.AppConfig) IImportController {
	return &importController{
		importService: importService,
		uploadDir:     appCfg.UploadDir,
	}
}

func (c *importController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/import/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Start)
	h.Get("status", c.Status)
	h.Post("cancel", c.Cancel)
	h.Post("retry", c.Retry)
	h.Get("logs", c.Logs)
}

// Start accepts a multipart upload and launches the import pipeline.
func (c *importController) Start(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	fileHeader, err := ctx.FormFile("document")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Document file is required"))
	}

	if err := os.MkdirAll(c.uploadDir, 0o755); err != nil {
		return fmt.Errorf("prepare upload dir: %w", err)
	}

	dstPath := filepath.Join(c.uploadDir, uuid.NewString()+filepath.Ext(fileHeader.Filename))
	if err := ctx.SaveFile(fileHeader, dstPath); err != nil {
		return fmt.Errorf("save uploaded document: %w", err)
	}

	doc := store.DocumentRef{
		Path:      dstPath,
		Name:      fileHeader.Filename,
		MimeType:  fileHeader.Header.Get("Content-Type"),
		SizeBytes: fileHeader.Size,
	}

	res, err := c.importService.Start(ctx.Context(), userId, doc)
	if err != nil {
		os.Remove(dstPath)
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Import started", res))
}

func (c *importController) Status(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	res, err := c.importService.Status(userId)
	if err != nil {
		return err
	}
	if res == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "No import session"))
	}

	return ctx.JSON(serverutils.SuccessResponse("Import status", res))
}

func (c *importController) Cancel(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	if err := c.importService.Cancel(userId); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Import cancelled", nil))
}

func (c *importController) Retry(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	res, err := c.importService.RetryLast(ctx.Context(), userId)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Import retry started", res))
}

func (c *importController) Logs(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	limit := ctx.QueryInt("limit", 20)
	offset := ctx.QueryInt("offset", 0)

	logs, err := c.importService.Logs(ctx.Context(), userId, limit, offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Import logs", logs))
}
