package controller

import (
	"time"

	"syllabus-calendar-be/internal/dto"
	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/internal/pkg/serverutils"
	"syllabus-calendar-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IEventController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Upsert(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Refresh(ctx *fiber.Ctx) error
	AutoApprove(ctx *fiber.Ctx) error
	Clear(ctx *fiber.Ctx) error
}

type eventController struct {
	eventStore service.IEventStoreService
}

func NewEventController(eventStore service.IEventStoreService) IEventController {
	return &eventController{
		eventStore: eventStore,
	}
}

func (c *eventController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/event/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Put("", c.Upsert)
	h.Post("refresh", c.Refresh)
	h.Post("auto-approve", c.AutoApprove)
	h.Post("clear", c.Clear)
	h.Delete(":id", c.Delete)
}

// List returns the cached collection, loading it from the remote backend on
// first access.
func (c *eventController) List(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	if c.eventStore.State(userId) == service.StoreStateUninitialized {
		if err := c.eventStore.Fetch(ctx.Context(), userId); err != nil {
			return err
		}
	}

	res := c.eventStore.List(userId, time.Now())
	return ctx.JSON(serverutils.SuccessResponse("Success list events", res))
}

func (c *eventController) Upsert(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	var req dto.UpsertEventRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	event := &entity.Event{
		Id:              req.Id,
		CourseCode:      req.CourseCode,
		Type:            entity.ParseEventType(req.Type),
		Title:           req.Title,
		Start:           req.Start,
		End:             req.End,
		AllDay:          req.AllDay,
		Location:        req.Location,
		Notes:           req.Notes,
		RecurrenceRule:  req.RecurrenceRule,
		ReminderMinutes: req.ReminderMinutes,
	}

	saved, err := c.eventStore.Update(ctx.Context(), userId, event)
	if err != nil {
		return err
	}

	res := dto.EventToResponse(saved, saved.Start, false)
	return ctx.JSON(serverutils.SuccessResponse("Success upsert event", res))
}

func (c *eventController) Delete(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid event ID"))
	}

	if err := c.eventStore.Delete(ctx.Context(), userId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete event", nil))
}

func (c *eventController) Refresh(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	if err := c.eventStore.Refresh(ctx.Context(), userId); err != nil {
		return err
	}

	res := c.eventStore.List(userId, time.Now())
	return ctx.JSON(serverutils.SuccessResponse("Success refresh events", res))
}

// AutoApprove bulk-inserts events directly, bypassing the import pipeline.
func (c *eventController) AutoApprove(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	var req dto.AutoApproveRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	list := make([]*entity.Event, 0, len(req.Events))
	for _, e := range req.Events {
		list = append(list, &entity.Event{
			Id:              e.Id,
			CourseCode:      e.CourseCode,
			Type:            entity.ParseEventType(e.Type),
			Title:           e.Title,
			Start:           e.Start,
			End:             e.End,
			AllDay:          e.AllDay,
			Location:        e.Location,
			Notes:           e.Notes,
			RecurrenceRule:  e.RecurrenceRule,
			ReminderMinutes: e.ReminderMinutes,
		})
	}

	if err := c.eventStore.AutoApprove(ctx.Context(), userId, list); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success auto-approve events", nil))
}

// Clear wipes the local cache on sign-out. Remote data is untouched.
func (c *eventController) Clear(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserIDFromContext(ctx)
	if err != nil {
		return err
	}

	c.eventStore.Clear(userId)
	return ctx.JSON(serverutils.SuccessResponse[any]("Success clear local events", nil))
}
