package controller

import (
	"errors"

	"ai-command-arbiter/internal/dto"
	"ai-command-arbiter/internal/pkg/serverutils"
	"ai-command-arbiter/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IArbiterController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	ShowSession(ctx *fiber.Ctx) error
	SubmitTurn(ctx *fiber.Ctx) error
	Boundary(ctx *fiber.Ctx) error
	ScopeOpened(ctx *fiber.Ctx) error
	TurnLogs(ctx *fiber.Ctx) error
	ShowTurnLog(ctx *fiber.Ctx) error
	Telemetry(ctx *fiber.Ctx) error
}

type arbiterController struct {
	service service.IArbiterService
}

func NewArbiterController(service service.IArbiterService) IArbiterController {
	return &arbiterController{service: service}
}

func (c *arbiterController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/arbiter/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/sessions", c.CreateSession)
	h.Get("/sessions/:id", c.ShowSession)
	h.Post("/sessions/:id/turns", c.SubmitTurn)
	h.Post("/sessions/:id/boundary", c.Boundary)
	h.Post("/sessions/:id/scope-opened", c.ScopeOpened)
	h.Get("/sessions/:id/turn-logs", c.TurnLogs)
	h.Get("/sessions/:id/telemetry", c.Telemetry)
	h.Get("/turn-logs/:logId", c.ShowTurnLog)
}

func (c *arbiterController) CreateSession(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	res, err := c.service.CreateSession(ctx.Context(), userId)
	if err != nil {
		return mapServiceError(err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *arbiterController) ShowSession(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	res, err := c.service.GetSession(ctx.Context(), userId, ctx.Params("id"))
	if err != nil {
		return mapServiceError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *arbiterController) SubmitTurn(ctx *fiber.Ctx) error {
	var req dto.SubmitTurnRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.SessionId = ctx.Params("id")
	req.UserId = ctx.Locals("user_id").(string)

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitTurn(ctx.Context(), &req)
	if err != nil {
		return mapServiceError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success resolve turn", res))
}

func (c *arbiterController) Boundary(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	res, err := c.service.Boundary(ctx.Context(), userId, ctx.Params("id"))
	if err != nil {
		return mapServiceError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success reset session", res))
}

func (c *arbiterController) ScopeOpened(ctx *fiber.Ctx) error {
	var req dto.ScopeOpenedRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.SessionId = ctx.Params("id")
	req.UserId = ctx.Locals("user_id").(string)

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ScopeOpened(ctx.Context(), &req)
	if err != nil {
		return mapServiceError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success anchor focus", res))
}

func (c *arbiterController) TurnLogs(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)
	limit := ctx.QueryInt("limit", 20)
	offset := ctx.QueryInt("offset", 0)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	res, err := c.service.GetTurnLogs(ctx.Context(), userId, ctx.Params("id"), limit, offset)
	if err != nil {
		return mapServiceError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get turn logs", res))
}

func (c *arbiterController) ShowTurnLog(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	id, err := uuid.Parse(ctx.Params("logId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid turn log id")
	}

	res, err := c.service.GetTurnLog(ctx.Context(), userId, id)
	if err != nil {
		return mapServiceError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show turn log", res))
}

func (c *arbiterController) Telemetry(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	res, err := c.service.GetTelemetry(ctx.Context(), userId, ctx.Params("id"), ctx.QueryInt("limit", 50))
	if err != nil {
		return mapServiceError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get telemetry", res))
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrTurnLogNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTurnLogUnavailable), errors.Is(err, service.ErrTelemetryUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return err
}
