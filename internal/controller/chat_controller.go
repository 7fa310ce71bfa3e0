package controller

import (
	"docassist-be/internal/dto"
	"docassist-be/internal/pkg/serverutils"
	"docassist-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
}

type chatController struct {
	chatbotService service.IChatbotService
	authMiddleware fiber.Handler
}

func NewChatController(chatbotService service.IChatbotService, authMiddleware fiber.Handler) IChatController {
	return &chatController{
		chatbotService: chatbotService,
		authMiddleware: authMiddleware,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat")
	h.Use(c.authMiddleware)
	h.Post("/message", c.SendMessage)
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	userId, ok := serverutils.UserID(ctx)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing user")
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// RequestContextMiddleware bounds UserContext by the request timeout and shutdown.
	res := c.chatbotService.SendMessage(ctx.UserContext(), userId, &req)
	return ctx.JSON(res)
}
