package controller

import (
	"context"

	"docassist-be/internal/dto"
	"docassist-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	RequestSync(ctx *fiber.Ctx) error
}

// SyncRequester is satisfied by service.SyncTrigger.
type SyncRequester interface {
	RequestSync(ctx context.Context, requestedBy int64) error
}

type adminController struct {
	syncRequester  SyncRequester
	authMiddleware fiber.Handler
}

// NewAdminController accepts a nil requester when synchronisation is disabled.
func NewAdminController(syncRequester SyncRequester, authMiddleware fiber.Handler) IAdminController {
	return &adminController{
		syncRequester:  syncRequester,
		authMiddleware: authMiddleware,
	}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Use(c.authMiddleware, serverutils.AdminOnly)
	h.Post("/sync", c.RequestSync)
}

func (c *adminController) RequestSync(ctx *fiber.Ctx) error {
	if c.syncRequester == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Synchronisation is disabled")
	}

	userId, _ := serverutils.UserID(ctx)
	if err := c.syncRequester.RequestSync(ctx.UserContext(), userId); err != nil {
		return err
	}

	res := serverutils.SuccessResponse("Sync pass requested", dto.SyncRequestedResponse{Status: "queued"})
	res.Code = fiber.StatusAccepted
	return ctx.Status(fiber.StatusAccepted).JSON(res)
}
