package handlers

import (
	"disputehub/internal/services/refund"
	"disputehub/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type RefundHandler struct {
	refundService refund.Service
}

func NewRefundHandler(refundService refund.Service) *RefundHandler {
	return &RefundHandler{refundService: refundService}
}

func (h *RefundHandler) ProcessRefund(c *fiber.Ctx) error {
	tenant, _, err := caller(c)
	if err != nil {
		return response.Unauthorized(c)
	}
	var req refund.Request
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	r, err := h.refundService.ProcessRefund(c.UserContext(), tenant, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Refund "+string(r.Status), r)
}

func (h *RefundHandler) GetRefund(c *fiber.Ctx) error {
	tenant, _, err := caller(c)
	if err != nil {
		return response.Unauthorized(c)
	}
	r, err := h.refundService.GetRefund(c.UserContext(), tenant, c.Params("claimId"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Refund retrieved successfully", r)
}
