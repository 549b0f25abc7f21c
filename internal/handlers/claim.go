package handlers

import (
	"disputehub/internal/models"
	"disputehub/internal/repositories"
	"disputehub/internal/services/claim"
	"disputehub/internal/utils/pagination"
	"disputehub/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type ClaimHandler struct {
	claimService claim.Service
}

func NewClaimHandler(claimService claim.Service) *ClaimHandler {
	return &ClaimHandler{claimService: claimService}
}

// action is the shape shared by the single-claim endpoints.
type action func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, claimID string) (interface{}, error)

func (h *ClaimHandler) run(message string, fn action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenant, actor, err := caller(c)
		if err != nil {
			return response.Unauthorized(c)
		}
		result, err := fn(c, tenant, actor, c.Params("id"))
		if err != nil {
			return response.FromError(c, err)
		}
		return response.Success(c, message, result)
	}
}

func (h *ClaimHandler) FileClaim(c *fiber.Ctx) error {
	tenant, actor, err := caller(c)
	if err != nil {
		return response.Unauthorized(c)
	}
	var req claim.FileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if actor.Role == models.RoleBuyer && req.BuyerID == "" {
		req.BuyerID = actor.ID
	}

	created, err := h.claimService.FileClaim(c.UserContext(), tenant, actor, req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Claim filed successfully", created)
}

func (h *ClaimHandler) ListClaims(c *fiber.Ctx) error {
	tenant, actor, err := caller(c)
	if err != nil {
		return response.Unauthorized(c)
	}
	p := pagination.ParseFromRequest(c)
	filter := repositories.ClaimFilter{
		Status:   models.ClaimStatus(c.Query("status")),
		BuyerID:  c.Query("buyer_id"),
		SellerID: c.Query("seller_id"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	}

	claims, total, err := h.claimService.ListClaims(c.UserContext(), tenant, actor, filter)
	if err != nil {
		return response.FromError(c, err)
	}
	p.Total = total
	return c.JSON(pagination.Response(p, claims))
}

func (h *ClaimHandler) GetClaim(c *fiber.Ctx) error {
	return h.run("Claim retrieved successfully", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		return h.claimService.GetClaim(c.UserContext(), tenant, actor, id)
	})(c)
}

func (h *ClaimHandler) AddEvidence(c *fiber.Ctx) error {
	return h.run("Evidence added successfully", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		var input claim.EvidenceInput
		if err := c.BodyParser(&input); err != nil {
			return nil, errBadBody
		}
		return h.claimService.AddEvidence(c.UserContext(), tenant, actor, id, input)
	})(c)
}

func (h *ClaimHandler) RequestSellerResponse(c *fiber.Ctx) error {
	return h.run("Seller response requested", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		return h.claimService.RequestSellerResponse(c.UserContext(), tenant, actor, id)
	})(c)
}

func (h *ClaimHandler) RespondAsSeller(c *fiber.Ctx) error {
	return h.run("Seller response recorded", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		var req claim.SellerResponseRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, errBadBody
		}
		return h.claimService.RespondAsSeller(c.UserContext(), tenant, actor, id, req)
	})(c)
}

func (h *ClaimHandler) Withdraw(c *fiber.Ctx) error {
	return h.run("Claim withdrawn", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		return h.claimService.Withdraw(c.UserContext(), tenant, actor, id)
	})(c)
}

func (h *ClaimHandler) FileAppeal(c *fiber.Ctx) error {
	return h.run("Appeal filed successfully", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		var req claim.AppealRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, errBadBody
		}
		return h.claimService.FileAppeal(c.UserContext(), tenant, actor, id, req)
	})(c)
}

func (h *ClaimHandler) Decide(c *fiber.Ctx) error {
	return h.run("Claim decided", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		var req claim.DecisionRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, errBadBody
		}
		return h.claimService.Decide(c.UserContext(), tenant, actor, id, req)
	})(c)
}

type noteInput struct {
	Note string `json:"note"`
}

func (h *ClaimHandler) AddAdminNote(c *fiber.Ctx) error {
	return h.run("Note added", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		var input noteInput
		if err := c.BodyParser(&input); err != nil {
			return nil, errBadBody
		}
		return h.claimService.AddAdminNote(c.UserContext(), tenant, actor, id, input.Note)
	})(c)
}

func (h *ClaimHandler) FlagFraud(c *fiber.Ctx) error {
	return h.run("Claim flagged", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		var input noteInput
		if err := c.BodyParser(&input); err != nil {
			return nil, errBadBody
		}
		return h.claimService.FlagFraud(c.UserContext(), tenant, actor, id, input.Note)
	})(c)
}

func (h *ClaimHandler) StartAppealReview(c *fiber.Ctx) error {
	return h.run("Appeal under review", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		return h.claimService.StartAppealReview(c.UserContext(), tenant, actor, id)
	})(c)
}

func (h *ClaimHandler) ResolveAppeal(c *fiber.Ctx) error {
	return h.run("Appeal resolved", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		var res claim.AppealResolution
		if err := c.BodyParser(&res); err != nil {
			return nil, errBadBody
		}
		return h.claimService.ResolveAppeal(c.UserContext(), tenant, actor, id, res)
	})(c)
}

func (h *ClaimHandler) Close(c *fiber.Ctx) error {
	return h.run("Claim closed", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		return h.claimService.Close(c.UserContext(), tenant, actor, id)
	})(c)
}

func (h *ClaimHandler) Investigate(c *fiber.Ctx) error {
	return h.run("Investigation preview", func(c *fiber.Ctx, tenant models.TenantID, actor claim.Actor, id string) (interface{}, error) {
		return h.claimService.Investigate(c.UserContext(), tenant, actor, id)
	})(c)
}
