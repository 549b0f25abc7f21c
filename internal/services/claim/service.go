package claim

import (
	"context"
	"strings"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"
	"disputehub/internal/repositories"
	"disputehub/internal/services/investigation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type service struct {
	claims       repositories.ClaimRepository
	investigator Investigator
	refunds      RefundTrigger
	events       EventPublisher
	config       Config
	log          *zap.Logger
	now          func() time.Time
	newID        func() string
}

// NewService creates a new claim service. refunds and events may be nil.
func NewService(
	claims repositories.ClaimRepository,
	investigator Investigator,
	refunds RefundTrigger,
	events EventPublisher,
	config Config,
	log *zap.Logger,
) Service {
	if claims == nil {
		panic("claim repository is required")
	}
	if investigator == nil {
		panic("investigator is required")
	}

	if config.ResponseWindow == 0 {
		config.ResponseWindow = 48 * time.Hour
	}
	if config.InvestigationWindow == 0 {
		config.InvestigationWindow = 72 * time.Hour
	}
	if config.AutoResolveThreshold.IsZero() {
		config.AutoResolveThreshold = decimal.NewFromInt(50)
	}
	if config.HighPriorityAmount.IsZero() {
		config.HighPriorityAmount = decimal.NewFromInt(500)
	}
	if config.UrgentPriorityAmount.IsZero() {
		config.UrgentPriorityAmount = decimal.NewFromInt(1000)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &service{
		claims:       claims,
		investigator: investigator,
		refunds:      refunds,
		events:       events,
		config:       config,
		log:          log,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

func (s *service) FileClaim(ctx context.Context, tenant models.TenantID, actor Actor, req FileRequest) (*models.Claim, error) {
	if tenant.IsZero() {
		return nil, domainErrors.ErrInvalidClaim.WithMessage("tenant is required")
	}
	switch actor.Role {
	case models.RoleBuyer:
		if actor.ID != req.BuyerID {
			return nil, ErrBuyerRequired
		}
	case models.RoleAdmin, models.RoleSystem:
	default:
		return nil, ErrBuyerRequired
	}
	if err := s.validateFileRequest(req); err != nil {
		return nil, err
	}

	exists, err := s.claims.HasActiveForOrder(ctx, tenant, req.OrderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domainErrors.ErrDuplicateClaim.WithMessage("order %s already has a claim", req.OrderID)
	}

	now := s.now().UTC()
	claimID := req.ClaimID
	if claimID == "" {
		claimID = "CLM-" + strings.ToUpper(s.newID())
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}

	claim := &models.Claim{
		TenantID:         tenant,
		ClaimID:          claimID,
		OrderID:          req.OrderID,
		BuyerID:          req.BuyerID,
		SellerID:         req.SellerID,
		ProductID:        req.ProductID,
		Type:             req.Type,
		Status:           models.ClaimStatusPendingReview,
		Description:      req.Description,
		Evidence:         []models.Evidence{},
		FiledAt:          now,
		ResponseDeadline: now.Add(s.config.ResponseWindow),
		Currency:         currency,
		OrderAmount:      req.OrderAmount,
		RequestedAmount:  req.RequestedAmount,
		RefundedAmount:   decimal.Zero,
		IsAutoResolvable: req.OrderAmount.LessThanOrEqual(s.config.AutoResolveThreshold),
		Priority:         s.priority(req.Type, req.OrderAmount),
		Metadata:         req.Metadata,
	}
	s.appendEvidence(claim, models.RoleBuyer, req.BuyerID, req.Evidence, now)

	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, err
	}

	s.log.Info("claim filed",
		zap.String("tenant_id", tenant.String()),
		zap.String("claim_id", claim.ClaimID),
		zap.String("order_id", claim.OrderID),
		zap.String("type", string(claim.Type)),
		zap.String("priority", string(claim.Priority)))
	s.publish(ctx, TopicClaimCreated, claim, actor, nil)
	return claim, nil
}

func (s *service) validateFileRequest(req FileRequest) error {
	switch {
	case req.OrderID == "":
		return domainErrors.ErrInvalidClaim.WithMessage("order_id is required")
	case req.BuyerID == "":
		return domainErrors.ErrInvalidClaim.WithMessage("buyer_id is required")
	case req.SellerID == "":
		return domainErrors.ErrInvalidClaim.WithMessage("seller_id is required")
	case req.BuyerID == req.SellerID:
		return domainErrors.ErrInvalidClaim.WithMessage("buyer and seller must differ")
	case !req.Type.Valid():
		return domainErrors.ErrInvalidClaim.WithMessage("unknown claim type %q", req.Type)
	case !req.OrderAmount.IsPositive():
		return domainErrors.ErrInvalidAmount.WithMessage("order_amount must be positive")
	case !req.RequestedAmount.IsPositive():
		return domainErrors.ErrInvalidAmount.WithMessage("requested_amount must be positive")
	case req.RequestedAmount.GreaterThan(req.OrderAmount):
		return domainErrors.ErrAmountExceedsLimit.WithMessage("requested_amount exceeds order_amount")
	}
	return validateEvidence(req.Evidence)
}

func validateEvidence(inputs []EvidenceInput) error {
	for i, in := range inputs {
		if !in.MediaType.Valid() {
			return domainErrors.ErrInvalidClaim.WithMessage("evidence %d has unknown media type %q", i, in.MediaType)
		}
		if strings.TrimSpace(in.URL) == "" {
			return domainErrors.ErrInvalidClaim.WithMessage("evidence %d has no url", i)
		}
	}
	return nil
}

// priority ranks a new claim by amount first, then by how much the buyer
// stands to lose while it waits.
func (s *service) priority(t models.ClaimType, amount decimal.Decimal) models.Priority {
	switch {
	case amount.GreaterThanOrEqual(s.config.UrgentPriorityAmount):
		return models.PriorityUrgent
	case amount.GreaterThanOrEqual(s.config.HighPriorityAmount), t == models.ClaimTypeCounterfeit:
		return models.PriorityHigh
	case t == models.ClaimTypeItemNotReceived, t == models.ClaimTypeDefective:
		return models.PriorityMedium
	}
	return models.PriorityLow
}

func (s *service) appendEvidence(claim *models.Claim, role models.Role, uploaderID string, inputs []EvidenceInput, at time.Time) []string {
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		e := models.Evidence{
			ID:          s.newID(),
			UploadedBy:  role,
			UploaderID:  uploaderID,
			MediaType:   in.MediaType,
			URL:         strings.TrimSpace(in.URL),
			Description: in.Description,
			UploadedAt:  at,
		}
		claim.Evidence = append(claim.Evidence, e)
		ids = append(ids, e.ID)
	}
	return ids
}

func (s *service) GetClaim(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error) {
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	// Claims belonging to someone else look the same as missing ones.
	if !actor.IsStaff() && !isParty(claim, actor) {
		return nil, domainErrors.ErrClaimNotFound
	}
	return claim, nil
}

func (s *service) ListClaims(ctx context.Context, tenant models.TenantID, actor Actor, filter repositories.ClaimFilter) ([]models.Claim, int64, error) {
	switch actor.Role {
	case models.RoleBuyer:
		filter.BuyerID = actor.ID
	case models.RoleSeller:
		filter.SellerID = actor.ID
	case models.RoleAdmin, models.RoleSystem:
	default:
		return nil, 0, domainErrors.ErrNotClaimParty
	}
	return s.claims.List(ctx, tenant, filter)
}

func (s *service) RequestSellerResponse(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error) {
	if !actor.IsStaff() {
		return nil, ErrAdminRequired
	}
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != models.ClaimStatusPendingReview && claim.Status != models.ClaimStatusPendingEvidence {
		return nil, domainErrors.ErrInvalidTransition.WithMessage("claim %s is %s", claim.ClaimID, claim.Status)
	}
	if err := moveTo(claim, models.ClaimStatusPendingSellerResponse); err != nil {
		return nil, err
	}
	claim.ResponseDeadline = s.now().UTC().Add(s.config.ResponseWindow)

	if err := s.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	s.publish(ctx, TopicSellerResponseRequested, claim, actor, map[string]interface{}{
		"response_deadline": claim.ResponseDeadline,
	})
	return claim, nil
}

func (s *service) RespondAsSeller(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, req SellerResponseRequest) (*models.Claim, error) {
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleSeller || actor.ID != claim.SellerID {
		return nil, domainErrors.ErrNotClaimParty
	}
	if claim.Status != models.ClaimStatusPendingReview && claim.Status != models.ClaimStatusPendingSellerResponse {
		return nil, domainErrors.ErrInvalidTransition.WithMessage("claim %s is %s and no longer accepts a seller response", claim.ClaimID, claim.Status)
	}
	if !req.Proposal.Valid() {
		return nil, domainErrors.ErrInvalidClaim.WithMessage("unknown proposal %q", req.Proposal)
	}
	var partial *decimal.Decimal
	if req.Proposal == models.ProposalRefundPartial {
		if req.PartialAmount == nil || !req.PartialAmount.IsPositive() {
			return nil, domainErrors.ErrInvalidAmount.WithMessage("partial_amount must be positive")
		}
		if req.PartialAmount.GreaterThan(claim.RequestedAmount) {
			return nil, domainErrors.ErrAmountExceedsLimit.WithMessage("partial_amount exceeds the requested amount")
		}
		amount := *req.PartialAmount
		partial = &amount
	}
	if err := validateEvidence(req.Evidence); err != nil {
		return nil, err
	}

	target := models.ClaimStatusUnderReview
	switch req.Proposal {
	case models.ProposalRefundFull:
		if !claim.IsAutoResolvable {
			target = models.ClaimStatusApproved
		}
	case models.ProposalDispute:
		target = models.ClaimStatusUnderInvestigation
	}
	if err := moveTo(claim, target); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ids := s.appendEvidence(claim, models.RoleSeller, actor.ID, req.Evidence, now)
	deadline := now.Add(s.config.InvestigationWindow)
	claim.InvestigationDeadline = &deadline
	claim.SellerResponse = &models.SellerResponse{
		Proposal:      req.Proposal,
		PartialAmount: partial,
		Message:       req.Message,
		EvidenceIDs:   ids,
		RespondedAt:   now,
	}
	claim.SellerProposal = req.Proposal

	if err := s.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	s.publish(ctx, TopicSellerResponded, claim, actor, map[string]interface{}{
		"proposal": req.Proposal,
	})

	if claim.Status == models.ClaimStatusUnderReview && req.Proposal == models.ProposalRefundFull {
		if _, err := s.tryAutoResolve(ctx, claim); err != nil {
			// The batch job picks the claim up again.
			s.log.Warn("auto-resolution failed",
				zap.String("tenant_id", tenant.String()),
				zap.String("claim_id", claim.ClaimID),
				zap.Error(err))
		}
	}
	return claim, nil
}

func (s *service) AddEvidence(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, input EvidenceInput) (*models.Claim, error) {
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && !isParty(claim, actor) {
		return nil, domainErrors.ErrNotClaimParty
	}
	if claim.Status == models.ClaimStatusWithdrawn || claim.Status == models.ClaimStatusClosed {
		return nil, domainErrors.ErrInvalidTransition.WithMessage("claim %s is %s", claim.ClaimID, claim.Status)
	}
	if err := validateEvidence([]EvidenceInput{input}); err != nil {
		return nil, err
	}

	if actor.Role == models.RoleBuyer && claim.Status == models.ClaimStatusPendingEvidence {
		if err := moveTo(claim, models.ClaimStatusUnderReview); err != nil {
			return nil, err
		}
	}
	ids := s.appendEvidence(claim, actor.Role, actor.ID, []EvidenceInput{input}, s.now().UTC())

	if err := s.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	s.publish(ctx, TopicEvidenceAdded, claim, actor, map[string]interface{}{
		"evidence_id": ids[0],
		"media_type":  input.MediaType,
	})
	return claim, nil
}

func (s *service) AddAdminNote(ctx context.Context, tenant models.TenantID, actor Actor, claimID, note string) (*models.Claim, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrAdminRequired
	}
	if strings.TrimSpace(note) == "" {
		return nil, domainErrors.ErrInvalidClaim.WithMessage("note is required")
	}
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	claim.AdminNotes = append(claim.AdminNotes, models.AdminNote{
		AuthorID:  actor.ID,
		Note:      note,
		CreatedAt: s.now().UTC(),
	})
	if err := s.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *service) FlagFraud(ctx context.Context, tenant models.TenantID, actor Actor, claimID, note string) (*models.Claim, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrAdminRequired
	}
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	claim.IsFraudulent = true
	text := "flagged as fraudulent"
	if note = strings.TrimSpace(note); note != "" {
		text += ": " + note
	}
	claim.AdminNotes = append(claim.AdminNotes, models.AdminNote{
		AuthorID:  actor.ID,
		Note:      text,
		CreatedAt: s.now().UTC(),
	})
	if err := s.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	s.log.Warn("claim flagged as fraudulent",
		zap.String("tenant_id", tenant.String()),
		zap.String("claim_id", claim.ClaimID),
		zap.String("admin_id", actor.ID))
	s.publish(ctx, TopicClaimFlagged, claim, actor, nil)
	return claim, nil
}

func (s *service) Investigate(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*investigation.Result, error) {
	if !actor.IsStaff() {
		return nil, ErrAdminRequired
	}
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	return s.investigator.Investigate(ctx, claim)
}

func (s *service) Decide(ctx context.Context, tenant models.TenantID, actor Actor, claimID string, req DecisionRequest) (*models.Claim, error) {
	if !actor.IsStaff() {
		return nil, ErrAdminRequired
	}
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() || claim.Status == models.ClaimStatusAppealed || claim.Status == models.ClaimStatusUnderAppeal {
		return nil, domainErrors.ErrInvalidTransition.WithMessage("claim %s is %s and cannot be decided", claim.ClaimID, claim.Status)
	}
	// A request for more information is the only decision that may be replaced.
	if claim.Decision != nil && claim.Decision.Outcome != models.OutcomeNeedsMoreInfo {
		return nil, ErrDecisionExists
	}

	decision, err := s.buildDecision(claim, actor, req)
	if err != nil {
		return nil, err
	}
	if err := s.applyDecision(ctx, claim, actor, decision); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *service) buildDecision(claim *models.Claim, actor Actor, req DecisionRequest) (models.Decision, error) {
	if !req.Outcome.Valid() {
		return models.Decision{}, domainErrors.ErrInvalidClaim.WithMessage("unknown outcome %q", req.Outcome)
	}
	decision := models.Decision{
		DecidedBy: actor.Role,
		DeciderID: actor.ID,
		Outcome:   req.Outcome,
		Reason:    req.Reason,
		DecidedAt: s.now().UTC(),
	}

	switch req.Outcome {
	case models.OutcomeRefundFull:
		amount := claim.RefundCap()
		if req.RefundAmount != nil && !req.RefundAmount.Equal(amount) {
			return models.Decision{}, domainErrors.ErrInvalidAmount.WithMessage("a full refund is %s", amount.StringFixed(2))
		}
		decision.RefundAmount = &amount
	case models.OutcomeRefundPartial:
		amount := req.RefundAmount
		if amount == nil && claim.SellerResponse != nil {
			amount = claim.SellerResponse.PartialAmount
		}
		if amount == nil || !amount.IsPositive() {
			return models.Decision{}, domainErrors.ErrInvalidAmount.WithMessage("refund_amount must be positive")
		}
		if amount.GreaterThan(claim.RefundCap()) {
			return models.Decision{}, domainErrors.ErrAmountExceedsLimit
		}
		a := *amount
		decision.RefundAmount = &a
	default:
		if req.RefundAmount != nil {
			return models.Decision{}, domainErrors.ErrInvalidAmount.WithMessage("outcome %s carries no refund", req.Outcome)
		}
	}
	return decision, nil
}

// applyDecision records decision on claim, saves it and, after the save,
// queues a refund for refund outcomes.
func (s *service) applyDecision(ctx context.Context, claim *models.Claim, actor Actor, decision models.Decision) error {
	if err := moveTo(claim, decision.Outcome.Status()); err != nil {
		return err
	}
	claim.Decision = &decision
	if decision.Outcome != models.OutcomeNeedsMoreInfo {
		at := decision.DecidedAt
		claim.ResolvedAt = &at
	}
	if err := s.claims.Update(ctx, claim); err != nil {
		return err
	}

	s.log.Info("claim decided",
		zap.String("tenant_id", claim.TenantID.String()),
		zap.String("claim_id", claim.ClaimID),
		zap.String("outcome", string(decision.Outcome)),
		zap.String("decided_by", string(decision.DecidedBy)))
	data := map[string]interface{}{
		"outcome": decision.Outcome,
		"reason":  decision.Reason,
	}
	if decision.RefundAmount != nil {
		data["refund_amount"] = decision.RefundAmount.StringFixed(2)
	}
	s.publish(ctx, TopicClaimDecided, claim, actor, data)

	if decision.Outcome.IsRefund() {
		s.enqueueRefund(ctx, claim)
	}
	return nil
}

func (s *service) enqueueRefund(ctx context.Context, claim *models.Claim) {
	if s.refunds == nil {
		return
	}
	// The decision is already committed. A claim left without a refund is
	// picked up by the refund recovery sweep.
	if err := s.refunds.EnqueueRefund(ctx, claim); err != nil {
		s.log.Error("failed to enqueue refund",
			zap.String("tenant_id", claim.TenantID.String()),
			zap.String("claim_id", claim.ClaimID),
			zap.Error(err))
		s.publish(ctx, TopicRefundEnqueueFailed, claim, SystemActor,
			map[string]interface{}{"error": err.Error()})
	}
}

func (s *service) Withdraw(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error) {
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleBuyer || actor.ID != claim.BuyerID {
		return nil, ErrBuyerRequired
	}
	if err := moveTo(claim, models.ClaimStatusWithdrawn); err != nil {
		return nil, err
	}
	if err := s.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	s.publish(ctx, TopicClaimWithdrawn, claim, actor, nil)
	return claim, nil
}

func (s *service) Close(ctx context.Context, tenant models.TenantID, actor Actor, claimID string) (*models.Claim, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrAdminRequired
	}
	claim, err := s.claims.Get(ctx, tenant, claimID)
	if err != nil {
		return nil, err
	}
	if err := moveTo(claim, models.ClaimStatusClosed); err != nil {
		return nil, err
	}
	if claim.PendingAppeal() {
		s.finishAppeal(claim, actor, models.AppealRejected, "closed without a new decision")
	}
	if err := s.claims.Update(ctx, claim); err != nil {
		return nil, err
	}
	s.publish(ctx, TopicClaimClosed, claim, actor, nil)
	return claim, nil
}

func (s *service) RecordRefund(ctx context.Context, tenant models.TenantID, claimID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domainErrors.ErrInvalidAmount
	}
	return s.claims.AddRefunded(ctx, tenant, claimID, amount)
}

// publish sends an event and only logs a failure.
func (s *service) publish(ctx context.Context, topic string, claim *models.Claim, actor Actor, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	event := Event{
		TenantID:  claim.TenantID,
		ClaimID:   claim.ClaimID,
		OrderID:   claim.OrderID,
		BuyerID:   claim.BuyerID,
		SellerID:  claim.SellerID,
		Status:    claim.Status,
		Priority:  claim.Priority,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Data:      data,
		At:        s.now().UTC(),
	}
	if err := s.events.Publish(ctx, topic, event); err != nil {
		s.log.Warn("failed to publish claim event",
			zap.String("topic", topic),
			zap.String("claim_id", claim.ClaimID),
			zap.Error(err))
	}
}

func isParty(claim *models.Claim, actor Actor) bool {
	switch actor.Role {
	case models.RoleBuyer:
		return actor.ID == claim.BuyerID
	case models.RoleSeller:
		return actor.ID == claim.SellerID
	}
	return false
}
