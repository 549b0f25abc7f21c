package claim

import (
	"context"
	"time"

	"disputehub/internal/models"
	"disputehub/internal/services/investigation"

	"github.com/shopspring/decimal"
)

// Event topics published by the service.
const (
	TopicClaimCreated            = "claims.created"
	TopicSellerResponseRequested = "claims.seller_response_requested"
	TopicSellerResponded         = "claims.seller_responded"
	TopicEvidenceAdded           = "claims.evidence_added"
	TopicClaimDecided            = "claims.decided"
	TopicClaimFlagged            = "claims.flagged"
	TopicAppealFiled             = "claims.appeal_filed"
	TopicAppealResolved          = "claims.appeal_resolved"
	TopicClaimWithdrawn          = "claims.withdrawn"
	TopicClaimClosed             = "claims.closed"
	TopicClaimEscalated          = "claims.escalated"
	TopicRefundEnqueueFailed     = "claims.refund_enqueue_failed"
)

// AutoResolveMaxFraudScore is the exclusive fraud score ceiling for a
// system decision.
const AutoResolveMaxFraudScore = 50

// Config holds the lifecycle thresholds.
type Config struct {
	ResponseWindow       time.Duration
	InvestigationWindow  time.Duration
	AutoResolveThreshold decimal.Decimal
	HighPriorityAmount   decimal.Decimal
	UrgentPriorityAmount decimal.Decimal
	BatchSize            int
}

// Actor is the caller behind an operation.
type Actor struct {
	ID   string
	Role models.Role
}

func (a Actor) IsStaff() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleSystem
}

// SystemActor decides claims on behalf of the platform.
var SystemActor = Actor{ID: "system", Role: models.RoleSystem}

type EvidenceInput struct {
	MediaType   models.MediaType `json:"media_type"`
	URL         string           `json:"url"`
	Description string           `json:"description"`
}

type FileRequest struct {
	ClaimID         string           `json:"claim_id"`
	OrderID         string           `json:"order_id"`
	BuyerID         string           `json:"buyer_id"`
	SellerID        string           `json:"seller_id"`
	ProductID       string           `json:"product_id"`
	Type            models.ClaimType `json:"type"`
	Description     string           `json:"description"`
	OrderAmount     decimal.Decimal  `json:"order_amount"`
	RequestedAmount decimal.Decimal  `json:"requested_amount"`
	Currency        string           `json:"currency"`
	Evidence        []EvidenceInput  `json:"evidence"`
	Metadata        models.JSON      `json:"metadata"`
}

type SellerResponseRequest struct {
	Proposal      models.Proposal  `json:"proposal"`
	PartialAmount *decimal.Decimal `json:"partial_amount"`
	Message       string           `json:"message"`
	Evidence      []EvidenceInput  `json:"evidence"`
}

type DecisionRequest struct {
	Outcome      models.Outcome   `json:"outcome"`
	Reason       string           `json:"reason"`
	RefundAmount *decimal.Decimal `json:"refund_amount"`
}

type AppealRequest struct {
	Reason   string          `json:"reason"`
	Evidence []EvidenceInput `json:"evidence"`
	// EvidenceIDs cites evidence already on the claim.
	EvidenceIDs []string `json:"evidence_ids"`
}

// AppealResolution approves an appeal with a replacement decision or rejects
// it, leaving the original decision in force.
type AppealResolution struct {
	Approve  bool             `json:"approve"`
	Decision *DecisionRequest `json:"decision"`
	Note     string           `json:"note"`
}

// BatchResult summarises a sweep.
type BatchResult struct {
	Scanned  int `json:"scanned"`
	Resolved int `json:"resolved"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Event is the payload published for every lifecycle change.
type Event struct {
	TenantID  models.TenantID        `json:"tenant_id"`
	ClaimID   string                 `json:"claim_id"`
	OrderID   string                 `json:"order_id"`
	BuyerID   string                 `json:"buyer_id"`
	SellerID  string                 `json:"seller_id"`
	Status    models.ClaimStatus     `json:"status"`
	Priority  models.Priority        `json:"priority"`
	ActorID   string                 `json:"actor_id,omitempty"`
	ActorRole models.Role            `json:"actor_role,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	At        time.Time              `json:"at"`
}

// Investigator produces a recommendation for a claim.
type Investigator interface {
	Investigate(ctx context.Context, claim *models.Claim) (*investigation.Result, error)
}

// RefundTrigger queues refund execution for a claim decided with a refund
// outcome.
type RefundTrigger interface {
	EnqueueRefund(ctx context.Context, claim *models.Claim) error
}

// EventPublisher delivers lifecycle events. Delivery is at-least-once.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}
