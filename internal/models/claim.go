package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type ClaimType string

const (
	ClaimTypeItemNotReceived ClaimType = "item_not_received"
	ClaimTypeDefective       ClaimType = "defective"
	ClaimTypeNotAsDescribed  ClaimType = "not_as_described"
	ClaimTypeWrongItem       ClaimType = "wrong_item"
	ClaimTypeMissingParts    ClaimType = "missing_parts"
	ClaimTypeCounterfeit     ClaimType = "counterfeit"
)

func (t ClaimType) Valid() bool {
	switch t {
	case ClaimTypeItemNotReceived, ClaimTypeDefective, ClaimTypeNotAsDescribed,
		ClaimTypeWrongItem, ClaimTypeMissingParts, ClaimTypeCounterfeit:
		return true
	}
	return false
}

type ClaimStatus string

const (
	ClaimStatusPendingReview         ClaimStatus = "pending_review"
	ClaimStatusPendingSellerResponse ClaimStatus = "pending_seller_response"
	ClaimStatusUnderReview           ClaimStatus = "under_review"
	ClaimStatusUnderInvestigation    ClaimStatus = "under_investigation"
	ClaimStatusApproved              ClaimStatus = "approved"
	ClaimStatusEscalated             ClaimStatus = "escalated"
	ClaimStatusResolvedRefundFull    ClaimStatus = "resolved_refund_full"
	ClaimStatusResolvedRefundPartial ClaimStatus = "resolved_refund_partial"
	ClaimStatusResolvedReplacement   ClaimStatus = "resolved_replacement"
	ClaimStatusRejected              ClaimStatus = "rejected"
	ClaimStatusPendingEvidence       ClaimStatus = "pending_evidence"
	ClaimStatusAppealed              ClaimStatus = "appealed"
	ClaimStatusUnderAppeal           ClaimStatus = "under_appeal"
	ClaimStatusWithdrawn             ClaimStatus = "withdrawn"
	ClaimStatusClosed                ClaimStatus = "closed"
)

// IsTerminal reports whether the claim has been adjudicated or abandoned.
// Resolved and rejected claims can still be appealed or closed.
func (s ClaimStatus) IsTerminal() bool {
	switch s {
	case ClaimStatusResolvedRefundFull, ClaimStatusResolvedRefundPartial, ClaimStatusResolvedReplacement,
		ClaimStatusRejected, ClaimStatusWithdrawn, ClaimStatusClosed:
		return true
	}
	return false
}

// IsResolved reports whether the status carries a final decision.
func (s ClaimStatus) IsResolved() bool {
	switch s {
	case ClaimStatusResolvedRefundFull, ClaimStatusResolvedRefundPartial, ClaimStatusResolvedReplacement,
		ClaimStatusRejected:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Rank() int {
	switch p {
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return 0
}

// Role is the actor kind behind a claim action.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
	MediaTracking MediaType = "tracking"
)

func (m MediaType) Valid() bool {
	switch m {
	case MediaPhoto, MediaVideo, MediaDocument, MediaTracking:
		return true
	}
	return false
}

type Evidence struct {
	ID          string    `json:"id"`
	UploadedBy  Role      `json:"uploaded_by"`
	UploaderID  string    `json:"uploader_id"`
	MediaType   MediaType `json:"media_type"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Proposal is the seller's suggested resolution.
type Proposal string

const (
	ProposalRefundFull    Proposal = "refund_full"
	ProposalRefundPartial Proposal = "refund_partial"
	ProposalReplacement   Proposal = "replacement"
	ProposalDispute       Proposal = "dispute"
)

func (p Proposal) Valid() bool {
	switch p {
	case ProposalRefundFull, ProposalRefundPartial, ProposalReplacement, ProposalDispute:
		return true
	}
	return false
}

type SellerResponse struct {
	Proposal      Proposal         `json:"proposal"`
	PartialAmount *decimal.Decimal `json:"partial_amount,omitempty"`
	Message       string           `json:"message"`
	EvidenceIDs   []string         `json:"evidence_ids,omitempty"`
	RespondedAt   time.Time        `json:"responded_at"`
}

type Outcome string

const (
	OutcomeRefundFull    Outcome = "refund_full"
	OutcomeRefundPartial Outcome = "refund_partial"
	OutcomeReplacement   Outcome = "replacement"
	OutcomeReject        Outcome = "reject"
	OutcomeNeedsMoreInfo Outcome = "needs_more_info"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeRefundFull, OutcomeRefundPartial, OutcomeReplacement, OutcomeReject, OutcomeNeedsMoreInfo:
		return true
	}
	return false
}

// Status returns the claim status a decision with this outcome moves to.
func (o Outcome) Status() ClaimStatus {
	switch o {
	case OutcomeRefundFull:
		return ClaimStatusResolvedRefundFull
	case OutcomeRefundPartial:
		return ClaimStatusResolvedRefundPartial
	case OutcomeReplacement:
		return ClaimStatusResolvedReplacement
	case OutcomeReject:
		return ClaimStatusRejected
	default:
		return ClaimStatusPendingEvidence
	}
}

func (o Outcome) IsRefund() bool {
	return o == OutcomeRefundFull || o == OutcomeRefundPartial
}

// MatchesProposal reports whether the outcome is what the seller offered.
func (o Outcome) MatchesProposal(p Proposal) bool {
	switch p {
	case ProposalRefundFull:
		return o == OutcomeRefundFull
	case ProposalRefundPartial:
		return o == OutcomeRefundPartial
	case ProposalReplacement:
		return o == OutcomeReplacement
	}
	return false
}

type Decision struct {
	DecidedBy    Role             `json:"decided_by"`
	DeciderID    string           `json:"decider_id"`
	Outcome      Outcome          `json:"outcome"`
	Reason       string           `json:"reason"`
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
	DecidedAt    time.Time        `json:"decided_at"`
}

type AppealStatus string

const (
	AppealPending  AppealStatus = "pending"
	AppealApproved AppealStatus = "approved"
	AppealRejected AppealStatus = "rejected"
)

type Appeal struct {
	AppealedBy       Role         `json:"appealed_by"`
	AppellantID      string       `json:"appellant_id"`
	Reason           string       `json:"reason"`
	EvidenceIDs      []string     `json:"evidence_ids,omitempty"`
	Status           AppealStatus `json:"status"`
	FiledAt          time.Time    `json:"filed_at"`
	ReviewedAt       *time.Time   `json:"reviewed_at,omitempty"`
	ReviewerID       string       `json:"reviewer_id,omitempty"`
	Resolution       string       `json:"resolution,omitempty"`
	OriginalDecision *Decision    `json:"original_decision,omitempty"`
}

type AdminNote struct {
	AuthorID  string    `json:"author_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// Claim is a buyer dispute against an order. Sub-entities are stored as JSON
// columns; claims are never hard-deleted.
type Claim struct {
	ID                    uint             `gorm:"primarykey" json:"-"`
	TenantID              TenantID         `gorm:"type:varchar(64);not null;uniqueIndex:idx_claims_tenant_claim;index:idx_claims_tenant_status_filed,priority:1;index:idx_claims_tenant_buyer,priority:1;index:idx_claims_tenant_seller,priority:1" json:"tenant_id"`
	ClaimID               string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_claims_tenant_claim" json:"claim_id"`
	OrderID               string           `gorm:"type:varchar(64);not null;index" json:"order_id"`
	BuyerID               string           `gorm:"type:varchar(64);not null;index:idx_claims_tenant_buyer,priority:2" json:"buyer_id"`
	SellerID              string           `gorm:"type:varchar(64);not null;index:idx_claims_tenant_seller,priority:2" json:"seller_id"`
	ProductID             string           `gorm:"type:varchar(64)" json:"product_id"`
	Type                  ClaimType        `gorm:"type:varchar(32);not null" json:"type"`
	Status                ClaimStatus      `gorm:"type:varchar(32);not null;index:idx_claims_tenant_status_filed,priority:2" json:"status"`
	Description           string           `gorm:"type:text" json:"description"`
	Evidence              []Evidence       `gorm:"serializer:json;type:jsonb" json:"evidence"`
	SellerResponse        *SellerResponse  `gorm:"serializer:json;type:jsonb" json:"seller_response,omitempty"`
	SellerProposal        Proposal         `gorm:"type:varchar(32)" json:"-"`
	AdminNotes            []AdminNote      `gorm:"serializer:json;type:jsonb" json:"admin_notes,omitempty"`
	Decision              *Decision        `gorm:"serializer:json;type:jsonb" json:"decision,omitempty"`
	Appeal                *Appeal          `gorm:"serializer:json;type:jsonb" json:"appeal,omitempty"`
	FiledAt               time.Time        `gorm:"not null;index:idx_claims_tenant_status_filed,priority:3" json:"filed_at"`
	ResponseDeadline      time.Time        `gorm:"not null" json:"response_deadline"`
	InvestigationDeadline *time.Time       `json:"investigation_deadline,omitempty"`
	ResolvedAt            *time.Time       `json:"resolved_at,omitempty"`
	EscalatedAt           *time.Time       `json:"escalated_at,omitempty"`
	Currency              string           `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	OrderAmount           decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"order_amount"`
	RequestedAmount       decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"requested_amount"`
	RefundedAmount        decimal.Decimal  `gorm:"type:numeric(14,2);not null;default:0" json:"refunded_amount"`
	IsAutoResolvable      bool             `gorm:"not null;default:false" json:"is_auto_resolvable"`
	IsFraudulent          bool             `gorm:"not null;default:false" json:"is_fraudulent"`
	FraudIndicators       pq.StringArray   `gorm:"type:text[]" json:"fraud_indicators,omitempty"`
	Priority              Priority         `gorm:"type:varchar(16);not null" json:"priority"`
	Metadata              JSON             `gorm:"type:jsonb" json:"metadata,omitempty"`
	Version               int              `gorm:"not null;default:1" json:"version"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// RefundCap is the most that may ever be refunded on the claim.
func (c *Claim) RefundCap() decimal.Decimal {
	return decimal.Min(c.OrderAmount, c.RequestedAmount)
}

// HasEvidence reports whether an evidence item with id exists.
func (c *Claim) HasEvidence(id string) bool {
	for _, e := range c.Evidence {
		if e.ID == id {
			return true
		}
	}
	return false
}

// PendingAppeal reports whether an appeal is waiting for review.
func (c *Claim) PendingAppeal() bool {
	return c.Appeal != nil && c.Appeal.Status == AppealPending
}

// IsOverdue reports whether the seller response window has passed unanswered.
func (c *Claim) IsOverdue(now time.Time) bool {
	if c.Status != ClaimStatusPendingReview && c.Status != ClaimStatusPendingSellerResponse {
		return false
	}
	return now.After(c.ResponseDeadline)
}
