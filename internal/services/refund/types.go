package refund

import (
	"context"
	"fmt"
	"time"

	"disputehub/internal/models"

	"github.com/shopspring/decimal"
)

// Event topics published by the service.
const (
	TopicRefundCompleted = "refunds.completed"
	TopicRefundFailed    = "refunds.failed"
)

// Config holds the execution limits. Zero values are replaced with defaults
// by NewService.
type Config struct {
	MaxRetries     int
	MaxPolls       int
	RetryBaseDelay time.Duration
	PollInterval   time.Duration
	GatewayTimeout time.Duration
	LockTTL        time.Duration
	StalledAfter   time.Duration
	BatchSize      int
}

// Request asks for the refund of a decided claim. Empty ids and payment
// fields are taken from the stored claim and order; supplied ones must match.
type Request struct {
	ClaimID              string          `json:"claim_id"`
	OrderID              string          `json:"order_id,omitempty"`
	BuyerID              string          `json:"buyer_id,omitempty"`
	SellerID             string          `json:"seller_id,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	Reason               string          `json:"reason,omitempty"`
	PaymentMethod        string          `json:"payment_method,omitempty"`
	PaymentTransactionID string          `json:"payment_transaction_id,omitempty"`
}

type JobKind string

const (
	JobProcess JobKind = "refund.process"
	JobRetry   JobKind = "refund.retry"
	JobPoll    JobKind = "refund.poll"
)

// Job is the payload handed to the Scheduler. Attempt is the retry count a
// retry job expects, or the poll number a poll job performs; a job whose
// attempt no longer matches the refund is stale and ignored.
type Job struct {
	Kind     JobKind         `json:"kind"`
	TenantID models.TenantID `json:"tenant_id"`
	RefundID string          `json:"refund_id,omitempty"`
	Attempt  int             `json:"attempt,omitempty"`
	Request  *Request        `json:"request,omitempty"`
}

// ID is stable for a given job so a scheduler can deduplicate it.
func (j Job) ID() string {
	if j.Kind == JobProcess && j.Request != nil {
		return fmt.Sprintf("%s:%s:%s", j.Kind, j.TenantID, j.Request.ClaimID)
	}
	return fmt.Sprintf("%s:%s:%s:%d", j.Kind, j.TenantID, j.RefundID, j.Attempt)
}

// Event is published when a refund reaches a terminal status.
type Event struct {
	TenantID             models.TenantID     `json:"tenant_id"`
	RefundID             string              `json:"refund_id"`
	ClaimID              string              `json:"claim_id"`
	OrderID              string              `json:"order_id"`
	BuyerID              string              `json:"buyer_id"`
	SellerID             string              `json:"seller_id"`
	Amount               decimal.Decimal     `json:"amount"`
	Currency             string              `json:"currency"`
	Status               models.RefundStatus `json:"status"`
	GatewayTransactionID string              `json:"gateway_transaction_id,omitempty"`
	FailureReason        string              `json:"failure_reason,omitempty"`
	At                   time.Time           `json:"at"`
}

// RecoveryResult summarises a RecoverStalled run.
type RecoveryResult struct {
	Scanned     int `json:"scanned"`
	Rescheduled int `json:"rescheduled"`
	Redriven    int `json:"redriven"`
	Started     int `json:"started"`
	Failed      int `json:"failed"`
}

// ClaimReader loads the claim a refund is requested for, and finds claims
// decided with a refund whose refund was never started.
type ClaimReader interface {
	Get(ctx context.Context, tenant models.TenantID, claimID string) (*models.Claim, error)
	ListAwaitingRefund(ctx context.Context, before time.Time, limit int) ([]models.Claim, error)
}

// ClaimRecorder adds a completed refund to the claim's refunded total.
type ClaimRecorder interface {
	RecordRefund(ctx context.Context, tenant models.TenantID, claimID string, amount decimal.Decimal) error
}

// EventPublisher delivers refund events. Delivery is at-least-once.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// MetricsCollector defines the interface for collecting refund metrics
type MetricsCollector interface {
	RecordGatewayCall(operation string, duration time.Duration, status string)
	RecordOutcome(status models.RefundStatus)
	RecordError(operation, errType string)
}
