// Package gateway is the boundary to the external payment processor. Provider
// statuses are mapped to Status once, here, so callers never see them.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusDeclined Status = "declined"
)

type RefundRequest struct {
	// IdempotencyKey makes a repeated request for the same attempt a no-op
	// at the provider.
	IdempotencyKey       string
	PaymentTransactionID string
	PaymentMethod        string
	Amount               decimal.Decimal
	Currency             string
	Reason               string
	Metadata             map[string]string
}

type ChargeRequest struct {
	IdempotencyKey string
	Source         string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Metadata       map[string]string
}

// Result is the outcome of a charge, refund or status query.
type Result struct {
	TransactionID string
	Status        Status
	Message       string
	// Raw is the provider response, kept for audit only.
	Raw []byte
}

// Gateway moves money. Transport failures and provider outages are returned
// as transient errors; a refused operation is a StatusDeclined result.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Result, error)
	Refund(ctx context.Context, req RefundRequest) (*Result, error)
	QueryRefundStatus(ctx context.Context, transactionID string) (*Result, error)
}
