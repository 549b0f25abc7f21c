package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusRefunded  = "refunded"
)

type TrackingStatus string

const (
	TrackingUnknown   TrackingStatus = "unknown"
	TrackingInTransit TrackingStatus = "in_transit"
	TrackingDelivered TrackingStatus = "delivered"
	TrackingLost      TrackingStatus = "lost"
	TrackingReturned  TrackingStatus = "returned"
)

// Order is the marketplace order a claim is filed against. Owned by checkout;
// this service only reads it and flips the status on refund.
type Order struct {
	ID                   uint            `gorm:"primarykey" json:"-"`
	TenantID             TenantID        `gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_tenant_order" json:"tenant_id"`
	OrderID              string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_orders_tenant_order" json:"order_id"`
	BuyerID              string          `gorm:"type:varchar(64);not null;index" json:"buyer_id"`
	SellerID             string          `gorm:"type:varchar(64);not null;index" json:"seller_id"`
	Total                decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total"`
	Currency             string          `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	PaymentMethod        string          `json:"payment_method"`
	PaymentTransactionID string          `json:"payment_transaction_id"`
	Status               string          `gorm:"not null;default:'paid'" json:"status"`
	TrackingNumber       string          `json:"tracking_number,omitempty"`
	TrackingStatus       TrackingStatus  `gorm:"type:varchar(16);default:'unknown'" json:"tracking_status"`
	DeliveredAt          *time.Time      `json:"delivered_at,omitempty"`
	RefundedAt           *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// DeliveryStatus is the tracking snapshot used by investigations.
type DeliveryStatus struct {
	Status      TrackingStatus `json:"status"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
}
