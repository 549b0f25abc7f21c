package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SellerProfile struct {
	ID          uint     `gorm:"primarykey"`
	TenantID    TenantID `gorm:"type:varchar(64);not null;uniqueIndex:idx_seller_profiles_tenant_seller"`
	SellerID    string   `gorm:"type:varchar(64);not null;uniqueIndex:idx_seller_profiles_tenant_seller"`
	Rating      float64  `gorm:"default:0"`
	RatingCount int      `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SellerBalance is updated only through atomic increments.
type SellerBalance struct {
	ID        uint            `gorm:"primarykey"`
	TenantID  TenantID        `gorm:"type:varchar(64);not null;uniqueIndex:idx_seller_balances_tenant_seller"`
	SellerID  string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_seller_balances_tenant_seller"`
	Balance   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	Currency  string          `gorm:"type:varchar(3);default:'USD'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ledger entry types
const (
	LedgerEntryRefundDeduction = "refund_deduction"
)

// SellerLedgerEntry records one balance movement. Reference is unique so a
// deduction for the same refund is applied once.
type SellerLedgerEntry struct {
	ID        uint            `gorm:"primarykey"`
	TenantID  TenantID        `gorm:"type:varchar(64);not null;index:idx_seller_ledger_tenant_seller"`
	SellerID  string          `gorm:"type:varchar(64);not null;index:idx_seller_ledger_tenant_seller"`
	Reference string          `gorm:"type:varchar(64);not null;uniqueIndex"`
	Type      string          `gorm:"type:varchar(32);not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency  string          `gorm:"type:varchar(3);default:'USD'"`
	ClaimID   string          `gorm:"type:varchar(64)"`
	CreatedAt time.Time
}
