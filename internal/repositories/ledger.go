package repositories

import (
	"context"

	"disputehub/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository applies seller balance movements.
type LedgerRepository interface {
	// DeductRefund appends the deduction entry and decrements the seller
	// balance in one transaction. It reports false when the refund was
	// already deducted.
	DeductRefund(ctx context.Context, refund *models.Refund) (bool, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) DeductRefund(ctx context.Context, refund *models.Refund) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := models.SellerLedgerEntry{
			TenantID:  refund.TenantID,
			SellerID:  refund.SellerID,
			Reference: refund.RefundID,
			Type:      models.LedgerEntryRefundDeduction,
			Amount:    refund.Amount.Neg(),
			Currency:  refund.Currency,
			ClaimID:   refund.ClaimID,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}},
			DoNothing: true,
		}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		balance := models.SellerBalance{
			TenantID: refund.TenantID,
			SellerID: refund.SellerID,
			Balance:  refund.Amount.Neg(),
			Currency: refund.Currency,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "seller_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance":    gorm.Expr("seller_balances.balance + EXCLUDED.balance"),
				"updated_at": gorm.Expr("EXCLUDED.updated_at"),
			}),
		}).Create(&balance).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
