package repositories

import (
	"context"
	"errors"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"

	"gorm.io/gorm"
)

// OrderRepository reads checkout orders and their tracking state.
type OrderRepository interface {
	GetOrder(ctx context.Context, tenant models.TenantID, orderID string) (*models.Order, error)
	GetDeliveryStatus(ctx context.Context, tenant models.TenantID, orderID string) (*models.DeliveryStatus, error)
	MarkRefunded(ctx context.Context, tenant models.TenantID, orderID string, at time.Time) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) GetOrder(ctx context.Context, tenant models.TenantID, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenant, orderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainErrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetDeliveryStatus(ctx context.Context, tenant models.TenantID, orderID string) (*models.DeliveryStatus, error) {
	order, err := r.GetOrder(ctx, tenant, orderID)
	if err != nil {
		return nil, err
	}
	status := order.TrackingStatus
	if status == "" {
		status = models.TrackingUnknown
	}
	return &models.DeliveryStatus{Status: status, DeliveredAt: order.DeliveredAt}, nil
}

// MarkRefunded is idempotent; an already refunded order is left as is.
func (r *orderRepository) MarkRefunded(ctx context.Context, tenant models.TenantID, orderID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("tenant_id = ? AND order_id = ? AND status <> ?", tenant, orderID, models.OrderStatusRefunded).
		Updates(map[string]interface{}{
			"status":      models.OrderStatusRefunded,
			"refunded_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetOrder(ctx, tenant, orderID); err != nil {
			return err
		}
	}
	return nil
}
