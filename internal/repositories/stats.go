package repositories

import (
	"context"
	"errors"
	"time"

	"disputehub/internal/models"
	"disputehub/internal/repositories/cache"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StatsRepository serves the buyer and seller aggregates used by investigations.
type StatsRepository interface {
	SellerStats(ctx context.Context, tenant models.TenantID, sellerID string) (*models.SellerStats, error)
	BuyerStats(ctx context.Context, tenant models.TenantID, buyerID string) (*models.BuyerStats, error)
	RecentBuyerClaims(ctx context.Context, tenant models.TenantID, buyerID string, since time.Time, limit int) ([]models.Claim, error)
}

type statsRepository struct {
	db    *gorm.DB
	cache *cache.CacheService
	ttl   time.Duration
	log   *zap.Logger
}

// NewStatsRepository returns a stats repository. When cacheService is non-nil
// the seller and buyer aggregates are cached for ttl; cache failures fall
// through to the database.
func NewStatsRepository(db *gorm.DB, cacheService *cache.CacheService, ttl time.Duration, log *zap.Logger) StatsRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &statsRepository{db: db, cache: cacheService, ttl: ttl, log: log}
}

func (r *statsRepository) SellerStats(ctx context.Context, tenant models.TenantID, sellerID string) (*models.SellerStats, error) {
	key := cache.GenerateKey("seller_stats", tenant.String(), sellerID)
	var stats models.SellerStats
	if r.fromCache(ctx, key, &stats) {
		return &stats, nil
	}

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Order{}).
		Where("tenant_id = ? AND seller_id = ?", tenant, sellerID).
		Count(&stats.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Claim{}).
		Where("tenant_id = ? AND seller_id = ?", tenant, sellerID).
		Count(&stats.TotalClaims).Error; err != nil {
		return nil, err
	}

	var profile models.SellerProfile
	err := db.Where("tenant_id = ? AND seller_id = ?", tenant, sellerID).First(&profile).Error
	switch {
	case err == nil:
		stats.Rating = profile.Rating
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	r.toCache(ctx, key, stats)
	return &stats, nil
}

func (r *statsRepository) BuyerStats(ctx context.Context, tenant models.TenantID, buyerID string) (*models.BuyerStats, error) {
	key := cache.GenerateKey("buyer_stats", tenant.String(), buyerID)
	var stats models.BuyerStats
	if r.fromCache(ctx, key, &stats) {
		return &stats, nil
	}

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Order{}).
		Where("tenant_id = ? AND buyer_id = ?", tenant, buyerID).
		Count(&stats.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Claim{}).
		Where("tenant_id = ? AND buyer_id = ?", tenant, buyerID).
		Count(&stats.TotalClaims).Error; err != nil {
		return nil, err
	}

	r.toCache(ctx, key, stats)
	return &stats, nil
}

func (r *statsRepository) RecentBuyerClaims(ctx context.Context, tenant models.TenantID, buyerID string, since time.Time, limit int) ([]models.Claim, error) {
	var claims []models.Claim
	err := r.db.WithContext(ctx).
		Select("tenant_id", "claim_id", "order_id", "type", "status", "filed_at").
		Where("tenant_id = ? AND buyer_id = ? AND filed_at >= ?", tenant, buyerID, since).
		Order("filed_at DESC").
		Limit(limit).
		Find(&claims).Error
	return claims, err
}

func (r *statsRepository) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if r.cache == nil {
		return false
	}
	found, err := r.cache.Get(ctx, key, dest)
	if err != nil {
		r.log.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (r *statsRepository) toCache(ctx context.Context, key string, value interface{}) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetWithTTL(ctx, key, value, r.ttl); err != nil {
		r.log.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}
