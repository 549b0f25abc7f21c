package investigation

import (
	"context"
	"time"

	"disputehub/internal/models"

	"github.com/shopspring/decimal"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type EvidenceQuality string

const (
	EvidencePoor      EvidenceQuality = "poor"
	EvidenceFair      EvidenceQuality = "fair"
	EvidenceGood      EvidenceQuality = "good"
	EvidenceExcellent EvidenceQuality = "excellent"
)

func (q EvidenceQuality) atLeast(other EvidenceQuality) bool {
	return q.rank() >= other.rank()
}

func (q EvidenceQuality) rank() int {
	switch q {
	case EvidenceFair:
		return 1
	case EvidenceGood:
		return 2
	case EvidenceExcellent:
		return 3
	}
	return 0
}

// Indicator is a named fraud signal with a fixed score weight.
type Indicator string

const (
	IndicatorRepeatedClaims       Indicator = "repeated_claims_in_window"
	IndicatorPoorBuyerHistory     Indicator = "buyer_history_poor"
	IndicatorTrackingDelivered    Indicator = "tracking_shows_delivered"
	IndicatorLateReporting        Indicator = "late_reporting"
	IndicatorInconsistentEvidence Indicator = "inconsistent_evidence"
	IndicatorGoodSellerHistory    Indicator = "seller_history_good"
	IndicatorStrongEvidence       Indicator = "strong_evidence"
)

var indicatorWeights = map[Indicator]int{
	IndicatorRepeatedClaims:       30,
	IndicatorPoorBuyerHistory:     25,
	IndicatorTrackingDelivered:    20,
	IndicatorLateReporting:        15,
	IndicatorInconsistentEvidence: 10,
	IndicatorGoodSellerHistory:    -15,
	IndicatorStrongEvidence:       -10,
}

// Weight returns the score contribution of the indicator.
func (i Indicator) Weight() int { return indicatorWeights[i] }

// Result is a recommendation for one claim at one point in time. It is
// recomputed on every call and never persisted.
type Result struct {
	FraudScore           int                    `json:"fraud_score"`
	Indicators           []Indicator            `json:"indicators"`
	Confidence           Confidence             `json:"confidence"`
	EvidenceQuality      EvidenceQuality        `json:"evidence_quality"`
	RequiresManualReview bool                   `json:"requires_manual_review"`
	RecommendedOutcome   models.Outcome         `json:"recommended_outcome"`
	Reasoning            []string               `json:"reasoning"`
	Delivery             *models.DeliveryStatus `json:"delivery"`
	SellerStats          models.SellerStats     `json:"seller_stats"`
	BuyerStats           models.BuyerStats      `json:"buyer_stats"`
	RecentClaims         int                    `json:"recent_claims"`
}

// IndicatorNames returns the triggered indicators as strings.
func (r *Result) IndicatorNames() []string {
	names := make([]string, 0, len(r.Indicators))
	for _, i := range r.Indicators {
		names = append(names, string(i))
	}
	return names
}

// Config holds the engine thresholds.
type Config struct {
	FraudThreshold     int
	HighValueThreshold decimal.Decimal
	RecentClaimsWindow time.Duration
	RecentClaimsLimit  int
	RepeatedClaimsMin  int
	LateReportingDays  int
	PoorHistoryClaims  int64
	PoorHistoryRate    float64
	HighBuyerClaimRate float64
	GoodSellerRate     float64
	GoodSellerRating   float64
}

// DeliveryProvider reads tracking state for an order.
type DeliveryProvider interface {
	GetDeliveryStatus(ctx context.Context, tenant models.TenantID, orderID string) (*models.DeliveryStatus, error)
}

// StatsProvider serves buyer and seller aggregates. Buyer claim counts
// include the claim under investigation.
type StatsProvider interface {
	SellerStats(ctx context.Context, tenant models.TenantID, sellerID string) (*models.SellerStats, error)
	BuyerStats(ctx context.Context, tenant models.TenantID, buyerID string) (*models.BuyerStats, error)
	RecentBuyerClaims(ctx context.Context, tenant models.TenantID, buyerID string, since time.Time, limit int) ([]models.Claim, error)
}
