package investigation

import (
	"context"
	"fmt"
	"time"

	"disputehub/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		FraudThreshold:     60,
		HighValueThreshold: decimal.NewFromInt(500),
		RecentClaimsWindow: 30 * 24 * time.Hour,
		RecentClaimsLimit:  20,
		RepeatedClaimsMin:  3,
		LateReportingDays:  14,
		PoorHistoryClaims:  10,
		PoorHistoryRate:    0.15,
		HighBuyerClaimRate: 0.20,
		GoodSellerRate:     0.05,
		GoodSellerRating:   4.0,
	}
}

type Engine struct {
	delivery DeliveryProvider
	stats    StatsProvider
	config   Config
	log      *zap.Logger
	now      func() time.Time
}

func NewEngine(delivery DeliveryProvider, stats StatsProvider, config Config, log *zap.Logger) *Engine {
	if delivery == nil {
		panic("delivery provider is required")
	}
	if stats == nil {
		panic("stats provider is required")
	}

	defaults := DefaultConfig()
	if config.FraudThreshold == 0 {
		config.FraudThreshold = defaults.FraudThreshold
	}
	if config.HighValueThreshold.IsZero() {
		config.HighValueThreshold = defaults.HighValueThreshold
	}
	if config.RecentClaimsWindow == 0 {
		config.RecentClaimsWindow = defaults.RecentClaimsWindow
	}
	if config.RecentClaimsLimit == 0 {
		config.RecentClaimsLimit = defaults.RecentClaimsLimit
	}
	if config.RepeatedClaimsMin == 0 {
		config.RepeatedClaimsMin = defaults.RepeatedClaimsMin
	}
	if config.LateReportingDays == 0 {
		config.LateReportingDays = defaults.LateReportingDays
	}
	if config.PoorHistoryClaims == 0 {
		config.PoorHistoryClaims = defaults.PoorHistoryClaims
	}
	if config.PoorHistoryRate == 0 {
		config.PoorHistoryRate = defaults.PoorHistoryRate
	}
	if config.HighBuyerClaimRate == 0 {
		config.HighBuyerClaimRate = defaults.HighBuyerClaimRate
	}
	if config.GoodSellerRate == 0 {
		config.GoodSellerRate = defaults.GoodSellerRate
	}
	if config.GoodSellerRating == 0 {
		config.GoodSellerRating = defaults.GoodSellerRating
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		delivery: delivery,
		stats:    stats,
		config:   config,
		log:      log,
		now:      time.Now,
	}
}

// signals is the external state snapshot an investigation works from.
type signals struct {
	delivery     *models.DeliveryStatus
	seller       models.SellerStats
	buyer        models.BuyerStats
	recentClaims []models.Claim
}

// Investigate computes a recommendation for claim. It reads external state
// but writes nothing.
func (e *Engine) Investigate(ctx context.Context, claim *models.Claim) (*Result, error) {
	sig, err := e.gather(ctx, claim)
	if err != nil {
		return nil, fmt.Errorf("gather signals for claim %s: %w", claim.ClaimID, err)
	}

	result := &Result{
		Delivery:     sig.delivery,
		SellerStats:  sig.seller,
		BuyerStats:   sig.buyer,
		RecentClaims: otherClaims(sig.recentClaims, claim.ClaimID),
	}

	e.scoreFraud(claim, sig, result)
	result.EvidenceQuality = gradeEvidence(claim.Evidence)

	verdict := decide(claim, sig.delivery, result.EvidenceQuality)
	result.RecommendedOutcome = verdict.outcome
	result.Confidence = verdict.confidence
	result.Reasoning = append(result.Reasoning, verdict.reasons...)

	result.RequiresManualReview = e.requiresManualReview(claim, sig, verdict.forceReview, result)

	e.log.Debug("claim investigated",
		zap.String("tenant_id", claim.TenantID.String()),
		zap.String("claim_id", claim.ClaimID),
		zap.Int("fraud_score", result.FraudScore),
		zap.String("outcome", string(result.RecommendedOutcome)),
		zap.String("confidence", string(result.Confidence)),
		zap.Bool("manual_review", result.RequiresManualReview))

	return result, nil
}

func (e *Engine) gather(ctx context.Context, claim *models.Claim) (*signals, error) {
	var sig signals
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		status, err := e.delivery.GetDeliveryStatus(gctx, claim.TenantID, claim.OrderID)
		if err != nil {
			return fmt.Errorf("delivery status: %w", err)
		}
		sig.delivery = status
		return nil
	})
	g.Go(func() error {
		stats, err := e.stats.SellerStats(gctx, claim.TenantID, claim.SellerID)
		if err != nil {
			return fmt.Errorf("seller stats: %w", err)
		}
		sig.seller = *stats
		return nil
	})
	g.Go(func() error {
		stats, err := e.stats.BuyerStats(gctx, claim.TenantID, claim.BuyerID)
		if err != nil {
			return fmt.Errorf("buyer stats: %w", err)
		}
		sig.buyer = *stats
		return nil
	})
	g.Go(func() error {
		since := e.now().Add(-e.config.RecentClaimsWindow)
		claims, err := e.stats.RecentBuyerClaims(gctx, claim.TenantID, claim.BuyerID, since, e.config.RecentClaimsLimit)
		if err != nil {
			return fmt.Errorf("recent claims: %w", err)
		}
		sig.recentClaims = claims
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if sig.delivery == nil {
		sig.delivery = &models.DeliveryStatus{Status: models.TrackingUnknown}
	}
	return &sig, nil
}

func (e *Engine) scoreFraud(claim *models.Claim, sig *signals, result *Result) {
	flag := func(i Indicator, reason string) {
		result.Indicators = append(result.Indicators, i)
		result.FraudScore += i.Weight()
		result.Reasoning = append(result.Reasoning, reason)
	}

	if n := result.RecentClaims; n >= e.config.RepeatedClaimsMin {
		flag(IndicatorRepeatedClaims, fmt.Sprintf("buyer filed %d other claims in the last %d days",
			n, int(e.config.RecentClaimsWindow.Hours()/24)))
	}

	prior, rate := priorBuyerClaims(claim, sig.buyer)
	if prior > e.config.PoorHistoryClaims && rate > e.config.PoorHistoryRate {
		flag(IndicatorPoorBuyerHistory, fmt.Sprintf("buyer has %d prior claims (%.0f%% of orders)", prior, rate*100))
	}

	if claim.Type == models.ClaimTypeItemNotReceived && sig.delivery.Status == models.TrackingDelivered {
		flag(IndicatorTrackingDelivered, "tracking shows the order as delivered")
	}

	if sig.delivery.DeliveredAt != nil {
		lateAfter := time.Duration(e.config.LateReportingDays) * 24 * time.Hour
		if claim.FiledAt.Sub(*sig.delivery.DeliveredAt) > lateAfter {
			flag(IndicatorLateReporting, fmt.Sprintf("claim filed more than %d days after delivery", e.config.LateReportingDays))
		}
	}

	if claim.Type == models.ClaimTypeItemNotReceived && hasMedia(claim.Evidence, models.MediaPhoto, models.RoleBuyer) {
		flag(IndicatorInconsistentEvidence, "buyer uploaded product photos while reporting non-delivery")
	}

	if sig.seller.TotalOrders > 0 && sig.seller.ClaimRate() < e.config.GoodSellerRate && sig.seller.Rating >= e.config.GoodSellerRating {
		flag(IndicatorGoodSellerHistory, fmt.Sprintf("seller has a %.1f rating and a %.1f%% claim rate",
			sig.seller.Rating, sig.seller.ClaimRate()*100))
	}

	if len(claim.Evidence) >= 3 {
		flag(IndicatorStrongEvidence, fmt.Sprintf("claim carries %d evidence items", len(claim.Evidence)))
	}

	if result.FraudScore < 0 {
		result.FraudScore = 0
	}
	if result.FraudScore > 100 {
		result.FraudScore = 100
	}
}

func (e *Engine) requiresManualReview(claim *models.Claim, sig *signals, forced bool, result *Result) bool {
	review := forced
	if result.FraudScore >= e.config.FraudThreshold {
		result.Reasoning = append(result.Reasoning, fmt.Sprintf("fraud score %d is at or above %d", result.FraudScore, e.config.FraudThreshold))
		review = true
	}
	if claim.OrderAmount.GreaterThan(e.config.HighValueThreshold) {
		result.Reasoning = append(result.Reasoning, "order value exceeds the high-value threshold")
		review = true
	}
	if claim.Type == models.ClaimTypeCounterfeit {
		result.Reasoning = append(result.Reasoning, "counterfeit claims always need a human review")
		review = true
	}
	if _, rate := priorBuyerClaims(claim, sig.buyer); rate > e.config.HighBuyerClaimRate {
		result.Reasoning = append(result.Reasoning, fmt.Sprintf("buyer claim rate %.0f%% exceeds %.0f%%", rate*100, e.config.HighBuyerClaimRate*100))
		review = true
	}
	if claim.IsFraudulent {
		result.Reasoning = append(result.Reasoning, "claim was flagged as fraudulent")
		review = true
	}
	return review
}

// priorBuyerClaims excludes the claim under investigation from the buyer's
// history.
func priorBuyerClaims(claim *models.Claim, stats models.BuyerStats) (int64, float64) {
	prior := stats.TotalClaims
	if claim.ID != 0 && prior > 0 {
		prior--
	}
	if stats.TotalOrders == 0 {
		return prior, 0
	}
	return prior, float64(prior) / float64(stats.TotalOrders)
}

func otherClaims(claims []models.Claim, claimID string) int {
	n := 0
	for _, c := range claims {
		if c.ClaimID != claimID {
			n++
		}
	}
	return n
}
