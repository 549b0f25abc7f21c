package claim

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"
	"disputehub/internal/repositories"
	"disputehub/internal/services/investigation"

	"github.com/shopspring/decimal"
)

// memClaims is an in-memory ClaimRepository with the same version and
// conditional-write semantics as the gorm store.
type memClaims struct {
	mu   sync.Mutex
	rows map[string]models.Claim
	seq  uint
}

func newMemClaims() *memClaims {
	return &memClaims{rows: map[string]models.Claim{}}
}

func rowKey(tenant models.TenantID, claimID string) string {
	return fmt.Sprintf("%s/%s", tenant, claimID)
}

func cloneClaim(c models.Claim) models.Claim {
	out := c
	out.Evidence = append(c.Evidence[:0:0], c.Evidence...)
	out.AdminNotes = append(c.AdminNotes[:0:0], c.AdminNotes...)
	out.FraudIndicators = append(c.FraudIndicators[:0:0], c.FraudIndicators...)
	if c.SellerResponse != nil {
		sr := *c.SellerResponse
		out.SellerResponse = &sr
	}
	if c.Decision != nil {
		d := *c.Decision
		out.Decision = &d
	}
	if c.Appeal != nil {
		a := *c.Appeal
		out.Appeal = &a
	}
	return out
}

func (m *memClaims) put(c models.Claim) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	m.seq++
	c.ID = m.seq
	m.rows[rowKey(c.TenantID, c.ClaimID)] = cloneClaim(c)
}

func (m *memClaims) stored(tenant models.TenantID, claimID string) models.Claim {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneClaim(m.rows[rowKey(tenant, claimID)])
}

func (m *memClaims) Create(ctx context.Context, claim *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rowKey(claim.TenantID, claim.ClaimID)
	if _, ok := m.rows[k]; ok {
		return domainErrors.ErrDuplicateClaim
	}
	m.seq++
	claim.ID = m.seq
	claim.Version = 1
	m.rows[k] = cloneClaim(*claim)
	return nil
}

func (m *memClaims) Get(ctx context.Context, tenant models.TenantID, claimID string) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[rowKey(tenant, claimID)]
	if !ok {
		return nil, domainErrors.ErrClaimNotFound
	}
	out := cloneClaim(c)
	return &out, nil
}

func (m *memClaims) Update(ctx context.Context, claim *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rowKey(claim.TenantID, claim.ClaimID)
	current, ok := m.rows[k]
	if !ok || current.Version != claim.Version {
		return domainErrors.ErrStaleClaim
	}
	claim.Version++
	m.rows[k] = cloneClaim(*claim)
	return nil
}

func (m *memClaims) List(ctx context.Context, tenant models.TenantID, filter repositories.ClaimFilter) ([]models.Claim, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Claim
	for _, c := range m.rows {
		if c.TenantID != tenant ||
			(filter.Status != "" && c.Status != filter.Status) ||
			(filter.BuyerID != "" && c.BuyerID != filter.BuyerID) ||
			(filter.SellerID != "" && c.SellerID != filter.SellerID) {
			continue
		}
		out = append(out, cloneClaim(c))
	}
	return out, int64(len(out)), nil
}

func (m *memClaims) HasActiveForOrder(ctx context.Context, tenant models.TenantID, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.TenantID == tenant && c.OrderID == orderID && c.Status != models.ClaimStatusWithdrawn {
			return true, nil
		}
	}
	return false, nil
}

func isStale(c models.Claim, now time.Time) bool {
	return c.IsOverdue(now)
}

func (m *memClaims) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Claim
	for _, c := range m.rows {
		if isStale(c, now) && len(out) < limit {
			out = append(out, cloneClaim(c))
		}
	}
	return out, nil
}

func (m *memClaims) Escalate(ctx context.Context, tenant models.TenantID, claimID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rowKey(tenant, claimID)
	c, ok := m.rows[k]
	if !ok || !isStale(c, now) {
		return false, nil
	}
	c.Status = models.ClaimStatusEscalated
	if c.Priority != models.PriorityUrgent {
		c.Priority = models.PriorityHigh
	}
	c.EscalatedAt = &now
	c.Version++
	m.rows[k] = c
	return true, nil
}

func (m *memClaims) ListAutoResolvable(ctx context.Context, limit int) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Claim
	for _, c := range m.rows {
		if c.Status != models.ClaimStatusUnderReview || !c.IsAutoResolvable || c.SellerProposal != models.ProposalRefundFull {
			continue
		}
		if c.Decision != nil && c.Decision.Outcome != models.OutcomeNeedsMoreInfo {
			continue
		}
		if len(out) < limit {
			out = append(out, cloneClaim(c))
		}
	}
	return out, nil
}

func (m *memClaims) AddRefunded(ctx context.Context, tenant models.TenantID, claimID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rowKey(tenant, claimID)
	c, ok := m.rows[k]
	if !ok {
		return domainErrors.ErrClaimNotFound
	}
	total := c.RefundedAmount.Add(amount)
	if total.GreaterThan(c.OrderAmount) || total.GreaterThan(c.RequestedAmount) {
		return domainErrors.ErrRefundLimitExceeded
	}
	c.RefundedAmount = total
	c.Version++
	m.rows[k] = c
	return nil
}

func (m *memClaims) ListAwaitingRefund(ctx context.Context, before time.Time, limit int) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Claim
	for _, c := range m.rows {
		if c.Decision == nil || !c.Decision.Outcome.IsRefund() || c.ResolvedAt == nil || !c.ResolvedAt.Before(before) {
			continue
		}
		if len(out) < limit {
			out = append(out, cloneClaim(c))
		}
	}
	return out, nil
}

type published struct {
	topic string
	event Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, event: payload.(Event)})
	return p.err
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

type recordingRefunds struct {
	mu     sync.Mutex
	claims []string
	err    error
}

func (r *recordingRefunds) EnqueueRefund(ctx context.Context, claim *models.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims = append(r.claims, claim.ClaimID)
	return r.err
}

func (r *recordingRefunds) enqueued() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.claims...)
}

type investigatorFunc func(ctx context.Context, claim *models.Claim) (*investigation.Result, error)

func (f investigatorFunc) Investigate(ctx context.Context, claim *models.Claim) (*investigation.Result, error) {
	return f(ctx, claim)
}

// staticInvestigator always returns result.
func staticInvestigator(result investigation.Result) Investigator {
	return investigatorFunc(func(context.Context, *models.Claim) (*investigation.Result, error) {
		r := result
		return &r, nil
	})
}

var autoResolveResult = investigation.Result{
	FraudScore:         5,
	Confidence:         investigation.ConfidenceHigh,
	RecommendedOutcome: models.OutcomeRefundFull,
	Reasoning:          []string{"seller agreed to a full refund"},
}

type stubDelivery struct {
	status models.DeliveryStatus
}

func (s stubDelivery) GetDeliveryStatus(context.Context, models.TenantID, string) (*models.DeliveryStatus, error) {
	st := s.status
	return &st, nil
}

type stubStats struct {
	seller models.SellerStats
	buyer  models.BuyerStats
}

func (s stubStats) SellerStats(context.Context, models.TenantID, string) (*models.SellerStats, error) {
	st := s.seller
	return &st, nil
}

func (s stubStats) BuyerStats(context.Context, models.TenantID, string) (*models.BuyerStats, error) {
	st := s.buyer
	return &st, nil
}

func (s stubStats) RecentBuyerClaims(context.Context, models.TenantID, string, time.Time, int) ([]models.Claim, error) {
	return nil, nil
}
