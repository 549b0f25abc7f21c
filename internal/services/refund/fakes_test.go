package refund

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	domainErrors "disputehub/internal/errors"
	"disputehub/internal/models"
	"disputehub/internal/repositories"
	"disputehub/internal/services/gateway"

	"github.com/shopspring/decimal"
)

// memRefunds mirrors the conditional writes of the gorm refund store.
type memRefunds struct {
	mu   sync.Mutex
	rows map[string]models.Refund
	now  func() time.Time
	seq  uint
}

func newMemRefunds(now func() time.Time) *memRefunds {
	return &memRefunds{rows: map[string]models.Refund{}, now: now}
}

func refundKey(tenant models.TenantID, claimID string) string {
	return fmt.Sprintf("%s/%s", tenant, claimID)
}

func (m *memRefunds) put(r models.Refund) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.ID = m.seq
	m.rows[refundKey(r.TenantID, r.ClaimID)] = r
}

func (m *memRefunds) byID(tenant models.TenantID, refundID string) (string, models.Refund, bool) {
	for k, r := range m.rows {
		if r.TenantID == tenant && r.RefundID == refundID {
			return k, r, true
		}
	}
	return "", models.Refund{}, false
}

func (m *memRefunds) FindOrCreate(ctx context.Context, refund *models.Refund) (*models.Refund, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := refundKey(refund.TenantID, refund.ClaimID)
	if existing, ok := m.rows[k]; ok {
		return &existing, false, nil
	}
	m.seq++
	refund.ID = m.seq
	refund.CreatedAt = m.now()
	refund.UpdatedAt = refund.CreatedAt
	m.rows[k] = *refund
	return refund, true, nil
}

func (m *memRefunds) Get(ctx context.Context, tenant models.TenantID, refundID string) (*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, r, ok := m.byID(tenant, refundID)
	if !ok {
		return nil, domainErrors.ErrRefundNotFound
	}
	return &r, nil
}

func (m *memRefunds) GetByClaim(ctx context.Context, tenant models.TenantID, claimID string) (*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[refundKey(tenant, claimID)]
	if !ok {
		return nil, domainErrors.ErrRefundNotFound
	}
	return &r, nil
}

func (m *memRefunds) AcquireLock(ctx context.Context, tenant models.TenantID, refundID string, now time.Time, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, r, ok := m.byID(tenant, refundID)
	if !ok || r.IsTerminal() {
		return false, nil
	}
	if r.ProcessingLockedAt != nil && !r.ProcessingLockedAt.Before(now.Add(-ttl)) {
		return false, nil
	}
	r.Status = models.RefundStatusProcessing
	r.ProcessingLockedAt = &now
	r.UpdatedAt = m.now()
	m.rows[k] = r
	return true, nil
}

func (m *memRefunds) ReleaseLock(ctx context.Context, tenant models.TenantID, refundID string, lockedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, r, ok := m.byID(tenant, refundID)
	if ok && r.ProcessingLockedAt != nil && r.ProcessingLockedAt.Equal(lockedAt) {
		r.ProcessingLockedAt = nil
		m.rows[k] = r
	}
	return nil
}

func (m *memRefunds) Transition(ctx context.Context, tenant models.TenantID, refundID string, from []models.RefundStatus, update repositories.RefundUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, r, ok := m.byID(tenant, refundID)
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if r.Status == status {
			update.Apply(&r)
			r.UpdatedAt = m.now()
			m.rows[k] = r
			return true, nil
		}
	}
	return false, nil
}

func (m *memRefunds) ListStalled(ctx context.Context, before time.Time, limit int) ([]models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Refund
	for _, r := range m.rows {
		if r.IsTerminal() || !r.UpdatedAt.Before(before) {
			continue
		}
		if r.ProcessingLockedAt != nil && !r.ProcessingLockedAt.Before(before) {
			continue
		}
		last := r.UpdatedAt
		if wake := r.NextWakeUp(); wake != nil {
			last = *wake
		}
		if last.Before(before) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

type memOrders struct {
	mu       sync.Mutex
	orders   map[string]models.Order
	refunded []string
}

func (m *memOrders) GetOrder(ctx context.Context, tenant models.TenantID, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.TenantID != tenant {
		return nil, domainErrors.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memOrders) GetDeliveryStatus(ctx context.Context, tenant models.TenantID, orderID string) (*models.DeliveryStatus, error) {
	o, err := m.GetOrder(ctx, tenant, orderID)
	if err != nil {
		return nil, err
	}
	return &models.DeliveryStatus{Status: o.TrackingStatus, DeliveredAt: o.DeliveredAt}, nil
}

func (m *memOrders) MarkRefunded(ctx context.Context, tenant models.TenantID, orderID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunded = append(m.refunded, orderID)
	return nil
}

type memLedger struct {
	mu       sync.Mutex
	deducted map[string]decimal.Decimal
}

func (m *memLedger) DeductRefund(ctx context.Context, refund *models.Refund) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deducted[refund.RefundID]; ok {
		return false, nil
	}
	m.deducted[refund.RefundID] = refund.Amount
	return true, nil
}

// memClaims serves claims and records refunded amounts. refunds, when set,
// is consulted for claims that already have a refund row.
type memClaims struct {
	mu       sync.Mutex
	claims   map[string]models.Claim
	recorded []decimal.Decimal
	refunds  *memRefunds
}

func (m *memClaims) Get(ctx context.Context, tenant models.TenantID, claimID string) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[claimID]
	if !ok || c.TenantID != tenant {
		return nil, domainErrors.ErrClaimNotFound
	}
	return &c, nil
}

func (m *memClaims) ListAwaitingRefund(ctx context.Context, before time.Time, limit int) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Claim
	for _, c := range m.claims {
		if c.Decision == nil || !c.Decision.Outcome.IsRefund() || c.ResolvedAt == nil || !c.ResolvedAt.Before(before) {
			continue
		}
		if m.refunds != nil {
			if _, err := m.refunds.GetByClaim(ctx, c.TenantID, c.ClaimID); err == nil {
				continue
			}
		}
		if len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memClaims) RecordRefund(ctx context.Context, tenant models.TenantID, claimID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, amount)
	return nil
}

type reply struct {
	result *gateway.Result
	err    error
}

func approved(id string) reply {
	return reply{result: &gateway.Result{TransactionID: id, Status: gateway.StatusApproved}}
}

func pending(id string) reply {
	return reply{result: &gateway.Result{TransactionID: id, Status: gateway.StatusPending}}
}

func declined(msg string) reply {
	return reply{result: &gateway.Result{Status: gateway.StatusDeclined, Message: msg}}
}

// fakeGateway replays scripted replies in order; the last one repeats.
type fakeGateway struct {
	mu       sync.Mutex
	refunds  []reply
	queries  []reply
	requests []gateway.RefundRequest
	queried  int
}

func next(replies *[]reply) reply {
	r := (*replies)[0]
	if len(*replies) > 1 {
		*replies = (*replies)[1:]
	}
	return r
}

func (g *fakeGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Result, error) {
	return nil, fmt.Errorf("not supported")
}

func (g *fakeGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	r := next(&g.refunds)
	return r.result, r.err
}

func (g *fakeGateway) QueryRefundStatus(ctx context.Context, transactionID string) (*gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queried++
	r := next(&g.queries)
	return r.result, r.err
}

func (g *fakeGateway) refundCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func (g *fakeGateway) keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.requests))
	for _, r := range g.requests {
		out = append(out, r.IdempotencyKey)
	}
	return out
}

type scheduled struct {
	delay   time.Duration
	id      string
	job     Job
	payload []byte
}

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []scheduled
	err  error
}

func (r *recordingScheduler) Schedule(ctx context.Context, delay time.Duration, jobID string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return domainErrors.ErrSchedulingUnavailable.Wrap(r.err)
	}
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return err
	}
	r.jobs = append(r.jobs, scheduled{delay: delay, id: jobID, job: job, payload: payload})
	return nil
}

// take returns and clears the scheduled jobs.
func (r *recordingScheduler) take() []scheduled {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.jobs
	r.jobs = nil
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload.(Event))
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}
