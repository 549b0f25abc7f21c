package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	domainErrors "disputehub/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

// StripeGateway implements Gateway on the Stripe charges and refunds APIs.
type StripeGateway struct {
	api *client.API
	log *zap.Logger
}

func NewStripeGateway(secretKey string, timeout time.Duration, log *zap.Logger) *StripeGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := &http.Client{Timeout: timeout}
	return &StripeGateway{
		api: client.New(secretKey, stripe.NewBackends(httpClient)),
		log: log.Named("stripe"),
	}
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*Result, error) {
	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(minorUnits(req.Amount, req.Currency)),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	if err := params.SetSource(req.Source); err != nil {
		return nil, domainErrors.Validation("INVALID_PAYMENT_SOURCE", "invalid payment source").Wrap(err)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	ch, err := g.api.Charges.New(params)
	if err != nil {
		return g.fromError("charge", err)
	}

	status := StatusPending
	switch string(ch.Status) {
	case "succeeded":
		status = StatusApproved
	case "failed":
		status = StatusDeclined
	}
	return &Result{
		TransactionID: ch.ID,
		Status:        status,
		Message:       ch.FailureMessage,
		Raw:           raw(ch),
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*Result, error) {
	params := &stripe.RefundParams{
		Amount: stripe.Int64(minorUnits(req.Amount, req.Currency)),
	}
	params.Context = ctx
	// Card payments made through payment intents are refunded via the intent.
	if strings.HasPrefix(req.PaymentTransactionID, "pi_") {
		params.PaymentIntent = stripe.String(req.PaymentTransactionID)
	} else {
		params.Charge = stripe.String(req.PaymentTransactionID)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return g.fromError("refund", err)
	}
	return refundResult(r), nil
}

func (g *StripeGateway) QueryRefundStatus(ctx context.Context, transactionID string) (*Result, error) {
	params := &stripe.RefundParams{}
	params.Context = ctx
	r, err := g.api.Refunds.Get(transactionID, params)
	if err != nil {
		return g.fromError("refund status", err)
	}
	return refundResult(r), nil
}

func refundResult(r *stripe.Refund) *Result {
	res := &Result{
		TransactionID: r.ID,
		Status:        mapRefundStatus(r.Status),
		Raw:           raw(r),
	}
	if r.FailureReason != "" {
		res.Message = string(r.FailureReason)
	}
	return res
}

// mapRefundStatus folds Stripe refund statuses into Status. Anything not yet
// final is pending.
func mapRefundStatus(s stripe.RefundStatus) Status {
	switch s {
	case stripe.RefundStatusSucceeded:
		return StatusApproved
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return StatusDeclined
	}
	return StatusPending
}

// fromError turns a client-side rejection into a declined result and
// everything else into a transient error.
func (g *StripeGateway) fromError(op string, err error) (*Result, error) {
	var se *stripe.Error
	if errors.As(err, &se) && isRejection(se.HTTPStatusCode) {
		g.log.Warn("stripe rejected request",
			zap.String("op", op),
			zap.Int("status", se.HTTPStatusCode),
			zap.String("code", string(se.Code)),
			zap.String("message", se.Msg))
		return &Result{Status: StatusDeclined, Message: se.Msg}, nil
	}
	g.log.Error("stripe request failed", zap.String("op", op), zap.Error(err))
	return nil, domainErrors.ErrGatewayUnavailable.WithMessage("stripe %s failed", op).Wrap(err)
}

func isRejection(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusConflict
}

// Stripe amounts are integers in the currency's smallest unit.
var (
	zeroDecimal = map[string]bool{
		"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
		"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
		"VND": true, "VUV": true, "XAF": true, "XOF": true, "XPF": true,
	}
	threeDecimal = map[string]bool{
		"BHD": true, "JOD": true, "KWD": true, "OMR": true, "TND": true,
	}
)

func minorUnits(amount decimal.Decimal, currency string) int64 {
	code := strings.ToUpper(currency)
	switch {
	case zeroDecimal[code]:
		return amount.Round(0).IntPart()
	case threeDecimal[code]:
		// The last digit must be zero.
		return amount.Round(2).Shift(3).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func raw(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
