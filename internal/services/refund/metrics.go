package refund

import (
	"time"

	"disputehub/internal/models"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordGatewayCall(string, time.Duration, string) {}
func (n *NoopMetricsCollector) RecordOutcome(models.RefundStatus)               {}
func (n *NoopMetricsCollector) RecordError(string, string)                      {}
