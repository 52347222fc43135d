package feedback

import (
	"context"

	"github.com/rushteam/shoprec/metrics"
)

// MetricsCollector 把事件计入 Prometheus（shoprec_feedback_events_total）。
type MetricsCollector struct{}

func (MetricsCollector) RecordClick(_ context.Context, _, _, algorithm string) {
	metrics.FeedbackEvents.WithLabelValues(string(EventClick), orUnknown(algorithm)).Inc()
}

func (MetricsCollector) RecordPurchase(_ context.Context, _, _, algorithm string) {
	metrics.FeedbackEvents.WithLabelValues(string(EventPurchase), orUnknown(algorithm)).Inc()
}

func (MetricsCollector) Close() error { return nil }

func orUnknown(algorithm string) string {
	if algorithm == "" {
		return "unknown"
	}
	return algorithm
}
