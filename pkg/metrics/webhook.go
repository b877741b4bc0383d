package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records outcomes of payment gateway webhook deliveries.
type WebhookMetrics struct {
	duration  *prometheus.HistogramVec
	processed *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	duplicate *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_duration_seconds",
		Help:    "Duration of webhook processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_processed",
		Help: "Webhook events applied to an order.",
	}, []string{"event"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_rejected",
		Help: "Webhook deliveries rejected before processing.",
	}, []string{"reason"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_duplicate",
		Help: "Webhook deliveries skipped as already applied.",
	}, []string{"event"})
	reg.MustRegister(duration, processed, rejected, duplicate)
	return &WebhookMetrics{
		duration:  duration,
		processed: processed,
		rejected:  rejected,
		duplicate: duplicate,
	}
}

// ObserveDuration records the processing time for the named event type.
func (w *WebhookMetrics) ObserveDuration(event string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(event)).Observe(duration.Seconds())
}

// IncProcessed increments the processed counter for the named event type.
func (w *WebhookMetrics) IncProcessed(event string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncRejected increments the rejected counter for the given reason.
func (w *WebhookMetrics) IncRejected(reason string) {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncDuplicate increments the duplicate counter for the named event type.
func (w *WebhookMetrics) IncDuplicate(event string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(event)).Inc()
}
