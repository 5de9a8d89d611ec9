package metrics

import "time"

// MessageAdmitted records an answered message on the free or paid path
func MessageAdmitted(path string, generation time.Duration) {
	MessagesProcessed.WithLabelValues(path, "admitted").Inc()
	AnswerGenerationDuration.Observe(generation.Seconds())
}

// MessageDenied records a message refused by quota
func MessageDenied(path string) {
	MessagesProcessed.WithLabelValues(path, "denied").Inc()
	QuotaExceeded.WithLabelValues(path).Inc()
}

// MessageFailed records a message that was admitted but could not be answered
func MessageFailed(path string) {
	MessagesProcessed.WithLabelValues(path, "failed").Inc()
}

// SubscriptionCreated records a new subscription
func SubscriptionCreated(tier, billingCycle string) {
	SubscriptionsCreated.WithLabelValues(tier, billingCycle).Inc()
}

// SubscriptionCanceled records a cancellation
func SubscriptionCanceled() {
	SubscriptionsCanceled.Inc()
}

// UsageReset records usage records zeroed by the lazy or bulk reset
func UsageReset(mode string, count int64) {
	if count <= 0 {
		return
	}
	UsageRecordsReset.WithLabelValues(mode).Add(float64(count))
}
