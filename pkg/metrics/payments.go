package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout attempts, payment verification results
// and fulfillment transitions.
type CheckoutMetrics struct {
	checkoutDuration *prometheus.HistogramVec
	checkouts        *prometheus.CounterVec
	verifications    *prometheus.CounterVec
	transitions      *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout submissions by payment method and result.",
	}, []string{"payment_method", "result"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verification_total",
		Help: "Gateway return verifications by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transition_total",
		Help: "Fulfillment transitions by target status.",
	}, []string{"to_status"})
	reg.MustRegister(checkoutDuration, checkouts, verifications, transitions)
	return &CheckoutMetrics{
		checkoutDuration: checkoutDuration,
		checkouts:        checkouts,
		verifications:    verifications,
		transitions:      transitions,
	}
}

// ObserveCheckout records one checkout submission.
func (m *CheckoutMetrics) ObserveCheckout(method, result string, duration time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkoutDuration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
	m.checkouts.WithLabelValues(normalizeLabel(method), normalizeLabel(result)).Inc()
}

// IncVerification counts one gateway return verification outcome.
func (m *CheckoutMetrics) IncVerification(outcome string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncTransition counts one fulfillment transition into the given status.
func (m *CheckoutMetrics) IncTransition(toStatus string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(toStatus)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
