package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymbook",
			Name:      "bookings_total",
			Help:      "Booking lifecycle operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	checkins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymbook",
			Name:      "checkins_total",
			Help:      "Check-in attempts by outcome.",
		},
		[]string{"outcome"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymbook",
			Name:      "notifications_total",
			Help:      "Notification dispatch results.",
		},
		[]string{"result"},
	)

	otpThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymbook",
			Name:      "otp_throttled_total",
			Help:      "OTP requests rejected by the rate limiter.",
		},
		[]string{"reason"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gymbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookings, checkins, notifications, otpThrottled, httpRequests)
	})
}

// IncBooking counts a lifecycle operation result, e.g. ("create", "ok").
func IncBooking(operation, outcome string) {
	bookings.WithLabelValues(operation, outcome).Inc()
}

// IncCheckIn counts a check-in attempt result.
func IncCheckIn(outcome string) {
	checkins.WithLabelValues(outcome).Inc()
}

// IncNotification counts a dispatch result: sent, failed or skipped.
func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// IncOTPThrottled counts a rejected OTP request: too_soon or too_many.
func IncOTPThrottled(reason string) {
	otpThrottled.WithLabelValues(reason).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
