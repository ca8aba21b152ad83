package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CalendarMetrics exposes counters/histograms for the admin calendar.
type CalendarMetrics struct {
	fetchTotal    *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	fetchedEvents *prometheus.GaugeVec
	bookingTotal  *prometheus.CounterVec
	reminderTotal *prometheus.CounterVec
}

func NewCalendarMetrics(reg prometheus.Registerer) *CalendarMetrics {
	m := &CalendarMetrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admincal",
			Subsystem: "source",
			Name:      "fetch_total",
			Help:      "Total event source fetches",
		}, []string{"source", "status"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "admincal",
			Subsystem: "source",
			Name:      "fetch_latency_seconds",
			Help:      "Latency of event source fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		fetchedEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "admincal",
			Subsystem: "source",
			Name:      "events",
			Help:      "Events returned by the latest fetch",
		}, []string{"source"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admincal",
			Subsystem: "booking",
			Name:      "total",
			Help:      "Appointment creation attempts",
		}, []string{"path", "status"}),
		reminderTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admincal",
			Subsystem: "reminder",
			Name:      "total",
			Help:      "Reminder webhook deliveries",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.fetchTotal, m.fetchLatency, m.fetchedEvents, m.bookingTotal, m.reminderTotal)
	return m
}

// ObserveFetch records one fetch of source ("google" or "inquiry").
func (m *CalendarMetrics) ObserveFetch(source string, count int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchLatency.WithLabelValues(source).Observe(elapsed.Seconds())
	if err != nil {
		m.fetchTotal.WithLabelValues(source, "error").Inc()
		return
	}
	m.fetchTotal.WithLabelValues(source, "ok").Inc()
	m.fetchedEvents.WithLabelValues(source).Set(float64(count))
}

// ObserveBooking records an appointment attempt on path ("local" or "google").
func (m *CalendarMetrics) ObserveBooking(path, status string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(path, status).Inc()
}

// ObserveReminder records a reminder outcome: sent, failed or dropped.
func (m *CalendarMetrics) ObserveReminder(status string) {
	if m == nil {
		return
	}
	m.reminderTotal.WithLabelValues(status).Inc()
}
