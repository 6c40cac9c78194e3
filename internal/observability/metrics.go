package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the pipeline and HTTP collectors.
type Metrics struct {
	registry *prometheus.Registry

	messagesSeen      *prometheus.CounterVec
	ticketsCreated    *prometheus.CounterVec
	duplicatesSkipped *prometheus.CounterVec
	rejected          *prometheus.CounterVec
	messageFailures   *prometheus.CounterVec
	sweepDeletions    *prometheus.CounterVec
	repliesSent       *prometheus.CounterVec
	replyFailures     *prometheus.CounterVec
	labelsApplied     *prometheus.CounterVec
	labelsMissing     *prometheus.CounterVec
	runDuration       prometheus.Histogram
	requestCount      *prometheus.CounterVec
	errorCount        *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_messages_seen_total",
			Help: "Candidate messages listed per sector.",
		}, []string{"sector"}),
		ticketsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_tickets_created_total",
			Help: "Tickets written per sector.",
		}, []string{"sector"}),
		duplicatesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_duplicates_skipped_total",
			Help: "Messages skipped because the ticket number already exists.",
		}, []string{"sector"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_rejected_total",
			Help: "Messages whose ticket number normalized to empty.",
		}, []string{"sector"}),
		messageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_message_failures_total",
			Help: "Messages that failed during processing.",
		}, []string{"sector"}),
		sweepDeletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_sweep_deletions_total",
			Help: "Records removed by the cleanup sweeper.",
		}, []string{"sector", "reason"}),
		repliesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reply_sent_total",
			Help: "Threaded replies sent.",
		}, []string{"case"}),
		replyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reply_failures_total",
			Help: "Threaded replies that failed to send.",
		}, []string{"case"}),
		labelsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labels_applied_total",
			Help: "Provider labels attached.",
		}, []string{"label"}),
		labelsMissing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labels_missing_total",
			Help: "Label lookups that found nothing.",
		}, []string{"label"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Wall time of ingestion runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP errors by path, method and code.",
		}, []string{"path", "method", "code"}),
	}
	m.registry.MustRegister(
		m.messagesSeen, m.ticketsCreated, m.duplicatesSkipped, m.rejected,
		m.messageFailures, m.sweepDeletions, m.repliesSent, m.replyFailures,
		m.labelsApplied, m.labelsMissing, m.runDuration, m.requestCount, m.errorCount,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) MessagesSeen(sector string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.messagesSeen.WithLabelValues(sector).Add(float64(n))
}

func (m *Metrics) TicketCreated(sector string) {
	if m == nil {
		return
	}
	m.ticketsCreated.WithLabelValues(sector).Inc()
}

func (m *Metrics) DuplicateSkipped(sector string) {
	if m == nil {
		return
	}
	m.duplicatesSkipped.WithLabelValues(sector).Inc()
}

func (m *Metrics) Rejected(sector string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(sector).Inc()
}

func (m *Metrics) MessageFailed(sector string) {
	if m == nil {
		return
	}
	m.messageFailures.WithLabelValues(sector).Inc()
}

func (m *Metrics) SweepDeleted(sector, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepDeletions.WithLabelValues(sector, reason).Add(float64(n))
}

func (m *Metrics) ReplySent(caseType string) {
	if m == nil {
		return
	}
	m.repliesSent.WithLabelValues(caseType).Inc()
}

func (m *Metrics) ReplyFailed(caseType string) {
	if m == nil {
		return
	}
	m.replyFailures.WithLabelValues(caseType).Inc()
}

func (m *Metrics) LabelApplied(label string) {
	if m == nil {
		return
	}
	m.labelsApplied.WithLabelValues(label).Inc()
}

func (m *Metrics) LabelMissing(label string) {
	if m == nil {
		return
	}
	m.labelsMissing.WithLabelValues(label).Inc()
}

// ObserveRun records the duration of one ingestion run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}
