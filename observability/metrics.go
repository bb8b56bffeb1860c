package observability

import (
	"sync"

	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Herald, backed by any go-utils MetricFactory
// (e.g. the forge-managed metrics system via fapp.Metrics()).
type Metrics struct {
	EventsReceived   gu.Counter
	NormalizeFailed  gu.Counter
	DuplicateEvents  gu.Counter
	RulesMatched     gu.Counter
	RulesNoMatch     gu.Counter
	ResponsesSent    gu.Counter
	ResponsesFailed  gu.Counter
	ResponsesSkipped gu.Counter
	ResponseLatency  gu.Histogram
	DedupEntries     gu.Gauge

	mu        sync.Mutex
	dedupLast int
}

// NewMetrics creates Herald metric instruments using the supplied factory.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsReceived:   factory.Counter("herald_events_received_total"),
		NormalizeFailed:  factory.Counter("herald_events_normalize_failed_total"),
		DuplicateEvents:  factory.Counter("herald_events_duplicate_total"),
		RulesMatched:     factory.Counter("herald_rules_matched_total"),
		RulesNoMatch:     factory.Counter("herald_rules_no_match_total"),
		ResponsesSent:    factory.Counter("herald_responses_sent_total"),
		ResponsesFailed:  factory.Counter("herald_responses_failed_total"),
		ResponsesSkipped: factory.Counter("herald_responses_skipped_total"),
		ResponseLatency:  factory.Histogram("herald_response_latency_seconds"),
		DedupEntries:     factory.Gauge("herald_dedup_entries"),
	}
}

// RecordEvent counts one normalized event by kind.
func (m *Metrics) RecordEvent(kind string) {
	m.EventsReceived.WithLabels(map[string]string{"kind": kind}).Inc()
}

// RecordDuplicate counts a suppressed event by the layer that caught it.
func (m *Metrics) RecordDuplicate(layer string) {
	m.DuplicateEvents.WithLabels(map[string]string{"layer": layer}).Inc()
}

// RecordResponse records a send outcome with its latency.
func (m *Metrics) RecordResponse(action string, ok bool, latencySeconds float64) {
	labels := map[string]string{"action": action}
	if ok {
		m.ResponsesSent.WithLabels(labels).Inc()
	} else {
		m.ResponsesFailed.WithLabels(labels).Inc()
	}
	m.ResponseLatency.Observe(latencySeconds)
}

// RecordNormalizeFailures counts entries dropped during normalization.
func (m *Metrics) RecordNormalizeFailures(n int) {
	for range n {
		m.NormalizeFailed.Inc()
	}
}

// TrackDedupEntries moves the dedup gauge to n.
func (m *Metrics) TrackDedupEntries(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ; m.dedupLast < n; m.dedupLast++ {
		m.DedupEntries.Inc()
	}
	for ; m.dedupLast > n; m.dedupLast-- {
		m.DedupEntries.Dec()
	}
}
