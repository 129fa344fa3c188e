package observability

import (
	"sync/atomic"
	"time"
)

// MailMetrics counts outbound email attempts in-process. /readyz reports the
// snapshot; Prom carries the same outcomes for scraping.
type MailMetrics struct {
	sent     atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64

	// duration stats (nanoseconds)
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewMailMetrics() *MailMetrics {
	return &MailMetrics{}
}

func (m *MailMetrics) IncSent() {
	m.sent.Add(1)
}

func (m *MailMetrics) IncFailed() {
	m.failed.Add(1)
}

// IncRejected counts sends refused while the circuit was open.
func (m *MailMetrics) IncRejected() {
	m.rejected.Add(1)
}

func (m *MailMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type MailMetricsSnapshot struct {
	Sent            uint64        `json:"sent"`
	Failed          uint64        `json:"failed"`
	Rejected        uint64        `json:"rejected"`
	AverageDuration time.Duration `json:"averageDurationNs"`
	MaxDuration     time.Duration `json:"maxDurationNs"`
}

func (m *MailMetrics) Snapshot() MailMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()

	var avg time.Duration

	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return MailMetricsSnapshot{
		Sent:            m.sent.Load(),
		Failed:          m.failed.Load(),
		Rejected:        m.rejected.Load(),
		AverageDuration: avg,
		MaxDuration:     time.Duration(m.durationMax.Load()),
	}
}
