package metrics

import (
	"sync"
	"time"
)

// Run is what a single batch pass reports.
type Run struct {
	ID         string
	Fetched    int
	Kept       int
	Duplicates int
	Capped     int
	Sent       int
	Dropped    map[string]int
	Duration   time.Duration
}

type Metrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns            int64
	FailedRuns           int64
	EntriesFetched       int64
	ItemsKept            int64
	DuplicatesFiltered   int64
	ItemsCapped          int64
	TelegramMessagesSent int64
	Dropped              map[string]int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration

	// Status
	LastRunID     string
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true, Dropped: make(map[string]int64)}
}

// RecordRun folds a finished pass into the totals. A non-nil err marks the
// service unhealthy until the next successful pass.
func (m *Metrics) RecordRun(r Run, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRuns++
	m.EntriesFetched += int64(r.Fetched)
	m.ItemsKept += int64(r.Kept)
	m.DuplicatesFiltered += int64(r.Duplicates)
	m.ItemsCapped += int64(r.Capped)
	m.TelegramMessagesSent += int64(r.Sent)
	for reason, n := range r.Dropped {
		m.Dropped[reason] += int64(n)
	}

	m.LastProcessingTime = r.Duration
	m.TotalProcessingTime += r.Duration
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.TotalRuns)

	m.LastRunID = r.ID
	m.LastRunTime = time.Now()
	if err != nil {
		m.FailedRuns++
		m.LastError = err.Error()
		m.LastErrorTime = m.LastRunTime
		m.IsHealthy = false
		return
	}
	m.IsHealthy = true
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dropped := make(map[string]int64, len(m.Dropped))
	for k, v := range m.Dropped {
		dropped[k] = v
	}

	return map[string]interface{}{
		"total_runs":                 m.TotalRuns,
		"failed_runs":                m.FailedRuns,
		"entries_fetched":            m.EntriesFetched,
		"items_kept":                 m.ItemsKept,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"items_capped":               m.ItemsCapped,
		"telegram_messages_sent":     m.TelegramMessagesSent,
		"dropped":                    dropped,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_id":                m.LastRunID,
		"last_run_time":              formatTime(m.LastRunTime),
		"last_error_time":            formatTime(m.LastErrorTime),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
