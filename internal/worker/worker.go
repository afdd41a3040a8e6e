// Package worker moves completed extractions into the archive backend off the
// extraction path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/vehicle-extractor/extension/internal/dispatcher"
	"github.com/vehicle-extractor/extension/internal/queue"
	"github.com/vehicle-extractor/extension/internal/storage"
	"github.com/vehicle-extractor/extension/pkg/core"
)

const instrumentationName = "github.com/vehicle-extractor/extension/internal/worker"

// DefaultInterval is used when no flush interval is configured.
const DefaultInterval = 2 * time.Second

// DefaultQueueLimit bounds the number of extractions waiting for the archive.
const DefaultQueueLimit = 1024

// DefaultRecentLimit is how many extractions :ARCHIVE:RECENT: lists without an argument.
const DefaultRecentLimit = 10

// Manager buffers extractions and writes them to a backend on an interval.
type Manager struct {
	backend  storage.Backend
	pending  *queue.Queue[*core.Extraction]
	interval time.Duration
	logger   *slog.Logger

	written   atomic.Uint64
	failed    atomic.Uint64
	lastWrite atomic.Int64

	writtenCounter metric.Int64Counter
	failedCounter  metric.Int64Counter

	drainMu sync.Mutex
	running atomic.Bool
}

// Status is a point-in-time view of the archive writer.
type Status struct {
	Pending       int   `json:"pending"`
	Written       int64 `json:"written"`
	Failed        int64 `json:"failed"`
	Dropped       int64 `json:"dropped"`
	LastWriteUs   int64 `json:"lastWriteUs"`
	Running       bool  `json:"running"`
	BackendBuffer bool  `json:"backendBuffered"`
	// Evicted counts extractions a bounded backend has let go of.
	Evicted int64 `json:"evicted"`
}

// evicter is implemented by backends that hold a bounded history.
type evicter interface {
	Evicted() uint64
}

// RecentEntry is the short form of an archived extraction sent to the host.
type RecentEntry struct {
	ID          string    `json:"id"`
	Model       string    `json:"model"`
	Policy      string    `json:"policy"`
	RequiresDLC bool      `json:"requiresDlc"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// NewManager creates a new worker manager. A non-positive interval uses
// DefaultInterval.
func NewManager(backend storage.Backend, interval time.Duration, logger *slog.Logger) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		backend:  backend,
		pending:  queue.NewBounded[*core.Extraction](DefaultQueueLimit),
		interval: interval,
		logger:   logger,
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if m.writtenCounter, err = meter.Int64Counter("extractor.archive.written",
		metric.WithDescription("Extractions written to the archive")); err != nil {
		logger.Warn("Failed to create archive counter", "error", err)
	}
	if m.failedCounter, err = meter.Int64Counter("extractor.archive.failed",
		metric.WithDescription("Archive write attempts that failed")); err != nil {
		logger.Warn("Failed to create archive counter", "error", err)
	}
	return m
}

// Submit queues e for the archive. It never blocks; when the queue is full
// the oldest pending extraction is dropped.
func (m *Manager) Submit(e *core.Extraction) {
	if e == nil {
		return
	}
	if dropped := m.pending.Push(e); dropped > 0 {
		m.logger.Warn("Archive queue full, dropped oldest extractions", "dropped", dropped)
	}
}

// Run drains the queue every interval until ctx is cancelled, then drains
// once more.
func (m *Manager) Run(ctx context.Context) error {
	m.running.Store(true)
	defer m.running.Store(false)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := m.Drain(); err != nil {
				m.logger.Warn("Final archive drain incomplete", "error", err, "pending", m.pending.Len())
			}
			return ctx.Err()
		case <-ticker.C:
			if err := m.Drain(); err != nil {
				m.logger.Warn("Archive drain failed", "error", err, "pending", m.pending.Len())
			}
		}
	}
}

// Drain writes every pending extraction. Extractions that fail are put back
// and the error of the first failure is returned.
func (m *Manager) Drain() error {
	m.drainMu.Lock()
	defer m.drainMu.Unlock()

	batch := m.pending.GetAndEmpty()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	var retry []*core.Extraction
	var firstErr error
	for _, e := range batch {
		if err := m.backend.RecordExtraction(e); err != nil {
			retry = append(retry, e)
			if firstErr == nil {
				firstErr = fmt.Errorf("archiving %s: %w", e.ID, err)
			}
			continue
		}
	}

	if f, ok := m.backend.(storage.Flusher); ok && len(retry) < len(batch) {
		if err := f.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flushing archive: %w", err)
		}
	}

	ok := len(batch) - len(retry)
	m.written.Add(uint64(ok))
	m.failed.Add(uint64(len(retry)))
	if m.writtenCounter != nil && ok > 0 {
		m.writtenCounter.Add(context.Background(), int64(ok))
	}
	if m.failedCounter != nil && len(retry) > 0 {
		m.failedCounter.Add(context.Background(), int64(len(retry)))
	}
	m.lastWrite.Store(int64(time.Since(start)))

	if len(retry) > 0 {
		m.pending.Requeue(retry...)
	}
	m.logger.Debug("Archive drained", "written", ok, "failed", len(retry), "duration", time.Since(start))
	return firstErr
}

// GetLastWriteDuration returns how long the last drain took.
func (m *Manager) GetLastWriteDuration() time.Duration {
	return time.Duration(m.lastWrite.Load())
}

// Status reports queue and write counters.
func (m *Manager) Status() Status {
	_, buffered := m.backend.(storage.Flusher)
	st := Status{
		Pending:       m.pending.Len(),
		Written:       int64(m.written.Load()),
		Failed:        int64(m.failed.Load()),
		Dropped:       int64(m.pending.Dropped()),
		LastWriteUs:   m.GetLastWriteDuration().Microseconds(),
		Running:       m.running.Load(),
		BackendBuffer: buffered,
	}
	if ev, ok := m.backend.(evicter); ok {
		st.Evicted = int64(ev.Evicted())
	}
	return st
}

// Recent returns archived extractions when the backend can list them.
func (m *Manager) Recent(limit int) ([]core.Extraction, error) {
	l, ok := m.backend.(storage.Lister)
	if !ok {
		return nil, errors.New("archive backend cannot list extractions")
	}
	return l.RecentExtractions(limit)
}

// RegisterHandlers registers the archive commands with the dispatcher.
// A flush is queued and runs off the host's call; a second flush while one
// is waiting is rejected with dispatcher.ErrQueueFull.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(":ARCHIVE:FLUSH:", m.handleFlush, dispatcher.Logged(), dispatcher.Buffered(1))
	d.Register(":ARCHIVE:STATUS:", m.handleStatus)
	d.Register(":ARCHIVE:RECENT:", m.handleRecent)
}

func (m *Manager) handleFlush(context.Context, dispatcher.Event) (any, error) {
	if err := m.Drain(); err != nil {
		return nil, err
	}
	m.logger.Info("Archive flushed", "written", m.written.Load())
	return nil, nil
}

// handleRecent takes an optional limit argument.
func (m *Manager) handleRecent(_ context.Context, e dispatcher.Event) (any, error) {
	limit := DefaultRecentLimit
	if len(e.Args) > 0 && e.Args[0] != "" {
		n, err := strconv.Atoi(e.Args[0])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid limit: %q", e.Args[0])
		}
		limit = n
	}

	list, err := m.Recent(limit)
	if err != nil {
		return nil, err
	}
	out := make([]RecentEntry, 0, len(list))
	for _, x := range list {
		out = append(out, RecentEntry{
			ID:          x.ID.String(),
			Model:       x.Snapshot.ModelName,
			Policy:      x.Policy,
			RequiresDLC: x.Snapshot.RequiresDLC,
			ExtractedAt: x.ExtractedAt,
		})
	}
	return out, nil
}

func (m *Manager) handleStatus(context.Context, dispatcher.Event) (any, error) {
	return m.Status(), nil
}
