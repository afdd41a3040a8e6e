// Package extractor runs one extraction end to end: preconditions, host
// reads, snapshot, literal, output file, archive and notifications.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vehicle-extractor/extension/internal/literal"
	"github.com/vehicle-extractor/extension/internal/reader"
	"github.com/vehicle-extractor/extension/internal/snapshot"
	"github.com/vehicle-extractor/extension/internal/trigger"
	"github.com/vehicle-extractor/extension/pkg/core"
)

const instrumentationName = "github.com/vehicle-extractor/extension/internal/extractor"

// On-screen messages.
const (
	MsgNotInVehicle   = "You must be in a vehicle to extract data."
	MsgInvalidVehicle = "No valid vehicle found."
	msgLoaded         = "Vehicle Data Extractor Loaded. Press %s to extract data."
	msgExported       = "Vehicle data exported to %s."
	msgFailed         = "Vehicle data extraction failed."
)

var (
	// ErrRunning is returned by Start when the trigger loop is already active.
	ErrRunning = errors.New("trigger loop already running")
	// ErrPanic wraps a panic recovered during an extraction.
	ErrPanic = errors.New("extraction panicked")
)

// Notifier shows a message to the player.
type Notifier interface {
	Notify(message string) error
}

// Sink receives rendered output entries.
type Sink interface {
	Append(entry string) error
	Path() string
}

// Archiver takes completed extractions for asynchronous storage.
type Archiver interface {
	Submit(e *core.Extraction)
}

// PointWriter records a metrics point per extraction.
type PointWriter interface {
	WriteExtraction(e *core.Extraction) error
}

// Dependencies holds everything a Service needs. Archive and Metrics are
// optional.
type Dependencies struct {
	Reader   *reader.Reader
	Policy   snapshot.Policy
	Output   Sink
	Notifier Notifier
	Archive  Archiver
	Metrics  PointWriter
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// TriggerSettings configures the key loop started by Start.
type TriggerSettings struct {
	Keys     trigger.KeyState
	Key      string
	Mode     trigger.Mode
	Interval time.Duration
}

// Service performs extractions. Extract is safe for concurrent use; calls are
// serialised.
type Service struct {
	deps Dependencies

	extractMu sync.Mutex

	stats struct {
		completed atomic.Uint64
		rejected  atomic.Uint64
		failed    atomic.Uint64
		last      atomic.Pointer[core.Extraction]
	}

	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	completed metric.Int64Counter
	rejected  metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates a Service.
func New(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Policy.Name == "" {
		deps.Policy = snapshot.PolicyDispatch
	}

	s := &Service{deps: deps}

	meter := otel.Meter(instrumentationName)
	var err error
	if s.completed, err = meter.Int64Counter("extractor.extractions.completed",
		metric.WithDescription("Extractions written to the output file")); err != nil {
		deps.Logger.Warn("Failed to create counter", "error", err)
	}
	if s.rejected, err = meter.Int64Counter("extractor.extractions.rejected",
		metric.WithDescription("Extractions refused by a precondition")); err != nil {
		deps.Logger.Warn("Failed to create counter", "error", err)
	}
	if s.failed, err = meter.Int64Counter("extractor.extractions.failed",
		metric.WithDescription("Extractions that failed after the preconditions passed")); err != nil {
		deps.Logger.Warn("Failed to create counter", "error", err)
	}
	if s.duration, err = meter.Float64Histogram("extractor.extractions.duration",
		metric.WithDescription("Time from trigger to output append"),
		metric.WithUnit("ms")); err != nil {
		deps.Logger.Warn("Failed to create histogram", "error", err)
	}
	return s
}

// Policy returns the snapshot policy in use.
func (s *Service) Policy() snapshot.Policy {
	return s.deps.Policy
}

// OutputPath returns where entries are appended.
func (s *Service) OutputPath() string {
	return s.deps.Output.Path()
}

// Extract runs one extraction. Precondition failures return
// reader.ErrNotInVehicle or reader.ErrInvalidVehicle after notifying the
// player; nothing is written in that case.
func (s *Service) Extract(ctx context.Context) (result *core.Extraction, err error) {
	s.extractMu.Lock()
	defer s.extractMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.deps.Logger.Error("Extraction panicked", "panic", r)
			s.stats.failed.Add(1)
			s.add(ctx, s.failed, 1)
			s.notify(msgFailed)
			result, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	log := s.deps.Logger

	v, err := s.deps.Reader.Target()
	if err != nil {
		s.stats.rejected.Add(1)
		s.add(ctx, s.rejected, 1)
		switch {
		case errors.Is(err, reader.ErrNotInVehicle):
			s.notify(MsgNotInVehicle)
		case errors.Is(err, reader.ErrInvalidVehicle):
			s.notify(MsgInvalidVehicle)
		}
		log.Info("Extraction rejected", "reason", err)
		return nil, err
	}

	raw := s.deps.Reader.Read(v)
	snap := snapshot.Build(raw, s.deps.Policy)
	lit := literal.Render(snap)

	at := s.deps.Now()
	if err := s.deps.Output.Append(literal.Entry(at, lit)); err != nil {
		s.stats.failed.Add(1)
		s.add(ctx, s.failed, 1)
		s.notify(msgFailed)
		return nil, fmt.Errorf("error appending output: %w", err)
	}

	elapsed := time.Since(start)
	e := core.NewExtraction(at, snap, lit, s.deps.Output.Path(), elapsed)
	e.Policy = s.deps.Policy.Name
	s.stats.completed.Add(1)
	s.stats.last.Store(e)

	if s.deps.Archive != nil {
		s.deps.Archive.Submit(e)
	}
	if s.deps.Metrics != nil {
		if err := s.deps.Metrics.WriteExtraction(e); err != nil {
			log.Warn("Failed to record extraction metrics", "error", err)
		}
	}

	attrs := metric.WithAttributes(
		attribute.String("policy", e.Policy),
		attribute.Bool("dlc", snap.RequiresDLC),
	)
	if s.completed != nil {
		s.completed.Add(ctx, 1, attrs)
	}
	if s.duration != nil {
		s.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}

	log.Info("Vehicle extracted",
		"model", snap.ModelName,
		"dlc", snap.RequiresDLC,
		"extras", len(snap.RequiredVariation.Extras),
		"toggles", len(snap.RequiredVariation.Toggles),
		"mods", len(snap.RequiredVariation.Mods),
		"duration", elapsed,
	)
	s.notify(fmt.Sprintf(msgExported, e.OutputPath))
	return e, nil
}

// Stats counts extraction outcomes since the service was created.
type Stats struct {
	Completed uint64     `json:"completed"`
	Rejected  uint64     `json:"rejected"`
	Failed    uint64     `json:"failed"`
	LastModel string     `json:"lastModel,omitempty"`
	LastAt    *time.Time `json:"lastAt,omitempty"`
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	st := Stats{
		Completed: s.stats.completed.Load(),
		Rejected:  s.stats.rejected.Load(),
		Failed:    s.stats.failed.Load(),
	}
	if last := s.stats.last.Load(); last != nil {
		at := last.ExtractedAt
		st.LastModel = last.Snapshot.ModelName
		st.LastAt = &at
	}
	return st
}

func (s *Service) add(ctx context.Context, c metric.Int64Counter, n int64) {
	if c != nil {
		c.Add(ctx, n)
	}
}

func (s *Service) notify(msg string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Notify(msg); err != nil {
		s.deps.Logger.Warn("Notification failed", "message", msg, "error", err)
	}
}

// Start notifies the load message and runs the trigger loop in the
// background until Stop is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context, t TriggerSettings) error {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	if s.loopDone != nil {
		select {
		case <-s.loopDone:
		default:
			return ErrRunning
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.loopCancel = cancel
	s.loopDone = done

	loop := trigger.New(t.Keys, t.Key, t.Mode, t.Interval, func(ctx context.Context) {
		if _, err := s.Extract(ctx); err != nil && !isPrecondition(err) {
			s.deps.Logger.Error("Extraction failed", "error", err)
		}
	})

	s.notify(fmt.Sprintf(msgLoaded, t.Key))
	s.deps.Logger.Info("Trigger loop started", "key", t.Key, "mode", t.Mode.String())

	go func() {
		defer close(done)
		err := loop.Run(loopCtx)
		s.deps.Logger.Info("Trigger loop stopped", "reason", err)
	}()
	return nil
}

// Stop cancels the trigger loop and waits for it to exit. It is a no-op when
// the loop is not running.
func (s *Service) Stop() {
	s.loopMu.Lock()
	cancel, done := s.loopCancel, s.loopDone
	s.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the trigger loop is active.
func (s *Service) Running() bool {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.loopDone == nil {
		return false
	}
	select {
	case <-s.loopDone:
		return false
	default:
		return true
	}
}

func isPrecondition(err error) bool {
	return errors.Is(err, reader.ErrNotInVehicle) || errors.Is(err, reader.ErrInvalidVehicle)
}
