package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/vehicle-extractor/extension/internal/dispatcher"

var (
	// ErrUnknownCommand is returned when no handler is registered for a command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrBusy is returned by exclusive handlers that are already running.
	ErrBusy = errors.New("command already in progress")
	// ErrQueueFull is returned when a buffered handler drops an event.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Event is a command received from the host.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(ctx context.Context, e Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*options)

type options struct {
	bufferSize int
	blocking   bool
	logged     bool
	exclusive  bool
	guarded    bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(o *options) { o.bufferSize = size }
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(o *options) { o.blocking = true }
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(o *options) { o.logged = true }
}

// Exclusive rejects an event with ErrBusy while a previous one is still running.
func Exclusive() Option {
	return func(o *options) { o.exclusive = true }
}

// Guarded turns a handler panic into an error.
func Guarded() Option {
	return func(o *options) { o.guarded = true }
}

// Dispatcher routes host commands to registered handlers.
type Dispatcher struct {
	logger Logger

	handled   metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
	queueSize metric.Int64ObservableGauge
	callback  metric.Registration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	buffers  map[string]chan bufferedEvent
	closed   bool
	wg       sync.WaitGroup
}

type bufferedEvent struct {
	ctx context.Context
	e   Event
}

// New creates a Dispatcher. Metrics go to the global OTel meter provider,
// which is a no-op unless one has been installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan bufferedEvent),
	}

	m := otel.Meter(instrumentationName)
	var err error

	if d.handled, err = m.Int64Counter("extractor.commands.handled",
		metric.WithDescription("Commands handled successfully")); err != nil {
		return nil, fmt.Errorf("creating handled counter: %w", err)
	}
	if d.failed, err = m.Int64Counter("extractor.commands.failed",
		metric.WithDescription("Commands whose handler returned an error")); err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	if d.dropped, err = m.Int64Counter("extractor.commands.dropped",
		metric.WithDescription("Commands dropped because a queue was full or a handler busy")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if d.queueSize, err = m.Int64ObservableGauge("extractor.commands.queued",
		metric.WithDescription("Commands waiting in handler queues")); err != nil {
		return nil, fmt.Errorf("creating queue gauge: %w", err)
	}

	d.callback, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for cmd, buf := range d.buffers {
			o.ObserveInt64(d.queueSize, int64(len(buf)),
				metric.WithAttributes(attribute.String("command", cmd)))
		}
		return nil
	}, d.queueSize)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	return d, nil
}

// Register adds a handler for command. Registering the same command twice
// replaces the earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	handler := d.withMetrics(command, h)
	if o.guarded {
		handler = withRecover(command, handler)
	}
	if o.exclusive {
		handler = d.withExclusive(command, handler)
	}
	if o.bufferSize > 0 {
		handler = d.withBuffer(command, o.bufferSize, o.blocking, handler)
	}
	if o.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(ctx, e)
}

// HasHandler reports whether a handler is registered for command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered command names in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Close stops accepting events and waits for queued events to drain.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.wg.Wait()
	if d.callback != nil {
		return d.callback.Unregister()
	}
	return nil
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("command", command))
	return func(ctx context.Context, e Event) (any, error) {
		result, err := h(ctx, e)
		if err != nil {
			d.failed.Add(ctx, 1, attrs)
		} else {
			d.handled.Add(ctx, 1, attrs)
		}
		return result, err
	}
}

func withRecover(command string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				result = nil
				err = fmt.Errorf("panic in %s: %v", command, r)
			}
		}()
		return h(ctx, e)
	}
}

func (d *Dispatcher) withExclusive(command string, h HandlerFunc) HandlerFunc {
	var running sync.Mutex
	attrs := metric.WithAttributes(attribute.String("command", command))
	return func(ctx context.Context, e Event) (any, error) {
		if !running.TryLock() {
			d.dropped.Add(ctx, 1, attrs)
			return nil, fmt.Errorf("%w: %s", ErrBusy, command)
		}
		defer running.Unlock()
		return h(ctx, e)
	}
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan bufferedEvent, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("command", command))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for be := range buffer {
			if _, err := h(be.ctx, be.e); err != nil && d.logger != nil {
				d.logger.Error("queued event failed", "command", command, "error", err)
			}
		}
	}()

	if blocking {
		return func(ctx context.Context, e Event) (any, error) {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return nil, ErrClosed
			}
			select {
			case buffer <- bufferedEvent{ctx: context.WithoutCancel(ctx), e: e}:
				return "queued", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return func(ctx context.Context, e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		select {
		case buffer <- bufferedEvent{ctx: context.WithoutCancel(ctx), e: e}:
			return "queued", nil
		default:
			d.dropped.Add(ctx, 1, attrs)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) (any, error) {
		if d.logger == nil {
			return h(ctx, e)
		}
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "args", len(e.Args))

		result, err := h(ctx, e)

		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		}
		return result, err
	}
}
