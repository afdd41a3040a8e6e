package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv) }
func (l *testLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv) }
func (l *testLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv) }

func (l *testLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":EXTRACT:", func(_ context.Context, e Event) (any, error) {
		got = e
		return "done", nil
	})

	result, err := d.Dispatch(context.Background(), Event{Command: ":EXTRACT:", Args: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, []string{"a"}, got.Args)
	assert.False(t, got.Timestamp.IsZero(), "dispatch stamps events")
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), Event{Command: ":NOPE:"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), ":NOPE:")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(":QUEUED:", func(context.Context, Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(context.Background(), Event{Command: ":QUEUED:"})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	wg.Wait()
	assert.Equal(t, int32(3), processed.Load())
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(":FULL:", func(context.Context, Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(2))

	_, err := d.Dispatch(context.Background(), Event{Command: ":FULL:"})
	require.NoError(t, err)
	<-started

	_, _ = d.Dispatch(context.Background(), Event{Command: ":FULL:"})
	_, _ = d.Dispatch(context.Background(), Event{Command: ":FULL:"})

	_, err = d.Dispatch(context.Background(), Event{Command: ":FULL:"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	d.Register(":BLOCKING:", func(context.Context, Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	_, _ = d.Dispatch(context.Background(), Event{Command: ":BLOCKING:"})
	<-started
	_, _ = d.Dispatch(context.Background(), Event{Command: ":BLOCKING:"})

	done := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(context.Background(), Event{Command: ":BLOCKING:"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
}

func TestDispatcher_BlockingHonoursContext(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{}, 1)
	d.Register(":BLOCKING:", func(context.Context, Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	_, _ = d.Dispatch(context.Background(), Event{Command: ":BLOCKING:"})
	<-started
	_, _ = d.Dispatch(context.Background(), Event{Command: ":BLOCKING:"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Dispatch(ctx, Event{Command: ":BLOCKING:"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher_Exclusive(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	entered := make(chan struct{})
	d.Register(":EXTRACT:", func(context.Context, Event) (any, error) {
		close(entered)
		<-release
		return "ok", nil
	}, Exclusive())

	firstDone := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), Event{Command: ":EXTRACT:"})
		firstDone <- err
	}()
	<-entered

	_, err := d.Dispatch(context.Background(), Event{Command: ":EXTRACT:"})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	assert.NoError(t, <-firstDone)
}

func TestDispatcher_GuardedRecoversPanic(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":BOOM:", func(context.Context, Event) (any, error) {
		panic("native call exploded")
	}, Guarded())

	result, err := d.Dispatch(context.Background(), Event{Command: ":BOOM:"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "native call exploded")
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":LOGGED:", func(context.Context, Event) (any, error) {
		return "ok", nil
	}, Logged())

	_, err := d.Dispatch(context.Background(), Event{Command: ":LOGGED:", Args: []string{"a", "b"}})
	require.NoError(t, err)

	msgs := logger.snapshot()
	require.Len(t, msgs, 2)
	assert.True(t, strings.HasPrefix(msgs[0], "DEBUG: handling command"))
	assert.True(t, strings.HasPrefix(msgs[1], "DEBUG: command complete"))
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":ERROR:", func(context.Context, Event) (any, error) {
		return nil, errors.New("test error")
	}, Logged())

	_, err := d.Dispatch(context.Background(), Event{Command: ":ERROR:"})
	require.Error(t, err)

	hasError := false
	for _, msg := range logger.snapshot() {
		if strings.HasPrefix(msg, "ERROR: command failed") {
			hasError = true
		}
	}
	assert.True(t, hasError, "expected an error log message")
}

func TestDispatcher_HasHandlerAndCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	assert.False(t, d.HasHandler(":VERSION:"))

	noop := func(context.Context, Event) (any, error) { return nil, nil }
	d.Register(":VERSION:", noop)
	d.Register(":EXTRACT:", noop)
	d.Register(":INIT:", noop)

	assert.True(t, d.HasHandler(":VERSION:"))
	assert.Equal(t, []string{":EXTRACT:", ":INIT:", ":VERSION:"}, d.Commands())
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register(":QUEUED:", func(context.Context, Event) (any, error) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		_, err := d.Dispatch(context.Background(), Event{Command: ":QUEUED:"})
		require.NoError(t, err)
	}

	require.NoError(t, d.Close())
	assert.Equal(t, int32(5), processed.Load())

	_, err := d.Dispatch(context.Background(), Event{Command: ":QUEUED:"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, d.Close(), "second close is a no-op")
}

func TestDispatcher_QueuedErrorsAreLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":QUEUED:", func(context.Context, Event) (any, error) {
		return nil, errors.New("archive unavailable")
	}, Buffered(1))

	_, err := d.Dispatch(context.Background(), Event{Command: ":QUEUED:"})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	found := false
	for _, msg := range logger.snapshot() {
		if strings.Contains(msg, "queued event failed") {
			found = true
		}
	}
	assert.True(t, found)
}
