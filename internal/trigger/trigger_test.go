package trigger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedKeys replays a fixed sequence of key states, then reports up.
type scriptedKeys struct {
	mu    sync.Mutex
	seq   []bool
	polls int
}

func (k *scriptedKeys) IsKeyDown(string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	defer func() { k.polls++ }()
	if k.polls < len(k.seq) {
		return k.seq[k.polls]
	}
	return false
}

func TestTick(t *testing.T) {
	seq := []bool{false, true, true, true, false, true, false, false, true}

	tests := []struct {
		name string
		mode Mode
		want []bool
	}{
		{"edge fires once per press", ModeEdge, []bool{false, true, false, false, false, true, false, false, true}},
		{"repeat fires while held", ModeRepeat, seq},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := &scriptedKeys{seq: seq}
			l := New(keys, "F9", tt.mode, time.Millisecond, nil)

			var got []bool
			for range seq {
				got = append(got, l.Tick())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	keys := &scriptedKeys{seq: []bool{true, true, false, true}}
	var fired atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	l := New(keys, "F9", ModeEdge, time.Millisecond, func(context.Context) {
		if fired.Add(1) == 2 {
			cancel()
		}
	})

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.Equal(t, int32(2), fired.Load())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeEdge, m)

	m, err = ParseMode("Repeat")
	require.NoError(t, err)
	assert.Equal(t, ModeRepeat, m)

	m, err = ParseMode(" held ")
	require.NoError(t, err)
	assert.Equal(t, ModeRepeat, m)

	_, err = ParseMode("toggle")
	assert.Error(t, err)

	assert.Equal(t, "edge", ModeEdge.String())
}

func TestNew_DefaultInterval(t *testing.T) {
	l := New(&scriptedKeys{}, "F9", ModeEdge, 0, nil)
	assert.Equal(t, DefaultPollInterval, l.interval)
}
