// Package trigger polls a key and fires an action when it is pressed.
package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// KeyState reports whether a key is currently held down.
type KeyState interface {
	IsKeyDown(key string) bool
}

// Mode selects how a held key is treated.
type Mode int

const (
	// ModeEdge fires once per press: on the down transition, then not again
	// until the key has been released.
	ModeEdge Mode = iota
	// ModeRepeat fires on every poll while the key is held. "held" is
	// accepted as its config name too.
	ModeRepeat
)

func (m Mode) String() string {
	switch m {
	case ModeEdge:
		return "edge"
	case ModeRepeat:
		return "repeat"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode resolves a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "edge":
		return ModeEdge, nil
	case "repeat", "held":
		return ModeRepeat, nil
	default:
		return ModeEdge, fmt.Errorf("unknown trigger mode: %s", s)
	}
}

// DefaultPollInterval roughly matches one host frame.
const DefaultPollInterval = 16 * time.Millisecond

// Loop polls a single key and calls Fire when the mode says so.
type Loop struct {
	keys     KeyState
	key      string
	mode     Mode
	interval time.Duration
	fire     func(ctx context.Context)

	held bool
}

// New creates a Loop. A non-positive interval uses DefaultPollInterval.
func New(keys KeyState, key string, mode Mode, interval time.Duration, fire func(ctx context.Context)) *Loop {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Loop{
		keys:     keys,
		key:      key,
		mode:     mode,
		interval: interval,
		fire:     fire,
	}
}

// Tick polls the key once and reports whether the action should fire.
func (l *Loop) Tick() bool {
	down := l.keys.IsKeyDown(l.key)

	switch l.mode {
	case ModeRepeat:
		return down
	default:
		fire := down && !l.held
		l.held = down
		return fire
	}
}

// Run polls until ctx is cancelled. The action runs on the polling goroutine,
// so polling pauses while it executes.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.Tick() {
				l.fire(ctx)
			}
		}
	}
}
