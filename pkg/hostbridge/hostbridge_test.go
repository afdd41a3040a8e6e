package hostbridge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehicle-extractor/extension/internal/dispatcher"
	"github.com/vehicle-extractor/extension/internal/natives"
	"github.com/vehicle-extractor/extension/internal/reader"
)

func TestFormatDispatchResponse(t *testing.T) {
	tests := []struct {
		name     string
		result   any
		err      error
		expected string
	}{
		{
			name:     "string array (VERSION)",
			result:   []string{"1.0.0", "2026-10-01"},
			expected: `["ok", ["1.0.0","2026-10-01"]]`,
		},
		{
			name:     "simple string",
			result:   "started",
			expected: `["ok", "started"]`,
		},
		{
			name:     "path string keeps backslashes",
			result:   `C:\Games\addons\VehiclesDataOutput.cs`,
			expected: `["ok", "C:\Games\addons\VehiclesDataOutput.cs"]`,
		},
		{
			name:     "embedded quotes are doubled",
			result:   `say "hi"`,
			expected: `["ok", "say ""hi"""]`,
		},
		{
			name:     "nil result",
			expected: `["ok"]`,
		},
		{
			name:     "error",
			err:      errors.New("You must be in a vehicle to extract data."),
			expected: `["error", "You must be in a vehicle to extract data."]`,
		},
		{
			name:     "int array",
			result:   []int{1, 2, 3},
			expected: `["ok", [1,2,3]]`,
		},
		{
			name:     "map",
			result:   map[string]int{"count": 42},
			expected: `["ok", {"count":42}]`,
		},
		{
			name:     "unencodable value",
			result:   make(chan int),
			expected: `["error", "json: unsupported type: chan int"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDispatchResponse(tt.result, tt.err))
		})
	}
}

func TestSplitCommand(t *testing.T) {
	cmd, args := splitCommand(":EXTRACT:")
	assert.Equal(t, ":EXTRACT:", cmd)
	assert.Nil(t, args)

	cmd, args = splitCommand(":INIT:|F10|repeat")
	assert.Equal(t, ":INIT:", cmd)
	assert.Equal(t, []string{"F10", "repeat"}, args)
}

func TestHandleCommand(t *testing.T) {
	t.Cleanup(func() { SetDispatcher(nil) })

	assert.True(t, strings.HasPrefix(handleCommand(":VERSION:", nil), `["error"`))

	d, err := dispatcher.New(nil)
	require.NoError(t, err)

	var gotArgs []string
	d.Register(":ECHO:", func(_ context.Context, e dispatcher.Event) (any, error) {
		gotArgs = e.Args
		return strings.Join(e.Args, "+"), nil
	})
	SetDispatcher(d)

	assert.Equal(t, `["ok", "a+b"]`, handleCommand(":ECHO:", []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, gotArgs)
	assert.Equal(t, `["ok", "F10+say ""hi"""]`, handleCommand(":ECHO:", []string{`"F10"`, `"say ""hi"""`}))
	assert.Equal(t, []string{"F10", `say "hi"`}, gotArgs)
	assert.Equal(t, `["error", "no handler registered for :NOPE:"]`, handleCommand(":NOPE:", nil))
}

func TestVersion(t *testing.T) {
	orig := Version()
	t.Cleanup(func() { SetVersion(orig) })

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", Version())
}

func TestHostInvoker_Unregistered(t *testing.T) {
	require.False(t, Registered())
	_, err := HostInvoker{}.Invoke("GET_CURRENT_VEHICLE", "", make([]byte, 8))
	assert.ErrorIs(t, err, natives.ErrNoInvoker)
}

func TestCAllocator(t *testing.T) {
	s, err := CAllocator{}.Alloc(reader.DLCRecordSize)
	require.NoError(t, err)

	buf := s.Bytes()
	require.Len(t, buf, reader.DLCRecordSize)
	for _, b := range buf {
		assert.Zero(t, b)
	}
	buf[8] = 0x91
	assert.Equal(t, byte(0x91), s.Bytes()[8])

	s.Release()
	assert.Nil(t, s.Bytes())
	s.Release()

	_, err = CAllocator{}.Alloc(0)
	assert.Error(t, err)
}

func TestModuleDir(t *testing.T) {
	// In a test binary the module is the executable itself.
	assert.NotEmpty(t, ModuleDir())
}

func TestOnLoad_RunsOnce(t *testing.T) {
	t.Cleanup(func() { OnLoad(nil) })

	calls := 0
	OnLoad(func() { calls++ })

	loaded()
	loaded()
	assert.Equal(t, 1, calls)
}
