package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vehicle-extractor/extension/internal/output"
	"github.com/vehicle-extractor/extension/internal/reader"
	"github.com/vehicle-extractor/extension/internal/reader/fixture"
	"github.com/vehicle-extractor/extension/internal/snapshot"
	"github.com/vehicle-extractor/extension/internal/trigger"
	"github.com/vehicle-extractor/extension/pkg/core"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type recordingArchive struct {
	mu  sync.Mutex
	got []*core.Extraction
}

func (a *recordingArchive) Submit(e *core.Extraction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, e)
}

type failingMetrics struct{ calls int }

func (m *failingMetrics) WriteExtraction(*core.Extraction) error {
	m.calls++
	return errors.New("influx down")
}

type panickingSink struct{}

func (panickingSink) Append(string) error { panic("disk vanished") }
func (panickingSink) Path() string        { return "nowhere" }

type heldKey struct{ down atomic.Bool }

func (k *heldKey) IsKeyDown(string) bool { return k.down.Load() }

var fixedNow = time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

func newService(t *testing.T, v *fixture.Vehicle) (*Service, *recordingNotifier, string) {
	t.Helper()
	n := &recordingNotifier{}
	out := output.NewAppender(t.TempDir(), "")
	s := New(Dependencies{
		Reader:   reader.New(v, nil, nil),
		Output:   out,
		Notifier: n,
		Now:      func() time.Time { return fixedNow },
	})
	return s, n, out.Path()
}

func TestExtract_WritesEntryAndNotifies(t *testing.T) {
	s, n, path := newService(t, fixture.Adder())
	archive := &recordingArchive{}
	s.deps.Archive = archive

	e, err := s.Extract(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "// Extracted at 3/9/2024 2:05:06 PM\nnew DispatchableVehicle() {\n"))
	assert.True(t, strings.HasSuffix(text, "}\n\n"))
	assert.Contains(t, text, `ModelName = "ADDER",`)

	assert.Equal(t, "dispatch", e.Policy)
	assert.Equal(t, path, e.OutputPath)
	assert.Equal(t, fixedNow, e.ExtractedAt)
	assert.Equal(t, "ADDER", e.Snapshot.ModelName)
	assert.Equal(t, e.Literal, strings.TrimSuffix(strings.SplitN(text, "\n", 2)[1], "\n"))

	require.Len(t, archive.got, 1)
	assert.Same(t, e, archive.got[0])

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Completed)
	assert.Equal(t, "ADDER", st.LastModel)
	require.NotNil(t, st.LastAt)
	assert.Equal(t, fixedNow, *st.LastAt)
	assert.Equal(t, []string{"Vehicle data exported to " + path + "."}, n.all())
}

func TestExtract_AppendsAcrossCalls(t *testing.T) {
	s, _, path := newService(t, fixture.Adder())

	_, err := s.Extract(context.Background())
	require.NoError(t, err)
	_, err = s.Extract(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "// Extracted at "))
}

func TestExtract_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		vehicle *fixture.Vehicle
		want    error
		message string
	}{
		{"not in vehicle", &fixture.Vehicle{NotInVehicle: true}, reader.ErrNotInVehicle, MsgNotInVehicle},
		{"missing vehicle", &fixture.Vehicle{Missing: true}, reader.ErrInvalidVehicle, MsgInvalidVehicle},
		{"query failure", &fixture.Vehicle{Fail: map[string]string{"CurrentVehicle": "boom"}}, reader.ErrInvalidVehicle, MsgInvalidVehicle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, n, path := newService(t, tt.vehicle)

			e, err := s.Extract(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, e)
			assert.Equal(t, []string{tt.message}, n.all())
			assert.NoFileExists(t, path)
			assert.Equal(t, uint64(1), s.Stats().Rejected)
		})
	}
}

func TestExtract_MetricsFailureIsNotFatal(t *testing.T) {
	s, _, _ := newService(t, fixture.Adder())
	m := &failingMetrics{}
	s.deps.Metrics = m

	_, err := s.Extract(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, m.calls)
}

func TestExtract_CompactPolicy(t *testing.T) {
	s, _, _ := newService(t, fixture.Adder())
	s.deps.Policy = snapshot.PolicyCompact

	e, err := s.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "compact", e.Policy)
	assert.NotContains(t, e.Literal, "MinOccupants")
}

func TestExtract_AppendFailure(t *testing.T) {
	dir := t.TempDir()
	// a directory where the file should be makes the open fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, output.DefaultFileName), 0755))

	n := &recordingNotifier{}
	s := New(Dependencies{
		Reader:   reader.New(fixture.Adder(), nil, nil),
		Output:   output.NewAppender(dir, ""),
		Notifier: n,
	})

	_, err := s.Extract(context.Background())
	assert.ErrorContains(t, err, "error appending output")
	assert.Equal(t, []string{msgFailed}, n.all())
	assert.Equal(t, Stats{Failed: 1}, s.Stats())
}

func TestExtract_RecoversPanic(t *testing.T) {
	s := New(Dependencies{
		Reader: reader.New(fixture.Adder(), nil, nil),
		Output: panickingSink{},
	})

	e, err := s.Extract(context.Background())
	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrPanic)

	// the mutex was released
	_, err = s.Extract(context.Background())
	assert.ErrorIs(t, err, ErrPanic)
}

func TestExtract_CancelledContext(t *testing.T) {
	s, n, path := newService(t, fixture.Adder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Extract(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, n.all())
	assert.NoFileExists(t, path)
}

func TestStartStop(t *testing.T) {
	s, n, path := newService(t, fixture.Adder())
	keys := &heldKey{}
	settings := TriggerSettings{Keys: keys, Key: "F9", Mode: trigger.ModeEdge, Interval: time.Millisecond}

	require.NoError(t, s.Start(context.Background(), settings))
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Start(context.Background(), settings), ErrRunning)

	keys.down.Store(true)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())

	msgs := n.all()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Vehicle Data Extractor Loaded. Press F9 to extract data.", msgs[0])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// key held the whole time: edge mode fires once
	assert.Equal(t, 1, strings.Count(string(data), "// Extracted at "))

	// restart after stop is allowed
	require.NoError(t, s.Start(context.Background(), settings))
	s.Stop()
}

func TestStop_NotRunning(t *testing.T) {
	s, _, _ := newService(t, fixture.Adder())
	s.Stop()
	assert.False(t, s.Running())
}
