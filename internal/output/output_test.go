package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppender_ResolvesPath(t *testing.T) {
	base := filepath.Join("addons", "vehicle_extractor")
	abs, err := filepath.Abs("out.cs")
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"default file", "", filepath.Join(base, DefaultFileName)},
		{"relative file", "dump.cs", filepath.Join(base, "dump.cs")},
		{"absolute file", abs, abs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewAppender(base, tt.path).Path())
		})
	}
}

func TestAppend_AppendsNeverTruncates(t *testing.T) {
	dir := t.TempDir()
	a := NewAppender(dir, filepath.Join("nested", "out.cs"))

	require.NoError(t, a.Append("first\n\n"))
	require.NoError(t, a.Append("second\n\n"))

	data, err := os.ReadFile(a.Path())
	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond\n\n", string(data))
}

func TestAppend_KeepsExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("// existing\n"), 0644))

	require.NoError(t, NewAppender(dir, "").Append("new\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "// existing\nnew\n", string(data))
}
