// Package output appends rendered literals to the output file.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFileName is the output file written next to the extension.
const DefaultFileName = "VehiclesDataOutput.cs"

// Appender appends entries to a single file. Existing content is never
// truncated.
type Appender struct {
	mu   sync.Mutex
	path string
}

// NewAppender creates an Appender for path. Relative paths are resolved
// against baseDir.
func NewAppender(baseDir, path string) *Appender {
	if path == "" {
		path = DefaultFileName
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	return &Appender{path: path}
}

// Path returns the resolved output path.
func (a *Appender) Path() string {
	return a.path
}

// Append writes entry to the end of the file, creating it and its directory
// if needed.
func (a *Appender) Append(entry string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}

	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}
