package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// SlogManager owns the extension's slog logger.
type SlogManager struct {
	logger *slog.Logger

	// Dynamic state added to every record when set
	GetOutputPath func() string
	GetPolicy     func() string
	IsLoopRunning func() bool
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// ParseLevel converts a string log level to slog.Level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the logger. Records go to file, or to stdout when file is nil.
// When remote is set, records are also written to it as JSON (GELF).
func (m *SlogManager) Setup(file io.Writer, level string, remote io.Writer) {
	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(os.Stdout, handlerOpts))
	}
	if remote != nil {
		handlers = append(handlers, slog.NewJSONHandler(remote, handlerOpts))
	}

	m.logger = slog.New(NewContextHandler(NewFanoutHandler(handlers...), m.contextAttrs))
	m.logger.Info("Logging initialized", "level", level)
}

func (m *SlogManager) contextAttrs() []slog.Attr {
	var attrs []slog.Attr
	if m.GetOutputPath != nil {
		if p := m.GetOutputPath(); p != "" {
			attrs = append(attrs, slog.String("output", p))
		}
	}
	if m.GetPolicy != nil {
		if p := m.GetPolicy(); p != "" {
			attrs = append(attrs, slog.String("policy", p))
		}
	}
	if m.IsLoopRunning != nil {
		attrs = append(attrs, slog.Bool("polling", m.IsLoopRunning()))
	}
	return attrs
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// WriteLog writes a log entry with the specified function name, data, and level.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), ParseLevel(level), data, "function", functionName)
}

// NewGELFWriter connects a UDP GELF writer to a Graylog input.
func NewGELFWriter(addr string) (io.WriteCloser, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer: %w", err)
	}
	return w, nil
}

// LogFilePath builds a session log file path using OS-appropriate separators.
func LogFilePath(logsDir, extensionName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", extensionName, sessionStart.Format("20060102_150405")),
	)
}
