// Package monitor periodically writes the extension status to a JSON file
// next to the library.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vehicle-extractor/extension/internal/extractor"
	"github.com/vehicle-extractor/extension/internal/logging"
	"github.com/vehicle-extractor/extension/internal/worker"
)

// DefaultInterval is used when Dependencies.Interval is not positive.
const DefaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Extractor  *extractor.Service
	// Worker is nil when no archive is configured.
	Worker   *worker.Manager
	Version  string
	Path     string
	Interval time.Duration
	Now      func() time.Time
}

// Status is the content of the status file.
type Status struct {
	Time       time.Time       `json:"time"`
	Version    string          `json:"version"`
	Polling    bool            `json:"polling"`
	Policy     string          `json:"policy"`
	OutputPath string          `json:"outputPath"`
	Extractor  extractor.Stats `json:"extractions"`
	Archive    *worker.Status  `json:"archive,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status
func (s *Service) GetProgramStatus() Status {
	st := Status{
		Time:    s.deps.Now().UTC(),
		Version: s.deps.Version,
	}
	if x := s.deps.Extractor; x != nil {
		st.Polling = x.Running()
		st.Policy = x.Policy().Name
		st.OutputPath = x.OutputPath()
		st.Extractor = x.Stats()
	}
	if s.deps.Worker != nil {
		ws := s.deps.Worker.Status()
		st.Archive = &ws
	}
	return st
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetProgramStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}

	tmp := s.deps.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.deps.Path), 0755); err != nil {
		return fmt.Errorf("error creating status directory: %w", err)
	}
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return os.Rename(tmp, s.deps.Path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "path", s.deps.Path, "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the final write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
