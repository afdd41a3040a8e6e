package main

/*
#include <stdlib.h>
*/
import "C" // required for -buildmode=c-shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vehicle-extractor/extension/internal/api"
	"github.com/vehicle-extractor/extension/internal/config"
	"github.com/vehicle-extractor/extension/internal/dispatcher"
	"github.com/vehicle-extractor/extension/internal/extractor"
	"github.com/vehicle-extractor/extension/internal/influx"
	"github.com/vehicle-extractor/extension/internal/logging"
	"github.com/vehicle-extractor/extension/internal/monitor"
	"github.com/vehicle-extractor/extension/internal/natives"
	"github.com/vehicle-extractor/extension/internal/output"
	"github.com/vehicle-extractor/extension/internal/reader"
	"github.com/vehicle-extractor/extension/internal/snapshot"
	"github.com/vehicle-extractor/extension/internal/storage"
	"github.com/vehicle-extractor/extension/internal/storage/memory"
	"github.com/vehicle-extractor/extension/internal/trigger"
	"github.com/vehicle-extractor/extension/internal/worker"
	"github.com/vehicle-extractor/extension/pkg/hostbridge"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.1.0"
	BuildDate               string = "unknown"

	ExtensionName string = "vehicle_extractor"
)

// file paths
var (
	// ModulePath is the absolute path to this library file.
	ModulePath string

	// ModuleFolder is the parent folder of ModulePath. Config, output and
	// logs are resolved relative to it.
	ModuleFolder string

	InitLogFilePath string
	InitLogFile     *os.File
	LogFilePath     string
	LogFile         *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	SessionStartTime time.Time = time.Now()
	SessionID        string    = uuid.NewString()

	// Services
	extractorService *extractor.Service
	nativeSource     *natives.Source
	eventDispatcher  *dispatcher.Dispatcher
	workerManager    *worker.Manager
	influxManager    *influx.Manager
	monitorService   *monitor.Service
	apiClient        *api.Client

	// Archive backend (optional)
	archiveBackend storage.Backend

	remoteLog io.WriteCloser

	rootCtx    context.Context
	rootCancel context.CancelFunc
	archiveWG  sync.WaitGroup

	setupOnce    sync.Once
	shutdownOnce sync.Once
)

// errHostNotRegistered is returned by :INIT: before the host has handed over
// its native-call function.
var errHostNotRegistered = errors.New("host has not registered its native invoker")

// init is run automatically when the module is loaded. The rest of the setup
// waits for the host's first call, so the CLI never opens logs or archives.
func init() {
	var err error

	ModulePath, err = hostbridge.ModulePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve module path: %v\n", err)
	}
	ModuleFolder = hostbridge.ModuleDir()

	SlogManager = logging.NewSlogManager()
	Logger = SlogManager.Logger()

	rootCtx, rootCancel = context.WithCancel(context.Background())

	hostbridge.OnLoad(setupModule)
}

// setupModule opens the logs, loads config and wires the extension.
func setupModule() {
	setupOnce.Do(func() {
		var err error
		InitLogFilePath = filepath.Join(ModuleFolder, "init.log")
		InitLogFile, err = os.Create(InitLogFilePath)
		if err != nil {
			// Log to stderr since logging isn't set up yet
			fmt.Fprintf(os.Stderr, "Failed to create init log file: %v\n", err)
			InitLogFile = nil
		}
		setLogOutput(InitLogFile, "info", nil)

		// load config; defaults are in place even when the file is missing
		if err := config.Load(ModuleFolder); err != nil {
			Logger.Warn("Failed to load config, using defaults!", "error", err)
		} else {
			Logger.Info("Loaded config")
		}

		openSessionLog()

		if err := setupExtension(); err != nil {
			Logger.Error("Failed to set up extension!", "error", err)
			return
		}
		Logger.Info("Extension ready",
			"version", CurrentExtensionVersion,
			"module", ModulePath,
			"commands", eventDispatcher.Commands())
	})
}

func setLogOutput(file *os.File, level string, remote io.Writer) {
	var w io.Writer
	if file != nil {
		w = file
	}
	SlogManager.Setup(w, level, remote)
	Logger = SlogManager.Logger()
}

// openSessionLog moves logging from init.log into the per-session log file.
func openSessionLog() {
	logsDir := config.GetString("logsDir")
	if !filepath.IsAbs(logsDir) {
		logsDir = filepath.Join(ModuleFolder, logsDir)
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
		return
	}

	LogFilePath = logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
		return
	}

	var remote io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGELFWriter(gl.Address)
		if err != nil {
			Logger.Warn("Failed to connect to Graylog", "error", err, "address", gl.Address)
		} else {
			remoteLog = w
			remote = w
		}
	}

	setLogOutput(LogFile, config.GetString("logLevel"), remote)
	Logger.Info("Logging to file", "path", LogFilePath)
}

// setupExtension wires the extraction pipeline and registers host commands.
func setupExtension() error {
	hostbridge.SetVersion(CurrentExtensionVersion)

	nativeSource = natives.New(hostbridge.HostInvoker{}, Logger)

	svc, err := newService(nativeSource, hostbridge.CAllocator{}, ModuleFolder)
	if err != nil {
		return err
	}
	extractorService = svc

	SlogManager.GetOutputPath = extractorService.OutputPath
	SlogManager.GetPolicy = func() string { return extractorService.Policy().Name }
	SlogManager.IsLoopRunning = extractorService.Running

	d, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	eventDispatcher = d
	registerLifecycleHandlers(d)

	if workerManager != nil {
		workerManager.RegisterHandlers(d)
	}

	hostbridge.SetContext(rootCtx)
	hostbridge.SetDispatcher(d)

	if apiCfg := config.GetAPIConfig(); apiCfg.ServerURL != "" {
		apiClient = api.New(apiCfg.ServerURL, apiCfg.APIKey)
		go checkServerStatus()
	}

	if statusCfg := config.GetStatusConfig(); statusCfg.Interval > 0 {
		path := statusCfg.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(ModuleFolder, path)
		}
		monitorService = monitor.NewService(monitor.Dependencies{
			LogManager: SlogManager,
			Extractor:  extractorService,
			Worker:     workerManager,
			Version:    CurrentExtensionVersion,
			Path:       path,
			Interval:   statusCfg.Interval,
		})
		monitorService.Start()
	}

	if config.GetTriggerConfig().AutoStart {
		hostbridge.OnRegister(func() {
			if err := startTrigger(); err != nil && !errors.Is(err, extractor.ErrRunning) {
				Logger.Error("Failed to start trigger loop", "error", err)
			}
		})
	}
	return nil
}

// newService assembles the extraction service. The archive and influx
// managers are created here too when configured.
func newService(src reader.StateSource, alloc reader.Allocator, baseDir string) (*extractor.Service, error) {
	policy, err := snapshot.PolicyByName(config.GetExtractConfig().Policy)
	if err != nil {
		return nil, err
	}

	deps := extractor.Dependencies{
		Reader: reader.New(src, alloc, Logger),
		Policy: policy,
		Output: output.NewAppender(baseDir, config.GetOutputConfig().Path),
		Logger: Logger,
	}
	if n, ok := src.(extractor.Notifier); ok {
		deps.Notifier = n
	}

	if err := initArchive(config.GetStorageConfig()); err != nil {
		Logger.Error("Archive disabled", "error", err)
	} else if workerManager != nil {
		deps.Archive = workerManager
	}

	if m := initInflux(baseDir); m != nil {
		deps.Metrics = m
	}

	return extractor.New(deps), nil
}

func initInflux(baseDir string) *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: logWriter(), NoColor: true}).
		With().Timestamp().Str("component", "influx").Logger()
	backup := filepath.Join(baseDir, fmt.Sprintf("%s_influx_%s.log.gz", ExtensionName, SessionStartTime.Format("20060102_150405")))

	m := influx.NewManager(cfg, log, backup)
	ctx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		Logger.Error("Failed to initialize InfluxDB", "error", err)
		return nil
	}
	influxManager = m
	return m
}

func checkServerStatus() {
	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()
	if err := apiClient.Healthcheck(ctx); err != nil {
		Logger.Info("Archive server is offline", "error", err)
	} else {
		Logger.Info("Archive server is online")
	}
}

// uploadExport sends the memory archive export to the archive server.
func uploadExport(path string, count int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := apiClient.UploadExport(ctx, path, api.ExportMetadata{
		SessionID: SessionID,
		Version:   CurrentExtensionVersion,
		Count:     count,
	})
	if err != nil {
		Logger.Error("Failed to upload export", "error", err, "path", path)
		return
	}
	Logger.Info("Uploaded export", "path", path, "count", count)
}

// logWriter returns the session log file, or stderr before it is open.
func logWriter() io.Writer {
	if LogFile != nil {
		return LogFile
	}
	return os.Stderr
}

func startTrigger() error {
	if !hostbridge.Registered() {
		return errHostNotRegistered
	}
	cfg := config.GetTriggerConfig()
	mode, err := trigger.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	return extractorService.Start(rootCtx, extractor.TriggerSettings{
		Keys:     nativeSource,
		Key:      cfg.Key,
		Mode:     mode,
		Interval: cfg.PollInterval,
	})
}

// registerLifecycleHandlers registers the host commands with the dispatcher
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(context.Context, dispatcher.Event) (any, error) {
		return []string{CurrentExtensionVersion, BuildDate}, nil
	})

	d.Register(":INIT:", func(context.Context, dispatcher.Event) (any, error) {
		if err := startTrigger(); err != nil {
			return nil, err
		}
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(":STOP:", func(context.Context, dispatcher.Event) (any, error) {
		extractorService.Stop()
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(":EXTRACT:", func(ctx context.Context, _ dispatcher.Event) (any, error) {
		e, err := extractorService.Extract(ctx)
		if err != nil {
			return nil, err
		}
		return e.Snapshot.ModelName, nil
	}, dispatcher.Logged(), dispatcher.Exclusive(), dispatcher.Guarded())

	// queued extractions run off the host's call and are never dropped; the
	// user hears about the result through the usual notification
	d.Register(":EXTRACT:QUEUE:", func(ctx context.Context, _ dispatcher.Event) (any, error) {
		_, err := extractorService.Extract(ctx)
		return nil, err
	}, dispatcher.Logged(), dispatcher.Buffered(4), dispatcher.Blocking(), dispatcher.Guarded())

	d.Register(":GETDIR:OUTPUT:", func(context.Context, dispatcher.Event) (any, error) {
		return extractorService.OutputPath(), nil
	})

	d.Register(":GETDIR:MODULE:", func(context.Context, dispatcher.Event) (any, error) {
		return ModulePath, nil
	})

	d.Register(":GETDIR:LOG:", func(context.Context, dispatcher.Event) (any, error) {
		return LogFilePath, nil
	})

	d.Register(":STATUS:", func(context.Context, dispatcher.Event) (any, error) {
		if monitorService != nil {
			return monitorService.GetProgramStatus(), nil
		}
		return monitor.NewService(monitor.Dependencies{
			Extractor: extractorService,
			Worker:    workerManager,
			Version:   CurrentExtensionVersion,
		}).GetProgramStatus(), nil
	})

	d.Register(":SHUTDOWN:", func(context.Context, dispatcher.Event) (any, error) {
		shutdown()
		return "ok", nil
	}, dispatcher.Logged())
}

// shutdown stops the trigger loop, drains the archive and closes outputs.
// Only the first call does anything.
func shutdown() {
	shutdownOnce.Do(closeAll)
}

func closeAll() {
	// queued commands finish before anything they use is torn down
	if eventDispatcher != nil {
		if err := eventDispatcher.Close(); err != nil {
			Logger.Error("Failed to close dispatcher", "error", err)
		}
	}
	if extractorService != nil {
		extractorService.Stop()
	}
	rootCancel()
	archiveWG.Wait()
	if monitorService != nil {
		monitorService.Stop()
	}

	if archiveBackend != nil {
		var count int
		if mem, ok := archiveBackend.(*memory.Backend); ok {
			count = mem.Len()
		}
		if err := archiveBackend.Close(); err != nil {
			Logger.Error("Failed to close archive", "error", err)
		}
		if mem, ok := archiveBackend.(*memory.Backend); ok && apiClient != nil && config.GetAPIConfig().UploadExports {
			if path := mem.GetExportedFilePath(); path != "" {
				uploadExport(path, count)
			}
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close InfluxDB", "error", err)
		}
	}
	Logger.Info("Extension shut down")
	if remoteLog != nil {
		remoteLog.Close()
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
