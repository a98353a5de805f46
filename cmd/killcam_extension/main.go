package main

/*
#include <stdlib.h>
*/
import "C" // required for -buildmode=c-shared

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/OCAP2/killcam/internal/config"
	"github.com/OCAP2/killcam/internal/director"
	"github.com/OCAP2/killcam/internal/dispatcher"
	"github.com/OCAP2/killcam/internal/handlers"
	"github.com/OCAP2/killcam/internal/host"
	"github.com/OCAP2/killcam/internal/influx"
	"github.com/OCAP2/killcam/internal/logging"
	"github.com/OCAP2/killcam/internal/monitor"
	intOtel "github.com/OCAP2/killcam/internal/otel"
	"github.com/OCAP2/killcam/internal/parser"
	"github.com/OCAP2/killcam/internal/scene"
	"github.com/OCAP2/killcam/internal/storage"
	"github.com/OCAP2/killcam/internal/worker"
	"github.com/OCAP2/killcam/pkg/hostabi"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.1.0"
	BuildDate               string = "unknown"

	ExtensionName string = "killcam_extension"
)

// file paths
var (
	// ModulePath is the absolute path to this library file.
	ModulePath string

	// AddonFolder holds the config file, dumps and the status file. It is
	// the folder the library was loaded from.
	AddonFolder string

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	graylogWriter *gelf.Writer

	sceneCtx     *scene.Context
	frames       *host.FrameHost
	killDirector *director.Director

	// Services
	handlerService  *handlers.Service
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	eventDispatcher *dispatcher.Dispatcher

	storageBackend storage.Backend
	influxManager  *influx.Manager

	shutdownOnce sync.Once
)

// init is run automatically when the module is loaded
func init() {
	var err error

	ModulePath, err = hostabi.ModulePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to locate module: %v\n", err)
	}
	AddonFolder = resolveAddonFolder(ModulePath)

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{Level: "info"})
	Logger = SlogManager.Logger()

	if err := config.Load(AddonFolder); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "folder", AddonFolder)
	}

	logsDir := inAddonFolder(config.GetString("logsDir"))
	LogFilePath = logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)
	LogFile, err = logging.OpenLogFile(logsDir, ExtensionName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	setupLogging()
	Logger.Info("Begin logging in logs directory", "path", LogFilePath)

	if err := setupExtension(); err != nil {
		Logger.Error("Failed to set up extension!", "error", err)
		panic(err)
	}
	Logger.Info("Extension ready",
		"version", CurrentExtensionVersion,
		"commands", eventDispatcher.Commands())
}

func main() {}

// resolveAddonFolder falls back to the working directory when the module
// path is unknown.
func resolveAddonFolder(modulePath string) string {
	if modulePath != "" {
		return filepath.Dir(modulePath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// inAddonFolder resolves a configured path relative to the addon folder.
func inAddonFolder(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(AddonFolder, path)
}

func logWriter() io.Writer {
	if LogFile != nil {
		return LogFile
	}
	return os.Stderr
}

// componentLogger returns a zerolog logger for the managers that log with
// zerolog rather than slog.
func componentLogger(component string) zerolog.Logger {
	return logging.NewZerolog(logWriter(), config.GetString("logLevel"), component)
}

func setupLogging() {
	var err error

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.FromConfig(otelCfg, logWriter(), CurrentExtensionVersion))
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		}
	}

	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		graylogWriter, err = gelf.NewWriter(graylogCfg.Address)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err, "address", graylogCfg.Address)
			graylogWriter = nil
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	sceneCtx = scene.NewContext()
	SlogManager.Setup(logging.Options{
		File:     logWriter(),
		Level:    config.GetString("logLevel"),
		Provider: otelLogProvider,
		Graylog:  graylogWriter,
		Context:  sceneCtx.Attrs,
	})
	Logger = SlogManager.Logger()
}

func setupExtension() error {
	var journals []director.Journal

	backend, err := openStorage(config.GetStorageConfig())
	if err != nil {
		return err
	}
	storageBackend = backend
	journals = append(journals, storageBackend)

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backupPath := filepath.Join(AddonFolder, fmt.Sprintf("%s_%s.influx.gz", ExtensionName, SessionStartTime.Format("20060102_150405")))
		influxManager = influx.NewManager(influxCfg, componentLogger("influx"), backupPath)
		if err := influxManager.Connect(); err != nil {
			Logger.Error("Failed to set up InfluxDB", "error", err)
			influxManager = nil
		} else {
			journals = append(journals, influxManager)
		}
	}

	frames = host.NewFrameHost(nil)
	hostabi.OnPhysics(frames.SetPhysics)

	killDirector, err = director.New(directorConfig(config.GetWorldConfig()), frames, sceneCtx, Logger, journals...)
	if err != nil {
		return fmt.Errorf("failed to create director: %w", err)
	}

	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(componentLogger("dispatcher")))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	// lifecycle and gameplay commands share one lock so an unload never
	// lands in the middle of a frame
	lock := &sync.Mutex{}
	p := parser.NewParser(Logger)

	handlerService = handlers.NewService(handlers.Dependencies{
		Director:         killDirector,
		Frames:           frames,
		Parser:           p,
		LogManager:       SlogManager,
		ExtensionName:    ExtensionName,
		ExtensionVersion: CurrentExtensionVersion,
		BuildDate:        BuildDate,
	}, lock)
	handlerService.RegisterHandlers(eventDispatcher)

	workerManager = worker.NewManager(worker.Dependencies{
		Director: killDirector,
		Frames:   frames,
		Parser:   p,
		Logger:   Logger,
	}, lock)
	workerManager.RegisterHandlers(eventDispatcher)

	registerLifecycleHandlers(eventDispatcher)

	hostabi.SetVersion(CurrentExtensionVersion)
	hostabi.SetDispatcher(eventDispatcher)

	startMonitor()
	return nil
}

// directorConfig applies the world settings over the shipped defaults.
func directorConfig(world config.WorldConfig) director.Config {
	cfg := director.DefaultConfig()
	if world.CharacterType != "" {
		cfg.CharacterType = world.CharacterType
	}
	if world.TrailBack > 0 {
		cfg.KillCam.TrailBack = world.TrailBack
	}
	if world.TrailUp > 0 {
		cfg.KillCam.TrailUp = world.TrailUp
	}
	return cfg
}

func startMonitor() {
	monitorCfg := config.GetMonitorConfig()
	if !monitorCfg.Enabled {
		return
	}

	deps := monitor.Dependencies{
		Source:      killDirector,
		Logger:      Logger,
		AddonFolder: AddonFolder,
		Interval:    monitorCfg.Interval,
	}
	if influxManager != nil {
		deps.Sink = influxManager
	}

	monitorService = monitor.NewService(deps, CurrentExtensionVersion)
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	}
}

// registerLifecycleHandlers registers the commands that talk about the
// extension itself rather than the scene.
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":GETDIR:MODULE:", func(e dispatcher.Event) (any, error) {
		return ModulePath, nil
	})

	d.Register(":GETDIR:LOG:", func(e dispatcher.Event) (any, error) {
		return LogFilePath, nil
	})

	d.Register(":SHUTDOWN:", func(e dispatcher.Event) (any, error) {
		directives := handlerService.Unload()
		shutdown()
		return directives, nil
	}, dispatcher.Exclusive(workerManager.Lock()), dispatcher.Guarded(), dispatcher.Logged())
}

// shutdown ends the session and releases every sink. Safe to call twice.
func shutdown() {
	shutdownOnce.Do(func() {
		Logger.Info("Shutting down")

		if monitorService != nil {
			monitorService.Stop()
		}
		if storageBackend != nil {
			if err := storageBackend.Close(); err != nil {
				Logger.Error("Failed to close storage backend", "error", err)
			}
		}
		if influxManager != nil {
			if err := influxManager.Close(); err != nil {
				Logger.Error("Failed to close InfluxDB", "error", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := SlogManager.Flush(ctx); err != nil {
			Logger.Error("Failed to flush logs", "error", err)
		}
		if OTelProvider != nil {
			if err := OTelProvider.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to shut down OTel: %v\n", err)
			}
		}
		if graylogWriter != nil {
			_ = graylogWriter.Close()
		}
		if LogFile != nil {
			_ = LogFile.Sync()
		}
	})
}
