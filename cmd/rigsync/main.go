package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/OCAP2/rigsync/internal/api"
	"github.com/OCAP2/rigsync/internal/attach"
	"github.com/OCAP2/rigsync/internal/avatar"
	"github.com/OCAP2/rigsync/internal/bonename"
	"github.com/OCAP2/rigsync/internal/calibration"
	"github.com/OCAP2/rigsync/internal/config"
	"github.com/OCAP2/rigsync/internal/curve"
	"github.com/OCAP2/rigsync/internal/database"
	"github.com/OCAP2/rigsync/internal/dispatcher"
	"github.com/OCAP2/rigsync/internal/influx"
	"github.com/OCAP2/rigsync/internal/logging"
	"github.com/OCAP2/rigsync/internal/monitor"
	intOtel "github.com/OCAP2/rigsync/internal/otel"
	"github.com/OCAP2/rigsync/internal/parser"
	"github.com/OCAP2/rigsync/internal/session"
	"github.com/OCAP2/rigsync/internal/skeleton"
	"github.com/OCAP2/rigsync/internal/storage"
	"github.com/OCAP2/rigsync/internal/tracking"
	"github.com/OCAP2/rigsync/internal/worker"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	ServiceVersion string = "0.0.1"
	BuildDate      string = "unknown"

	ServiceName string = logging.ServiceName
)

// file paths
var (
	// ConfigDir holds rigsync.cfg.json. Set with --config.
	ConfigDir string

	LogFilePath     string
	LogFile         *os.File
	JournalFilePath string
	JournalFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	// Services
	sessionCtx      = session.NewContext()
	eventDispatcher *dispatcher.Dispatcher
	workerManager   *worker.Manager
	controller      *attach.Controller
	anchorStore     *tracking.Store
	mqttSource      *tracking.MQTTSource
	influxManager   *influx.Manager
	dbManager       *database.Manager
	monitorService  *monitor.Service

	// Storage backend
	storageBackend storage.Backend
)

func main() {
	flags := pflag.NewFlagSet(ServiceName, pflag.ExitOnError)
	flags.StringVarP(&ConfigDir, "config", "c", ".", "directory containing "+config.FileName)
	showVersion := flags.BoolP("version", "v", false, "print version and exit")
	// subcommand flags follow the subcommand name
	flags.SetInterspersed(false)
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("%s %s (%s)\n", ServiceName, ServiceVersion, BuildDate)
		return
	}

	setupLogging()
	defer shutdownLogging()

	args := flags.Args()
	if len(args) > 0 {
		if err := runCommand(args[0], args[1:]); err != nil {
			Logger.Error("Command failed", "command", args[0], "error", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(); err != nil {
		Logger.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
}

// setupLogging loads the config and routes slog to the console, the run's log
// file and, when enabled, OpenTelemetry.
func setupLogging() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", ConfigDir)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	var err error
	LogFilePath = logging.LogFilePath(logsDir, ServiceName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		_ = os.Rename(LogFilePath, LogFilePath+".old")
	}
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	JournalFilePath = logging.JournalFilePath(logsDir, ServiceName, SessionStartTime)
	JournalFile, err = os.OpenFile(JournalFilePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create command journal", "error", err, "path", JournalFilePath)
		JournalFile = nil
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && LogFile != nil {
		OTelProvider, err = intOtel.New(intOtel.FromConfig(otelCfg, ServiceVersion, LogFile))
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath)
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	var file io.Writer
	if LogFile != nil {
		file = LogFile
	}
	SlogManager.SetContextProvider(sessionCtx.LogAttrs)
	SlogManager.Setup(file, viper.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath, "version", ServiceVersion)
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if JournalFile != nil {
		_ = JournalFile.Close()
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

// componentLogWriter is where the zerolog component loggers write.
func componentLogWriter() io.Writer {
	if LogFile != nil {
		return LogFile
	}
	return os.Stderr
}

// serve wires the rig, storage and inputs, then runs the tick clock and the
// stdin command loop until EOF or a signal.
func serve() error {
	initInflux()

	if err := initController(); err != nil {
		return fmt.Errorf("building rig: %w", err)
	}
	if err := initStorage(); err != nil {
		return err
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	eventDispatcher = d
	registerLifecycleHandlers(d)

	rigCfg := config.GetRigConfig()
	exportCfg := config.GetExportConfig()
	deps := worker.Dependencies{
		Parser:     parser.NewParser(Logger, ServiceVersion, rigCfg.Convention, rigCfg.AssetName),
		Controller: controller,
		Anchors:    anchorStore,
		Session:    sessionCtx,
		Curves: worker.CurveOptions{
			Dir:    exportCfg.Dir,
			Joints: exportCfg.Joints,
			Channels: curve.Channels{
				Translation: exportCfg.Translation,
				Rotation:    exportCfg.Rotation,
				Scale:       exportCfg.Scale,
			},
		},
		Logs:   SlogManager,
		Logger: Logger.With("component", "worker"),
	}
	if influxManager != nil {
		deps.Metrics = influxManager
	}
	if JournalFile != nil {
		deps.Journal = logging.NewCommandJournal(JournalFile)
	}
	if url := viper.GetString("api.serverUrl"); url != "" {
		client := api.New(url, viper.GetString("api.apiKey"))
		if err := client.Healthcheck(); err != nil {
			Logger.Warn("Session viewer unreachable, uploads may fail", "url", url, "error", err)
		}
		deps.Uploader = client
		deps.UploadTag = viper.GetString("api.uploadTag")
	}
	workerManager = worker.NewManager(deps, storageBackend)
	workerManager.RegisterHandlers(d)
	Logger.Info("Worker handlers registered with dispatcher", "commands", len(d.Commands()))

	initMQTT()
	startMonitor()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runTicker(ctx, config.GetDuration("tick.interval"))

	lines := make(chan string)
	go readCommands(os.Stdin, lines)

loop:
	for {
		select {
		case <-ctx.Done():
			Logger.Info("Signal received, shutting down")
			break loop
		case line, ok := <-lines:
			if !ok {
				Logger.Info("Command input closed, shutting down")
				break loop
			}
			dispatchLine(line)
		}
	}

	// stops the ticker before handlers are torn down
	stop()
	return shutdown()
}

func initInflux() {
	if !viper.GetBool("influx.enabled") {
		return
	}
	backupPath := filepath.Join(viper.GetString("logsDir"),
		fmt.Sprintf("%s.%s.influx.gz", ServiceName, SessionStartTime.Format("20060102_150405")))
	m := influx.NewManager(logging.NewComponentLogger(componentLogWriter(), viper.GetString("logLevel"), "influx"), backupPath)
	if err := m.Connect(); err != nil {
		Logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
		return
	}
	influxManager = m
}

// initController builds the source rig, the target rig and the controller
// that attaches one to the other.
func initController() error {
	rigCfg := config.GetRigConfig()

	conv, err := bonename.ParseConvention(rigCfg.Convention)
	if err != nil {
		return err
	}
	names, err := bonename.BuildMap(conv, rigCfg.AssetName)
	if err != nil {
		return err
	}
	source, err := skeleton.NewHumanoid(names, rigCfg.Height)
	if err != nil {
		return fmt.Errorf("source rig: %w", err)
	}

	params, err := config.GetCalibrationConfig()
	if err != nil {
		return err
	}
	engine := calibration.New(params, Logger.With("component", "calibration"))

	bridge, err := avatar.NewBridge(Logger.With("component", "bridge"))
	if err != nil {
		return err
	}
	if influxManager != nil {
		bridge.AddObserver(influxManager.BroadcastObserver(sessionCtx.ID))
	}

	anchorStore = tracking.NewStore()
	controller = attach.New(source, names, engine, bridge, anchorStore, attach.Options{
		UseFootTracking: rigCfg.UseFootTracking,
		Logger:          Logger.With("component", "attach"),
	})

	targetNames, err := bonename.BuildMap(conv, rigCfg.Target)
	if err != nil {
		return err
	}
	target, err := skeleton.NewHumanoid(targetNames, rigCfg.TargetHeight)
	if err != nil {
		return fmt.Errorf("target rig: %w", err)
	}
	controller.AddRig(avatar.Rig{ID: rigCfg.Target, Skeleton: target, Names: targetNames})

	Logger.Info("Rig ready",
		"convention", conv.String(),
		"source", rigCfg.AssetName,
		"joints", source.Len(),
		"target", rigCfg.Target)
	return nil
}

func initMQTT() {
	mqttCfg := config.GetMQTTConfig()
	if !mqttCfg.Enabled {
		return
	}

	src := tracking.NewMQTTSource(tracking.MQTTConfig{
		Broker:      mqttCfg.Broker,
		ClientID:    mqttCfg.ClientID,
		TopicPrefix: mqttCfg.TopicPrefix,
		QoS:         mqttCfg.QoS,
	}, anchorStore, Logger.With("component", "mqtt"))

	src.OnTrigger(func(action, target string) {
		command := ":" + strings.ToUpper(action) + ":"
		if _, err := eventDispatcher.Dispatch(dispatcher.Event{Command: command, Args: []string{target}}); err != nil {
			Logger.Warn("Trigger failed", "action", action, "target", target, "error", err)
		}
	})
	src.OnJoint(func(name string, q mgl64.Quat) {
		if err := controller.SetJointRotation(name, q); err != nil {
			Logger.Debug("Joint rotation rejected", "joint", name, "error", err)
		}
	})

	if err := src.Connect(); err != nil {
		Logger.Error("Failed to connect tracking source", "error", err)
		return
	}
	mqttSource = src
}

func startMonitor() {
	deps := monitor.Dependencies{
		Session:   sessionCtx,
		Rig:       controller,
		Anchors:   anchorStore,
		Recording: workerManager.Recording,
		Interval:  config.GetDuration("monitor.interval"),
		Logger:    Logger.With("component", "monitor"),
	}
	if name := viper.GetString("monitor.statusFile"); name != "" {
		deps.StatusPath = filepath.Join(viper.GetString("logsDir"), name)
	}
	if influxManager != nil {
		deps.Metrics = influxManager
	}
	monitorService = monitor.NewService(deps)
	if err := monitorService.Start(); err != nil {
		Logger.Error("Failed to start status monitor", "error", err)
	}
}

func runTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := eventDispatcher.Dispatch(dispatcher.Event{Command: ":TICK:"}); err != nil {
				Logger.Debug("Tick failed", "error", err)
			}
		}
	}
}

func readCommands(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		Logger.Error("Reading commands failed", "error", err)
	}
}

// splitCommandLine splits `:CMD: arg "quoted arg"` into the command and its
// arguments. Doubled quotes inside a quoted argument are kept literally.
func splitCommandLine(line string) (string, []string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil, nil
	}

	r := csv.NewReader(strings.NewReader(line))
	r.Comma = ' '
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return "", nil, fmt.Errorf("malformed command line: %w", err)
	}

	args := fields[:0:0]
	for _, f := range fields[1:] {
		if f != "" {
			args = append(args, f)
		}
	}
	return fields[0], args, nil
}

func dispatchLine(line string) {
	command, args, err := splitCommandLine(line)
	if err != nil {
		fmt.Println("ERROR", err)
		return
	}
	if command == "" {
		return
	}

	result, err := eventDispatcher.Dispatch(dispatcher.Event{Command: command, Args: args})
	switch {
	case errors.Is(err, dispatcher.ErrUnknownCommand):
		fmt.Println("ERROR unknown command", command)
	case err != nil:
		fmt.Println("ERROR", err)
	case result == nil:
		fmt.Println("OK")
	default:
		fmt.Println("OK", formatResult(result))
	}
}

// formatResult prints strings as is and everything else as JSON.
func formatResult(v any) string {
	switch r := v.(type) {
	case string:
		return r
	case fmt.Stringer:
		return r.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// registerLifecycleHandlers registers system/lifecycle command handlers with the dispatcher
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{ServiceVersion, BuildDate}, nil
	})

	d.Register(":GETDIR:LOG:", func(e dispatcher.Event) (any, error) {
		return LogFilePath, nil
	})

	d.Register(":COMMANDS:", func(e dispatcher.Event) (any, error) {
		return d.Commands(), nil
	})

	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		if monitorService == nil {
			return nil, errors.New("status monitor not running")
		}
		return monitorService.GetStatus(), nil
	})

	d.Register(":SAVE:", func(e dispatcher.Event) (any, error) {
		Logger.Info("Received :SAVE: command, ending session recording")
		if _, err := d.Dispatch(dispatcher.Event{Command: ":SESSION:END:"}); err != nil {
			return nil, err
		}
		// Flush OTel data if provider is available
		if OTelProvider != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := OTelProvider.Flush(ctx); err != nil {
				Logger.Warn("Failed to flush OTel data", "error", err)
			}
		}
		return "ok", nil
	}, dispatcher.Logged())
}

func shutdown() error {
	var errs []error

	if monitorService != nil {
		monitorService.Stop()
	}
	if mqttSource != nil {
		mqttSource.Close()
	}
	if workerManager != nil {
		if err := workerManager.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if eventDispatcher != nil {
		eventDispatcher.Close()
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing storage: %w", err))
		}
		if exp, ok := storageBackend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
			Logger.Info("Session file", "path", exp.ExportedFilePath())
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing influx: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush logs", "error", err)
	}
	Logger.Info("Shutdown complete")
	return errors.Join(errs...)
}
