package worker

import (
	"errors"
	"log/slog"
	"sync"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/OCAP2/rigsync/internal/attach"
	"github.com/OCAP2/rigsync/internal/curve"
	"github.com/OCAP2/rigsync/internal/dispatcher"
	"github.com/OCAP2/rigsync/internal/parser"
	"github.com/OCAP2/rigsync/internal/session"
	"github.com/OCAP2/rigsync/internal/storage"
	"github.com/OCAP2/rigsync/internal/tracking"
)

var (
	// ErrRecording is returned by :RECORD:START: while a curve recording runs.
	ErrRecording = errors.New("curve recording already running")
	// ErrNotRecording is returned by :RECORD:STOP: without a running recording.
	ErrNotRecording = errors.New("no curve recording running")
	// ErrMetricsDisabled is returned by :METRIC: when no metric writer is set.
	ErrMetricsDisabled = errors.New("metrics disabled")
)

// MetricWriter receives influx points. *influx.Manager satisfies it.
type MetricWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// LogWriter receives client log lines. *logging.SlogManager satisfies it.
type LogWriter interface {
	WriteLog(functionName, data, level string)
}

// CurveOptions configures curve recordings started by :RECORD:START:.
type CurveOptions struct {
	Dir      string
	Joints   []string
	Channels curve.Channels
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Parser     *parser.Parser
	Controller *attach.Controller
	Anchors    *tracking.Store
	Session    *session.Context
	Curves     CurveOptions

	// Optional
	Metrics MetricWriter
	Logs    LogWriter
	Journal dispatcher.Journal
	Logger  *slog.Logger

	// Uploader receives JSON session exports when a session ends.
	Uploader  storage.Uploader
	UploadTag string
}

// Manager turns dispatcher events into controller calls and session records.
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	logger  *slog.Logger

	mu        sync.Mutex
	recording *curve.Session
	uploads   sync.WaitGroup
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
		logger:  logger,
	}
}

// Recording reports whether a curve recording is running.
func (m *Manager) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording != nil
}

// Close stops a running curve recording, ends the active session and waits
// for pending uploads.
func (m *Manager) Close() error {
	defer m.uploads.Wait()

	var errs []error
	if m.Recording() {
		if _, err := m.stopRecording(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := m.endSession(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
