// Package memory implements a storage.Backend that keeps the session in memory
// and exports it to a JSON file when the session ends.
package memory

import (
	"sync"

	"github.com/OCAP2/rigsync/internal/config"
	v1 "github.com/OCAP2/rigsync/internal/storage/memory/export/v1"
	"github.com/OCAP2/rigsync/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	version string
	session *core.Session

	calibrations []core.CalibrationRecord
	frames       []core.PoseFrame
	targetEvents []core.TargetEvent

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend. version is written into every export.
func New(cfg config.MemoryConfig, version string) *Backend {
	return &Backend{
		cfg:     cfg,
		version: version,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and assigns its ID
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter
	session := *s
	b.session = &session

	// Reset all collections
	b.calibrations = nil
	b.frames = nil
	b.targetEvents = nil

	return nil
}

// EndSession exports the session data. It is a no-op without a session.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

// ExportedFilePath returns the path of the last export
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// RecordCalibration records a calibration pass
func (b *Backend) RecordCalibration(c *core.CalibrationRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calibrations = append(b.calibrations, *c)
	return nil
}

// RecordPoseFrame records a broadcast pose
func (b *Backend) RecordPoseFrame(f *core.PoseFrame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, *f)
	return nil
}

// RecordTargetEvent records an attach or detach
func (b *Backend) RecordTargetEvent(e *core.TargetEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targetEvents = append(b.targetEvents, *e)
	return nil
}

// sessionData snapshots the recorded data for the export builder
func (b *Backend) sessionData() *v1.SessionData {
	return &v1.SessionData{
		Session:        b.session,
		ServiceVersion: b.version,
		Calibrations:   b.calibrations,
		Frames:         b.frames,
		TargetEvents:   b.targetEvents,
	}
}
