// Package storage defines the session recording backends.
package storage

import "github.com/OCAP2/rigsync/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (assigns ID to the passed pointer)
	StartSession(s *core.Session) error
	EndSession() error

	// Recording
	RecordCalibration(c *core.CalibrationRecord) error
	RecordPoseFrame(f *core.PoseFrame) error
	RecordTargetEvent(e *core.TargetEvent) error
}

// Exportable is an optional interface for backends that write a session
// file when the session ends.
type Exportable interface {
	ExportedFilePath() string
}

// UploadMetadata describes an exported session file sent to the viewer.
type UploadMetadata struct {
	SessionName string
	AssetName   string
	Convention  string
	Duration    float64 // seconds
	Tag         string
}

// Uploader sends exported session files to a remote viewer.
type Uploader interface {
	Upload(filePath string, meta UploadMetadata) error
}
