package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/rigsync/internal/storage"
	"github.com/OCAP2/rigsync/pkg/core"
)

// recorder is a minimal Backend used to pin the interface shape.
type recorder struct {
	session *core.Session
	frames  []core.PoseFrame
	path    string
}

func (r *recorder) Init() error  { return nil }
func (r *recorder) Close() error { return nil }
func (r *recorder) StartSession(s *core.Session) error {
	s.ID = 7
	r.session = s
	return nil
}
func (r *recorder) EndSession() error {
	r.path = "/tmp/" + r.session.Name + ".json"
	return nil
}
func (r *recorder) RecordCalibration(*core.CalibrationRecord) error { return nil }
func (r *recorder) RecordPoseFrame(f *core.PoseFrame) error {
	r.frames = append(r.frames, *f)
	return nil
}
func (r *recorder) RecordTargetEvent(*core.TargetEvent) error { return nil }
func (r *recorder) ExportedFilePath() string                  { return r.path }

var (
	_ storage.Backend    = (*recorder)(nil)
	_ storage.Exportable = (*recorder)(nil)
)

func TestBackendLifecycle(t *testing.T) {
	var b storage.Backend = &recorder{}
	require.NoError(t, b.Init())

	s := &core.Session{Name: "take1", StartTime: time.Now()}
	require.NoError(t, b.StartSession(s))
	assert.Equal(t, uint(7), s.ID)

	require.NoError(t, b.RecordPoseFrame(&core.PoseFrame{SessionID: s.ID, Frame: 1}))
	require.NoError(t, b.EndSession())

	exp, ok := b.(storage.Exportable)
	require.True(t, ok)
	assert.Equal(t, "/tmp/take1.json", exp.ExportedFilePath())
	require.NoError(t, b.Close())
}
