package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/rigsync/internal/attach"
	"github.com/OCAP2/rigsync/internal/avatar"
	"github.com/OCAP2/rigsync/internal/curve"
	"github.com/OCAP2/rigsync/internal/dispatcher"
	"github.com/OCAP2/rigsync/internal/influx"
	"github.com/OCAP2/rigsync/internal/storage"
	"github.com/OCAP2/rigsync/pkg/core"
)

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	opts := func(extra ...dispatcher.Option) []dispatcher.Option {
		out := append([]dispatcher.Option{dispatcher.Logged()}, extra...)
		if m.deps.Journal != nil {
			out = append(out, dispatcher.Journaled(m.deps.Journal))
		}
		return out
	}

	// Session lifecycle - sync (ids must exist before records arrive)
	d.Register(":SESSION:START:", m.handleSessionStart, opts()...)
	d.Register(":SESSION:END:", m.handleSessionEnd, opts()...)

	// Tracking input - sync, cheap and ordered
	d.Register(":ANCHOR:", m.handleAnchor, dispatcher.Logged())
	d.Register(":JOINT:", m.handleJoint, dispatcher.Logged())

	// Registry changes
	d.Register(":CALIBRATE:", m.handleCalibrate, opts()...)
	d.Register(":ATTACH:", m.handleAttach, opts()...)
	d.Register(":DETACH:", m.handleDetach, opts()...)

	// Frame clock
	d.Register(":TICK:", m.handleTick, dispatcher.Logged())

	// Curve export
	d.Register(":RECORD:START:", m.handleRecordStart, opts()...)
	d.Register(":RECORD:STOP:", m.handleRecordStop, opts()...)

	// Telemetry - buffered
	d.Register(":METRIC:", m.handleMetric, dispatcher.Buffered(1000), dispatcher.Logged())
	d.Register(":LOG:", m.handleLog, dispatcher.Buffered(1000))
}

func (m *Manager) handleSessionStart(e dispatcher.Event) (any, error) {
	if _, active := m.deps.Session.Current(); active {
		if _, err := m.endSession(); err != nil {
			m.logger.Error("failed to end previous session", "error", err)
		}
	}

	s := m.deps.Parser.ParseSessionStart(e.Args)
	if err := m.backend.StartSession(&s); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	m.deps.Session.SetFrame(m.deps.Controller.Frame())
	m.deps.Session.Start(s)

	m.logger.Info("Session started", "name", s.Name, "id", s.ID)
	return strconv.FormatUint(uint64(s.ID), 10), nil
}

func (m *Manager) handleSessionEnd(_ dispatcher.Event) (any, error) {
	return m.endSession()
}

// endSession ends the active session. It is a no-op without one. The result
// is the exported file path for backends that write one.
func (m *Manager) endSession() (string, error) {
	s, ok := m.deps.Session.End()
	if !ok {
		return "", nil
	}
	if err := m.backend.EndSession(); err != nil {
		return "", fmt.Errorf("failed to end session %d: %w", s.ID, err)
	}

	var path string
	if exp, ok := m.backend.(storage.Exportable); ok {
		path = exp.ExportedFilePath()
	}
	m.logger.Info("Session ended", "name", s.Name, "id", s.ID, "file", path)
	m.upload(s, path)
	return path, nil
}

// upload sends a JSON export to the viewer in the background.
func (m *Manager) upload(s core.Session, path string) {
	if m.deps.Uploader == nil || !strings.Contains(filepath.Base(path), ".json") {
		return
	}
	meta := storage.UploadMetadata{
		SessionName: s.Name,
		AssetName:   s.AssetName,
		Convention:  s.Convention,
		Duration:    time.Since(s.StartTime).Seconds(),
		Tag:         m.deps.UploadTag,
	}

	m.uploads.Add(1)
	go func() {
		defer m.uploads.Done()
		if err := m.deps.Uploader.Upload(path, meta); err != nil {
			m.logger.Error("Failed to upload session", "file", path, "error", err)
			return
		}
		m.logger.Info("Session uploaded", "file", path)
	}()
}

func (m *Manager) handleAnchor(e dispatcher.Event) (any, error) {
	a, err := m.deps.Parser.ParseAnchor(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse anchor: %w", err)
	}
	if err := m.deps.Anchors.Update(a); err != nil {
		return nil, fmt.Errorf("failed to store anchor: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleJoint(e dispatcher.Event) (any, error) {
	j, err := m.deps.Parser.ParseJoint(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse joint: %w", err)
	}
	if err := m.deps.Controller.SetJointRotation(j.Name, j.Rotation); err != nil {
		return nil, err
	}
	return nil, nil
}

func (m *Manager) handleCalibrate(e dispatcher.Event) (any, error) {
	cal, err := m.deps.Controller.Calibrate(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to calibrate: %w", err)
	}
	m.recordCalibration(e.Timestamp, cal)
	return fmt.Sprintf("%d joints", len(cal.Joints)), nil
}

func (m *Manager) handleAttach(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseTarget(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse attach: %w", err)
	}

	cal, attachErr := m.deps.Controller.Attach(context.Background(), id)
	if len(cal.Joints) > 0 {
		m.recordCalibration(e.Timestamp, cal)
	}
	m.recordTargetEvent(e.Timestamp, id, core.TargetAttached, attachErr)
	if attachErr != nil {
		return nil, attachErr
	}
	return id, nil
}

func (m *Manager) handleDetach(e dispatcher.Event) (any, error) {
	id, err := m.deps.Parser.ParseTarget(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detach: %w", err)
	}
	m.deps.Controller.Detach(id)
	m.recordTargetEvent(e.Timestamp, id, core.TargetDetached, nil)
	return id, nil
}

func (m *Manager) handleTick(e dispatcher.Event) (any, error) {
	bc, ok, err := m.deps.Controller.Tick(context.Background())
	m.deps.Session.SetFrame(m.deps.Controller.Frame())
	if err != nil {
		return nil, fmt.Errorf("failed to broadcast: %w", err)
	}
	if !ok {
		return nil, nil
	}

	sessionID := m.deps.Session.ID()
	if sessionID == 0 {
		return nil, nil
	}
	f := poseFrame(bc)
	f.SessionID = sessionID
	f.Time = e.Timestamp
	f.Frame = m.deps.Session.Frame(m.deps.Controller.Frame())
	if err := m.backend.RecordPoseFrame(&f); err != nil {
		return nil, fmt.Errorf("failed to record pose frame: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleRecordStart(e dispatcher.Event) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recording != nil {
		return nil, ErrRecording
	}

	name := m.deps.Parser.ParseName(e.Args, "take_"+e.Timestamp.Format("20060102_150405"))
	rec := curve.NewSession(name, m.deps.Curves.Dir, m.deps.Curves.Joints, m.deps.Curves.Channels, m.logger)
	m.deps.Controller.AddFrameObserver(rec)
	m.recording = rec

	m.logger.Info("Curve recording started", "name", name)
	return name, nil
}

func (m *Manager) handleRecordStop(_ dispatcher.Event) (any, error) {
	return m.stopRecording()
}

func (m *Manager) stopRecording() (string, error) {
	m.mu.Lock()
	rec := m.recording
	m.recording = nil
	m.mu.Unlock()
	if rec == nil {
		return "", ErrNotRecording
	}

	m.deps.Controller.RemoveFrameObserver(rec)
	path, err := rec.Close()
	if err != nil {
		return "", fmt.Errorf("failed to write curves: %w", err)
	}
	m.logger.Info("Curve recording written", "file", path, "frames", rec.Frames())
	return path, nil
}

func (m *Manager) handleMetric(e dispatcher.Event) (any, error) {
	if m.deps.Metrics == nil {
		return nil, ErrMetricsDisabled
	}
	bucket, point, err := influx.ParseMetric(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metric: %w", err)
	}
	if err := m.deps.Metrics.WritePoint(bucket, point); err != nil {
		return nil, fmt.Errorf("failed to write metric: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleLog(e dispatcher.Event) (any, error) {
	if m.deps.Logs == nil {
		return nil, nil
	}
	msg, err := m.deps.Parser.ParseLog(e.Args)
	if err != nil {
		return nil, err
	}
	m.deps.Logs.WriteLog(msg.Function, msg.Data, msg.Level)
	return nil, nil
}

func (m *Manager) recordCalibration(at time.Time, cal attach.Calibration) {
	sessionID := m.deps.Session.ID()
	if sessionID == 0 {
		return
	}

	rec := core.CalibrationRecord{
		SessionID: sessionID,
		Time:      at,
		Frame:     m.deps.Session.Frame(cal.Frame),
		Anchors:   cal.Anchors,
		LowerBody: cal.Report.LowerBody,
		Joints:    cal.Joints,
	}
	for _, err := range cal.Report.Degenerate {
		rec.Degenerate = append(rec.Degenerate, err.Error())
	}
	if err := m.backend.RecordCalibration(&rec); err != nil {
		m.logger.Error("failed to record calibration", "error", err)
	}
}

func (m *Manager) recordTargetEvent(at time.Time, targetID string, kind core.TargetEventKind, cause error) {
	sessionID := m.deps.Session.ID()

	if m.deps.Metrics != nil {
		point := influx.TargetEventPoint(sessionID, targetID, string(kind), cause != nil, at)
		if err := m.deps.Metrics.WritePoint(influx.BucketSession, point); err != nil {
			m.logger.Debug("dropping target event point", "error", err)
		}
	}

	if sessionID == 0 {
		return
	}
	ev := core.TargetEvent{
		SessionID: sessionID,
		Time:      at,
		Frame:     m.deps.Session.Frame(m.deps.Controller.Frame()),
		TargetID:  targetID,
		Kind:      kind,
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := m.backend.RecordTargetEvent(&ev); err != nil {
		m.logger.Error("failed to record target event", "error", err)
	}
}

func poseFrame(bc avatar.Broadcast) core.PoseFrame {
	return core.PoseFrame{
		BodyPosition: bc.Pose.BodyPosition,
		BodyRotation: bc.Pose.BodyRotation,
		Muscles:      append([]float64(nil), bc.Pose.Muscles[:]...),
		Targets:      append([]string(nil), bc.Targets...),
		Duration:     bc.Duration,
	}
}

