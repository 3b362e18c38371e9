package convert

import (
	"encoding/json"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/rigsync/internal/model"
	"github.com/OCAP2/rigsync/pkg/core"
)

// pointToVec converts a geom.Point back to a world position
func pointToVec(p geom.Point) mgl64.Vec3 {
	coord, ok := p.Coordinates()
	if !ok {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{coord.XY.X, coord.XY.Y, coord.Z}
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:         s.ID,
		Name:       s.Name,
		StartTime:  s.StartTime,
		Convention: s.Convention,
		AssetName:  s.AssetName,
		Version:    s.Version,
	}
}

// CalibrationToCore converts a GORM Calibration with its joints preloaded.
func CalibrationToCore(c model.Calibration) core.CalibrationRecord {
	rec := core.CalibrationRecord{
		SessionID: c.SessionID,
		Time:      c.Time,
		Frame:     c.Frame,
		LowerBody: c.LowerBody,
		Joints:    make([]core.JointSample, len(c.Joints)),
	}
	if len(c.Anchors) > 0 {
		_ = json.Unmarshal(c.Anchors, &rec.Anchors)
	}
	if len(c.Degenerate) > 0 {
		_ = json.Unmarshal(c.Degenerate, &rec.Degenerate)
	}
	for i, j := range c.Joints {
		rec.Joints[i] = core.JointSample{
			Name:     j.Name,
			Parent:   j.Parent,
			Position: pointToVec(j.Position),
		}
	}
	return rec
}

// PoseFrameToCore converts a GORM PoseFrame to a core.PoseFrame.
func PoseFrameToCore(f model.PoseFrame) core.PoseFrame {
	pf := core.PoseFrame{
		SessionID:    f.SessionID,
		Time:         f.Time,
		Frame:        f.Frame,
		BodyPosition: pointToVec(f.BodyPosition),
		BodyRotation: mgl64.QuatIdent(),
		Duration:     time.Duration(f.DurationUs) * time.Microsecond,
	}
	var rot [4]float64
	if len(f.BodyRotation) > 0 && json.Unmarshal(f.BodyRotation, &rot) == nil {
		pf.BodyRotation = mgl64.Quat{W: rot[3], V: mgl64.Vec3{rot[0], rot[1], rot[2]}}
	}
	if len(f.Muscles) > 0 {
		_ = json.Unmarshal(f.Muscles, &pf.Muscles)
	}
	if len(f.Targets) > 0 {
		_ = json.Unmarshal(f.Targets, &pf.Targets)
	}
	return pf
}

// TargetEventToCore converts a GORM TargetEvent to a core.TargetEvent.
func TargetEventToCore(e model.TargetEvent) core.TargetEvent {
	return core.TargetEvent{
		SessionID: e.SessionID,
		Time:      e.Time,
		Frame:     e.Frame,
		TargetID:  e.TargetID,
		Kind:      core.TargetEventKind(e.Kind),
		Error:     e.Error,
	}
}
