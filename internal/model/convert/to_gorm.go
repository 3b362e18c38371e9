// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/OCAP2/rigsync/internal/model"
	"github.com/OCAP2/rigsync/pkg/core"
)

// vecToPoint converts a world position to a 3D geom.Point
func vecToPoint(v mgl64.Vec3) geom.Point {
	coords := geom.Coordinates{XY: geom.XY{X: v.X(), Y: v.Y()}, Z: v.Z(), Type: geom.DimXYZ}
	return geom.NewPoint(coords)
}

// quatToArray orders a quaternion as x, y, z, w
func quatToArray(q mgl64.Quat) [4]float64 {
	return [4]float64{q.V.X(), q.V.Y(), q.V.Z(), q.W}
}

// toJSON marshals v, using fallback on error or for nil values.
func toJSON(v any, fallback string) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON(fallback)
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	m := model.Session{
		Name:       s.Name,
		StartTime:  s.StartTime,
		Convention: s.Convention,
		AssetName:  s.AssetName,
		Version:    s.Version,
	}
	m.ID = s.ID
	return m
}

// CoreToCalibration converts a calibration record and its joints.
func CoreToCalibration(c core.CalibrationRecord) model.Calibration {
	joints := make([]model.CalibrationJoint, len(c.Joints))
	for i, j := range c.Joints {
		joints[i] = model.CalibrationJoint{
			SessionID: c.SessionID,
			Name:      j.Name,
			Parent:    j.Parent,
			Position:  vecToPoint(j.Position),
		}
	}

	return model.Calibration{
		Time:       c.Time,
		SessionID:  c.SessionID,
		Frame:      c.Frame,
		LowerBody:  c.LowerBody,
		Anchors:    toJSON(c.Anchors, "{}"),
		Degenerate: toJSON(c.Degenerate, "[]"),
		Joints:     joints,
	}
}

// CoreToPoseFrame converts a broadcast pose.
func CoreToPoseFrame(f core.PoseFrame) model.PoseFrame {
	return model.PoseFrame{
		Time:         f.Time,
		SessionID:    f.SessionID,
		Frame:        f.Frame,
		BodyPosition: vecToPoint(f.BodyPosition),
		BodyRotation: toJSON(quatToArray(f.BodyRotation), "[0,0,0,1]"),
		Muscles:      toJSON(f.Muscles, "[]"),
		Targets:      toJSON(f.Targets, "[]"),
		DurationUs:   f.Duration.Microseconds(),
	}
}

// CoreToTargetEvent converts an attach or detach record.
func CoreToTargetEvent(e core.TargetEvent) model.TargetEvent {
	return model.TargetEvent{
		Time:      e.Time,
		SessionID: e.SessionID,
		Frame:     e.Frame,
		TargetID:  e.TargetID,
		Kind:      string(e.Kind),
		Error:     e.Error,
	}
}
