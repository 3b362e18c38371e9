package v1

import (
	"math"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/OCAP2/rigsync/pkg/core"
)

// SessionData contains all the data needed to build an export
type SessionData struct {
	Session        *core.Session
	ServiceVersion string
	Calibrations   []core.CalibrationRecord
	Frames         []core.PoseFrame
	TargetEvents   []core.TargetEvent
}

// Build creates an Export from the session data
func Build(data *SessionData) Export {
	export := Export{
		FormatVersion:  FormatVersion,
		ServiceVersion: data.ServiceVersion,
		Calibrations:   make([]Calibration, 0, len(data.Calibrations)),
		Frames:         make([][]any, 0, len(data.Frames)),
		Events:         make([][]any, 0, len(data.TargetEvents)),
	}
	if s := data.Session; s != nil {
		export.SessionName = s.Name
		export.Convention = s.Convention
		export.AssetName = s.AssetName
		export.StartTime = s.StartTime.UTC().Format(time.RFC3339)
	}

	maxFrame := 0
	seen := func(frame uint) int {
		maxFrame = max(maxFrame, int(frame))
		return int(frame)
	}

	// Calibrations
	for _, c := range data.Calibrations {
		cal := Calibration{
			Frame:      seen(c.Frame),
			LowerBody:  c.LowerBody,
			Degenerate: c.Degenerate,
			Anchors:    make(map[string][7]float64, c.Anchors.Count()),
			Joints:     make([][]any, 0, len(c.Joints)),
		}
		if cal.Degenerate == nil {
			cal.Degenerate = []string{}
		}
		for _, a := range c.Anchors.All() {
			cal.Anchors[string(a.Landmark)] = anchorArray(a)
		}
		for _, j := range c.Joints {
			// Format: [name, parent, [x, y, z]]
			cal.Joints = append(cal.Joints, []any{j.Name, j.Parent, vec(j.Position)})
		}
		export.Calibrations = append(export.Calibrations, cal)
	}

	// Frames
	// Format: [frameNum, [x, y, z], [qx, qy, qz, qw], muscles, targets]
	for _, f := range data.Frames {
		muscles := make([]float64, len(f.Muscles))
		for i, m := range f.Muscles {
			muscles[i] = round(m)
		}
		targets := f.Targets
		if targets == nil {
			targets = []string{}
		}
		export.Frames = append(export.Frames, []any{
			seen(f.Frame),
			vec(f.BodyPosition),
			quat(f.BodyRotation),
			muscles,
			targets,
		})
	}

	// Target events
	// Format: [frameNum, "attach"|"detach", targetId, error]
	for _, e := range data.TargetEvents {
		export.Events = append(export.Events, []any{
			seen(e.Frame),
			string(e.Kind),
			e.TargetID,
			e.Error,
		})
	}
	slices.SortStableFunc(export.Events, func(a, b []any) int {
		return a[0].(int) - b[0].(int)
	})

	export.EndFrame = maxFrame
	return export
}

// round keeps six decimals, enough for millimetre positions and muscle values
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func vec(v mgl64.Vec3) []float64 {
	return []float64{round(v.X()), round(v.Y()), round(v.Z())}
}

func quat(q mgl64.Quat) []float64 {
	return []float64{round(q.V.X()), round(q.V.Y()), round(q.V.Z()), round(q.W)}
}

func anchorArray(a core.Anchor) [7]float64 {
	p, q := a.Position, a.Rotation
	return [7]float64{
		round(p.X()), round(p.Y()), round(p.Z()),
		round(q.V.X()), round(q.V.Y()), round(q.V.Z()), round(q.W),
	}
}
