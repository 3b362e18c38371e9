// Package calibration places the untracked joints of a rig from a sparse set
// of tracked anchors using fixed anthropometric heuristics. Anchors only ever
// drive X and Y; every joint keeps the depth it had in the rig.
package calibration

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/rigsync/internal/bonename"
	"github.com/OCAP2/rigsync/internal/humanoid"
	"github.com/OCAP2/rigsync/internal/skeleton"
	"github.com/OCAP2/rigsync/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrMissingJoint is returned when the rig lacks a joint the heuristics write.
	ErrMissingJoint = errors.New("rig joint not found")
	// ErrDegenerateGeometry marks a zero-length direction; the offset along it
	// was skipped.
	ErrDegenerateGeometry = errors.New("degenerate direction vector")
	// ErrInvalidAnchor is returned for anchors with NaN or infinite positions.
	ErrInvalidAnchor = errors.New("anchor position is not finite")
)

// epsilon is the shortest direction vector that is still normalized.
const epsilon = 1e-9

var down = mgl64.Vec3{0, -1, 0}

var upperBody = []humanoid.Bone{
	humanoid.Hips, humanoid.Neck, humanoid.Head,
	humanoid.LeftShoulder, humanoid.RightShoulder,
	humanoid.LeftUpperArm, humanoid.RightUpperArm,
	humanoid.LeftLowerArm, humanoid.RightLowerArm,
	humanoid.LeftHand, humanoid.RightHand,
}

// lowerBody is parent-first per side so restoring a snapshot in this order
// puts every joint back exactly.
var lowerBody = []humanoid.Bone{
	humanoid.LeftUpperLeg, humanoid.LeftLowerLeg, humanoid.LeftFoot, humanoid.LeftToes,
	humanoid.RightUpperLeg, humanoid.RightLowerLeg, humanoid.RightFoot, humanoid.RightToes,
}

// Report describes what a calibration changed.
type Report struct {
	// LowerBody is true when both feet were supplied and the legs were placed.
	LowerBody bool
	// Degenerate holds one ErrDegenerateGeometry per skipped offset.
	Degenerate []error
	// Positions are the world positions written, keyed by bone.
	Positions map[humanoid.Bone]mgl64.Vec3
}

// Engine runs calibrations with a fixed parameter set.
type Engine struct {
	params Params
	logger *slog.Logger
}

// New creates an engine. A nil logger discards output.
func New(params Params, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{params: params, logger: logger}
}

// Params returns the coefficients in use.
func (e *Engine) Params() Params {
	return e.params
}

// Calibrate moves the named joints of skel to fit anchors. The upper body is
// always placed; the legs only when both feet are present, otherwise every
// leg joint is left exactly where it was. Nothing is mutated when an error
// is returned.
func (e *Engine) Calibrate(skel *skeleton.Skeleton, names bonename.Map, anchors core.AnchorSet) (Report, error) {
	for _, a := range anchors.All() {
		if !skeleton.Finite(a.Position) {
			return Report{}, fmt.Errorf("%s: %w", a.Landmark, ErrInvalidAnchor)
		}
	}

	withLegs := anchors.HasFeet()
	r, err := resolve(skel, names, withLegs)
	if err != nil {
		return Report{}, err
	}

	// legs ride along with the hips; remember them so a skipped lower body
	// can be put back
	var legs map[humanoid.Bone]mgl64.Vec3
	if !withLegs {
		legs = make(map[humanoid.Bone]mgl64.Vec3, len(lowerBody))
		for _, b := range lowerBody {
			if id, ok := r.ids[b]; ok {
				legs[b] = skel.WorldPosition(id)
			}
		}
	}

	root := skel.Root()
	rootPos := skel.WorldPosition(root)
	rootPos[0] = anchors.Head.Position.X()
	rootPos[2] = anchors.Head.Position.Z()
	skel.SetWorldPosition(root, rootPos)

	hipPos := e.upperBody(r, anchors)

	if withLegs {
		e.lowerBody(r, anchors, hipPos)
		r.report.LowerBody = true
	} else {
		for _, b := range lowerBody {
			if p, ok := legs[b]; ok {
				skel.SetWorldPosition(r.ids[b], p)
			}
		}
	}

	for _, err := range r.report.Degenerate {
		e.logger.Warn("calibration skipped an offset", "error", err)
	}
	e.logger.Debug("calibration complete",
		"anchors", anchors.Count(),
		"lowerBody", r.report.LowerBody,
		"degenerate", len(r.report.Degenerate))

	return r.report, nil
}

func (e *Engine) upperBody(r *rig, anchors core.AnchorSet) mgl64.Vec3 {
	p := e.params

	headPos := anchors.Head.Position
	headPos[2] = r.baseZ[humanoid.Head]

	hipPos := r.place(humanoid.Hips, headPos.Add(down.Mul(p.HipOffset)))
	neckPos := r.place(humanoid.Neck, headPos.Add(down.Mul(p.NeckOffset)))
	r.place(humanoid.Head, headPos)

	shoulderBase := neckPos.Add(down.Mul(p.ShoulderOffsetY))

	sides := []struct {
		hand                        core.Anchor
		shoulder, upper, lower, end humanoid.Bone
	}{
		{anchors.LeftHand, humanoid.LeftShoulder, humanoid.LeftUpperArm, humanoid.LeftLowerArm, humanoid.LeftHand},
		{anchors.RightHand, humanoid.RightShoulder, humanoid.RightUpperArm, humanoid.RightLowerArm, humanoid.RightHand},
	}
	for _, s := range sides {
		handPos := s.hand.Position
		handPos[2] = r.baseZ[s.end]

		projected := handPos
		projected[1] = shoulderBase.Y()
		shoulderPos := r.place(s.shoulder, r.offsetToward(s.shoulder, shoulderBase, projected, p.ShoulderOffsetX))

		r.place(s.upper, r.offsetToward(s.upper, shoulderPos, handPos, p.ArmDistanceCoff))

		// a fraction of the shoulder to hand vector, deliberately not normalized
		r.place(s.lower, shoulderPos.Add(handPos.Sub(shoulderPos).Mul(p.ElbowDistanceCoff)))

		r.place(s.end, handPos)
	}

	return hipPos
}

func (e *Engine) lowerBody(r *rig, anchors core.AnchorSet, hipPos mgl64.Vec3) {
	p := e.params

	sides := []struct {
		foot                    *core.Anchor
		upper, lower, end, toes humanoid.Bone
	}{
		{anchors.LeftFoot, humanoid.LeftUpperLeg, humanoid.LeftLowerLeg, humanoid.LeftFoot, humanoid.LeftToes},
		{anchors.RightFoot, humanoid.RightUpperLeg, humanoid.RightLowerLeg, humanoid.RightFoot, humanoid.RightToes},
	}
	for _, s := range sides {
		footPos := s.foot.Position
		footPos[2] = r.baseZ[s.end]

		projected := footPos
		projected[1] = hipPos.Y()
		thigh := r.offsetToward(s.upper, hipPos, projected, p.UpperLegHorizontalOffset)
		thighPos := r.place(s.upper, thigh.Add(down.Mul(p.UpperLegVerticalOffset)))

		r.place(s.lower, footPos.Add(thighPos.Sub(footPos).Mul(p.LowerLegDistanceCoff)))

		r.place(s.toes, footPos)
	}
}

// rig is the per-call view of the joints being calibrated.
type rig struct {
	skel   *skeleton.Skeleton
	ids    map[humanoid.Bone]skeleton.JointID
	baseZ  map[humanoid.Bone]float64
	report Report
}

func resolve(skel *skeleton.Skeleton, names bonename.Map, withLegs bool) (*rig, error) {
	if skel.Len() == 0 {
		return nil, fmt.Errorf("empty skeleton: %w", ErrMissingJoint)
	}

	r := &rig{
		skel:  skel,
		ids:   make(map[humanoid.Bone]skeleton.JointID, len(upperBody)+len(lowerBody)),
		baseZ: make(map[humanoid.Bone]float64, len(upperBody)+len(lowerBody)),
		report: Report{
			Positions: make(map[humanoid.Bone]mgl64.Vec3, len(upperBody)+len(lowerBody)),
		},
	}

	lookup := func(b humanoid.Bone, required bool) error {
		name, ok := names.Lookup(b)
		if ok {
			if id, found := skel.Find(name); found {
				r.ids[b] = id
				r.baseZ[b] = skel.WorldPosition(id).Z()
				return nil
			}
		}
		if !required {
			return nil
		}
		if name == "" {
			return fmt.Errorf("%s is not named by the %s convention: %w", b, names.Convention(), ErrMissingJoint)
		}
		return fmt.Errorf("%s (%q): %w", b, name, ErrMissingJoint)
	}

	for _, b := range upperBody {
		if err := lookup(b, true); err != nil {
			return nil, err
		}
	}
	for _, b := range lowerBody {
		if err := lookup(b, withLegs); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// place writes p to bone b with its depth pinned to the rig baseline and
// returns the position actually written.
func (r *rig) place(b humanoid.Bone, p mgl64.Vec3) mgl64.Vec3 {
	p[2] = r.baseZ[b]
	r.skel.SetWorldPosition(r.ids[b], p)
	r.report.Positions[b] = p
	return p
}

// offsetToward moves base by dist along the direction to target. A zero-length
// direction leaves base unchanged and is recorded against bone b.
func (r *rig) offsetToward(b humanoid.Bone, base, target mgl64.Vec3, dist float64) mgl64.Vec3 {
	dir := target.Sub(base)
	if dir.Len() < epsilon {
		r.report.Degenerate = append(r.report.Degenerate, fmt.Errorf("%s: %w", b, ErrDegenerateGeometry))
		return base
	}
	return base.Add(dir.Normalize().Mul(dist))
}
