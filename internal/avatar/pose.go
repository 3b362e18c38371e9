package avatar

import (
	"math"

	"github.com/OCAP2/rigsync/internal/humanoid"
	"github.com/OCAP2/rigsync/internal/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

const rotationEpsilon = 1e-9

// Pose is a skeleton independent humanoid pose. Muscles is an array so a Pose
// is copied by value and every target receives identical data.
type Pose struct {
	BodyPosition mgl64.Vec3
	BodyRotation mgl64.Quat
	Muscles      [humanoid.MuscleCount]float64
}

// NewPose returns the rest pose at the origin.
func NewPose() Pose {
	return Pose{BodyRotation: mgl64.QuatIdent()}
}

// JointRotation is a local rotation to apply to one joint.
type JointRotation struct {
	Joint    skeleton.JointID
	Rotation mgl64.Quat
}

// AppliedPose is a Pose resolved against one descriptor.
type AppliedPose struct {
	HipsJoint    skeleton.JointID
	HipsPosition mgl64.Vec3
	HipsRotation mgl64.Quat
	Locals       []JointRotation
}

// ApplyPose resolves p for the skeleton d describes. It has no side effects.
func ApplyPose(d *Descriptor, p Pose) AppliedPose {
	out := AppliedPose{
		HipsPosition: p.BodyPosition.Mul(d.HumanScale),
		HipsRotation: p.BodyRotation,
		Locals:       make([]JointRotation, 0, len(d.Human)),
	}

	for _, hb := range d.Human {
		if hb.Bone == humanoid.Hips {
			out.HipsJoint = hb.Joint
			continue
		}

		var degrees mgl64.Vec3
		for axis := humanoid.AxisX; axis <= humanoid.AxisZ; axis++ {
			i, _ := humanoid.MuscleIndex(hb.Bone, axis)
			degrees[axis] = hb.Limit.FromMuscle(axis, p.Muscles[i])
		}
		out.Locals = append(out.Locals, JointRotation{
			Joint:    hb.Joint,
			Rotation: hb.RestLocal.Mul(fromRotationVector(degrees)).Normalize(),
		})
	}
	return out
}

// Handler reads and writes poses on one skeleton through its descriptor.
type Handler struct {
	desc *Descriptor
	skel *skeleton.Skeleton
}

// NewHandler binds a descriptor to the skeleton it was built from.
func NewHandler(desc *Descriptor, skel *skeleton.Skeleton) *Handler {
	return &Handler{desc: desc, skel: skel}
}

// Descriptor returns the bound descriptor.
func (h *Handler) Descriptor() *Descriptor {
	return h.desc
}

// Pose samples the current pose of the skeleton.
func (h *Handler) Pose() Pose {
	p := NewPose()

	for _, hb := range h.desc.Human {
		if hb.Bone == humanoid.Hips {
			world := h.skel.World(hb.Joint)
			p.BodyPosition = world.Position.Mul(1 / h.desc.HumanScale)
			p.BodyRotation = world.Rotation
			continue
		}

		delta := hb.RestLocal.Inverse().Mul(h.skel.Local(hb.Joint).Rotation)
		degrees := toRotationVector(delta)
		for axis := humanoid.AxisX; axis <= humanoid.AxisZ; axis++ {
			i, _ := humanoid.MuscleIndex(hb.Bone, axis)
			p.Muscles[i] = hb.Limit.ToMuscle(axis, degrees[axis])
		}
	}
	return p
}

// SetPose drives the skeleton to p.
func (h *Handler) SetPose(p Pose) {
	applied := ApplyPose(h.desc, p)

	h.skel.SetWorldRotation(applied.HipsJoint, applied.HipsRotation)
	h.skel.SetWorldPosition(applied.HipsJoint, applied.HipsPosition)
	for _, jr := range applied.Locals {
		h.skel.SetLocalRotation(jr.Joint, jr.Rotation)
	}
}

// toRotationVector returns the axis-angle form of q scaled to degrees, taking
// the shorter of the two equivalent rotations.
func toRotationVector(q mgl64.Quat) mgl64.Vec3 {
	q = q.Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	s := math.Sqrt(math.Max(0, 1-q.W*q.W))
	if s < rotationEpsilon {
		return mgl64.Vec3{}
	}
	angle := 2 * math.Acos(mgl64.Clamp(q.W, -1, 1))
	return q.V.Mul(mgl64.RadToDeg(angle) / s)
}

func fromRotationVector(degrees mgl64.Vec3) mgl64.Quat {
	angle := degrees.Len()
	if angle < rotationEpsilon {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatRotate(mgl64.DegToRad(angle), degrees.Mul(1/angle))
}
