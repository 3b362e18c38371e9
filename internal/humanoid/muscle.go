package humanoid

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Axis is one rotational degree of freedom of a bone.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

var axisNames = [3]string{"Twist", "Front-Back", "Down-Up"}

// MusclesPerBone is fixed: every bone except Hips has one muscle per axis.
const MusclesPerBone = 3

// MuscleCount is the length of a pose's muscle vector.
const MuscleCount = (int(BoneCount) - 1) * MusclesPerBone

// MuscleIndex returns the position of (b, axis) in the muscle vector.
// Hips carries the body transform instead of muscles and returns false.
func MuscleIndex(b Bone, axis Axis) (int, bool) {
	if !b.Valid() || b == Hips || axis < AxisX || axis > AxisZ {
		return 0, false
	}
	return (int(b)-1)*MusclesPerBone + int(axis), true
}

// MuscleName returns a human readable label for muscle i.
func MuscleName(i int) string {
	if i < 0 || i >= MuscleCount {
		return ""
	}
	b := Bone(i/MusclesPerBone + 1)
	return fmt.Sprintf("%s %s", b, axisNames[i%MusclesPerBone])
}

// Limit is the rotation range of a bone in degrees around its local axes,
// relative to the rest pose.
type Limit struct {
	Min mgl64.Vec3 `json:"min"`
	Max mgl64.Vec3 `json:"max"`
}

func limit(minX, maxX, minY, maxY, minZ, maxZ float64) Limit {
	return Limit{
		Min: mgl64.Vec3{minX, minY, minZ},
		Max: mgl64.Vec3{maxX, maxY, maxZ},
	}
}

var (
	spineLimit    = limit(-40, 40, -40, 40, -40, 40)
	shoulderLimit = limit(-15, 30, -15, 15, -15, 15)
	upperArmLimit = limit(-60, 100, -100, 100, -90, 90)
	lowerArmLimit = limit(-90, 90, -80, 80, -10, 160)
	handLimit     = limit(-40, 40, -80, 80, -40, 40)
	upperLegLimit = limit(-90, 50, -60, 60, -60, 60)
	lowerLegLimit = limit(-90, 90, -80, 80, -10, 160)
	footLimit     = limit(-30, 50, -30, 30, -20, 20)
	toesLimit     = limit(-50, 50, -20, 20, -20, 20)
	fingerLimit   = limit(-20, 20, -40, 40, -50, 50)
)

// DefaultLimit returns the default rotation range of b. Hips is unlimited
// because it is driven by the body transform.
func DefaultLimit(b Bone) Limit {
	if b.IsFinger() {
		return fingerLimit
	}

	switch b {
	case Spine, Chest, Neck, Head:
		return spineLimit
	case LeftShoulder, RightShoulder:
		return shoulderLimit
	case LeftUpperArm, RightUpperArm:
		return upperArmLimit
	case LeftLowerArm, RightLowerArm:
		return lowerArmLimit
	case LeftHand, RightHand:
		return handLimit
	case LeftUpperLeg, RightUpperLeg:
		return upperLegLimit
	case LeftLowerLeg, RightLowerLeg:
		return lowerLegLimit
	case LeftFoot, RightFoot:
		return footLimit
	case LeftToes, RightToes:
		return toesLimit
	default:
		return Limit{}
	}
}

// ToMuscle converts an angle in degrees on the given axis to a normalized
// muscle value in [-1, 1]. Axes with an empty range yield 0.
func (l Limit) ToMuscle(axis Axis, degrees float64) float64 {
	var m float64
	switch {
	case degrees >= 0 && l.Max[axis] > 0:
		m = degrees / l.Max[axis]
	case degrees < 0 && l.Min[axis] < 0:
		m = -degrees / l.Min[axis]
	}
	return mgl64.Clamp(m, -1, 1)
}

// FromMuscle is the inverse of ToMuscle for values inside [-1, 1].
func (l Limit) FromMuscle(axis Axis, muscle float64) float64 {
	muscle = mgl64.Clamp(muscle, -1, 1)
	if muscle >= 0 {
		return muscle * l.Max[axis]
	}
	return -muscle * l.Min[axis]
}
