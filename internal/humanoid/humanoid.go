// Package humanoid defines the generic humanoid bone schema that every rig
// convention is mapped onto.
package humanoid

import "strings"

// Bone identifies a generic humanoid bone independent of any rig's naming.
type Bone int

const (
	Hips Bone = iota
	LeftUpperLeg
	RightUpperLeg
	LeftLowerLeg
	RightLowerLeg
	LeftFoot
	RightFoot
	Spine
	Chest
	Neck
	Head
	LeftShoulder
	RightShoulder
	LeftUpperArm
	RightUpperArm
	LeftLowerArm
	RightLowerArm
	LeftHand
	RightHand
	LeftToes
	RightToes
	LeftThumbProximal
	LeftThumbIntermediate
	LeftThumbDistal
	LeftIndexProximal
	LeftIndexIntermediate
	LeftIndexDistal
	LeftMiddleProximal
	LeftMiddleIntermediate
	LeftMiddleDistal
	LeftRingProximal
	LeftRingIntermediate
	LeftRingDistal
	LeftLittleProximal
	LeftLittleIntermediate
	LeftLittleDistal
	RightThumbProximal
	RightThumbIntermediate
	RightThumbDistal
	RightIndexProximal
	RightIndexIntermediate
	RightIndexDistal
	RightMiddleProximal
	RightMiddleIntermediate
	RightMiddleDistal
	RightRingProximal
	RightRingIntermediate
	RightRingDistal
	RightLittleProximal
	RightLittleIntermediate
	RightLittleDistal

	// BoneCount is the number of generic bones.
	BoneCount
)

// NoBone is returned by Parent for the root of the generic hierarchy.
const NoBone Bone = -1

var boneNames = [BoneCount]string{
	"Hips",
	"LeftUpperLeg",
	"RightUpperLeg",
	"LeftLowerLeg",
	"RightLowerLeg",
	"LeftFoot",
	"RightFoot",
	"Spine",
	"Chest",
	"Neck",
	"Head",
	"LeftShoulder",
	"RightShoulder",
	"LeftUpperArm",
	"RightUpperArm",
	"LeftLowerArm",
	"RightLowerArm",
	"LeftHand",
	"RightHand",
	"LeftToes",
	"RightToes",
	"Left Thumb Proximal",
	"Left Thumb Intermediate",
	"Left Thumb Distal",
	"Left Index Proximal",
	"Left Index Intermediate",
	"Left Index Distal",
	"Left Middle Proximal",
	"Left Middle Intermediate",
	"Left Middle Distal",
	"Left Ring Proximal",
	"Left Ring Intermediate",
	"Left Ring Distal",
	"Left Little Proximal",
	"Left Little Intermediate",
	"Left Little Distal",
	"Right Thumb Proximal",
	"Right Thumb Intermediate",
	"Right Thumb Distal",
	"Right Index Proximal",
	"Right Index Intermediate",
	"Right Index Distal",
	"Right Middle Proximal",
	"Right Middle Intermediate",
	"Right Middle Distal",
	"Right Ring Proximal",
	"Right Ring Intermediate",
	"Right Ring Distal",
	"Right Little Proximal",
	"Right Little Intermediate",
	"Right Little Distal",
}

// String returns the canonical display name, e.g. "LeftUpperArm" or
// "Left Thumb Proximal".
func (b Bone) String() string {
	if !b.Valid() {
		return "Unknown"
	}
	return boneNames[b]
}

// Valid reports whether b is one of the generic bones.
func (b Bone) Valid() bool {
	return b >= 0 && b < BoneCount
}

// IsFinger reports whether b is a finger phalanx.
func (b Bone) IsFinger() bool {
	return b >= LeftThumbProximal && b < BoneCount
}

// All returns every generic bone in schema order.
func All() []Bone {
	bones := make([]Bone, BoneCount)
	for i := range bones {
		bones[i] = Bone(i)
	}
	return bones
}

// Parse resolves a canonical bone name. Matching ignores case and spaces so
// "left thumb proximal" and "LeftThumbProximal" both resolve.
func Parse(name string) (Bone, bool) {
	key := normalize(name)
	for i, n := range boneNames {
		if normalize(n) == key {
			return Bone(i), true
		}
	}
	return NoBone, false
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}

var required = []Bone{
	Hips, Spine, Head,
	LeftUpperArm, RightUpperArm,
	LeftLowerArm, RightLowerArm,
	LeftHand, RightHand,
	LeftUpperLeg, RightUpperLeg,
	LeftLowerLeg, RightLowerLeg,
	LeftFoot, RightFoot,
}

// Required returns the bones a descriptor must bind to be a valid humanoid.
func Required() []Bone {
	out := make([]Bone, len(required))
	copy(out, required)
	return out
}

// IsRequired reports whether b must be bound.
func IsRequired(b Bone) bool {
	for _, r := range required {
		if r == b {
			return true
		}
	}
	return false
}

var parents = func() [BoneCount]Bone {
	var p [BoneCount]Bone
	p[Hips] = NoBone
	p[Spine] = Hips
	p[Chest] = Spine
	p[Neck] = Chest
	p[Head] = Neck
	p[LeftUpperLeg] = Hips
	p[RightUpperLeg] = Hips
	p[LeftLowerLeg] = LeftUpperLeg
	p[RightLowerLeg] = RightUpperLeg
	p[LeftFoot] = LeftLowerLeg
	p[RightFoot] = RightLowerLeg
	p[LeftToes] = LeftFoot
	p[RightToes] = RightFoot
	p[LeftShoulder] = Chest
	p[RightShoulder] = Chest
	p[LeftUpperArm] = LeftShoulder
	p[RightUpperArm] = RightShoulder
	p[LeftLowerArm] = LeftUpperArm
	p[RightLowerArm] = RightUpperArm
	p[LeftHand] = LeftLowerArm
	p[RightHand] = RightLowerArm

	// each finger is proximal -> intermediate -> distal, rooted at the hand
	for f := 0; f < 5; f++ {
		l := LeftThumbProximal + Bone(f*3)
		r := RightThumbProximal + Bone(f*3)
		p[l], p[l+1], p[l+2] = LeftHand, l, l+1
		p[r], p[r+1], p[r+2] = RightHand, r, r+1
	}
	return p
}()

// Parent returns the generic parent of b, or NoBone for Hips.
func Parent(b Bone) Bone {
	if !b.Valid() {
		return NoBone
	}
	return parents[b]
}
