// Package avatar binds ad-hoc skeletons to the generic humanoid schema and
// replicates one sampled pose across many differently rigged targets.
package avatar

import (
	"errors"
	"fmt"

	"github.com/OCAP2/rigsync/internal/humanoid"
	"github.com/OCAP2/rigsync/internal/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrSetup is returned when a skeleton cannot be described as a humanoid.
	ErrSetup = errors.New("avatar setup failed")
	// ErrUninitialized is returned by operations that need a built descriptor.
	ErrUninitialized = errors.New("avatar bridge not initialized")
)

// Global descriptor parameters.
const (
	DefaultTwist   = 0.5
	DefaultStretch = 0.05
)

const segmentEpsilon = 1e-6

// BoneNames resolves generic bones to skeleton joint names.
// bonename.Map satisfies it.
type BoneNames interface {
	Lookup(b humanoid.Bone) (string, bool)
	Bones() []humanoid.Bone
}

// HumanBone binds one generic bone to a skeleton joint.
type HumanBone struct {
	Bone      humanoid.Bone
	BoneName  string
	Joint     skeleton.JointID
	Limit     humanoid.Limit
	RestLocal mgl64.Quat
}

// SkeletonBone is one joint of the described skeleton. Parent indexes
// Descriptor.Skeleton and is -1 for the root.
type SkeletonBone struct {
	Name   string
	Joint  skeleton.JointID
	Parent int
	Local  skeleton.Transform
}

// Descriptor maps a concrete skeleton onto the generic humanoid.
type Descriptor struct {
	Human    []HumanBone
	Skeleton []SkeletonBone

	UpperArmTwist     float64
	LowerArmTwist     float64
	UpperLegTwist     float64
	LowerLegTwist     float64
	ArmStretch        float64
	LegStretch        float64
	FeetSpacing       float64
	HasTranslationDoF bool

	// HumanScale is the rest height of the hips; body positions in a Pose are
	// expressed in units of it.
	HumanScale float64

	byBone map[humanoid.Bone]int
}

// Binding returns the human bone bound to b.
func (d *Descriptor) Binding(b humanoid.Bone) (HumanBone, bool) {
	i, ok := d.byBone[b]
	if !ok {
		return HumanBone{}, false
	}
	return d.Human[i], true
}

// BuildDescriptor walks skel from its root and binds every bone names
// resolves to a joint in the walk.
func BuildDescriptor(skel *skeleton.Skeleton, names BoneNames) (*Descriptor, error) {
	if skel == nil || skel.Len() == 0 {
		return nil, fmt.Errorf("%w: empty skeleton", ErrSetup)
	}

	order := skel.Walk(skel.Root())
	index := make(map[skeleton.JointID]int, len(order))
	byName := make(map[string]skeleton.JointID, len(order))

	d := &Descriptor{
		Skeleton:      make([]SkeletonBone, 0, len(order)),
		UpperArmTwist: DefaultTwist,
		LowerArmTwist: DefaultTwist,
		UpperLegTwist: DefaultTwist,
		LowerLegTwist: DefaultTwist,
		ArmStretch:    DefaultStretch,
		LegStretch:    DefaultStretch,
		byBone:        make(map[humanoid.Bone]int),
	}

	for i, id := range order {
		index[id] = i
		byName[skel.Name(id)] = id

		parent := -1
		if p := skel.Parent(id); p != skeleton.NoParent {
			parent = index[p]
		}
		local := skel.Local(id)
		local.Scale = mgl64.Vec3{1, 1, 1}
		d.Skeleton = append(d.Skeleton, SkeletonBone{
			Name:   skel.Name(id),
			Joint:  id,
			Parent: parent,
			Local:  local,
		})
	}

	for _, b := range humanoid.Required() {
		name, ok := names.Lookup(b)
		if !ok {
			return nil, fmt.Errorf("%w: required bone %s is not named", ErrSetup, b)
		}
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("%w: required bone %s (%q) not found in skeleton", ErrSetup, b, name)
		}
	}

	bound := make(map[skeleton.JointID]humanoid.Bone)
	for _, b := range names.Bones() {
		name, _ := names.Lookup(b)
		id, ok := byName[name]
		if !ok {
			continue
		}
		if other, dup := bound[id]; dup {
			return nil, fmt.Errorf("%w: %s and %s both bind %q", ErrSetup, other, b, name)
		}
		bound[id] = b

		d.byBone[b] = len(d.Human)
		d.Human = append(d.Human, HumanBone{
			Bone:      b,
			BoneName:  name,
			Joint:     id,
			Limit:     humanoid.DefaultLimit(b),
			RestLocal: skel.Local(id).Rotation,
		})
	}

	for _, hb := range d.Human {
		ancestor, ok := d.boundAncestor(hb.Bone)
		if !ok {
			continue
		}
		if !skel.IsAncestor(ancestor.Joint, hb.Joint) {
			return nil, fmt.Errorf("%w: %s (%q) is not below %s (%q)",
				ErrSetup, hb.Bone, hb.BoneName, ancestor.Bone, ancestor.BoneName)
		}
		if !humanoid.IsRequired(hb.Bone) {
			continue
		}

		from, to := skel.WorldPosition(ancestor.Joint), skel.WorldPosition(hb.Joint)
		if !skeleton.Finite(from) || !skeleton.Finite(to) {
			return nil, fmt.Errorf("%w: %s has a non-finite position", ErrSetup, hb.Bone)
		}
		if to.Sub(from).Len() < segmentEpsilon {
			return nil, fmt.Errorf("%w: zero length segment %s -> %s", ErrSetup, ancestor.Bone, hb.Bone)
		}
	}

	hips, _ := d.Binding(humanoid.Hips)
	d.HumanScale = skel.WorldPosition(hips.Joint).Y()
	if d.HumanScale < segmentEpsilon {
		d.HumanScale = 1
	}

	return d, nil
}

// boundAncestor returns the closest generic ancestor of b that is bound.
func (d *Descriptor) boundAncestor(b humanoid.Bone) (HumanBone, bool) {
	for p := humanoid.Parent(b); p != humanoid.NoBone; p = humanoid.Parent(p) {
		if hb, ok := d.Binding(p); ok {
			return hb, true
		}
	}
	return HumanBone{}, false
}
