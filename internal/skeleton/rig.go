package skeleton

import (
	"fmt"

	"github.com/OCAP2/rigsync/internal/bonename"
	"github.com/OCAP2/rigsync/internal/humanoid"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultHeight is the standing height of the rest rig built by NewHumanoid.
const DefaultHeight = 1.7

// restPose holds world positions for a DefaultHeight rig in T-pose, facing +Z,
// with the character's left on -X. Right side bones are mirrored.
var restPose = map[humanoid.Bone]mgl64.Vec3{
	humanoid.Hips:         {0, 0.95, 0.02},
	humanoid.Spine:        {0, 1.05, 0.01},
	humanoid.Chest:        {0, 1.25, 0},
	humanoid.Neck:         {0, 1.48, 0},
	humanoid.Head:         {0, 1.6, 0.03},
	humanoid.LeftShoulder: {-0.04, 1.43, 0},
	humanoid.LeftUpperArm: {-0.16, 1.43, 0},
	humanoid.LeftLowerArm: {-0.44, 1.43, 0},
	humanoid.LeftHand:     {-0.7, 1.43, 0},
	humanoid.LeftUpperLeg: {-0.09, 0.9, 0.02},
	humanoid.LeftLowerLeg: {-0.09, 0.5, 0.03},
	humanoid.LeftFoot:     {-0.09, 0.08, 0},
	humanoid.LeftToes:     {-0.09, 0.02, 0.12},
}

var mirrored = map[humanoid.Bone]humanoid.Bone{
	humanoid.RightShoulder: humanoid.LeftShoulder,
	humanoid.RightUpperArm: humanoid.LeftUpperArm,
	humanoid.RightLowerArm: humanoid.LeftLowerArm,
	humanoid.RightHand:     humanoid.LeftHand,
	humanoid.RightUpperLeg: humanoid.LeftUpperLeg,
	humanoid.RightLowerLeg: humanoid.LeftLowerLeg,
	humanoid.RightFoot:     humanoid.LeftFoot,
	humanoid.RightToes:     humanoid.LeftToes,
}

// buildOrder lists bones so every parent is created before its children and
// siblings come out of Walk torso first, then arms, then legs.
var buildOrder = func() []humanoid.Bone {
	order := []humanoid.Bone{
		humanoid.Hips, humanoid.Spine, humanoid.Chest, humanoid.Neck, humanoid.Head,
	}
	for _, side := range []struct {
		shoulder, upper, lower, hand, thumb humanoid.Bone
	}{
		{humanoid.LeftShoulder, humanoid.LeftUpperArm, humanoid.LeftLowerArm, humanoid.LeftHand, humanoid.LeftThumbProximal},
		{humanoid.RightShoulder, humanoid.RightUpperArm, humanoid.RightLowerArm, humanoid.RightHand, humanoid.RightThumbProximal},
	} {
		order = append(order, side.shoulder, side.upper, side.lower, side.hand)
		for b := side.thumb; b < side.thumb+15; b++ {
			order = append(order, b)
		}
	}
	order = append(order,
		humanoid.LeftUpperLeg, humanoid.LeftLowerLeg, humanoid.LeftFoot, humanoid.LeftToes,
		humanoid.RightUpperLeg, humanoid.RightLowerLeg, humanoid.RightFoot, humanoid.RightToes,
	)
	return order
}()

// RestPosition returns the rest world position of b on a DefaultHeight rig.
func RestPosition(b humanoid.Bone) mgl64.Vec3 {
	if p, ok := restPose[b]; ok {
		return p
	}
	if src, ok := mirrored[b]; ok {
		p := restPose[src]
		return mgl64.Vec3{-p[0], p[1], p[2]}
	}
	if b.IsFinger() {
		return fingerRest(b)
	}
	return mgl64.Vec3{}
}

func fingerRest(b humanoid.Bone) mgl64.Vec3 {
	right := b >= humanoid.RightThumbProximal
	first := humanoid.LeftThumbProximal
	if right {
		first = humanoid.RightThumbProximal
	}
	finger := int(b-first) / 3
	segment := int(b-first) % 3

	hand := restPose[humanoid.LeftHand]
	x := hand[0] - 0.05 - 0.03*float64(segment)
	y := hand[1]
	if finger == 0 {
		y -= 0.02
	}
	z := 0.04 - 0.02*float64(finger)
	if right {
		x = -x
	}
	return mgl64.Vec3{x, y, z}
}

// NewHumanoid builds a T-pose rig whose joints are named by names. The root
// joint carries the map's prefix; bones the map does not name are left out.
// height scales the rig; values <= 0 use DefaultHeight.
func NewHumanoid(names bonename.Map, height float64) (*Skeleton, error) {
	if height <= 0 {
		height = DefaultHeight
	}
	scale := height / DefaultHeight

	s := New()
	rootName := names.Prefix()
	if rootName == "" {
		rootName = "Root"
	}
	root, err := s.AddJoint(rootName, NoParent, Identity())
	if err != nil {
		return nil, err
	}

	ids := make(map[humanoid.Bone]JointID, len(buildOrder))
	for _, b := range buildOrder {
		name, ok := names.Lookup(b)
		if !ok {
			continue
		}

		parent := root
		parentPos := mgl64.Vec3{}
		for p := humanoid.Parent(b); p != humanoid.NoBone; p = humanoid.Parent(p) {
			if id, ok := ids[p]; ok {
				parent = id
				parentPos = RestPosition(p).Mul(scale)
				break
			}
		}

		id, err := s.AddJoint(name, parent, At(RestPosition(b).Mul(scale).Sub(parentPos)))
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", b, err)
		}
		ids[b] = id
	}
	return s, nil
}
