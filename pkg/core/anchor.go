// pkg/core/anchor.go
package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Landmark names a tracked body point.
type Landmark string

const (
	LandmarkHead      Landmark = "head"
	LandmarkLeftHand  Landmark = "leftHand"
	LandmarkRightHand Landmark = "rightHand"
	LandmarkLeftFoot  Landmark = "leftFoot"
	LandmarkRightFoot Landmark = "rightFoot"
)

// Landmarks lists every landmark in calibration order.
var Landmarks = []Landmark{
	LandmarkHead,
	LandmarkLeftHand,
	LandmarkRightHand,
	LandmarkLeftFoot,
	LandmarkRightFoot,
}

// ParseLandmark accepts a landmark name.
func ParseLandmark(s string) (Landmark, error) {
	for _, l := range Landmarks {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown landmark %q", s)
}

// Anchor is a world-space sample of a tracked landmark.
type Anchor struct {
	Landmark Landmark   `json:"landmark"`
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Quat `json:"rotation"`
}

// AnchorSet is the input of one calibration. Head and hands are always
// present; feet are optional and only used as a pair.
type AnchorSet struct {
	Head      Anchor  `json:"head"`
	LeftHand  Anchor  `json:"leftHand"`
	RightHand Anchor  `json:"rightHand"`
	LeftFoot  *Anchor `json:"leftFoot,omitempty"`
	RightFoot *Anchor `json:"rightFoot,omitempty"`
}

// HasFeet reports whether both foot anchors are present.
func (s AnchorSet) HasFeet() bool {
	return s.LeftFoot != nil && s.RightFoot != nil
}

// Count returns the number of anchors present.
func (s AnchorSet) Count() int {
	n := 3
	if s.LeftFoot != nil {
		n++
	}
	if s.RightFoot != nil {
		n++
	}
	return n
}

// WithoutFeet returns a copy with both foot anchors dropped.
func (s AnchorSet) WithoutFeet() AnchorSet {
	s.LeftFoot = nil
	s.RightFoot = nil
	return s
}

// All returns the anchors present, in Landmarks order.
func (s AnchorSet) All() []Anchor {
	out := []Anchor{s.Head, s.LeftHand, s.RightHand}
	if s.LeftFoot != nil {
		out = append(out, *s.LeftFoot)
	}
	if s.RightFoot != nil {
		out = append(out, *s.RightFoot)
	}
	return out
}
