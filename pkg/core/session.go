// pkg/core/session.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Session is one recording run of the retargeting service.
type Session struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"startTime"`
	Convention string    `json:"convention"`
	AssetName  string    `json:"assetName"`
	Version    string    `json:"version"`
}

// JointSample is the world position of a named joint. Parent is empty for the
// root, which lets consumers draw the skeleton as parent-child segments.
type JointSample struct {
	Name     string     `json:"name"`
	Parent   string     `json:"parent,omitempty"`
	Position mgl64.Vec3 `json:"position"`
}

// CalibrationRecord captures one calibration and the joint layout it produced.
type CalibrationRecord struct {
	SessionID  uint          `json:"sessionId"`
	Time       time.Time     `json:"time"`
	Frame      uint          `json:"frame"`
	Anchors    AnchorSet     `json:"anchors"`
	LowerBody  bool          `json:"lowerBody"`
	Degenerate []string      `json:"degenerate,omitempty"`
	Joints     []JointSample `json:"joints"`
}

// PoseFrame is one broadcast pose and the targets that received it.
type PoseFrame struct {
	SessionID    uint          `json:"sessionId"`
	Time         time.Time     `json:"time"`
	Frame        uint          `json:"frame"`
	BodyPosition mgl64.Vec3    `json:"bodyPosition"`
	BodyRotation mgl64.Quat    `json:"bodyRotation"`
	Muscles      []float64     `json:"muscles"`
	Targets      []string      `json:"targets"`
	Duration     time.Duration `json:"duration"`
}

// TargetEventKind is the kind of registry change.
type TargetEventKind string

const (
	TargetAttached TargetEventKind = "attach"
	TargetDetached TargetEventKind = "detach"
)

// TargetEvent records an attach or detach request and its outcome.
type TargetEvent struct {
	SessionID uint            `json:"sessionId"`
	Time      time.Time       `json:"time"`
	Frame     uint            `json:"frame"`
	TargetID  string          `json:"targetId"`
	Kind      TargetEventKind `json:"kind"`
	Error     string          `json:"error,omitempty"`
}
