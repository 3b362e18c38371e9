package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&RigsyncInfo{},
	&Session{},
	&Calibration{},
	&CalibrationJoint{},
	&PoseFrame{},
	&TargetEvent{},
	&BridgePerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// RigsyncInfo identifies the installation that wrote the database
type RigsyncInfo struct {
	gorm.Model
	ServiceName   string `json:"serviceName" gorm:"size:127"`
	SchemaVersion uint   `json:"schemaVersion"`
}

func (*RigsyncInfo) TableName() string {
	return "rigsync_infos"
}

// BridgePerformance is a periodic sample of the pose bridge throughput
type BridgePerformance struct {
	Time            time.Time `json:"time" gorm:"index:idx_bridgeperformance_time"`
	SessionID       uint      `json:"sessionId" gorm:"index:idx_bridgeperformance_session_id"`
	Session         Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Frame           uint      `json:"frame"`
	Targets         uint16    `json:"targets"`
	BroadcastMs     float32   `json:"broadcastMs"`
	WriteQueueDepth uint16    `json:"writeQueueDepth"`
}

func (*BridgePerformance) TableName() string {
	return "bridge_performances"
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Session is one recording run
type Session struct {
	gorm.Model
	Name       string     `json:"name" gorm:"size:200"`
	StartTime  time.Time  `json:"startTime" gorm:"index:idx_session_start"`
	EndTime    *time.Time `json:"endTime"`
	Convention string     `json:"convention" gorm:"size:16"`
	AssetName  string     `json:"assetName" gorm:"size:127"`
	Version    string     `json:"version" gorm:"size:64"`

	Calibrations []Calibration `json:"-"`
	PoseFrames   []PoseFrame   `json:"-"`
	TargetEvents []TargetEvent `json:"-"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Calibration is one calibration pass and its input anchors
type Calibration struct {
	ID         uint               `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time          `json:"time"`
	SessionID  uint               `json:"sessionId" gorm:"index:idx_calibration_session_id"`
	Session    Session            `json:"-" gorm:"foreignkey:SessionID"`
	Frame      uint               `json:"frame" gorm:"index:idx_calibration_frame"`
	LowerBody  bool               `json:"lowerBody"`
	Anchors    datatypes.JSON     `json:"anchors"`
	Degenerate datatypes.JSON     `json:"degenerate" gorm:"default:'[]'"`
	Joints     []CalibrationJoint `json:"joints"`
}

func (*Calibration) TableName() string {
	return "calibrations"
}

// CalibrationJoint is a joint's world position right after a calibration
type CalibrationJoint struct {
	ID            uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	CalibrationID uint       `json:"calibrationId" gorm:"index:idx_calibrationjoint_calibration_id"`
	SessionID     uint       `json:"sessionId" gorm:"index:idx_calibrationjoint_session_id"`
	Name          string     `json:"name" gorm:"size:127"`
	Parent        string     `json:"parent" gorm:"size:127"`
	Position      geom.Point `json:"position"`
}

func (*CalibrationJoint) TableName() string {
	return "calibration_joints"
}

// PoseFrame is one broadcast pose
type PoseFrame struct {
	ID           uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time      `json:"time"`
	SessionID    uint           `json:"sessionId" gorm:"index:idx_poseframe_session_id"`
	Session      Session        `json:"-" gorm:"foreignkey:SessionID"`
	Frame        uint           `json:"frame" gorm:"index:idx_poseframe_frame"`
	BodyPosition geom.Point     `json:"bodyPosition"`
	BodyRotation datatypes.JSON `json:"bodyRotation"` // [x, y, z, w]
	Muscles      datatypes.JSON `json:"muscles"`
	Targets      datatypes.JSON `json:"targets" gorm:"default:'[]'"`
	DurationUs   int64          `json:"durationUs"`
}

func (*PoseFrame) TableName() string {
	return "pose_frames"
}

// TargetEvent records an attach or detach request
type TargetEvent struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_targetevent_session_id"`
	Session   Session   `json:"-" gorm:"foreignkey:SessionID"`
	Frame     uint      `json:"frame"`
	TargetID  string    `json:"targetId" gorm:"size:127"`
	Kind      string    `json:"kind" gorm:"size:16"`
	Error     string    `json:"error" gorm:"size:2000"`
}

func (*TargetEvent) TableName() string {
	return "target_events"
}
