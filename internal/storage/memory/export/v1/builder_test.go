package v1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/rigsync/pkg/core"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.23456789, 1.234568},
		{-0.0000004, 0},
		{2, 2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, round(tt.in), 1e-12)
	}
}

func TestBuild_Empty(t *testing.T) {
	export := Build(&SessionData{})
	assert.Equal(t, FormatVersion, export.FormatVersion)
	assert.Empty(t, export.SessionName)
	assert.NotNil(t, export.Frames)
	assert.NotNil(t, export.Events)
	assert.Zero(t, export.EndFrame)

	data, err := json.Marshal(export)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"frames":[]`)
}

func TestBuild(t *testing.T) {
	start := time.Date(2026, 5, 2, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	head := core.Anchor{Landmark: core.LandmarkHead, Position: mgl64.Vec3{0, 1.7, 0}, Rotation: mgl64.QuatIdent()}
	lh := core.Anchor{Landmark: core.LandmarkLeftHand, Position: mgl64.Vec3{-0.7, 1.4, 0}, Rotation: mgl64.QuatIdent()}
	rh := core.Anchor{Landmark: core.LandmarkRightHand, Position: mgl64.Vec3{0.7, 1.4, 0}, Rotation: mgl64.QuatIdent()}

	export := Build(&SessionData{
		Session:        &core.Session{Name: "take", StartTime: start, Convention: "fbx", AssetName: "Src"},
		ServiceVersion: "1.2.3",
		Calibrations: []core.CalibrationRecord{{
			Frame:   2,
			Anchors: core.AnchorSet{Head: head, LeftHand: lh, RightHand: rh},
			Joints: []core.JointSample{
				{Name: "Src_Hips", Position: mgl64.Vec3{0, 1, 0}},
				{Name: "Src_Spine", Parent: "Src_Hips", Position: mgl64.Vec3{0, 1.1, 0}},
			},
		}},
		Frames: []core.PoseFrame{
			{Frame: 3, BodyPosition: mgl64.Vec3{0, 1, 0}, BodyRotation: mgl64.QuatIdent(), Muscles: []float64{0.1234567}, Targets: []string{"Avatar"}},
			{Frame: 4, BodyRotation: mgl64.QuatIdent()},
		},
		TargetEvents: []core.TargetEvent{
			{Frame: 5, Kind: core.TargetDetached, TargetID: "Avatar"},
			{Frame: 2, Kind: core.TargetAttached, TargetID: "Avatar"},
		},
	})

	assert.Equal(t, "take", export.SessionName)
	assert.Equal(t, "2026-05-02T06:00:00Z", export.StartTime)
	assert.Equal(t, "1.2.3", export.ServiceVersion)
	assert.Equal(t, 5, export.EndFrame)

	require.Len(t, export.Calibrations, 1)
	cal := export.Calibrations[0]
	assert.Equal(t, []string{}, cal.Degenerate)
	assert.Len(t, cal.Anchors, 3)
	assert.Equal(t, [7]float64{-0.7, 1.4, 0, 0, 0, 0, 1}, cal.Anchors["leftHand"])
	assert.Equal(t, []any{"Src_Spine", "Src_Hips", []float64{0, 1.1, 0}}, cal.Joints[1])

	require.Len(t, export.Frames, 2)
	assert.Equal(t, []any{3, []float64{0, 1, 0}, []float64{0, 0, 0, 1}, []float64{0.123457}, []string{"Avatar"}}, export.Frames[0])
	assert.Equal(t, []string{}, export.Frames[1][4])

	require.Len(t, export.Events, 2)
	assert.Equal(t, []any{2, "attach", "Avatar", ""}, export.Events[0], "events sorted by frame")
	assert.Equal(t, []any{5, "detach", "Avatar", ""}, export.Events[1])
}
