package curve

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OCAP2/rigsync/internal/bonename"
	"github.com/OCAP2/rigsync/internal/skeleton"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMayaTranslation(t *testing.T) {
	got := MayaTranslation(mgl64.Vec3{1, 2, 3})
	assert.Equal(t, mgl64.Vec3{-1, 2, 3}, got)
}

func TestMayaRotation(t *testing.T) {
	tests := []struct {
		name string
		q    mgl64.Quat
		want mgl64.Vec3
	}{
		{"identity", mgl64.QuatIdent(), mgl64.Vec3{0, 0, 0}},
		{"roll", mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{1, 0, 0}), mgl64.Vec3{90, 0, 0}},
		{"pitch flips", mgl64.QuatRotate(mgl64.DegToRad(30), mgl64.Vec3{0, 1, 0}), mgl64.Vec3{0, -30, 0}},
		{"yaw flips", mgl64.QuatRotate(mgl64.DegToRad(45), mgl64.Vec3{0, 0, 1}), mgl64.Vec3{0, 0, -45}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MayaRotation(tt.q)
			assert.InDeltaSlice(t, tt.want[:], got[:], 1e-4)
		})
	}
}

func TestCurve_WriteTo(t *testing.T) {
	c := newCurve("Root/Hips", TypeLinear, "translateX", "tx")
	c.AddValue(0, 1.5)
	c.AddValue(1, -0.25)

	var buf bytes.Buffer
	_, err := c.WriteTo(&buf)
	require.NoError(t, err)

	want := `createNode animCurveTL -n "Root_Hips_translateX";
	setAttr ".tan" 18;
	setAttr ".wgt" no;
	setAttr -s 2 ".ktv[0:1]" 0 1.5 1 -0.25;
connectAttr "Root_Hips_translateX.o" "|Root|Hips.tx";
`
	assert.Equal(t, want, buf.String())
}

func TestCurve_WriteToEmpty(t *testing.T) {
	var buf bytes.Buffer
	_, err := newCurve("Hips", TypeUnitless, "scaleY", "sy").WriteTo(&buf)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), ".ktv")
	assert.Contains(t, buf.String(), `connectAttr "Hips_scaleY.o" "Hips.sy";`)
}

func TestObjectRecorder(t *testing.T) {
	dir := t.TempDir()
	r := NewObjectRecorder("Root/Hips", dir, Channels{Translation: true, Rotation: true})
	require.Len(t, r.Curves(), 6)
	assert.Empty(t, r.FinalFilePath())

	r.RecordFrame(0, skeleton.At(mgl64.Vec3{0.5, 1, 0}))
	r.RecordFrame(1, skeleton.Transform{
		Position: mgl64.Vec3{0.25, 1, 0},
		Rotation: mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{1, 0, 0}),
		Scale:    mgl64.Vec3{1, 1, 1},
	})
	for _, c := range r.Curves() {
		assert.Equal(t, 2, c.Len(), c.Attribute)
	}

	require.NoError(t, r.EndRecord())
	assert.Equal(t, filepath.Join(dir, "Root-Hips_objectAll"), r.FinalFilePath())

	data, err := os.ReadFile(r.FinalFilePath())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `setAttr -s 2 ".ktv[0:1]" 0 -0.5 1 -0.25;`)
	assert.Contains(t, content, `createNode animCurveTA -n "Root_Hips_rotateX";`)
	assert.NotContains(t, content, "animCurveTU")
	assert.Less(t, strings.Index(content, "translateZ"), strings.Index(content, "rotateX"))

	cleaned, err := r.Clean()
	require.NoError(t, err)
	assert.True(t, cleaned)
	assert.NoFileExists(t, filepath.Join(dir, "Root-Hips_objectAll"))

	cleaned, err = r.Clean()
	require.NoError(t, err)
	assert.False(t, cleaned)
}

func TestSession(t *testing.T) {
	names, err := bonename.BuildMap(bonename.FBX, "A")
	require.NoError(t, err)
	skel, err := skeleton.NewHumanoid(names, 0)
	require.NoError(t, err)
	hips, _ := skel.Find("A_Hips")

	dir := t.TempDir()
	s := NewSession("take1", dir, []string{"A_Hips", "A_Missing", "A_Head"}, AllChannels(), nil)

	for frame := uint(5); frame < 8; frame++ {
		skel.SetWorldPosition(hips, mgl64.Vec3{float64(frame), 1, 0})
		s.ObserveFrame(frame, skel)
	}
	assert.Equal(t, 3, s.Frames())
	assert.Equal(t, []string{"A/A_Hips", "A/A_Hips/A_Spine/A_Spine1/A_Neck/A_Head"}, s.Objects())

	path, err := s.Close()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "take1.ma"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "//Maya ASCII"))
	assert.Contains(t, content, `setAttr -s 3 ".ktv[0:2]" 0 -5 1 -6 2 -7;`)
	assert.Contains(t, content, `connectAttr "A_A_Hips_translateX.o" "|A|A_Hips.tx";`)
	assert.Equal(t, 18, strings.Count(content, "createNode"))

	assert.NoDirExists(t, filepath.Join(dir, "take1_objects"))

	_, err = s.Close()
	assert.ErrorIs(t, err, ErrClosed)

	s.ObserveFrame(9, skel)
	assert.Equal(t, 3, s.Frames())
}

func TestSession_AllJoints(t *testing.T) {
	names, err := bonename.BuildMap(bonename.BVH, "B")
	require.NoError(t, err)
	skel, err := skeleton.NewHumanoid(names, 0)
	require.NoError(t, err)

	s := NewSession("all", t.TempDir(), nil, Channels{Rotation: true}, nil)
	s.ObserveFrame(1, skel)
	assert.Len(t, s.Objects(), skel.Len())
	assert.Equal(t, "B", s.Objects()[0])
}
