package attach

import (
	"context"
	"sync"
	"testing"

	"github.com/OCAP2/rigsync/internal/avatar"
	"github.com/OCAP2/rigsync/internal/bonename"
	"github.com/OCAP2/rigsync/internal/calibration"
	"github.com/OCAP2/rigsync/internal/skeleton"
	"github.com/OCAP2/rigsync/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAnchors is an AnchorProvider with settable anchors.
type stubAnchors struct {
	mu  sync.Mutex
	set *core.AnchorSet
}

func (s *stubAnchors) Snapshot() (core.AnchorSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		return core.AnchorSet{}, false
	}
	return *s.set, true
}

func (s *stubAnchors) Set(set core.AnchorSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = &set
}

type recordingObserver struct {
	frames []uint
}

func (r *recordingObserver) ObserveFrame(frame uint, _ *skeleton.Skeleton) {
	r.frames = append(r.frames, frame)
}

func anchor(l core.Landmark, x, y, z float64, rot mgl64.Quat) core.Anchor {
	return core.Anchor{Landmark: l, Position: mgl64.Vec3{x, y, z}, Rotation: rot}
}

func fullSet(rot mgl64.Quat) core.AnchorSet {
	lf := anchor(core.LandmarkLeftFoot, -0.1, 0.1, 0, rot)
	rf := anchor(core.LandmarkRightFoot, 0.1, 0.1, 0, rot)
	return core.AnchorSet{
		Head:      anchor(core.LandmarkHead, 0.2, 1.7, 0, rot),
		LeftHand:  anchor(core.LandmarkLeftHand, -0.4, 1.3, 0, rot),
		RightHand: anchor(core.LandmarkRightHand, 0.6, 1.3, 0, rot),
		LeftFoot:  &lf,
		RightFoot: &rf,
	}
}

type fixture struct {
	ctrl    *Controller
	anchors *stubAnchors
	source  *skeleton.Skeleton
	target  avatar.Rig
	bridge  *avatar.Bridge
}

func newFixture(t *testing.T, useFeet bool) *fixture {
	t.Helper()
	names, err := bonename.BuildMap(bonename.FBX, "Source")
	require.NoError(t, err)
	src, err := skeleton.NewHumanoid(names, 0)
	require.NoError(t, err)

	targetNames, err := bonename.BuildMap(bonename.BVH, "Target")
	require.NoError(t, err)
	dst, err := skeleton.NewHumanoid(targetNames, 1.9)
	require.NoError(t, err)

	bridge, err := avatar.NewBridge(nil)
	require.NoError(t, err)

	f := &fixture{
		anchors: &stubAnchors{},
		source:  src,
		target:  avatar.Rig{ID: "Target", Skeleton: dst, Names: targetNames},
		bridge:  bridge,
	}
	engine := calibration.New(calibration.DefaultParams(), nil)
	f.ctrl = New(src, names, engine, bridge, f.anchors, Options{UseFootTracking: useFeet})
	f.ctrl.AddRig(f.target)
	return f
}

func TestAttach(t *testing.T) {
	f := newFixture(t, true)
	f.anchors.Set(fullSet(mgl64.QuatIdent()))

	cal, err := f.ctrl.Attach(context.Background(), "Target")
	require.NoError(t, err)

	assert.True(t, f.ctrl.Attached())
	assert.Equal(t, []string{"Target"}, f.bridge.Targets())
	assert.True(t, cal.Report.LowerBody)
	assert.Equal(t, 5, cal.Anchors.Count())

	hips, _ := f.source.Find("Source_Hips")
	assert.InDelta(t, 0.9, f.source.WorldPosition(hips).Y(), 1e-9)

	require.Len(t, cal.Joints, f.source.Len())
	assert.Equal(t, "Source", cal.Joints[0].Name)
	assert.Empty(t, cal.Joints[0].Parent)
	assert.Equal(t, "Source", cal.Joints[1].Parent)
}

func TestAttach_Failures(t *testing.T) {
	t.Run("unknown target", func(t *testing.T) {
		f := newFixture(t, true)
		f.anchors.Set(fullSet(mgl64.QuatIdent()))

		_, err := f.ctrl.Attach(context.Background(), "Nobody")
		assert.ErrorIs(t, err, ErrUnknownTarget)
		assert.False(t, f.ctrl.Attached())
	})

	t.Run("no anchors yet", func(t *testing.T) {
		f := newFixture(t, true)

		_, err := f.ctrl.Attach(context.Background(), "Target")
		assert.ErrorIs(t, err, ErrNoAnchors)
		assert.False(t, f.ctrl.Attached())
		assert.Zero(t, f.bridge.Len())
	})

	t.Run("canceled", func(t *testing.T) {
		f := newFixture(t, true)
		f.anchors.Set(fullSet(mgl64.QuatIdent()))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.ctrl.Attach(ctx, "Target")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, f.bridge.Len())
	})
}

func TestAttach_FootTrackingDisabled(t *testing.T) {
	f := newFixture(t, false)
	f.anchors.Set(fullSet(mgl64.QuatIdent()))

	cal, err := f.ctrl.Attach(context.Background(), "Target")
	require.NoError(t, err)
	assert.False(t, cal.Report.LowerBody)
	assert.False(t, cal.Anchors.HasFeet())
}

func TestAttach_ResetsAnchorRotations(t *testing.T) {
	f := newFixture(t, true)
	first := mgl64.QuatRotate(0.5, mgl64.Vec3{0, 1, 0})
	f.anchors.Set(fullSet(first))

	_, err := f.ctrl.Attach(context.Background(), "Target")
	require.NoError(t, err)

	f.anchors.Set(fullSet(mgl64.QuatRotate(1.2, mgl64.Vec3{1, 0, 0})))
	cal, err := f.ctrl.Attach(context.Background(), "Target")
	require.NoError(t, err)

	for _, a := range cal.Anchors.All() {
		assert.Equal(t, first, a.Rotation, string(a.Landmark))
	}
	assert.Equal(t, 1, f.bridge.Len(), "re-attach does not duplicate the target")
}

func TestTick(t *testing.T) {
	f := newFixture(t, true)
	obs := &recordingObserver{}
	f.ctrl.AddFrameObserver(obs)

	_, ok, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "nothing to broadcast before attach")

	f.anchors.Set(fullSet(mgl64.QuatIdent()))
	_, err = f.ctrl.Attach(context.Background(), "Target")
	require.NoError(t, err)

	rot := mgl64.QuatRotate(mgl64.DegToRad(25), mgl64.Vec3{0, 0, 1})
	require.NoError(t, f.ctrl.SetJointRotation("Source_LeftForeArm", rot))
	assert.ErrorIs(t, f.ctrl.SetJointRotation("Source_Tail", rot), ErrUnknownJoint)

	bc, ok, err := f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"Target"}, bc.Targets)

	elbow, _ := f.target.Skeleton.Find("Target_LeftElbow")
	got := f.target.Skeleton.Local(elbow).Rotation
	assert.True(t, got.ApproxEqualThreshold(rot, 1e-9), "got %v", got)

	f.ctrl.Detach("Target")
	f.ctrl.Detach("Target")
	bc, ok, err = f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, bc.Targets)

	assert.Equal(t, []uint{1, 2, 3}, obs.frames)
	assert.Equal(t, uint(3), f.ctrl.Frame())

	f.ctrl.RemoveFrameObserver(obs)
	_, _, err = f.ctrl.Tick(context.Background())
	require.NoError(t, err)
	assert.Len(t, obs.frames, 3)
}

func TestRigs(t *testing.T) {
	f := newFixture(t, true)
	f.ctrl.AddRig(avatar.Rig{ID: "Another"})
	assert.Equal(t, []string{"Another", "Target"}, f.ctrl.Rigs())
}
