package tracking

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/rigsync/pkg/core"
)

// fakeMessage implements mqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func at(l core.Landmark, x, y, z float64) core.Anchor {
	return core.Anchor{Landmark: l, Position: mgl64.Vec3{x, y, z}, Rotation: mgl64.QuatIdent()}
}

func TestStore_Snapshot(t *testing.T) {
	s := NewStore()
	_, ok := s.Snapshot()
	assert.False(t, ok)

	require.NoError(t, s.Update(at(core.LandmarkHead, 0, 1.7, 0)))
	require.NoError(t, s.Update(at(core.LandmarkLeftHand, -0.3, 1.4, 0)))
	_, ok = s.Snapshot()
	assert.False(t, ok, "right hand still missing")

	require.NoError(t, s.Update(at(core.LandmarkRightHand, 0.3, 1.4, 0)))
	set, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 3, set.Count())
	assert.False(t, set.HasFeet())

	require.NoError(t, s.Update(at(core.LandmarkLeftFoot, -0.1, 0, 0)))
	require.NoError(t, s.Update(at(core.LandmarkRightFoot, 0.1, 0, 0)))
	set, ok = s.Snapshot()
	require.True(t, ok)
	assert.True(t, set.HasFeet())
	assert.Equal(t, 5, s.Len())
	assert.False(t, s.Updated().IsZero())

	// snapshots are copies
	set.LeftFoot.Position[0] = 9
	again, _ := s.Snapshot()
	assert.InDelta(t, -0.1, again.LeftFoot.Position.X(), 1e-12)

	s.Clear()
	assert.Zero(t, s.Len())
	assert.True(t, s.Updated().IsZero())
}

func TestStore_UpdateRejects(t *testing.T) {
	s := NewStore()
	assert.Error(t, s.Update(at("tail", 0, 0, 0)))
	assert.Error(t, s.Update(at(core.LandmarkHead, math.NaN(), 0, 0)))
	assert.Zero(t, s.Len())
}

func TestDecodeAnchor(t *testing.T) {
	a, err := DecodeAnchor(core.LandmarkLeftHand, []byte(`{"position":[1,2,3],"rotation":[0,0,0,2]}`))
	require.NoError(t, err)
	assert.Equal(t, core.LandmarkLeftHand, a.Landmark)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, a.Position)
	assert.True(t, a.Rotation.ApproxEqualThreshold(mgl64.QuatIdent(), 1e-12), "normalized")

	a, err = DecodeAnchor(core.LandmarkHead, []byte(`{"position":[0,1,0]}`))
	require.NoError(t, err)
	assert.Equal(t, mgl64.QuatIdent(), a.Rotation, "missing rotation is identity")

	_, err = DecodeAnchor(core.LandmarkHead, []byte(`not json`))
	assert.Error(t, err)
}

func TestMQTTSource_Handlers(t *testing.T) {
	store := NewStore()
	src := NewMQTTSource(MQTTConfig{TopicPrefix: "rig/"}, store, nil)
	assert.Equal(t, "rig/head", src.Topic("head"))

	src.anchorHandler(core.LandmarkHead)(nil, fakeMessage{
		topic:   "rig/head",
		payload: []byte(`{"position":[0,1.6,0.1],"rotation":[0,0,0,1]}`),
	})
	src.anchorHandler(core.LandmarkHead)(nil, fakeMessage{topic: "rig/head", payload: []byte(`{`)})
	assert.Equal(t, 1, store.Len())

	var triggers [][2]string
	src.OnTrigger(func(action, target string) {
		triggers = append(triggers, [2]string{action, target})
	})
	src.handleTrigger(nil, fakeMessage{payload: []byte(`{"action":"ATTACH","target":"Avatar"}`)})
	src.handleTrigger(nil, fakeMessage{payload: []byte(`{"action":"dance","target":"Avatar"}`)})
	src.handleTrigger(nil, fakeMessage{payload: []byte(`{"action":"detach","target":"Avatar"}`)})
	assert.Equal(t, [][2]string{{"attach", "Avatar"}, {"detach", "Avatar"}}, triggers)

	joints := map[string]mgl64.Quat{}
	src.OnJoint(func(name string, q mgl64.Quat) { joints[name] = q })
	src.handleJoints(nil, fakeMessage{payload: []byte(`[{"name":"Src_Head","rotation":[0,0.7071067811865476,0,0.7071067811865476]}]`)})
	require.Contains(t, joints, "Src_Head")
	want := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	assert.True(t, joints["Src_Head"].ApproxEqualThreshold(want, 1e-9))
}
