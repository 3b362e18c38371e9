// Package attach drives the calibrate, describe and register sequence that
// puts a tracked avatar onto a target rig, and the per-tick broadcast after it.
package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/OCAP2/rigsync/internal/avatar"
	"github.com/OCAP2/rigsync/internal/bonename"
	"github.com/OCAP2/rigsync/internal/calibration"
	"github.com/OCAP2/rigsync/internal/skeleton"
	"github.com/OCAP2/rigsync/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrNoAnchors is returned when the anchor provider has no complete set yet.
	ErrNoAnchors = errors.New("no anchors available")
	// ErrUnknownTarget is returned for target ids that were never added.
	ErrUnknownTarget = errors.New("unknown target")
	// ErrUnknownJoint is returned by SetJointRotation for names not in the rig.
	ErrUnknownJoint = errors.New("unknown joint")
)

// AnchorProvider supplies the latest tracked anchors.
type AnchorProvider interface {
	Snapshot() (core.AnchorSet, bool)
}

// FrameObserver is called once per tick with the source skeleton. It runs
// under the controller lock and must not retain skel.
type FrameObserver interface {
	ObserveFrame(frame uint, skel *skeleton.Skeleton)
}

// Calibration is the outcome of one calibration run.
type Calibration struct {
	Frame   uint
	Anchors core.AnchorSet
	Report  calibration.Report
	Joints  []core.JointSample
}

// Options configures a Controller.
type Options struct {
	UseFootTracking bool
	Logger          *slog.Logger
}

// Controller owns the source skeleton. Every method is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	skel    *skeleton.Skeleton
	names   bonename.Map
	engine  *calibration.Engine
	bridge  *avatar.Bridge
	anchors AnchorProvider

	useFeet   bool
	initial   map[core.Landmark]mgl64.Quat
	rigs      map[string]avatar.Rig
	observers []FrameObserver
	frame     uint

	logger *slog.Logger
}

// New creates a controller for the source skeleton skel named by names.
func New(skel *skeleton.Skeleton, names bonename.Map, engine *calibration.Engine, bridge *avatar.Bridge, anchors AnchorProvider, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		skel:    skel,
		names:   names,
		engine:  engine,
		bridge:  bridge,
		anchors: anchors,
		useFeet: opts.UseFootTracking,
		initial: make(map[core.Landmark]mgl64.Quat),
		rigs:    make(map[string]avatar.Rig),
		logger:  logger,
	}
}

// AddRig makes r available to Attach. A rig with the same id is replaced.
func (c *Controller) AddRig(r avatar.Rig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rigs[r.ID] = r
}

// Rigs returns the ids of the rigs available to Attach, sorted.
func (c *Controller) Rigs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.rigs))
	for id := range c.rigs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AddFrameObserver registers o for every later tick.
func (c *Controller) AddFrameObserver(o FrameObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// RemoveFrameObserver unregisters o.
func (c *Controller) RemoveFrameObserver(o FrameObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = slices.DeleteFunc(c.observers, func(x FrameObserver) bool { return x == o })
}

// Frame returns the number of ticks so far.
func (c *Controller) Frame() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Attached reports whether a calibration has been described successfully.
func (c *Controller) Attached() bool {
	return c.bridge.Initialized()
}

// SetJointRotation sets the local rotation of a source joint, the input the
// bridge samples its muscles from.
func (c *Controller) SetJointRotation(name string, q mgl64.Quat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.skel.Find(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJoint, name)
	}
	c.skel.SetLocalRotation(id, q.Normalize())
	return nil
}

// Calibrate fits the source skeleton to the current anchors and rebuilds the
// descriptor. Registered targets are kept.
func (c *Controller) Calibrate(ctx context.Context) (Calibration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calibrate(ctx)
}

// Attach calibrates, rebuilds the descriptor and registers targetID. On any
// failure the target is left unattached.
func (c *Controller) Attach(ctx context.Context, targetID string) (Calibration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rig, ok := c.rigs[targetID]
	if !ok {
		c.logger.Error("attach failed", "target", targetID, "error", ErrUnknownTarget)
		return Calibration{}, fmt.Errorf("%w: %s", ErrUnknownTarget, targetID)
	}

	cal, err := c.calibrate(ctx)
	if err != nil {
		c.logger.Error("attach failed", "target", targetID, "error", err)
		return cal, err
	}

	if err := c.bridge.RegisterTarget(rig); err != nil {
		c.logger.Error("attach failed", "target", targetID, "error", err)
		return cal, err
	}
	c.logger.Info("avatar attached", "target", targetID, "lowerBody", cal.Report.LowerBody)
	return cal, nil
}

// Detach unregisters targetID. Unknown ids are ignored.
func (c *Controller) Detach(targetID string) {
	c.bridge.UnregisterTarget(targetID)
}

// Tick advances the frame counter, lets frame observers sample the source
// skeleton and broadcasts the pose when the bridge is initialized. ok is
// false when nothing was broadcast.
func (c *Controller) Tick(ctx context.Context) (bc avatar.Broadcast, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frame++
	for _, o := range c.observers {
		o.ObserveFrame(c.frame, c.skel)
	}

	if !c.bridge.Initialized() {
		return avatar.Broadcast{}, false, nil
	}
	bc, err = c.bridge.CaptureAndBroadcast(ctx)
	if err != nil {
		return bc, false, err
	}
	return bc, true, nil
}

func (c *Controller) calibrate(ctx context.Context) (Calibration, error) {
	if err := ctx.Err(); err != nil {
		return Calibration{}, err
	}

	set, ok := c.anchors.Snapshot()
	if !ok {
		return Calibration{}, ErrNoAnchors
	}
	set = c.resetRotations(set)
	if !c.useFeet {
		set = set.WithoutFeet()
	}

	report, err := c.engine.Calibrate(c.skel, c.names, set)
	if err != nil {
		return Calibration{}, fmt.Errorf("calibrating: %w", err)
	}

	if err := c.bridge.Build(c.skel, c.names); err != nil {
		return Calibration{}, err
	}

	return Calibration{
		Frame:   c.frame,
		Anchors: set,
		Report:  report,
		Joints:  Joints(c.skel),
	}, nil
}

// resetRotations replaces every anchor rotation with the first one seen for
// that landmark, so repeated attaches start from the same orientation.
func (c *Controller) resetRotations(set core.AnchorSet) core.AnchorSet {
	reset := func(a *core.Anchor) {
		if a == nil {
			return
		}
		q, seen := c.initial[a.Landmark]
		if !seen {
			c.initial[a.Landmark] = a.Rotation
			return
		}
		a.Rotation = q
	}

	reset(&set.Head)
	reset(&set.LeftHand)
	reset(&set.RightHand)
	if set.LeftFoot != nil {
		lf := *set.LeftFoot
		reset(&lf)
		set.LeftFoot = &lf
	}
	if set.RightFoot != nil {
		rf := *set.RightFoot
		reset(&rf)
		set.RightFoot = &rf
	}
	return set
}

// Joints lists the world position of every joint of skel in walk order.
func Joints(skel *skeleton.Skeleton) []core.JointSample {
	order := skel.Walk(skel.Root())
	out := make([]core.JointSample, 0, len(order))
	for _, id := range order {
		sample := core.JointSample{
			Name:     skel.Name(id),
			Position: skel.WorldPosition(id),
		}
		if p := skel.Parent(id); p != skeleton.NoParent {
			sample.Parent = skel.Name(p)
		}
		out = append(out, sample)
	}
	return out
}
