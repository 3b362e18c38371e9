package avatar

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/OCAP2/rigsync/internal/skeleton"
	"go.opentelemetry.io/otel/metric"
)

// Rig is a target skeleton with the names that map it onto the humanoid.
type Rig struct {
	ID       string
	Skeleton *skeleton.Skeleton
	Names    BoneNames
}

// Broadcast is the outcome of one CaptureAndBroadcast.
type Broadcast struct {
	Frame    uint
	Pose     Pose
	Targets  []string
	Duration time.Duration
}

// ObserverFunc is called after every broadcast.
type ObserverFunc func(context.Context, Broadcast)

// targetHandle applies poses to one registered rig. A detached handle drops
// every later pose, so a target gets a whole pose or none of it.
type targetHandle struct {
	id      string
	handler *Handler

	mu       sync.Mutex
	detached bool
}

func (h *targetHandle) apply(p Pose) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return false
	}
	h.handler.SetPose(p)
	return true
}

func (h *targetHandle) detach() {
	h.mu.Lock()
	h.detached = true
	h.mu.Unlock()
}

// Bridge samples the source skeleton and replicates the pose to all targets.
type Bridge struct {
	logger *slog.Logger

	mu        sync.RWMutex
	source    *Handler
	targets   map[string]*targetHandle
	order     []string
	observers []ObserverFunc
	frame     uint

	// OTEL metrics
	broadcasts  metric.Int64Counter
	rejected    metric.Int64Counter
	duration    metric.Float64Histogram
	targetGauge metric.Int64ObservableGauge
}

// NewBridge creates an uninitialized bridge.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewBridge(logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Bridge{
		logger:  logger,
		targets: make(map[string]*targetHandle),
	}

	m := meter()

	var err error

	b.broadcasts, err = m.Int64Counter(
		"avatar.broadcasts",
		metric.WithDescription("Poses broadcast to the target registry"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating broadcast counter: %w", err)
	}

	b.rejected, err = m.Int64Counter(
		"avatar.rejected",
		metric.WithDescription("Operations rejected before the descriptor was built"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	b.duration, err = m.Float64Histogram(
		"avatar.broadcast.duration",
		metric.WithDescription("Time to capture and apply one pose"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	b.targetGauge, err = m.Int64ObservableGauge(
		"avatar.targets",
		metric.WithDescription("Registered targets"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating targets gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(b.targetGauge, int64(b.Len()))
			return nil
		},
		b.targetGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("registering targets callback: %w", err)
	}

	return b, nil
}

// Build describes the source skeleton and makes it the pose source. On
// failure the bridge is left uninitialized.
func (b *Bridge) Build(skel *skeleton.Skeleton, names BoneNames) error {
	desc, err := BuildDescriptor(skel, names)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.source = nil
		b.logger.Error("failed to build avatar descriptor", "error", err)
		return err
	}

	b.source = NewHandler(desc, skel)
	b.frame = 0
	b.logger.Info("avatar descriptor built",
		"humanBones", len(desc.Human),
		"skeletonBones", len(desc.Skeleton),
		"humanScale", desc.HumanScale)
	return nil
}

// Initialized reports whether a source descriptor is built.
func (b *Bridge) Initialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.source != nil
}

// Descriptor returns the source descriptor, or nil before Build.
func (b *Bridge) Descriptor() *Descriptor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.source == nil {
		return nil
	}
	return b.source.Descriptor()
}

// RegisterTarget adds rig to the registry. Registering an id twice is a
// no-op; registering before Build is rejected.
func (b *Bridge) RegisterTarget(rig Rig) error {
	b.mu.RLock()
	initialized := b.source != nil
	_, exists := b.targets[rig.ID]
	b.mu.RUnlock()

	if !initialized {
		b.reject("register target", "target", rig.ID)
		return ErrUninitialized
	}
	if exists {
		return nil
	}

	desc, err := BuildDescriptor(rig.Skeleton, rig.Names)
	if err != nil {
		b.logger.Error("failed to describe target", "target", rig.ID, "error", err)
		return fmt.Errorf("target %s: %w", rig.ID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.targets[rig.ID]; exists {
		return nil
	}
	b.targets[rig.ID] = &targetHandle{id: rig.ID, handler: NewHandler(desc, rig.Skeleton)}
	b.order = append(b.order, rig.ID)
	b.logger.Info("target registered", "target", rig.ID, "targets", len(b.order))
	return nil
}

// UnregisterTarget removes id. Unknown ids are ignored.
func (b *Bridge) UnregisterTarget(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.targets[id]
	if !ok {
		return
	}
	h.detach()
	delete(b.targets, id)
	b.order = slices.DeleteFunc(b.order, func(s string) bool { return s == id })
	b.logger.Info("target unregistered", "target", id, "targets", len(b.order))
}

// Targets returns the registered ids in registration order.
func (b *Bridge) Targets() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.order)
}

// Len returns the number of registered targets.
func (b *Bridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// AddObserver registers fn to run after every broadcast.
func (b *Bridge) AddObserver(fn ObserverFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

// CaptureAndBroadcast samples one pose from the source and applies that same
// value to every registered target. The registry is snapshotted first, so
// targets added or removed meanwhile take effect on the next call.
func (b *Bridge) CaptureAndBroadcast(ctx context.Context) (Broadcast, error) {
	start := time.Now()

	b.mu.Lock()
	source := b.source
	if source == nil {
		b.mu.Unlock()
		b.reject("broadcast")
		return Broadcast{}, ErrUninitialized
	}
	// once the fan-out starts every target and observer sees the frame
	if err := ctx.Err(); err != nil {
		b.mu.Unlock()
		return Broadcast{}, err
	}
	b.frame++
	frame := b.frame
	handles := make([]*targetHandle, 0, len(b.order))
	for _, id := range b.order {
		handles = append(handles, b.targets[id])
	}
	observers := slices.Clone(b.observers)
	b.mu.Unlock()

	out := Broadcast{
		Frame:   frame,
		Pose:    source.Pose(),
		Targets: make([]string, 0, len(handles)),
	}

	for _, h := range handles {
		if h.apply(out.Pose) {
			out.Targets = append(out.Targets, h.id)
		}
	}
	out.Duration = time.Since(start)

	b.broadcasts.Add(ctx, 1)
	b.duration.Record(ctx, float64(out.Duration.Microseconds())/1000)

	for _, fn := range observers {
		fn(ctx, out)
	}
	return out, nil
}

func (b *Bridge) reject(op string, args ...any) {
	b.rejected.Add(context.Background(), 1)
	b.logger.Warn(op+" rejected: descriptor not built", append(args, "error", ErrUninitialized)...)
}
