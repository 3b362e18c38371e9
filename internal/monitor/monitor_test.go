package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/rigsync/internal/influx"
	"github.com/OCAP2/rigsync/internal/session"
	"github.com/OCAP2/rigsync/pkg/core"
)

type stubRig struct {
	frame    uint
	attached bool
}

func (r stubRig) Frame() uint { return r.frame }
func (r stubRig) Attached() bool { return r.attached }
func (r stubRig) Rigs() []string { return []string{"Avatar"} }

type stubAnchors struct {
	n       int
	updated time.Time
}

func (a stubAnchors) Len() int { return a.n }
func (a stubAnchors) Updated() time.Time { return a.updated }

type recordingMetrics struct {
	mu      sync.Mutex
	buckets []string
	points  []*influxdb2_write.Point
}

func (m *recordingMetrics) WritePoint(bucket string, p *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = append(m.buckets, bucket)
	m.points = append(m.points, p)
	return nil
}

func (m *recordingMetrics) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

func newService(t *testing.T, anchors stubAnchors) (*Service, *session.Context, *recordingMetrics, string) {
	t.Helper()
	ctx := session.NewContext()
	metrics := &recordingMetrics{}
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{
		Session:    ctx,
		Rig:        stubRig{frame: 12, attached: true},
		Anchors:    anchors,
		Recording:  func() bool { return true },
		Metrics:    metrics,
		StatusPath: path,
		Interval:   10 * time.Millisecond,
	})
	return s, ctx, metrics, path
}

func TestGetStatus(t *testing.T) {
	tests := []struct {
		name    string
		anchors stubAnchors
		wantAge bool
	}{
		{"no anchors yet", stubAnchors{}, false},
		{"anchors seen", stubAnchors{n: 3, updated: time.Now().Add(-time.Second)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ctx, _, _ := newService(t, tt.anchors)
			ctx.Start(core.Session{ID: 4, Name: "take"})

			st := s.GetStatus()
			assert.Equal(t, uint(12), st.Frame)
			assert.True(t, st.Attached)
			assert.Equal(t, []string{"Avatar"}, st.Rigs)
			assert.Equal(t, tt.anchors.n, st.Anchors)
			assert.True(t, st.Recording)
			assert.Equal(t, uint(4), st.SessionID)
			assert.Equal(t, "take", st.SessionName)
			assert.Positive(t, st.Goroutines)
			if tt.wantAge {
				assert.GreaterOrEqual(t, st.AnchorAgeMs, int64(1000))
			} else {
				assert.Equal(t, int64(-1), st.AnchorAgeMs)
			}
		})
	}
}

func TestSample(t *testing.T) {
	s, ctx, metrics, path := newService(t, stubAnchors{n: 3, updated: time.Now()})

	// no session, file only
	s.Sample()
	assert.Zero(t, metrics.count())

	var st Status
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, uint(12), st.Frame)
	assert.Equal(t, 3, st.Anchors)

	ctx.Start(core.Session{ID: 9, Name: "take"})
	s.Sample()
	require.Equal(t, 1, metrics.count())
	assert.Equal(t, influx.BucketStatus, metrics.buckets[0])
	assert.Equal(t, "service_status", metrics.points[0].Name())
}

func TestStatusPoint(t *testing.T) {
	p := StatusPoint(Status{SessionID: 2, Frame: 7, Rigs: []string{"A", "B"}, AnchorAgeMs: -1})

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, "2", tags["session"])
	assert.Equal(t, int64(7), fields["frame"])
	assert.Equal(t, int64(2), fields["targets"])
	assert.Equal(t, int64(-1), fields["anchor_age_ms"])
}

func TestStartStop(t *testing.T) {
	s, ctx, metrics, _ := newService(t, stubAnchors{})
	ctx.Start(core.Session{ID: 1})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return metrics.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	n := metrics.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, metrics.count())

	s.Stop()
}
