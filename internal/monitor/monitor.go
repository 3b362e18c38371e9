package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/OCAP2/rigsync/internal/influx"
	"github.com/OCAP2/rigsync/internal/session"
)

// DefaultInterval is the sampling period when none is configured.
const DefaultInterval = time.Second

// Rig is the part of the attach controller the monitor reads.
type Rig interface {
	Frame() uint
	Attached() bool
	Rigs() []string
}

// Anchors is the part of the anchor store the monitor reads.
type Anchors interface {
	Len() int
	Updated() time.Time
}

// MetricWriter receives status points.
type MetricWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session   *session.Context
	Rig       Rig
	Anchors   Anchors
	Recording func() bool

	// Optional
	Metrics    MetricWriter
	StatusPath string
	Interval   time.Duration
	Logger     *slog.Logger
}

// Status is one sample of the service state.
type Status struct {
	Time        time.Time `json:"time"`
	SessionID   uint      `json:"sessionId,omitempty"`
	SessionName string    `json:"session,omitempty"`
	Frame       uint      `json:"frame"`
	Attached    bool      `json:"attached"`
	Rigs        []string  `json:"rigs"`
	Anchors     int       `json:"anchors"`
	AnchorAgeMs int64     `json:"anchorAgeMs"` // -1 before the first anchor
	Recording   bool      `json:"recording"`
	Goroutines  int       `json:"goroutines"`
	HeapAllocMB float64   `json:"heapAllocMb"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	logger    *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		deps:   deps,
		logger: logger,
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus samples the current state.
func (s *Service) GetStatus() Status {
	now := time.Now()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := Status{
		Time:        now,
		Frame:       s.deps.Rig.Frame(),
		Attached:    s.deps.Rig.Attached(),
		Rigs:        s.deps.Rig.Rigs(),
		Anchors:     s.deps.Anchors.Len(),
		AnchorAgeMs: -1,
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(mem.HeapAlloc) / (1 << 20),
	}
	if updated := s.deps.Anchors.Updated(); !updated.IsZero() {
		st.AnchorAgeMs = now.Sub(updated).Milliseconds()
	}
	if s.deps.Recording != nil {
		st.Recording = s.deps.Recording()
	}
	if cur, ok := s.deps.Session.Current(); ok {
		st.SessionID = cur.ID
		st.SessionName = cur.Name
	}
	return st
}

// StatusPoint builds the service_status point for a sample.
func StatusPoint(st Status) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"service_status",
		map[string]string{"session": strconv.FormatUint(uint64(st.SessionID), 10)},
		map[string]any{
			"frame":         int64(st.Frame),
			"attached":      st.Attached,
			"targets":       len(st.Rigs),
			"anchors":       st.Anchors,
			"anchor_age_ms": st.AnchorAgeMs,
			"recording":     st.Recording,
			"goroutines":    st.Goroutines,
			"heap_alloc_mb": st.HeapAllocMB,
		},
		st.Time,
	)
}

// Sample takes one status sample, rewrites the status file and, during a
// session, writes a status point.
func (s *Service) Sample() Status {
	st := s.GetStatus()

	if s.deps.StatusPath != "" {
		if err := writeStatusFile(s.deps.StatusPath, st); err != nil {
			s.logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Metrics != nil && st.SessionID != 0 {
		if err := s.deps.Metrics.WritePoint(influx.BucketStatus, StatusPoint(st)); err != nil {
			s.logger.Debug("Dropping status point", "error", err)
		}
	}
	return st
}

func writeStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		s.logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Sample()
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
