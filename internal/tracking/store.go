// Package tracking holds the latest tracked anchors and feeds them from an
// MQTT broker.
package tracking

import (
	"fmt"
	"sync"
	"time"

	"github.com/OCAP2/rigsync/internal/skeleton"
	"github.com/OCAP2/rigsync/pkg/core"
)

// Store keeps the most recent anchor per landmark. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	anchors map[core.Landmark]core.Anchor
	updated time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{anchors: make(map[core.Landmark]core.Anchor, len(core.Landmarks))}
}

// Update replaces the anchor of a.Landmark.
func (s *Store) Update(a core.Anchor) error {
	if _, err := core.ParseLandmark(string(a.Landmark)); err != nil {
		return err
	}
	if !skeleton.Finite(a.Position) {
		return fmt.Errorf("%s: position is not finite", a.Landmark)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[a.Landmark] = a
	s.updated = time.Now()
	return nil
}

// Snapshot returns the current anchors. ok is false until the head and both
// hands have been seen.
func (s *Store) Snapshot() (core.AnchorSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	head, okHead := s.anchors[core.LandmarkHead]
	lh, okLeft := s.anchors[core.LandmarkLeftHand]
	rh, okRight := s.anchors[core.LandmarkRightHand]
	if !okHead || !okLeft || !okRight {
		return core.AnchorSet{}, false
	}

	set := core.AnchorSet{Head: head, LeftHand: lh, RightHand: rh}
	if lf, ok := s.anchors[core.LandmarkLeftFoot]; ok {
		set.LeftFoot = &lf
	}
	if rf, ok := s.anchors[core.LandmarkRightFoot]; ok {
		set.RightFoot = &rf
	}
	return set, true
}

// Len returns the number of landmarks seen.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.anchors)
}

// Updated returns the time of the last update.
func (s *Store) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// Clear forgets every anchor.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.anchors)
	s.updated = time.Time{}
}
