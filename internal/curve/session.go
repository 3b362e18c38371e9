package curve

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/OCAP2/rigsync/internal/skeleton"
)

// ErrClosed is returned when a closed session is closed again.
var ErrClosed = errors.New("curve session closed")

const sceneHeader = `//Maya ASCII 2016 scene
//Name: %s
//Codeset: UTF-8
requires maya "2016";
currentUnit -l meter -a degree -t film;
`

// Session records a set of skeleton joints every frame and writes them as one
// .ma fragment that can be sourced into a scene containing the same rig.
type Session struct {
	name     string
	dir      string
	joints   []string
	channels Channels
	logger   *slog.Logger

	mu        sync.Mutex
	resolved  bool
	recorders []*ObjectRecorder
	ids       []skeleton.JointID
	start     uint
	frames    int
	closed    bool
}

// NewSession creates a session writing to dir/name.ma. An empty joints list
// records every joint of the skeleton.
func NewSession(name, dir string, joints []string, channels Channels, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		name:     name,
		dir:      dir,
		joints:   joints,
		channels: channels,
		logger:   logger,
	}
}

// ObserveFrame samples the local transform of every recorded joint. Frames are
// keyed relative to the first one observed.
func (s *Session) ObserveFrame(frame uint, skel *skeleton.Skeleton) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if !s.resolved {
		s.resolve(skel)
		s.start = frame
		s.resolved = true
	}

	for i, rec := range s.recorders {
		rec.RecordFrame(int(frame-s.start), skel.Local(s.ids[i]))
	}
	s.frames++
}

// Frames returns the number of frames recorded.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Objects returns the recorded object paths.
func (s *Session) Objects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.recorders))
	for i, r := range s.recorders {
		out[i] = r.Name()
	}
	return out
}

// Close finishes every recorder, combines their files into the scene file and
// removes the per object files. It returns the scene path.
func (s *Session) Close() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	s.closed = true

	objectDir := filepath.Join(s.dir, s.name+"_objects")
	for _, r := range s.recorders {
		r.dir = objectDir
		if err := r.EndRecord(); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(s.dir, s.name+".ma")
	if err := s.combine(path); err != nil {
		return "", err
	}

	for _, r := range s.recorders {
		if _, err := r.Clean(); err != nil {
			s.logger.Warn("failed to remove curve file", "object", r.Name(), "error", err)
		}
	}
	if err := os.Remove(objectDir); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove curve directory", "path", objectDir, "error", err)
	}

	s.logger.Info("curve export written",
		"path", path,
		"objects", len(s.recorders),
		"frames", s.frames)
	return path, nil
}

func (s *Session) combine(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating scene file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := fmt.Fprintf(w, sceneHeader, filepath.Base(path)); err != nil {
		return err
	}
	for _, r := range s.recorders {
		if err := appendFile(w, r.FinalFilePath()); err != nil {
			return fmt.Errorf("combining curves of %s: %w", r.Name(), err)
		}
	}
	return w.Flush()
}

func appendFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func (s *Session) resolve(skel *skeleton.Skeleton) {
	var ids []skeleton.JointID
	if len(s.joints) == 0 {
		ids = skel.Walk(skel.Root())
	} else {
		for _, name := range s.joints {
			id, ok := skel.Find(name)
			if !ok {
				s.logger.Warn("curve joint not found", "joint", name)
				continue
			}
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		s.ids = append(s.ids, id)
		s.recorders = append(s.recorders, NewObjectRecorder(objectPath(skel, id), s.dir, s.channels))
	}
}

// objectPath returns the slash separated path of id from the root.
func objectPath(skel *skeleton.Skeleton, id skeleton.JointID) string {
	var parts []string
	for j := id; j != skeleton.NoParent; j = skel.Parent(j) {
		parts = append(parts, skel.Name(j))
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/")
}
