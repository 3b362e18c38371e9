// Package session tracks the recording session the service is currently in.
package session

import (
	"log/slog"
	"sync"

	"github.com/OCAP2/rigsync/pkg/core"
)

// Context holds the current session and the latest tick frame.
type Context struct {
	mu        sync.RWMutex
	session   *core.Session
	baseFrame uint
	frame     uint
}

// NewContext creates a Context with no session.
func NewContext() *Context {
	return &Context{}
}

// Start makes s the current session. Frames reported through Frame are
// counted from the controller frame at which it starts.
func (c *Context) Start(s core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &s
	c.baseFrame = c.frame
}

// End clears the current session and returns it. ok is false when no
// session was active.
func (c *Context) End() (s core.Session, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return core.Session{}, false
	}
	s = *c.session
	c.session = nil
	return s, true
}

// Current returns the active session.
func (c *Context) Current() (core.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return core.Session{}, false
	}
	return *c.session, true
}

// ID returns the active session id, 0 when none.
func (c *Context) ID() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return 0
	}
	return c.session.ID
}

// SetID updates the id of the active session once the backend assigned one.
func (c *Context) SetID(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.ID = id
	}
}

// SetFrame records the latest controller frame.
func (c *Context) SetFrame(frame uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
}

// Frame converts a controller frame to a frame relative to the session start.
func (c *Context) Frame(controllerFrame uint) uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if controllerFrame < c.baseFrame {
		return 0
	}
	return controllerFrame - c.baseFrame
}

// LogAttrs returns the attributes every log record carries. It satisfies
// logging.ContextProvider.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return []slog.Attr{slog.Uint64("frame", uint64(c.frame))}
	}
	return []slog.Attr{
		slog.Uint64("session", uint64(c.session.ID)),
		slog.Uint64("frame", uint64(c.frame-min(c.frame, c.baseFrame))),
	}
}
