// Package parser converts raw command arguments into rigsync values.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OCAP2/rigsync/internal/util"
	"github.com/OCAP2/rigsync/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrMissingArgs is returned when a command has fewer arguments than it needs.
var ErrMissingArgs = errors.New("missing arguments")

// DefaultSessionName names sessions started without a name argument.
const DefaultSessionName = "rigsync"

// JointRotation is a local rotation for a named source joint.
type JointRotation struct {
	Name     string
	Rotation mgl64.Quat
}

// LogMessage is a log line forwarded by a client.
type LogMessage struct {
	Function string
	Data     string
	Level    string
}

// Parser provides pure []string -> value conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger

	// Static config set at creation time
	serviceVersion string
	convention     string
	assetName      string
}

// NewParser creates a parser. convention and assetName describe the source
// rig and are stamped on every parsed session.
func NewParser(logger *slog.Logger, serviceVersion, convention, assetName string) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{
		logger:         logger,
		serviceVersion: serviceVersion,
		convention:     convention,
		assetName:      assetName,
	}
}

func need(args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("%w: need %d, got %d", ErrMissingArgs, n, len(args))
	}
	return nil
}

// ParseSessionStart parses [name]. A missing or empty name falls back to
// DefaultSessionName.
func (p *Parser) ParseSessionStart(args []string) core.Session {
	s := core.Session{
		Name:       p.ParseName(args, DefaultSessionName),
		StartTime:  time.Now(),
		Convention: p.convention,
		AssetName:  p.assetName,
		Version:    p.serviceVersion,
	}
	p.logger.Debug("Parsed session", "name", s.Name)
	return s
}

// ParseName returns the first argument, or fallback when it is missing or empty.
func (p *Parser) ParseName(args []string, fallback string) string {
	if len(args) > 0 {
		if n := util.CleanArg(args[0]); n != "" {
			return n
		}
	}
	return fallback
}

// ParseAnchor parses [landmark, "x,y,z"] with an optional "qx,qy,qz,qw".
// A missing rotation is the identity.
func (p *Parser) ParseAnchor(args []string) (core.Anchor, error) {
	var a core.Anchor
	if err := need(args, 2); err != nil {
		return a, fmt.Errorf("anchor: %w", err)
	}

	l, err := core.ParseLandmark(util.CleanArg(args[0]))
	if err != nil {
		return a, fmt.Errorf("anchor: %w", err)
	}

	pos, err := util.ParseFloats(util.CleanArg(args[1]), 3)
	if err != nil {
		return a, fmt.Errorf("anchor %s position: %w", l, err)
	}

	rot := mgl64.QuatIdent()
	if len(args) > 2 && util.CleanArg(args[2]) != "" {
		rot, err = parseQuat(args[2])
		if err != nil {
			return a, fmt.Errorf("anchor %s rotation: %w", l, err)
		}
	}

	return core.Anchor{
		Landmark: l,
		Position: mgl64.Vec3{pos[0], pos[1], pos[2]},
		Rotation: rot,
	}, nil
}

// ParseJoint parses [jointName, "qx,qy,qz,qw"].
func (p *Parser) ParseJoint(args []string) (JointRotation, error) {
	var j JointRotation
	if err := need(args, 2); err != nil {
		return j, fmt.Errorf("joint: %w", err)
	}

	j.Name = util.CleanArg(args[0])
	if j.Name == "" {
		return j, errors.New("joint: empty name")
	}

	q, err := parseQuat(args[1])
	if err != nil {
		return j, fmt.Errorf("joint %s: %w", j.Name, err)
	}
	j.Rotation = q
	return j, nil
}

// ParseTarget parses [targetID].
func (p *Parser) ParseTarget(args []string) (string, error) {
	if err := need(args, 1); err != nil {
		return "", fmt.Errorf("target: %w", err)
	}
	id := util.CleanArg(args[0])
	if id == "" {
		return "", errors.New("target: empty id")
	}
	return id, nil
}

// ParseLog parses [function, data] with an optional level, default INFO.
func (p *Parser) ParseLog(args []string) (LogMessage, error) {
	var m LogMessage
	if err := need(args, 2); err != nil {
		return m, fmt.Errorf("log: %w", err)
	}
	m.Function = util.CleanArg(args[0])
	m.Data = util.CleanArg(args[1])
	m.Level = "INFO"
	if len(args) > 2 {
		if lvl := strings.ToUpper(util.CleanArg(args[2])); lvl != "" {
			m.Level = lvl
		}
	}
	return m, nil
}

// parseQuat reads x, y, z, w and normalizes. All zeros is rejected.
func parseQuat(s string) (mgl64.Quat, error) {
	v, err := util.ParseFloats(util.CleanArg(s), 4)
	if err != nil {
		return mgl64.Quat{}, err
	}
	q := mgl64.Quat{W: v[3], V: mgl64.Vec3{v[0], v[1], v[2]}}
	if q.Len() == 0 {
		return mgl64.Quat{}, errors.New("zero quaternion")
	}
	return q.Normalize(), nil
}
