// Package bonename resolves generic humanoid bones to the joint names used by
// a particular rig naming convention.
package bonename

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OCAP2/rigsync/internal/humanoid"
)

// ErrUnknownConvention is returned for conventions without a suffix table.
var ErrUnknownConvention = errors.New("unknown naming convention")

// Convention selects a naming scheme.
type Convention int

const (
	// Motive is the motion-capture rig convention. It is the only one that
	// names finger phalanges.
	Motive Convention = iota
	// FBX is the FBX export convention.
	FBX
	// BVH is the BVH motion file convention.
	BVH
)

func (c Convention) String() string {
	switch c {
	case Motive:
		return "motive"
	case FBX:
		return "fbx"
	case BVH:
		return "bvh"
	default:
		return fmt.Sprintf("convention(%d)", int(c))
	}
}

// ParseConvention accepts the convention names used in configuration.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "motive", "mocap":
		return Motive, nil
	case "fbx":
		return FBX, nil
	case "bvh":
		return BVH, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownConvention, s)
	}
}

// Resolve returns the suffix appended to the asset name for bone b under
// convention c. ok is false when the convention does not name b.
func Resolve(c Convention, b humanoid.Bone) (suffix string, ok bool) {
	table, found := tables[c]
	if !found {
		return "", false
	}
	suffix, ok = table[b]
	return suffix, ok
}

// Map binds generic bones to skeleton joint names. A Map is built wholesale
// by BuildMap and never edited in place.
type Map struct {
	convention Convention
	prefix     string
	names      map[humanoid.Bone]string
}

// BuildMap produces the complete name map for a convention and asset name.
// Every value is prefix + suffix.
func BuildMap(c Convention, prefix string) (Map, error) {
	table, ok := tables[c]
	if !ok {
		return Map{}, fmt.Errorf("%w: %s", ErrUnknownConvention, c)
	}

	names := make(map[humanoid.Bone]string, len(table))
	for bone, suffix := range table {
		names[bone] = prefix + suffix
	}

	return Map{convention: c, prefix: prefix, names: names}, nil
}

// Convention returns the convention the map was built for.
func (m Map) Convention() Convention {
	return m.convention
}

// Prefix returns the asset name the map was built with.
func (m Map) Prefix() string {
	return m.prefix
}

// Len returns the number of bound bones.
func (m Map) Len() int {
	return len(m.names)
}

// Lookup returns the joint name for b.
func (m Map) Lookup(b humanoid.Bone) (string, bool) {
	name, ok := m.names[b]
	return name, ok
}

// Bones returns the bound bones in schema order.
func (m Map) Bones() []humanoid.Bone {
	bones := make([]humanoid.Bone, 0, len(m.names))
	for _, b := range humanoid.All() {
		if _, ok := m.names[b]; ok {
			bones = append(bones, b)
		}
	}
	return bones
}

// Reverse returns the joint name to bone lookup.
func (m Map) Reverse() map[string]humanoid.Bone {
	out := make(map[string]humanoid.Bone, len(m.names))
	for b, name := range m.names {
		out[name] = b
	}
	return out
}
