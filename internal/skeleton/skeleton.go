// Package skeleton stores joint hierarchies as an arena of joints indexed by
// JointID with a parallel parent index. World transforms are derived on
// demand by composing local transforms up the parent chain.
package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// JointID indexes a joint inside its Skeleton.
type JointID int

// NoParent marks the root joint.
const NoParent JointID = -1

// Joint is a named node with a parent-relative transform.
type Joint struct {
	Name  string
	Local Transform
}

// Skeleton is not safe for concurrent use; owners serialize access.
type Skeleton struct {
	joints   []Joint
	parents  []JointID
	children [][]JointID
	byName   map[string]JointID
}

// New returns an empty skeleton.
func New() *Skeleton {
	return &Skeleton{
		byName: make(map[string]JointID),
	}
}

// AddJoint appends a joint under parent. The first joint must be the root
// (parent NoParent); names must be unique.
func (s *Skeleton) AddJoint(name string, parent JointID, local Transform) (JointID, error) {
	if name == "" {
		return 0, fmt.Errorf("joint name is empty")
	}
	if _, dup := s.byName[name]; dup {
		return 0, fmt.Errorf("duplicate joint name %q", name)
	}
	if parent == NoParent && len(s.joints) > 0 {
		return 0, fmt.Errorf("skeleton already has root %q", s.joints[0].Name)
	}
	if parent != NoParent && !s.valid(parent) {
		return 0, fmt.Errorf("joint %q: parent %d does not exist", name, parent)
	}

	id := JointID(len(s.joints))
	s.joints = append(s.joints, Joint{Name: name, Local: local})
	s.parents = append(s.parents, parent)
	s.children = append(s.children, nil)
	s.byName[name] = id
	if parent != NoParent {
		s.children[parent] = append(s.children[parent], id)
	}
	return id, nil
}

func (s *Skeleton) valid(id JointID) bool {
	return id >= 0 && int(id) < len(s.joints)
}

// Len returns the number of joints.
func (s *Skeleton) Len() int {
	return len(s.joints)
}

// Root returns the root joint, or NoParent for an empty skeleton.
func (s *Skeleton) Root() JointID {
	if len(s.joints) == 0 {
		return NoParent
	}
	return 0
}

// Find returns the joint with the given name.
func (s *Skeleton) Find(name string) (JointID, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// Name returns the name of id.
func (s *Skeleton) Name(id JointID) string {
	return s.joints[id].Name
}

// Parent returns the parent of id, or NoParent for the root.
func (s *Skeleton) Parent(id JointID) JointID {
	return s.parents[id]
}

// Children returns the children of id in insertion order.
func (s *Skeleton) Children(id JointID) []JointID {
	out := make([]JointID, len(s.children[id]))
	copy(out, s.children[id])
	return out
}

// IsAncestor reports whether ancestor lies on the parent chain of id.
func (s *Skeleton) IsAncestor(ancestor, id JointID) bool {
	for p := s.parents[id]; p != NoParent; p = s.parents[p] {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Local returns the parent-relative transform of id.
func (s *Skeleton) Local(id JointID) Transform {
	return s.joints[id].Local
}

// SetLocal replaces the parent-relative transform of id.
func (s *Skeleton) SetLocal(id JointID, t Transform) {
	s.joints[id].Local = t
}

// SetLocalRotation replaces the parent-relative rotation of id.
func (s *Skeleton) SetLocalRotation(id JointID, q mgl64.Quat) {
	s.joints[id].Local.Rotation = q.Normalize()
}

// World returns the absolute transform of id.
func (s *Skeleton) World(id JointID) Transform {
	var chain []JointID
	for cur := id; cur != NoParent; cur = s.parents[cur] {
		chain = append(chain, cur)
	}

	world := s.joints[chain[len(chain)-1]].Local
	for i := len(chain) - 2; i >= 0; i-- {
		world = Compose(world, s.joints[chain[i]].Local)
	}
	return world
}

// WorldPosition returns the absolute position of id.
func (s *Skeleton) WorldPosition(id JointID) mgl64.Vec3 {
	return s.World(id).Position
}

// SetWorldPosition moves id to p by rewriting its local position.
// Descendants keep their local transforms and therefore move with it.
func (s *Skeleton) SetWorldPosition(id JointID, p mgl64.Vec3) {
	if s.parents[id] == NoParent {
		s.joints[id].Local.Position = p
		return
	}
	s.joints[id].Local.Position = localPosition(s.World(s.parents[id]), p)
}

// SetWorldRotation orients id to q in world space.
func (s *Skeleton) SetWorldRotation(id JointID, q mgl64.Quat) {
	if s.parents[id] == NoParent {
		s.joints[id].Local.Rotation = q.Normalize()
		return
	}
	parent := s.World(s.parents[id]).Rotation
	s.joints[id].Local.Rotation = parent.Inverse().Mul(q).Normalize()
}

// Clone returns a deep copy.
func (s *Skeleton) Clone() *Skeleton {
	c := &Skeleton{
		joints:   make([]Joint, len(s.joints)),
		parents:  make([]JointID, len(s.parents)),
		children: make([][]JointID, len(s.children)),
		byName:   make(map[string]JointID, len(s.byName)),
	}
	copy(c.joints, s.joints)
	copy(c.parents, s.parents)
	for i, ch := range s.children {
		c.children[i] = append([]JointID(nil), ch...)
	}
	for k, v := range s.byName {
		c.byName[k] = v
	}
	return c
}
