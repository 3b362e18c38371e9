// Package curve samples joint transforms every frame and writes them as Maya
// ASCII animation curves.
package curve

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OCAP2/rigsync/internal/skeleton"
	"github.com/go-gl/mathgl/mgl64"
)

// Maya curve node types.
const (
	TypeLinear   = "animCurveTL"
	TypeAngular  = "animCurveTA"
	TypeUnitless = "animCurveTU"
)

// tangentStepped is the ".tan" value written for every curve.
const tangentStepped = 18

// Channels selects which transform components are recorded.
type Channels struct {
	Translation bool `json:"translation" mapstructure:"translation"`
	Rotation    bool `json:"rotation" mapstructure:"rotation"`
	Scale       bool `json:"scale" mapstructure:"scale"`
}

// AllChannels records translation, rotation and scale.
func AllChannels() Channels {
	return Channels{Translation: true, Rotation: true, Scale: true}
}

type key struct {
	frame int
	value float64
}

// Curve is one animated attribute of one object.
type Curve struct {
	Object    string
	Type      string
	Attribute string
	Short     string
	keys      []key
}

func newCurve(object, typ, attr, short string) *Curve {
	return &Curve{Object: object, Type: typ, Attribute: attr, Short: short}
}

// AddValue appends a key.
func (c *Curve) AddValue(frame int, v float64) {
	c.keys = append(c.keys, key{frame: frame, value: v})
}

// Len returns the number of keys.
func (c *Curve) Len() int {
	return len(c.keys)
}

// nodeName is the Maya node name of the curve.
func (c *Curve) nodeName() string {
	return nodeSafe(c.Object) + "_" + c.Attribute
}

// WriteTo writes the curve node and its connection.
func (c *Curve) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	node := c.nodeName()

	fmt.Fprintf(&b, "createNode %s -n %q;\n", c.Type, node)
	fmt.Fprintf(&b, "\tsetAttr \".tan\" %d;\n", tangentStepped)
	b.WriteString("\tsetAttr \".wgt\" no;\n")
	if n := len(c.keys); n > 0 {
		fmt.Fprintf(&b, "\tsetAttr -s %d \".ktv[0:%d]\" ", n, n-1)
		for i, k := range c.keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.Itoa(k.frame))
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(k.value, 'f', -1, 64))
		}
		b.WriteString(";\n")
	}
	fmt.Fprintf(&b, "connectAttr \"%s.o\" \"%s.%s\";\n", node, dagPath(c.Object), c.Short)

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// ObjectRecorder keeps the curves of one observed object.
type ObjectRecorder struct {
	name     string
	fileName string
	dir      string
	channels Channels

	translate [3]*Curve
	rotate    [3]*Curve
	scale     [3]*Curve

	finalPath string
}

// NewObjectRecorder creates a recorder for the object at namePath whose
// combined curves are written below dir.
func NewObjectRecorder(namePath, dir string, channels Channels) *ObjectRecorder {
	r := &ObjectRecorder{
		name:     namePath,
		fileName: strings.ReplaceAll(namePath, "/", "-"),
		dir:      dir,
		channels: channels,
	}
	if channels.Translation {
		r.translate = [3]*Curve{
			newCurve(namePath, TypeLinear, "translateX", "tx"),
			newCurve(namePath, TypeLinear, "translateY", "ty"),
			newCurve(namePath, TypeLinear, "translateZ", "tz"),
		}
	}
	if channels.Rotation {
		r.rotate = [3]*Curve{
			newCurve(namePath, TypeAngular, "rotateX", "rx"),
			newCurve(namePath, TypeAngular, "rotateY", "ry"),
			newCurve(namePath, TypeAngular, "rotateZ", "rz"),
		}
	}
	if channels.Scale {
		r.scale = [3]*Curve{
			newCurve(namePath, TypeUnitless, "scaleX", "sx"),
			newCurve(namePath, TypeUnitless, "scaleY", "sy"),
			newCurve(namePath, TypeUnitless, "scaleZ", "sz"),
		}
	}
	return r
}

// Name returns the observed object path.
func (r *ObjectRecorder) Name() string {
	return r.name
}

// Curves returns the enabled curves in translate, rotate, scale order.
func (r *ObjectRecorder) Curves() []*Curve {
	var out []*Curve
	for _, group := range [][3]*Curve{r.translate, r.rotate, r.scale} {
		if group[0] == nil {
			continue
		}
		out = append(out, group[:]...)
	}
	return out
}

// RecordFrame adds one key per enabled curve from a local transform.
func (r *ObjectRecorder) RecordFrame(frame int, local skeleton.Transform) {
	if r.channels.Translation {
		t := MayaTranslation(local.Position)
		for i := range r.translate {
			r.translate[i].AddValue(frame, t[i])
		}
	}
	if r.channels.Rotation {
		e := MayaRotation(local.Rotation)
		for i := range r.rotate {
			r.rotate[i].AddValue(frame, e[i])
		}
	}
	if r.channels.Scale {
		for i := range r.scale {
			r.scale[i].AddValue(frame, local.Scale[i])
		}
	}
}

// WriteTo writes every enabled curve.
func (r *ObjectRecorder) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, c := range r.Curves() {
		n, err := c.WriteTo(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// EndRecord writes all curves into <dir>/<fileName>_objectAll.
func (r *ObjectRecorder) EndRecord() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("creating curve directory: %w", err)
	}

	path := filepath.Join(r.dir, r.fileName+"_objectAll")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating curve file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := r.WriteTo(w); err != nil {
		return fmt.Errorf("writing curves of %s: %w", r.name, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing curves of %s: %w", r.name, err)
	}

	r.finalPath = path
	return nil
}

// FinalFilePath returns the combined file, or "" before EndRecord.
func (r *ObjectRecorder) FinalFilePath() string {
	return r.finalPath
}

// Clean deletes the combined file. It reports false when there is none.
func (r *ObjectRecorder) Clean() (bool, error) {
	if r.finalPath == "" {
		return false, nil
	}
	if err := os.Remove(r.finalPath); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	r.finalPath = ""
	return true, nil
}

// MayaTranslation converts a left handed position into Maya's right handed
// frame by negating X.
func MayaTranslation(p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{-p[0], p[1], p[2]}
}

// MayaRotation converts q to XYZ Euler angles in degrees with Y and Z
// negated for the handedness change.
func MayaRotation(q mgl64.Quat) mgl64.Vec3 {
	x, y, z, w := q.V[0], q.V[1], q.V[2], q.W
	ysqr := y * y

	t0 := 2 * (w*x + y*z)
	t1 := 1 - 2*(x*x+ysqr)
	roll := math.Atan2(t0, t1)

	t2 := mgl64.Clamp(2*(w*y-z*x), -1, 1)
	pitch := math.Asin(t2)

	t3 := 2 * (w*z + x*y)
	t4 := 1 - 2*(ysqr+z*z)
	yaw := math.Atan2(t3, t4)

	return mgl64.Vec3{
		mgl64.RadToDeg(roll),
		-mgl64.RadToDeg(pitch),
		-mgl64.RadToDeg(yaw),
	}
}

func nodeSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}

// dagPath turns a slash separated object path into a Maya DAG path.
func dagPath(name string) string {
	if !strings.Contains(name, "/") {
		return name
	}
	return "|" + strings.ReplaceAll(strings.Trim(name, "/"), "/", "|")
}
