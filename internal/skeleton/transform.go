package skeleton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a position, rotation and scale. Joint transforms are stored
// relative to the parent joint; World returns the composed absolute value.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// Identity is the transform that leaves its child unchanged.
func Identity() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// At returns an unrotated, unscaled transform at p.
func At(p mgl64.Vec3) Transform {
	t := Identity()
	t.Position = p
	return t
}

// Compose applies local under parent.
func Compose(parent, local Transform) Transform {
	return Transform{
		Position: parent.Position.Add(parent.Rotation.Rotate(mulElem(parent.Scale, local.Position))),
		Rotation: parent.Rotation.Mul(local.Rotation).Normalize(),
		Scale:    mulElem(parent.Scale, local.Scale),
	}
}

// localPosition inverts Compose for a position: it returns the local
// position that places a child of parent at world.
func localPosition(parent Transform, world mgl64.Vec3) mgl64.Vec3 {
	return divElem(parent.Rotation.Inverse().Rotate(world.Sub(parent.Position)), parent.Scale)
}

func mulElem(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func divElem(a, b mgl64.Vec3) mgl64.Vec3 {
	var out mgl64.Vec3
	for i := range out {
		if b[i] != 0 {
			out[i] = a[i] / b[i]
		}
	}
	return out
}

// Finite reports whether every component of v is a real number.
func Finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
