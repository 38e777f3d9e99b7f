package convert

import (
	gomath "math"

	"github.com/Faultbox/dff2glb/pkg/math"
)

// nonFiniteSentinel replaces NaN and infinite components in normalized
// transforms. It is deliberately -1 rather than 0 so a corrupt transform
// is visible in a viewer instead of collapsing to identity; output
// hashes depend on it.
const nonFiniteSentinel = -1

// Root basis corrections, both built from -90 degree axis rotations.
// Engine frames are Z-up; glTF is Y-up. Skinned hierarchies need a
// second rotation because the bind pose faces along a different axis.
var (
	objectRootRotation = math.QuatFromAxisAngle(math.Vec3{X: 1}, -gomath.Pi/2)
	skinRootRotation   = math.QuatFromAxisAngle(math.Vec3{Z: 1}, -gomath.Pi/2).
				Mul(math.QuatFromAxisAngle(math.Vec3{X: 1}, -gomath.Pi/2))
)

// NormalizeRigid rebuilds an affine transform keeping only its rotation
// and translation; source scale is discarded. Any non-finite component
// of the rebuilt matrix becomes the -1 sentinel.
func NormalizeRigid(m math.Mat4) math.Mat4 {
	translation, rotation, _ := m.Decompose()
	out := math.Compose(rotation, translation)
	for i, f := range out {
		if !finite(f) {
			out[i] = nonFiniteSentinel
		}
	}
	return out
}

func finite(f float32) bool {
	return !gomath.IsNaN(float64(f)) && !gomath.IsInf(float64(f), 0)
}

func sanitizeVec3(v math.Vec3) math.Vec3 {
	if !finite(v.X) {
		v.X = nonFiniteSentinel
	}
	if !finite(v.Y) {
		v.Y = nonFiniteSentinel
	}
	if !finite(v.Z) {
		v.Z = nonFiniteSentinel
	}
	return v
}

func sanitizeQuat(q math.Quat) math.Quat {
	if !finite(q.X) {
		q.X = nonFiniteSentinel
	}
	if !finite(q.Y) {
		q.Y = nonFiniteSentinel
	}
	if !finite(q.Z) {
		q.Z = nonFiniteSentinel
	}
	if !finite(q.W) {
		q.W = nonFiniteSentinel
	}
	return q
}

// frameRotation converts a frame basis to a node rotation, applying the
// root correction where the frame heads its hierarchy.
func frameRotation(basis math.Mat3, isRoot bool, skinned bool) math.Quat {
	q := math.QuatFromBasis(basis)
	if !isRoot {
		return sanitizeQuat(q)
	}
	if skinned {
		return sanitizeQuat(skinRootRotation.Mul(q))
	}
	return sanitizeQuat(objectRootRotation.Mul(q))
}
