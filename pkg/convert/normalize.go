// Package convert turns parsed RenderWare models into glTF binary
// documents.
package convert

import (
	"errors"
	"fmt"

	"github.com/Faultbox/dff2glb/pkg/math"
	"github.com/Faultbox/dff2glb/pkg/rw"
)

// Conversion errors.
var (
	ErrLengthMismatch   = errors.New("joint index and weight sequences differ in length")
	ErrMissingReference = errors.New("reference to a nonexistent frame or geometry")
)

// weightTolerance is the band around 1.0 inside which a weight group is
// left untouched.
const weightTolerance = 0.001

// SynthesizeNormals computes smooth per-vertex normals for a mesh that
// lacks them. Each vertex accumulates the unweighted sum of the unit
// normals of its non-degenerate incident faces. Vertices with no usable
// faces default to (0, 1, 0).
func SynthesizeNormals(vertices []math.Vec3, triangles []rw.Triangle) []math.Vec3 {
	normals := make([]math.Vec3, len(vertices))
	for _, t := range triangles {
		if t.A == t.B || t.B == t.C || t.A == t.C {
			continue
		}
		if int(t.A) >= len(vertices) || int(t.B) >= len(vertices) || int(t.C) >= len(vertices) {
			continue
		}
		v0, v1, v2 := vertices[t.A], vertices[t.B], vertices[t.C]
		cross := v1.Sub(v0).Cross(v2.Sub(v0))
		if cross.LengthSq() == 0 {
			continue
		}
		n := cross.Normalize()
		normals[t.A] = normals[t.A].Add(n)
		normals[t.B] = normals[t.B].Add(n)
		normals[t.C] = normals[t.C].Add(n)
	}
	for i := range normals {
		if normals[i].LengthSq() == 0 {
			normals[i] = math.Vec3{Y: 1}
			continue
		}
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// SanitizeJoints zeroes every joint index whose paired weight is exactly
// zero, so readers never chase a reference from a zero-influence slot.
// Both sequences are flat runs of 4 and must have equal length.
func SanitizeJoints(indices []uint8, weights []float32) error {
	if len(indices) != len(weights) {
		return fmt.Errorf("%w: %d indices, %d weights", ErrLengthMismatch, len(indices), len(weights))
	}
	for i := range indices {
		if weights[i] == 0 {
			indices[i] = 0
		}
	}
	return nil
}

// NormalizeWeights rescales each 4-weight group to sum to one. Groups
// summing to zero collapse to fully rigid on the first slot; groups
// already within tolerance of one are left untouched.
func NormalizeWeights(groups [][4]float32) {
	for i := range groups {
		sum := groups[i][0] + groups[i][1] + groups[i][2] + groups[i][3]
		if sum == 0 {
			groups[i][0] = 1
			continue
		}
		diff := sum - 1
		if diff > -weightTolerance && diff < weightTolerance {
			continue
		}
		for j := range groups[i] {
			groups[i][j] /= sum
		}
	}
}
