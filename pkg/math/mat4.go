package math

import "math"

// Mat4 is a 4x4 matrix in column-major order (glTF compatible).
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns a translation matrix.
func Translate(v Vec3) Mat4 {
	m := Identity()
	m[12] = v.X
	m[13] = v.Y
	m[14] = v.Z
	return m
}

// Mul returns m * other.
func (m Mat4) Mul(other Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * other[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// Translation returns the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

// Col returns one of the three rotation basis columns (0..2).
func (m Mat4) Col(i int) Vec3 {
	return Vec3{m[i*4], m[i*4+1], m[i*4+2]}
}

// Decompose splits an affine transform into translation, rotation and
// per-axis scale. Negative determinants (mirroring) are not detected;
// RenderWare frame hierarchies do not use them.
func (m Mat4) Decompose() (translation Vec3, rotation Quat, scale Vec3) {
	translation = m.Translation()
	scale = Vec3{m.Col(0).Length(), m.Col(1).Length(), m.Col(2).Length()}

	basis := Mat3{Right: m.Col(0), Up: m.Col(1), At: m.Col(2)}
	if scale.X != 0 {
		basis.Right = basis.Right.Scale(1 / scale.X)
	}
	if scale.Y != 0 {
		basis.Up = basis.Up.Scale(1 / scale.Y)
	}
	if scale.Z != 0 {
		basis.At = basis.At.Scale(1 / scale.Z)
	}
	rotation = QuatFromBasis(basis)
	return translation, rotation, scale
}

// Compose builds a transform from a rotation and translation with unit
// scale.
func Compose(rotation Quat, translation Vec3) Mat4 {
	m := rotation.ToMat4()
	m[12] = translation.X
	m[13] = translation.Y
	m[14] = translation.Z
	return m
}

// Cols returns the matrix as four column vectors of four components,
// the shape glTF mat4 accessors are written in.
func (m Mat4) Cols() [4][4]float32 {
	return [4][4]float32{
		{m[0], m[1], m[2], m[3]},
		{m[4], m[5], m[6], m[7]},
		{m[8], m[9], m[10], m[11]},
		{m[12], m[13], m[14], m[15]},
	}
}

// IsFinite reports whether every component is a finite number.
func (m Mat4) IsFinite() bool {
	for _, f := range m {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
