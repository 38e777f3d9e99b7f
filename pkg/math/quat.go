package math

import "math"

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	halfAngle := angle / 2
	s := float32(math.Sin(float64(halfAngle)))
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: float32(math.Cos(float64(halfAngle))),
	}
}

// QuatFromBasis builds a quaternion from three orthonormal basis vectors
// treated as matrix columns. No re-orthonormalization is performed, so a
// skewed basis produces a correspondingly skewed rotation.
func QuatFromBasis(m Mat3) Quat {
	trace := m.Right.X + m.Up.Y + m.At.Z
	var q Quat
	switch {
	case trace > 0:
		s := float32(math.Sqrt(float64(trace+1))) * 2
		q.W = s / 4
		q.X = (m.Up.Z - m.At.Y) / s
		q.Y = (m.At.X - m.Right.Z) / s
		q.Z = (m.Right.Y - m.Up.X) / s
	case m.Right.X > m.Up.Y && m.Right.X > m.At.Z:
		s := float32(math.Sqrt(float64(1+m.Right.X-m.Up.Y-m.At.Z))) * 2
		q.W = (m.Up.Z - m.At.Y) / s
		q.X = s / 4
		q.Y = (m.Up.X + m.Right.Y) / s
		q.Z = (m.At.X + m.Right.Z) / s
	case m.Up.Y > m.At.Z:
		s := float32(math.Sqrt(float64(1+m.Up.Y-m.Right.X-m.At.Z))) * 2
		q.W = (m.At.X - m.Right.Z) / s
		q.X = (m.Up.X + m.Right.Y) / s
		q.Y = s / 4
		q.Z = (m.At.Y + m.Up.Z) / s
	default:
		s := float32(math.Sqrt(float64(1+m.At.Z-m.Right.X-m.Up.Y))) * 2
		q.W = (m.Right.Y - m.Up.X) / s
		q.X = (m.At.X + m.Right.Z) / s
		q.Y = (m.At.Y + m.Up.Z) / s
		q.Z = s / 4
	}
	return q
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := float32(math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)))
	if length < 0.0001 {
		return QuatIdentity()
	}
	invLen := 1.0 / length
	return Quat{
		X: q.X * invLen,
		Y: q.Y * invLen,
		Z: q.Z * invLen,
		W: q.W * invLen,
	}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Mul multiplies two quaternions (combines rotations).
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// ToMat4 converts the quaternion to a 4x4 rotation matrix.
func (q Quat) ToMat4() Mat4 {
	q = q.Normalize()

	xx := q.X * q.X
	xy := q.X * q.Y
	xz := q.X * q.Z
	xw := q.X * q.W
	yy := q.Y * q.Y
	yz := q.Y * q.Z
	yw := q.Y * q.W
	zz := q.Z * q.Z
	zw := q.Z * q.W

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw), 0,
		2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw), 0,
		2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}

// Array returns the components as [X, Y, Z, W], the glTF rotation order.
func (q Quat) Array() [4]float32 {
	return [4]float32{q.X, q.Y, q.Z, q.W}
}
