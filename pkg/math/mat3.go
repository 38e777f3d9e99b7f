package math

// Mat3 is a 3x3 rotation matrix stored as three basis vectors.
// RenderWare frames store their orientation this way: Right, Up and At
// are the columns of the rotation matrix.
type Mat3 struct {
	Right, Up, At Vec3
}

// Mat3Identity returns an identity basis.
func Mat3Identity() Mat3 {
	return Mat3{
		Right: Vec3{X: 1},
		Up:    Vec3{Y: 1},
		At:    Vec3{Z: 1},
	}
}

// MulVec3 applies the rotation to a vector (columns times components).
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		X: m.Right.X*v.X + m.Up.X*v.Y + m.At.X*v.Z,
		Y: m.Right.Y*v.X + m.Up.Y*v.Y + m.At.Y*v.Z,
		Z: m.Right.Z*v.X + m.Up.Z*v.Y + m.At.Z*v.Z,
	}
}

// Mat4 expands the basis into a 4x4 matrix with zero translation.
func (m Mat3) Mat4() Mat4 {
	return Mat4{
		m.Right.X, m.Right.Y, m.Right.Z, 0,
		m.Up.X, m.Up.Y, m.Up.Z, 0,
		m.At.X, m.At.Y, m.At.Z, 0,
		0, 0, 0, 1,
	}
}
