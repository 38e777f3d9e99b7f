package math

import (
	"math"
	"testing"
)

func quatAlmostEqual(a, b Quat) bool {
	// q and -q represent the same rotation
	if a.Dot(b) < 0 {
		b = Quat{X: -b.X, Y: -b.Y, Z: -b.Z, W: -b.W}
	}
	return almostEqual(a.X, b.X) && almostEqual(a.Y, b.Y) &&
		almostEqual(a.Z, b.Z) && almostEqual(a.W, b.W)
}

func TestQuatFromBasis_Identity(t *testing.T) {
	q := QuatFromBasis(Mat3Identity())
	if !quatAlmostEqual(q, QuatIdentity()) {
		t.Errorf("QuatFromBasis(identity) = %v", q)
	}
}

func TestQuatFromBasis_AxisRotations(t *testing.T) {
	tests := []struct {
		name  string
		basis Mat3
		want  Quat
	}{
		{
			// 90 degrees about Z: x axis maps to y
			name: "z90",
			basis: Mat3{
				Right: Vec3{Y: 1},
				Up:    Vec3{X: -1},
				At:    Vec3{Z: 1},
			},
			want: QuatFromAxisAngle(Vec3{Z: 1}, math.Pi/2),
		},
		{
			// 90 degrees about X: y axis maps to z
			name: "x90",
			basis: Mat3{
				Right: Vec3{X: 1},
				Up:    Vec3{Z: 1},
				At:    Vec3{Y: -1},
			},
			want: QuatFromAxisAngle(Vec3{X: 1}, math.Pi/2),
		},
		{
			// 180 degrees about Y exercises the non-trace branch
			name: "y180",
			basis: Mat3{
				Right: Vec3{X: -1},
				Up:    Vec3{Y: 1},
				At:    Vec3{Z: -1},
			},
			want: QuatFromAxisAngle(Vec3{Y: 1}, math.Pi),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuatFromBasis(tt.basis); !quatAlmostEqual(got, tt.want) {
				t.Errorf("QuatFromBasis() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuatFromBasis_RoundTrip(t *testing.T) {
	// arbitrary rotation: quat -> matrix -> quat
	orig := QuatFromAxisAngle(Vec3{X: 0.6, Y: 0.8}, 1.1)
	m := orig.ToMat4()
	basis := Mat3{Right: m.Col(0), Up: m.Col(1), At: m.Col(2)}
	if got := QuatFromBasis(basis); !quatAlmostEqual(got, orig) {
		t.Errorf("round trip = %v, want %v", got, orig)
	}
}

func TestQuat_Mul(t *testing.T) {
	// two 90 degree rotations about the same axis compose to 180
	half := QuatFromAxisAngle(Vec3{Z: 1}, math.Pi/2)
	full := QuatFromAxisAngle(Vec3{Z: 1}, math.Pi)
	if got := half.Mul(half); !quatAlmostEqual(got, full) {
		t.Errorf("Mul() = %v, want %v", got, full)
	}
}

func TestQuat_Normalize(t *testing.T) {
	q := Quat{X: 0, Y: 0, Z: 0, W: 2}.Normalize()
	if !quatAlmostEqual(q, QuatIdentity()) {
		t.Errorf("Normalize() = %v", q)
	}

	if got := (Quat{}).Normalize(); !quatAlmostEqual(got, QuatIdentity()) {
		t.Errorf("Normalize(zero) = %v, want identity", got)
	}
}
