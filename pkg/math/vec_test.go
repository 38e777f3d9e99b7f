package math

import (
	"math"
	"testing"
)

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func vecAlmostEqual(a, b Vec3) bool {
	return almostEqual(a.X, b.X) && almostEqual(a.Y, b.Y) && almostEqual(a.Z, b.Z)
}

func TestVec3_Cross(t *testing.T) {
	tests := []struct {
		name string
		a, b Vec3
		want Vec3
	}{
		{"x cross y", Vec3{X: 1}, Vec3{Y: 1}, Vec3{Z: 1}},
		{"y cross z", Vec3{Y: 1}, Vec3{Z: 1}, Vec3{X: 1}},
		{"parallel", Vec3{X: 2}, Vec3{X: 5}, Vec3{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Cross(tt.b); !vecAlmostEqual(got, tt.want) {
				t.Errorf("Cross() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVec3_Normalize(t *testing.T) {
	v := Vec3{X: 3, Y: 4}.Normalize()
	if !vecAlmostEqual(v, Vec3{X: 0.6, Y: 0.8}) {
		t.Errorf("Normalize() = %v", v)
	}

	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Errorf("Normalize(zero) = %v, want zero", got)
	}
}

func TestVec3_LengthSq(t *testing.T) {
	if got := (Vec3{X: 1, Y: 2, Z: 2}).LengthSq(); !almostEqual(got, 9) {
		t.Errorf("LengthSq() = %f, want 9", got)
	}
}
