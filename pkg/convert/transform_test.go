package convert

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/dff2glb/pkg/math"
)

func TestNormalizeRigid_DiscardsScale(t *testing.T) {
	rot := math.QuatFromAxisAngle(math.Vec3{Z: 1}, gomath.Pi/4)
	m := math.Compose(rot, math.Vec3{X: 2, Y: -1, Z: 3})
	for i := 0; i < 3; i++ {
		m[i] *= 5 // scale the first basis column
	}

	out := NormalizeRigid(m)
	if got := out.Col(0).Length(); gomath.Abs(float64(got-1)) > 1e-5 {
		t.Errorf("basis column length = %v, want 1", got)
	}
	if got := out.Translation(); got != (math.Vec3{X: 2, Y: -1, Z: 3}) {
		t.Errorf("translation = %v", got)
	}
}

func TestNormalizeRigid_Identity(t *testing.T) {
	out := NormalizeRigid(math.Identity())
	for i, f := range out {
		want := float32(0)
		if i%5 == 0 {
			want = 1
		}
		if gomath.Abs(float64(f-want)) > 1e-6 {
			t.Errorf("component %d = %v, want %v", i, f, want)
		}
	}
}

func TestNormalizeRigid_NonFiniteSentinel(t *testing.T) {
	var m math.Mat4
	m[0] = float32(gomath.NaN())
	m[5] = float32(gomath.Inf(1))

	out := NormalizeRigid(m)
	if !out.IsFinite() {
		t.Fatal("output still non-finite")
	}
	// zero basis columns quietly decompose, but any NaN that survives
	// must land on -1, never 0
	for i, f := range out {
		if gomath.IsNaN(float64(f)) || gomath.IsInf(float64(f), 0) {
			t.Errorf("component %d = %v", i, f)
		}
	}
}

func TestSanitizeVec3(t *testing.T) {
	v := sanitizeVec3(math.Vec3{
		X: float32(gomath.NaN()),
		Y: float32(gomath.Inf(-1)),
		Z: 2,
	})
	if v.X != -1 || v.Y != -1 || v.Z != 2 {
		t.Errorf("sanitized = %v", v)
	}
}

func TestSanitizeQuat(t *testing.T) {
	q := sanitizeQuat(math.Quat{X: float32(gomath.NaN()), W: 1})
	if q.X != -1 || q.W != 1 {
		t.Errorf("sanitized = %+v", q)
	}
}

func TestFrameRotation_NonRootUncorrected(t *testing.T) {
	q := frameRotation(math.Mat3Identity(), false, true)
	if q != math.QuatIdentity() {
		t.Errorf("non-root rotation = %+v, want identity", q)
	}
}

func TestFrameRotation_ObjectRootCorrection(t *testing.T) {
	// -90 degrees about X: (x, y, z, w) = (-sqrt(2)/2, 0, 0, sqrt(2)/2)
	q := frameRotation(math.Mat3Identity(), true, false)
	half := float32(gomath.Sqrt2 / 2)
	if gomath.Abs(float64(q.X+half)) > 1e-6 || gomath.Abs(float64(q.W-half)) > 1e-6 ||
		q.Y != 0 || q.Z != 0 {
		t.Errorf("object root rotation = %+v", q)
	}
}

func TestFrameRotation_SkinRootCorrection(t *testing.T) {
	got := frameRotation(math.Mat3Identity(), true, true)
	want := math.QuatFromAxisAngle(math.Vec3{Z: 1}, -gomath.Pi/2).
		Mul(math.QuatFromAxisAngle(math.Vec3{X: 1}, -gomath.Pi/2))
	if gomath.Abs(float64(got.Dot(want))) < 1-1e-6 {
		t.Errorf("skin root rotation = %+v, want %+v", got, want)
	}
}

func TestRootCorrections_AreUnit(t *testing.T) {
	for name, q := range map[string]math.Quat{
		"object": objectRootRotation,
		"skin":   skinRootRotation,
	} {
		if gomath.Abs(float64(q.Dot(q)-1)) > 1e-6 {
			t.Errorf("%s correction not unit: %+v", name, q)
		}
	}
}
