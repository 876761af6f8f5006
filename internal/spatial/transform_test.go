package spatial

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/turret.aim/internal/geom"
)

const tol = 1e-9

func approxEq(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func positionsClose[F geom.Frame](a, b geom.Position[F], eps float64) bool {
	return approxEq(a.X, b.X, eps) && approxEq(a.Y, b.Y, eps) && approxEq(a.Z, b.Z, eps)
}

func TestIdentityTransformIsNoOp(t *testing.T) {
	id := Identity[geom.CameraFrame, geom.WorldFrame]()
	p := geom.Position[geom.CameraFrame]{X: 1, Y: -2, Z: 3}
	got := id.Apply(p)
	want := geom.Position[geom.WorldFrame]{X: 1, Y: -2, Z: 3}
	if !positionsClose(got, want, tol) {
		t.Errorf("identity.Apply(%+v) = %+v", p, got)
	}
}

func TestApplyTranslationAndRotation(t *testing.T) {
	// The target frame sits at (1, 0, 0) and is yawed +90° about Z
	// relative to the source frame.
	tr := NewTransform[geom.WorldFrame, geom.CameraFrame](
		r3.Vec{X: 1},
		RotationAbout(math.Pi/2, r3.Vec{Z: 1}),
	)
	got := tr.Apply(geom.Position[geom.WorldFrame]{X: 2})
	want := geom.Position[geom.CameraFrame]{Y: -1}
	if !positionsClose(got, want, tol) {
		t.Errorf("Apply = %+v, want %+v", got, want)
	}
}

func TestApplyVecIgnoresTranslation(t *testing.T) {
	tr := NewTransform[geom.WorldFrame, geom.CameraFrame](
		r3.Vec{X: 100, Y: 100, Z: 100},
		RotationAbout(math.Pi/2, r3.Vec{Z: 1}),
	)
	got := tr.ApplyVec(r3.Vec{X: 1})
	if !approxEq(got.X, 0, tol) || !approxEq(got.Y, -1, tol) || !approxEq(got.Z, 0, tol) {
		t.Errorf("ApplyVec = %+v, want (0, -1, 0)", got)
	}
	if n := r3.Norm(got); !approxEq(n, 1, tol) {
		t.Errorf("ApplyVec changed magnitude: %g", n)
	}
}

func TestInvertRoundTrip(t *testing.T) {
	tr := NewTransform[geom.WorldFrame, geom.CameraFrame](
		r3.Vec{X: 0.3, Y: -1.2, Z: 2.5},
		RotationAbout(0.7, r3.Vec{X: 1, Y: 2, Z: -1}),
	)
	p := geom.Position[geom.WorldFrame]{X: 4, Y: 5, Z: -6}
	back := tr.Invert().Apply(tr.Apply(p))
	if !positionsClose(back, p, 1e-9) {
		t.Errorf("round trip = %+v, want %+v", back, p)
	}
}

func TestComposeMatchesSequentialApply(t *testing.T) {
	ab := NewTransform[geom.WorldFrame, geom.TurretRefFrame](
		r3.Vec{X: 1, Y: 2, Z: 3},
		RotationAbout(0.4, r3.Vec{Z: 1}),
	)
	bc := NewTransform[geom.TurretRefFrame, geom.CameraFrame](
		r3.Vec{X: -0.5, Z: 0.2},
		RotationAbout(-0.9, r3.Vec{Y: 1}),
	)
	ac := Compose(ab, bc)

	p := geom.Position[geom.WorldFrame]{X: -2, Y: 0.5, Z: 7}
	sequential := bc.Apply(ab.Apply(p))
	composed := ac.Apply(p)
	if !positionsClose(sequential, composed, 1e-9) {
		t.Errorf("composed = %+v, sequential = %+v", composed, sequential)
	}
}

func TestSlerpEndpointsAndMidpoint(t *testing.T) {
	a := quat.Number{Real: 1}
	b := RotationAbout(math.Pi/2, r3.Vec{Z: 1})

	if got := Slerp(a, b, 0); !approxEq(got.Real, a.Real, tol) || !approxEq(got.Kmag, a.Kmag, tol) {
		t.Errorf("Slerp(a, b, 0) = %+v, want %+v", got, a)
	}
	if got := Slerp(a, b, 1); !approxEq(got.Real, b.Real, tol) || !approxEq(got.Kmag, b.Kmag, tol) {
		t.Errorf("Slerp(a, b, 1) = %+v, want %+v", got, b)
	}

	mid := Slerp(a, b, 0.5)
	want := RotationAbout(math.Pi/4, r3.Vec{Z: 1})
	if !approxEq(mid.Real, want.Real, 1e-9) || !approxEq(mid.Kmag, want.Kmag, 1e-9) {
		t.Errorf("Slerp midpoint = %+v, want 45° about Z = %+v", mid, want)
	}
}

func TestSlerpTakesShortestArc(t *testing.T) {
	a := RotationAbout(0.1, r3.Vec{Z: 1})
	b := quat.Scale(-1, RotationAbout(0.3, r3.Vec{Z: 1})) // same rotation, opposite sign
	mid := Slerp(a, b, 0.5)
	want := RotationAbout(0.2, r3.Vec{Z: 1})
	// Compare as rotations: q and -q are the same rotation.
	if mid.Real < 0 {
		mid = quat.Scale(-1, mid)
	}
	if !approxEq(mid.Real, want.Real, 1e-9) || !approxEq(mid.Kmag, want.Kmag, 1e-9) {
		t.Errorf("Slerp across sign flip = %+v, want %+v", mid, want)
	}
}

func TestPoseLerp(t *testing.T) {
	a := IdentityPose()
	b := Pose{
		Translation: r3.Vec{X: 2, Y: 4, Z: -2},
		Rotation:    RotationAbout(math.Pi/2, r3.Vec{Z: 1}),
	}
	mid := a.Lerp(b, 0.5)
	if !approxEq(mid.Translation.X, 1, tol) || !approxEq(mid.Translation.Y, 2, tol) || !approxEq(mid.Translation.Z, -1, tol) {
		t.Errorf("translation midpoint = %+v", mid.Translation)
	}
	wantRot := RotationAbout(math.Pi/4, r3.Vec{Z: 1})
	if !approxEq(mid.Rotation.Real, wantRot.Real, 1e-9) || !approxEq(mid.Rotation.Kmag, wantRot.Kmag, 1e-9) {
		t.Errorf("rotation midpoint = %+v, want %+v", mid.Rotation, wantRot)
	}
}

func TestRadiansLerp(t *testing.T) {
	if got := Radians(0).Lerp(1, 0.5); got != 0.5 {
		t.Errorf("Lerp = %v, want 0.5", got)
	}
	if got := Radians(2).Lerp(2, 0.9); got != 2 {
		t.Errorf("Lerp of equal angles = %v, want 2", got)
	}
}
