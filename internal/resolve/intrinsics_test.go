package resolve

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/turret.aim/internal/geom"
)

func TestBackProject(t *testing.T) {
	c := CameraIntrinsics{Fx: 2, Fy: 2, Cx: 10, Cy: 10}
	got := c.BackProject(geom.Point[geom.ImageFrame]{X: 14, Y: 6}, 4)
	want := geom.Position[geom.CameraFrame]{X: 8, Y: -8, Z: 4}
	if math.Abs(got.X-want.X) > 1e-12 || math.Abs(got.Y-want.Y) > 1e-12 || math.Abs(got.Z-want.Z) > 1e-12 {
		t.Errorf("BackProject = %+v, want %+v", got, want)
	}
}

func TestBackProjectPrincipalPointIsOnAxis(t *testing.T) {
	c := testIntrinsics()
	got := c.BackProject(geom.Point[geom.ImageFrame]{X: c.Cx, Y: c.Cy}, 3.5)
	if got.X != 0 || got.Y != 0 || got.Z != 3.5 {
		t.Errorf("BackProject(principal point) = %+v, want (0, 0, 3.5)", got)
	}
}

func TestFixedDepth(t *testing.T) {
	rect, err := geom.NewRectangle[geom.ImageFrame](0, 0, 10, 10)
	if err != nil {
		t.Fatal(err)
	}

	d, err := FixedDepth(2.5).DepthAt(rect)
	if err != nil {
		t.Fatalf("DepthAt: %v", err)
	}
	if d != 2.5 {
		t.Errorf("DepthAt = %v, want 2.5", d)
	}

	if _, err := FixedDepth(0).DepthAt(rect); !errors.Is(err, ErrNoDepth) {
		t.Errorf("zero fixed depth error = %v, want ErrNoDepth", err)
	}
}

func TestPlateDepth(t *testing.T) {
	rect, err := geom.NewRectangle[geom.ImageFrame](100, 100, 140, 140)
	if err != nil {
		t.Fatal(err)
	}

	// fx=100 px, 0.2-unit plate spanning 40 px: depth 0.5.
	d := PlateDepth{Intrinsics: CameraIntrinsics{Fx: 100, Fy: 100}, PlateWidth: 0.2}
	got, err := d.DepthAt(rect)
	if err != nil {
		t.Fatalf("DepthAt: %v", err)
	}
	if math.Abs(got-0.5) > 1e-12 {
		t.Errorf("DepthAt = %v, want 0.5", got)
	}

	bad := PlateDepth{Intrinsics: CameraIntrinsics{Fx: 100, Fy: 100}}
	if _, err := bad.DepthAt(rect); !errors.Is(err, ErrNoDepth) {
		t.Errorf("zero plate width error = %v, want ErrNoDepth", err)
	}
}

func TestIntrinsicsValidate(t *testing.T) {
	if err := testIntrinsics().Validate(); err != nil {
		t.Errorf("valid intrinsics rejected: %v", err)
	}
	if err := (CameraIntrinsics{Fx: 100}).Validate(); err == nil {
		t.Error("intrinsics with fy=0 accepted")
	}
}
