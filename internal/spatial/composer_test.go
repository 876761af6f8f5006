package spatial

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/turret.aim/internal/geom"
	"github.com/banshee-data/turret.aim/internal/history"
)

func newTestBuffers(t *testing.T) (yaw, pitch *history.Buffer[Radians], odom *history.Buffer[Pose]) {
	t.Helper()
	cfg := history.Config{MaxEntries: 64, MaxAge: time.Minute}
	var err error
	if yaw, err = history.New[Radians](cfg); err != nil {
		t.Fatalf("yaw buffer: %v", err)
	}
	if pitch, err = history.New[Radians](cfg); err != nil {
		t.Fatalf("pitch buffer: %v", err)
	}
	if odom, err = history.New[Pose](cfg); err != nil {
		t.Fatalf("odometry buffer: %v", err)
	}
	return yaw, pitch, odom
}

func fillIdentity(t *testing.T, yaw, pitch *history.Buffer[Radians], odom *history.Buffer[Pose], at history.Micros) {
	t.Helper()
	if err := yaw.Insert(at, 0); err != nil {
		t.Fatalf("insert yaw: %v", err)
	}
	if err := pitch.Insert(at, 0); err != nil {
		t.Fatalf("insert pitch: %v", err)
	}
	if err := odom.Insert(at, IdentityPose()); err != nil {
		t.Fatalf("insert odometry: %v", err)
	}
}

func TestComposerIdentityChain(t *testing.T) {
	yaw, pitch, odom := newTestBuffers(t)
	const ts history.Micros = 1000
	fillIdentity(t, yaw, pitch, odom, ts)
	c := NewComposer(IdentityCalibration(), yaw, pitch, odom)

	cw, err := c.CameraToWorld(ts)
	if err != nil {
		t.Fatalf("CameraToWorld: %v", err)
	}
	p := geom.Position[geom.CameraFrame]{X: 0.5, Y: -0.5, Z: 2}
	got := cw.Apply(p)
	want := geom.Position[geom.WorldFrame]{X: 0.5, Y: -0.5, Z: 2}
	if !positionsClose(got, want, tol) {
		t.Errorf("identity chain moved the point: %+v -> %+v", p, got)
	}
}

func TestComposerRoundTripEveryPair(t *testing.T) {
	yaw, pitch, odom := newTestBuffers(t)
	const ts history.Micros = 5000
	// Non-trivial chain state.
	if err := yaw.Insert(ts, math.Pi/6); err != nil {
		t.Fatalf("insert yaw: %v", err)
	}
	if err := pitch.Insert(ts, -math.Pi/8); err != nil {
		t.Fatalf("insert pitch: %v", err)
	}
	if err := odom.Insert(ts, Pose{
		Translation: r3.Vec{X: 1.5, Y: -2, Z: 0.25},
		Rotation:    RotationAbout(0.3, r3.Vec{Z: 1}),
	}); err != nil {
		t.Fatalf("insert odometry: %v", err)
	}
	cal := Calibration{
		TurretToBase:    NewTransform[geom.TurretRefFrame, geom.BaseRefFrame](r3.Vec{Z: -0.1}, RotationAbout(0, r3.Vec{Z: 1})),
		PitchToCamera:   NewTransform[geom.PitchRefFrame, geom.CameraFrame](r3.Vec{X: 0.05, Z: 0.08}, RotationAbout(0.02, r3.Vec{Y: 1})),
		PitchToLauncher: NewTransform[geom.PitchRefFrame, geom.LauncherFrame](r3.Vec{Z: 0.12}, RotationAbout(0, r3.Vec{Y: 1})),
	}
	c := NewComposer(cal, yaw, pitch, odom)

	t.Run("camera and world", func(t *testing.T) {
		cw, err := c.CameraToWorld(ts)
		if err != nil {
			t.Fatalf("CameraToWorld: %v", err)
		}
		wc, err := c.WorldToCamera(ts)
		if err != nil {
			t.Fatalf("WorldToCamera: %v", err)
		}
		p := geom.Position[geom.CameraFrame]{X: 0.2, Y: 0.1, Z: 3}
		back := wc.Apply(cw.Apply(p))
		if !positionsClose(back, p, 1e-9) {
			t.Errorf("camera->world->camera = %+v, want %+v", back, p)
		}
	})

	t.Run("launcher and world", func(t *testing.T) {
		lw, err := c.LauncherToWorld(ts)
		if err != nil {
			t.Fatalf("LauncherToWorld: %v", err)
		}
		wl, err := c.WorldToLauncher(ts)
		if err != nil {
			t.Fatalf("WorldToLauncher: %v", err)
		}
		p := geom.Position[geom.LauncherFrame]{Z: 5}
		back := wl.Apply(lw.Apply(p))
		if !positionsClose(back, p, 1e-9) {
			t.Errorf("launcher->world->launcher = %+v, want %+v", back, p)
		}
	})

	t.Run("adjacent edges", func(t *testing.T) {
		wt, err := c.worldToTurret(ts)
		if err != nil {
			t.Fatalf("worldToTurret: %v", err)
		}
		p := geom.Position[geom.WorldFrame]{X: 1, Y: 2, Z: 3}
		back := wt.Invert().Apply(wt.Apply(p))
		if !positionsClose(back, p, 1e-9) {
			t.Errorf("world->turret round trip = %+v, want %+v", back, p)
		}

		by, err := c.baseToYaw(ts)
		if err != nil {
			t.Fatalf("baseToYaw: %v", err)
		}
		q := geom.Position[geom.BaseRefFrame]{X: -1, Y: 0.5, Z: 0}
		backQ := by.Invert().Apply(by.Apply(q))
		if !positionsClose(backQ, q, 1e-9) {
			t.Errorf("base->yaw round trip = %+v, want %+v", backQ, q)
		}

		yp, err := c.yawToPitch(ts)
		if err != nil {
			t.Fatalf("yawToPitch: %v", err)
		}
		r := geom.Position[geom.YawRefFrame]{X: 0.1, Y: -0.2, Z: 0.3}
		backR := yp.Invert().Apply(yp.Apply(r))
		if !positionsClose(backR, r, 1e-9) {
			t.Errorf("yaw->pitch round trip = %+v, want %+v", backR, r)
		}
	})
}

func TestComposerYaw90RotatesCameraAxis(t *testing.T) {
	yaw, pitch, odom := newTestBuffers(t)
	const ts history.Micros = 100
	if err := yaw.Insert(ts, math.Pi/2); err != nil {
		t.Fatalf("insert yaw: %v", err)
	}
	if err := pitch.Insert(ts, 0); err != nil {
		t.Fatalf("insert pitch: %v", err)
	}
	if err := odom.Insert(ts, IdentityPose()); err != nil {
		t.Fatalf("insert odometry: %v", err)
	}
	c := NewComposer(IdentityCalibration(), yaw, pitch, odom)

	cw, err := c.CameraToWorld(ts)
	if err != nil {
		t.Fatalf("CameraToWorld: %v", err)
	}
	// Camera x-axis points along world y when the turret is yawed +90°.
	got := cw.Apply(geom.Position[geom.CameraFrame]{X: 1})
	want := geom.Position[geom.WorldFrame]{Y: 1}
	if !positionsClose(got, want, 1e-9) {
		t.Errorf("camera (1,0,0) in world = %+v, want %+v", got, want)
	}
}

func TestComposerInterpolatesBetweenSamples(t *testing.T) {
	yaw, pitch, odom := newTestBuffers(t)
	for _, ts := range []history.Micros{0, 1000} {
		if err := pitch.Insert(ts, 0); err != nil {
			t.Fatalf("insert pitch: %v", err)
		}
		if err := odom.Insert(ts, IdentityPose()); err != nil {
			t.Fatalf("insert odometry: %v", err)
		}
	}
	if err := yaw.Insert(0, 0); err != nil {
		t.Fatalf("insert yaw: %v", err)
	}
	if err := yaw.Insert(1000, math.Pi/2); err != nil {
		t.Fatalf("insert yaw: %v", err)
	}
	c := NewComposer(IdentityCalibration(), yaw, pitch, odom)

	cw, err := c.CameraToWorld(500)
	if err != nil {
		t.Fatalf("CameraToWorld: %v", err)
	}
	// Midway the yaw is 45°.
	got := cw.Apply(geom.Position[geom.CameraFrame]{X: 1})
	s := math.Sqrt2 / 2
	want := geom.Position[geom.WorldFrame]{X: s, Y: s}
	if !positionsClose(got, want, 1e-9) {
		t.Errorf("camera (1,0,0) at yaw 45° = %+v, want %+v", got, want)
	}
}

func TestComposerPoseUnavailable(t *testing.T) {
	yaw, pitch, odom := newTestBuffers(t)
	const ts history.Micros = 1000
	// Joint buffers have data, odometry does not cover ts.
	fillIdentity(t, yaw, pitch, odom, ts)
	c := NewComposer(IdentityCalibration(), yaw, pitch, odom)

	_, err := c.CameraToWorld(ts + 10_000_000)
	if !errors.Is(err, ErrPoseUnavailable) {
		t.Fatalf("err = %v, want ErrPoseUnavailable", err)
	}
	if !errors.Is(err, history.ErrOutOfRange) {
		t.Errorf("err = %v, should wrap history.ErrOutOfRange", err)
	}
}

func TestComposerDeterministic(t *testing.T) {
	yaw, pitch, odom := newTestBuffers(t)
	const ts history.Micros = 42
	fillIdentity(t, yaw, pitch, odom, ts)
	c := NewComposer(IdentityCalibration(), yaw, pitch, odom)

	first, err := c.WorldToCamera(ts)
	if err != nil {
		t.Fatalf("WorldToCamera: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := c.WorldToCamera(ts)
		if err != nil {
			t.Fatalf("WorldToCamera: %v", err)
		}
		if again != first {
			t.Fatalf("repeat query diverged: %+v vs %+v", again, first)
		}
	}
}
