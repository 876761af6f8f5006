package spatial

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/turret.aim/internal/geom"
	"github.com/banshee-data/turret.aim/internal/history"
)

// ErrPoseUnavailable is returned by Composer queries when a dynamic edge
// of the frame chain cannot be reconstructed at the requested timestamp
// because the backing history buffer has no sample within tolerance.
// Callers drop the affected detection and continue; this is an expected
// condition under load or clock skew, never a reason to abort a batch.
var ErrPoseUnavailable = errors.New("spatial: pose unavailable at requested timestamp")

// Calibration holds the static transforms of the frame chain. They are
// measured once at calibration time and immutable for the process
// lifetime.
type Calibration struct {
	// TurretToBase is the mechanical offset from the odometry-tracked
	// turret reference point to the turret base reference point.
	TurretToBase Transform[geom.TurretRefFrame, geom.BaseRefFrame]

	// PitchToCamera locates the camera lens relative to the pitch
	// reference point.
	PitchToCamera Transform[geom.PitchRefFrame, geom.CameraFrame]

	// PitchToLauncher is the barrel boresight offset relative to the
	// pitch reference point.
	PitchToLauncher Transform[geom.PitchRefFrame, geom.LauncherFrame]
}

// IdentityCalibration returns a calibration with every static transform
// set to identity. Used in tests and as a placeholder before a real
// calibration file is loaded.
func IdentityCalibration() Calibration {
	return Calibration{
		TurretToBase:    Identity[geom.TurretRefFrame, geom.BaseRefFrame](),
		PitchToCamera:   Identity[geom.PitchRefFrame, geom.CameraFrame](),
		PitchToLauncher: Identity[geom.PitchRefFrame, geom.LauncherFrame](),
	}
}

// Composer resolves transforms between any two frames of the fixed chain
//
//	world ↔ turret-ref ↔ base-ref ↔ yaw-ref ↔ pitch-ref ↔ camera
//	                                          pitch-ref ↔ launcher
//
// at a given timestamp. Static edges come from the Calibration; dynamic
// edges are reconstructed from the yaw, pitch and odometry history
// buffers at the queried time. A Composer holds no mutable state of its
// own: identical (frame pair, timestamp, buffer contents) inputs always
// produce identical results.
type Composer struct {
	cal   Calibration
	yaw   *history.Buffer[Radians]
	pitch *history.Buffer[Radians]
	odom  *history.Buffer[Pose]
}

// NewComposer builds a Composer over the given calibration and telemetry
// buffers.
func NewComposer(cal Calibration, yaw, pitch *history.Buffer[Radians], odom *history.Buffer[Pose]) *Composer {
	return &Composer{cal: cal, yaw: yaw, pitch: pitch, odom: odom}
}

// Dynamic edges. Yaw rotates the turret about the chassis +Z axis; pitch
// rotates about the yawed +Y axis.

func (c *Composer) worldToTurret(ts history.Micros) (Transform[geom.WorldFrame, geom.TurretRefFrame], error) {
	p, err := c.odom.Query(ts)
	if err != nil {
		return Transform[geom.WorldFrame, geom.TurretRefFrame]{},
			fmt.Errorf("%w: odometry: %w", ErrPoseUnavailable, err)
	}
	return FromPose[geom.WorldFrame, geom.TurretRefFrame](p), nil
}

func (c *Composer) baseToYaw(ts history.Micros) (Transform[geom.BaseRefFrame, geom.YawRefFrame], error) {
	a, err := c.yaw.Query(ts)
	if err != nil {
		return Transform[geom.BaseRefFrame, geom.YawRefFrame]{},
			fmt.Errorf("%w: yaw joint: %w", ErrPoseUnavailable, err)
	}
	return NewTransform[geom.BaseRefFrame, geom.YawRefFrame](r3.Vec{}, RotationAbout(a, r3.Vec{Z: 1})), nil
}

func (c *Composer) yawToPitch(ts history.Micros) (Transform[geom.YawRefFrame, geom.PitchRefFrame], error) {
	a, err := c.pitch.Query(ts)
	if err != nil {
		return Transform[geom.YawRefFrame, geom.PitchRefFrame]{},
			fmt.Errorf("%w: pitch joint: %w", ErrPoseUnavailable, err)
	}
	return NewTransform[geom.YawRefFrame, geom.PitchRefFrame](r3.Vec{}, RotationAbout(a, r3.Vec{Y: 1})), nil
}

func (c *Composer) worldToPitch(ts history.Micros) (Transform[geom.WorldFrame, geom.PitchRefFrame], error) {
	wt, err := c.worldToTurret(ts)
	if err != nil {
		return Transform[geom.WorldFrame, geom.PitchRefFrame]{}, err
	}
	by, err := c.baseToYaw(ts)
	if err != nil {
		return Transform[geom.WorldFrame, geom.PitchRefFrame]{}, err
	}
	yp, err := c.yawToPitch(ts)
	if err != nil {
		return Transform[geom.WorldFrame, geom.PitchRefFrame]{}, err
	}
	wb := Compose(wt, c.cal.TurretToBase)
	return Compose(Compose(wb, by), yp), nil
}

// WorldToCamera resolves the full chain from world frame to camera frame
// at timestamp ts.
func (c *Composer) WorldToCamera(ts history.Micros) (Transform[geom.WorldFrame, geom.CameraFrame], error) {
	wp, err := c.worldToPitch(ts)
	if err != nil {
		return Transform[geom.WorldFrame, geom.CameraFrame]{}, err
	}
	return Compose(wp, c.cal.PitchToCamera), nil
}

// CameraToWorld resolves the chain from camera frame to world frame at
// timestamp ts. This is the resolver's path for re-expressing a detected
// camera-frame target in world frame.
func (c *Composer) CameraToWorld(ts history.Micros) (Transform[geom.CameraFrame, geom.WorldFrame], error) {
	wc, err := c.WorldToCamera(ts)
	if err != nil {
		return Transform[geom.CameraFrame, geom.WorldFrame]{}, err
	}
	return wc.Invert(), nil
}

// WorldToLauncher resolves the chain from world frame to the barrel axis
// at timestamp ts. Downstream aiming compares candidate targets in this
// frame.
func (c *Composer) WorldToLauncher(ts history.Micros) (Transform[geom.WorldFrame, geom.LauncherFrame], error) {
	wp, err := c.worldToPitch(ts)
	if err != nil {
		return Transform[geom.WorldFrame, geom.LauncherFrame]{}, err
	}
	return Compose(wp, c.cal.PitchToLauncher), nil
}

// LauncherToWorld is the inverse of WorldToLauncher.
func (c *Composer) LauncherToWorld(ts history.Micros) (Transform[geom.LauncherFrame, geom.WorldFrame], error) {
	wl, err := c.WorldToLauncher(ts)
	if err != nil {
		return Transform[geom.LauncherFrame, geom.WorldFrame]{}, err
	}
	return wl.Invert(), nil
}
