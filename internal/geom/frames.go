// Package geom provides frame-tagged geometric primitives.
//
// Every point, rectangle and position carries a coordinate frame as a type
// parameter. Values measured in different frames are distinct Go types, so
// mixing them without an explicit transform does not compile. Frame marker
// types carry no data; they exist only for the type checker.
package geom

// Frame is the constraint satisfied by coordinate frame marker types.
// Implementations are zero-size structs declared in this package; the
// unexported method keeps the catalogue closed.
type Frame interface {
	frameName() string
}

// Name returns the human-readable name of frame F, for log messages.
func Name[F Frame]() string {
	var f F
	return f.frameName()
}

// ImageFrame is the 2D pixel space of the color camera sensor. The origin
// is the top-left pixel; x grows right, y grows down.
type ImageFrame struct{}

func (ImageFrame) frameName() string { return "image" }

// CameraFrame is rooted at the color camera lens. z points out of the
// lens, x right, y down.
type CameraFrame struct{}

func (CameraFrame) frameName() string { return "camera" }

// WorldFrame is the world/odometry frame used by the motion controller.
// Odometry samples report the pose of the turret reference point in this
// frame.
type WorldFrame struct{}

func (WorldFrame) frameName() string { return "world" }

// LauncherFrame is rooted at and aligned with the turret's barrel axis.
type LauncherFrame struct{}

func (LauncherFrame) frameName() string { return "launcher" }

// TurretRefFrame is an arbitrary rigid point on the turret assembly. This
// is the point whose world-frame pose the odometry stream tracks.
type TurretRefFrame struct{}

func (TurretRefFrame) frameName() string { return "turret-ref" }

// YawRefFrame is a point fixed on the turret's yaw axis. It rotates with
// yaw but not with pitch.
type YawRefFrame struct{}

func (YawRefFrame) frameName() string { return "yaw-ref" }

// PitchRefFrame is a point fixed on the turret's pitch axis, downstream
// of yaw: it both yaws and pitches with the turret.
type PitchRefFrame struct{}

func (PitchRefFrame) frameName() string { return "pitch-ref" }

// BaseRefFrame is a point fixed at the base of the turret, rigid with the
// chassis.
type BaseRefFrame struct{}

func (BaseRefFrame) frameName() string { return "base-ref" }
