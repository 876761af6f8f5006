package resolve

import (
	"errors"
	"fmt"

	"github.com/banshee-data/turret.aim/internal/geom"
)

// CameraIntrinsics is the pinhole model of the turret camera: focal
// lengths and principal point in pixels.
type CameraIntrinsics struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

// Validate checks the model is usable for back-projection.
func (c CameraIntrinsics) Validate() error {
	if c.Fx <= 0 || c.Fy <= 0 {
		return fmt.Errorf("focal lengths must be positive, got fx=%v fy=%v", c.Fx, c.Fy)
	}
	return nil
}

// BackProject lifts an image-plane point to a camera-frame position at
// the given depth along the optical axis. Camera frame: +Z out of the
// lens, +X right, +Y down, matching the image axes.
func (c CameraIntrinsics) BackProject(p geom.Point[geom.ImageFrame], depth float64) geom.Position[geom.CameraFrame] {
	return geom.Position[geom.CameraFrame]{
		X: (p.X - c.Cx) / c.Fx * depth,
		Y: (p.Y - c.Cy) / c.Fy * depth,
		Z: depth,
	}
}

// ErrNoDepth is returned by a DepthSource that cannot estimate depth for
// a region. The resolver drops the affected detection and continues.
var ErrNoDepth = errors.New("resolve: no depth estimate for region")

// DepthSource estimates the distance from the camera to the target
// bounded by an image-space rectangle, in world units.
type DepthSource interface {
	DepthAt(rect geom.Rectangle[geom.ImageFrame]) (float64, error)
}

// FixedDepth is a DepthSource that reports the same depth for every
// region. Used when no rangefinder is fitted; the configured value is
// the expected engagement distance.
type FixedDepth float64

// DepthAt implements DepthSource.
func (d FixedDepth) DepthAt(geom.Rectangle[geom.ImageFrame]) (float64, error) {
	if d <= 0 {
		return 0, fmt.Errorf("%w: fixed depth %v not positive", ErrNoDepth, float64(d))
	}
	return float64(d), nil
}

// PlateDepth estimates depth from the apparent size of a target plate of
// known physical width: depth = fx * width / pixelWidth.
type PlateDepth struct {
	Intrinsics CameraIntrinsics

	// PlateWidth is the physical width of a target plate, in world units.
	PlateWidth float64
}

// DepthAt implements DepthSource.
func (d PlateDepth) DepthAt(rect geom.Rectangle[geom.ImageFrame]) (float64, error) {
	if d.PlateWidth <= 0 {
		return 0, fmt.Errorf("%w: plate width %v not positive", ErrNoDepth, d.PlateWidth)
	}
	w := rect.Width()
	if w <= 0 {
		return 0, fmt.Errorf("%w: degenerate region", ErrNoDepth)
	}
	return d.Intrinsics.Fx * d.PlateWidth / w, nil
}
