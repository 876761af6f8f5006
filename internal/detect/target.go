// Package detect defines raw target detections in image space, the
// detector abstraction that produces them, and the filters that run
// before detections are promoted to 3D candidates.
package detect

import (
	"context"
	"image"

	"github.com/banshee-data/turret.aim/internal/geom"
)

// TeamColor identifies the team a detected plate belongs to.
type TeamColor string

const (
	TeamRed  TeamColor = "red"
	TeamBlue TeamColor = "blue"
)

// Flip returns the opposing team's color.
func (c TeamColor) Flip() TeamColor {
	if c == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

// Valid reports whether c is a known team color.
func (c TeamColor) Valid() bool {
	return c == TeamRed || c == TeamBlue
}

// Region is a single raw detection: a bounding rectangle in image space
// with the detector's confidence and the target's team color.
type Region struct {
	// Confidence is the detector's score in [0, 1].
	Confidence float64

	// Color is the detected team color of the target.
	Color TeamColor

	// Rect bounds the target in image pixel space.
	Rect geom.Rectangle[geom.ImageFrame]
}

// Detector produces raw target regions from a batch of images. An image
// with no targets yields an empty slice at its index, not an error.
//
// The fiducial marker detector in this package is the reference
// implementation; learned-model detectors satisfy the same interface and
// are injected at the resolver's construction boundary.
type Detector interface {
	Detect(ctx context.Context, images []image.Image) ([][]Region, error)
}
