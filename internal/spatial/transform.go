package spatial

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/turret.aim/internal/geom"
)

// Transform maps coordinates measured in frame From to frame To.
//
// It is stored as the pose of the To frame relative to From: translation
// is the To origin in From coordinates, rotation is the To orientation
// relative to From. Conceptually the translation applies before the
// rotation: rotating the target frame does not move its origin.
//
// Transforms are values; the zero value is not valid, use NewTransform or
// Identity.
type Transform[From, To geom.Frame] struct {
	translation r3.Vec
	rotation    quat.Number
}

// NewTransform builds a transform from the To-frame origin expressed in
// From coordinates and the To-frame orientation relative to From. The
// rotation is normalized so near-unit calibration inputs are tolerated.
func NewTransform[From, To geom.Frame](translation r3.Vec, rotation quat.Number) Transform[From, To] {
	return Transform[From, To]{translation: translation, rotation: normalize(rotation)}
}

// Identity returns the no-op transform between From and To.
func Identity[From, To geom.Frame]() Transform[From, To] {
	return Transform[From, To]{rotation: quat.Number{Real: 1}}
}

// FromPose builds a transform from a rigid pose of the To frame measured
// in the From frame.
func FromPose[From, To geom.Frame](p Pose) Transform[From, To] {
	return NewTransform[From, To](p.Translation, p.Rotation)
}

// Translation returns the To-frame origin in From coordinates.
func (t Transform[From, To]) Translation() r3.Vec { return t.translation }

// Rotation returns the To-frame orientation relative to From.
func (t Transform[From, To]) Rotation() quat.Number { return t.rotation }

// Apply re-expresses a From-frame position in the To frame.
func (t Transform[From, To]) Apply(p geom.Position[From]) geom.Position[To] {
	v := r3.Sub(r3.Vec{X: p.X, Y: p.Y, Z: p.Z}, t.translation)
	out := r3.Rotation(quat.Conj(t.rotation)).Rotate(v)
	return geom.Position[To]{X: out.X, Y: out.Y, Z: out.Z}
}

// ApplyVec rotates a From-frame direction vector into the To frame.
// Unlike Apply this leaves magnitude untouched and ignores translation:
// vectors are frame-independent quantities.
func (t Transform[From, To]) ApplyVec(v r3.Vec) r3.Vec {
	return r3.Rotation(quat.Conj(t.rotation)).Rotate(v)
}

// Invert returns the To→From transform.
func (t Transform[From, To]) Invert() Transform[To, From] {
	rotInv := quat.Conj(t.rotation)
	transInv := r3.Rotation(rotInv).Rotate(r3.Scale(-1, t.translation))
	return Transform[To, From]{translation: transInv, rotation: rotInv}
}

// Compose chains two transforms sharing the intermediate frame B into a
// single A→C transform.
func Compose[A, B, C geom.Frame](ab Transform[A, B], bc Transform[B, C]) Transform[A, C] {
	return Transform[A, C]{
		translation: r3.Add(ab.translation, r3.Rotation(ab.rotation).Rotate(bc.translation)),
		rotation:    normalize(quat.Mul(ab.rotation, bc.rotation)),
	}
}
