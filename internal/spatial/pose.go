// Package spatial implements rigid transforms between the robot's
// coordinate frames and their composition over the fixed frame chain.
//
// Rotations are unit quaternions (gonum num/quat) so the chain is free of
// gimbal singularities; translations are gonum spatial/r3 vectors. Frame
// identity is carried at the type level via geom frame tags.
package spatial

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Radians is a scalar joint angle. It interpolates linearly, which is the
// right treatment for a densely sampled single joint.
type Radians float64

// Lerp linearly interpolates between two angles.
func (r Radians) Lerp(other Radians, alpha float64) Radians {
	return r + Radians(alpha)*(other-r)
}

// Pose is a rigid pose: a translation plus a unit-quaternion orientation.
// Odometry samples carry the pose of the turret reference point in world
// frame.
type Pose struct {
	Translation r3.Vec
	Rotation    quat.Number
}

// IdentityPose returns the zero-translation, identity-orientation pose.
func IdentityPose() Pose {
	return Pose{Rotation: quat.Number{Real: 1}}
}

// Lerp interpolates translation linearly and orientation spherically.
// Spherical interpolation is a deliberate choice: it stays correct for
// large angular deltas between odometry samples, where a per-component
// lerp would cut through the sphere and shrink the rotation.
func (p Pose) Lerp(other Pose, alpha float64) Pose {
	return Pose{
		Translation: r3.Add(p.Translation, r3.Scale(alpha, r3.Sub(other.Translation, p.Translation))),
		Rotation:    Slerp(p.Rotation, other.Rotation, alpha),
	}
}

// Slerp spherically interpolates between unit quaternions a and b.
// The shorter great-circle arc is always taken; for nearly parallel
// inputs it degrades to a normalized linear blend to avoid dividing by a
// vanishing sine.
func Slerp(a, b quat.Number, alpha float64) quat.Number {
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}
	if dot > 0.9995 {
		return normalize(quat.Add(quat.Scale(1-alpha, a), quat.Scale(alpha, b)))
	}
	theta := math.Acos(min(dot, 1))
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-alpha)*theta) / sinTheta
	wb := math.Sin(alpha*theta) / sinTheta
	return quat.Add(quat.Scale(wa, a), quat.Scale(wb, b))
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// RotationAbout returns the quaternion for a rotation of angle radians
// about the given axis.
func RotationAbout(angle Radians, axis r3.Vec) quat.Number {
	return quat.Number(r3.NewRotation(float64(angle), axis))
}
