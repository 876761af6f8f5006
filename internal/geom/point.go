package geom

// Point is a 2D point measured in frame F.
type Point[F Frame] struct {
	X float64
	Y float64
}

// Position is a 3D point measured in frame F.
type Position[F Frame] struct {
	X float64
	Y float64
	Z float64
}

// Origin returns the zero position in frame F.
func Origin[F Frame]() Position[F] {
	return Position[F]{}
}
