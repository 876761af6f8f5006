package detect

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/turret.aim/internal/geom"
)

// FiducialConfig tunes the square-marker reference detector.
type FiducialConfig struct {
	// ThresholdOffset is subtracted from the mean intensity when
	// binarizing; larger values require darker marker ink.
	ThresholdOffset float64

	// MinSide rejects candidate markers smaller than this many pixels on
	// a side.
	MinSide float64
}

// DefaultFiducialConfig returns the production-default marker detector
// tuning.
func DefaultFiducialConfig() FiducialConfig {
	return FiducialConfig{
		ThresholdOffset: 10,
		MinSide:         8,
	}
}

// markerGrid is the square code layout: a one-cell dark border framing a
// 6x6 payload, 8 cells on a side.
const (
	markerGrid  = 8
	markerInner = markerGrid - 2
)

// Marker is one decoded square fiducial: its four image-plane corners in
// top-left, top-right, bottom-right, bottom-left order, and the payload
// identifier read from its code grid.
type Marker struct {
	ID      int64
	Corners [4]geom.Point[geom.ImageFrame]
}

// FiducialDetector locates square fiducial markers in camera images.
//
// Markers are easy to identify with classical processing at negligible
// noise, so this detector serves as an ideal oracle for integration
// testing of the spatial pipeline rather than as a production detector.
// Every emitted region carries maximal confidence and the opponent's
// team color.
type FiducialDetector struct {
	opponent TeamColor
	cfg      FiducialConfig
}

// NewFiducialDetector builds a detector that labels markers as targets of
// the team opposing ownColor.
func NewFiducialDetector(ownColor TeamColor, cfg FiducialConfig) *FiducialDetector {
	return &FiducialDetector{opponent: ownColor.Flip(), cfg: cfg}
}

// Detect implements Detector. Each marker yields one region: the square
// centered on the mean of its four corners with side length equal to the
// mean of its measured width and height. Images without markers yield an
// empty slice, not an error.
func (d *FiducialDetector) Detect(ctx context.Context, images []image.Image) ([][]Region, error) {
	out := make([][]Region, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		markers := d.FindMarkers(img)
		regions := make([]Region, 0, len(markers))
		for _, m := range markers {
			rect, ok := m.boundingSquare()
			if !ok {
				continue
			}
			regions = append(regions, Region{
				Confidence: 1.0,
				Color:      d.opponent,
				Rect:       rect,
			})
		}
		out[i] = regions
	}
	return out, nil
}

// FindMarkers locates and decodes every square marker in a single image.
func (d *FiducialDetector) FindMarkers(img image.Image) []Marker {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	// Single-channel intensity; grayscale conversion writes equal RGB so
	// the red channel is the luma.
	gray := imaging.Grayscale(img)
	luma := make([]uint8, w*h)
	var sum uint64
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			v := row[x*4]
			luma[y*w+x] = v
			sum += uint64(v)
		}
	}

	threshold := float64(sum)/float64(w*h) - d.cfg.ThresholdOffset
	dark := make([]bool, w*h)
	for i, v := range luma {
		dark[i] = float64(v) < threshold
	}

	var markers []Marker
	visited := make([]bool, w*h)
	stack := make([]int, 0, 1024)
	for start := range dark {
		if !dark[start] || visited[start] {
			continue
		}
		comp := floodComponent(dark, visited, stack, start, w, h)
		if m, ok := d.decodeComponent(comp, dark, w); ok {
			markers = append(markers, m)
		}
	}
	return markers
}

// component aggregates a connected dark region: its extent and the four
// pixels at the corner extremes of x+y and x-y.
type component struct {
	count                  int
	minX, minY, maxX, maxY int
	tl, tr, br, bl         [2]int
}

func floodComponent(dark, visited []bool, stack []int, start, w, h int) component {
	c := component{
		minX: w, minY: h, maxX: -1, maxY: -1,
		tl: [2]int{w, h}, tr: [2]int{-1, 0}, br: [2]int{-1, -1}, bl: [2]int{w, 0},
	}
	stack = stack[:0]
	stack = append(stack, start)
	visited[start] = true
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := idx%w, idx/w

		c.count++
		c.minX, c.maxX = min(c.minX, x), max(c.maxX, x)
		c.minY, c.maxY = min(c.minY, y), max(c.maxY, y)
		if x+y < c.tl[0]+c.tl[1] {
			c.tl = [2]int{x, y}
		}
		if x-y > c.tr[0]-c.tr[1] {
			c.tr = [2]int{x, y}
		}
		if x+y > c.br[0]+c.br[1] {
			c.br = [2]int{x, y}
		}
		if x-y < c.bl[0]-c.bl[1] {
			c.bl = [2]int{x, y}
		}

		if x > 0 && dark[idx-1] && !visited[idx-1] {
			visited[idx-1] = true
			stack = append(stack, idx-1)
		}
		if x < w-1 && dark[idx+1] && !visited[idx+1] {
			visited[idx+1] = true
			stack = append(stack, idx+1)
		}
		if y > 0 && dark[idx-w] && !visited[idx-w] {
			visited[idx-w] = true
			stack = append(stack, idx-w)
		}
		if y < h-1 && dark[idx+w] && !visited[idx+w] {
			visited[idx+w] = true
			stack = append(stack, idx+w)
		}
	}
	return c
}

// decodeComponent validates a dark component as a square marker and reads
// its payload grid. The border ring must be fully dark; the inner cells
// form the identifier, most significant bit first in row-major order.
func (d *FiducialDetector) decodeComponent(c component, dark []bool, w int) (Marker, bool) {
	bw := float64(c.maxX-c.minX) + 1
	bh := float64(c.maxY-c.minY) + 1
	if bw < d.cfg.MinSide || bh < d.cfg.MinSide {
		return Marker{}, false
	}
	aspect := bw / bh
	if aspect < 0.5 || aspect > 2.0 {
		return Marker{}, false
	}
	// A marker is a dark ring plus dark code cells, not a filled blob and
	// not a thin scribble.
	fill := float64(c.count) / (bw * bh)
	if fill < 0.2 || fill > 0.95 {
		return Marker{}, false
	}

	cellW := bw / markerGrid
	cellH := bh / markerGrid
	sample := func(i, j int) bool {
		x := c.minX + int((float64(j)+0.5)*cellW)
		y := c.minY + int((float64(i)+0.5)*cellH)
		return dark[y*w+x]
	}

	var id int64
	for i := 0; i < markerGrid; i++ {
		for j := 0; j < markerGrid; j++ {
			onBorder := i == 0 || j == 0 || i == markerGrid-1 || j == markerGrid-1
			if onBorder {
				if !sample(i, j) {
					return Marker{}, false
				}
				continue
			}
			id <<= 1
			if sample(i, j) {
				id |= 1
			}
		}
	}

	pt := func(p [2]int) geom.Point[geom.ImageFrame] {
		return geom.Point[geom.ImageFrame]{X: float64(p[0]), Y: float64(p[1])}
	}
	return Marker{
		ID:      id,
		Corners: [4]geom.Point[geom.ImageFrame]{pt(c.tl), pt(c.tr), pt(c.br), pt(c.bl)},
	}, true
}

// boundingSquare is the axis-aligned square centered on the mean of the
// marker's corners, with side length the mean of its measured width and
// height.
func (m Marker) boundingSquare() (geom.Rectangle[geom.ImageFrame], bool) {
	var cx, cy float64
	for _, p := range m.Corners {
		cx += p.X
		cy += p.Y
	}
	cx /= 4
	cy /= 4

	dist := func(a, b geom.Point[geom.ImageFrame]) float64 {
		return math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	tl, tr, br, bl := m.Corners[0], m.Corners[1], m.Corners[2], m.Corners[3]
	width := (dist(tl, tr) + dist(bl, br)) / 2
	height := (dist(tl, bl) + dist(tr, br)) / 2
	side := (width + height) / 2
	if side <= 0 {
		return geom.Rectangle[geom.ImageFrame]{}, false
	}

	rect, err := geom.RectangleFromPoint(
		geom.Point[geom.ImageFrame]{X: cx - side/2, Y: cy - side/2}, side, side)
	if err != nil {
		return geom.Rectangle[geom.ImageFrame]{}, false
	}
	return rect, true
}
