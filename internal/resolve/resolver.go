// Package resolve turns image-space detections into world-frame target
// positions by back-projecting through the camera model and the
// latency-compensated transform chain.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/banshee-data/turret.aim/internal/detect"
	"github.com/banshee-data/turret.aim/internal/geom"
	"github.com/banshee-data/turret.aim/internal/history"
	"github.com/banshee-data/turret.aim/internal/monitoring"
	"github.com/banshee-data/turret.aim/internal/spatial"
)

// Capture is one camera frame with the hardware timestamp of its
// exposure. The timestamp selects the transform chain state used to
// resolve its detections, which is what compensates for pipeline latency.
type Capture struct {
	Image     image.Image
	Timestamp history.Micros
}

// TargetPosition is a resolved detection: a world-frame position with the
// detector's confidence and team color carried through.
type TargetPosition struct {
	Confidence float64
	Color      detect.TeamColor
	Position   geom.Position[geom.WorldFrame]
}

// Config tunes the resolver's filtering stages.
type Config struct {
	// OwnColor is our team's color; detections of it are discarded.
	OwnColor detect.TeamColor

	// IoUThreshold is the deduplication overlap threshold in [0, 1].
	IoUThreshold float64

	// Prune bounds which raw detections are considered at all.
	Prune detect.PruneConfig
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.OwnColor.Valid() {
		return fmt.Errorf("unknown team color %q", c.OwnColor)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("IoU threshold %v outside [0, 1]", c.IoUThreshold)
	}
	return nil
}

// Resolver runs the detection-to-world pipeline: detect, prune,
// deduplicate, back-project, then re-express in world frame at each
// capture's timestamp.
type Resolver struct {
	detector   detect.Detector
	composer   *spatial.Composer
	intrinsics CameraIntrinsics
	depth      DepthSource
	cfg        Config
	metrics    *monitoring.Metrics

	// DropReporter, when set, receives every dropped detection with the
	// capture timestamp and the drop reason ("pose" or "depth"). Assign
	// before the first Resolve call.
	DropReporter func(ts history.Micros, reason string, count int)
}

// NewResolver builds a Resolver. metrics may be nil, in which case the
// process-wide default instance records the counters.
func NewResolver(detector detect.Detector, composer *spatial.Composer, intrinsics CameraIntrinsics,
	depth DepthSource, cfg Config, metrics *monitoring.Metrics) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("resolver config: %w", err)
	}
	if err := intrinsics.Validate(); err != nil {
		return nil, fmt.Errorf("camera intrinsics: %w", err)
	}
	if metrics == nil {
		metrics = monitoring.Default
	}
	return &Resolver{
		detector:   detector,
		composer:   composer,
		intrinsics: intrinsics,
		depth:      depth,
		cfg:        cfg,
		metrics:    metrics,
	}, nil
}

// Resolve detects targets in the given captures and returns their
// world-frame positions.
//
// A detection whose pose or depth cannot be recovered is dropped and
// counted, never fatal: the remaining detections of the batch are still
// returned. An error is returned only when the detector itself fails or
// the context is done.
func (r *Resolver) Resolve(ctx context.Context, captures []Capture) ([]TargetPosition, error) {
	if len(captures) == 0 {
		return nil, nil
	}

	images := make([]image.Image, len(captures))
	for i, c := range captures {
		images[i] = c.Image
	}
	batches, err := r.detector.Detect(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	if len(batches) != len(captures) {
		return nil, fmt.Errorf("detector returned %d batches for %d captures", len(batches), len(captures))
	}

	var out []TargetPosition
	for i, regions := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.metrics.RegionsDetected.Add(uint64(len(regions)))

		regions = detect.Prune(regions, r.cfg.OwnColor, r.cfg.Prune)
		regions = detect.Deduplicate(regions, r.cfg.IoUThreshold)
		if len(regions) == 0 {
			continue
		}

		ts := captures[i].Timestamp
		camToWorld, err := r.composer.CameraToWorld(ts)
		if err != nil {
			if errors.Is(err, spatial.ErrPoseUnavailable) {
				r.reportDrop(ts, "pose", len(regions))
				monitoring.Logf("[Resolve] dropped %d detections at t=%dus: %v", len(regions), ts, err)
				continue
			}
			return nil, err
		}

		for _, region := range regions {
			depth, err := r.depth.DepthAt(region.Rect)
			if err != nil {
				r.reportDrop(ts, "depth", 1)
				monitoring.Logf("[Resolve] dropped detection at t=%dus: %v", ts, err)
				continue
			}
			cam := r.intrinsics.BackProject(region.Rect.Center(), depth)
			out = append(out, TargetPosition{
				Confidence: region.Confidence,
				Color:      region.Color,
				Position:   camToWorld.Apply(cam),
			})
			r.metrics.TargetsResolved.Add(1)
		}
	}
	return out, nil
}

func (r *Resolver) reportDrop(ts history.Micros, reason string, count int) {
	r.metrics.DetectionsDropped.Add(uint64(count))
	if r.DropReporter != nil {
		r.DropReporter(ts, reason, count)
	}
}
