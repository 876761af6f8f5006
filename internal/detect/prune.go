package detect

import "github.com/banshee-data/turret.aim/internal/monitoring"

// PruneConfig bounds which raw detections survive pre-filtering.
type PruneConfig struct {
	// MinWidth and MinHeight reject implausibly small boxes, in pixels.
	MinWidth  float64
	MinHeight float64
}

// Prune filters raw detections ahead of deduplication: regions carrying
// our own team's color are discarded, as are regions smaller than the
// configured minimum extents. Size rejections are logged in aggregate.
func Prune(regions []Region, ownColor TeamColor, cfg PruneConfig) []Region {
	kept := make([]Region, 0, len(regions))
	sizeRejected := 0
	for _, r := range regions {
		if r.Color == ownColor {
			continue
		}
		if r.Rect.Width() < cfg.MinWidth || r.Rect.Height() < cfg.MinHeight {
			sizeRejected++
			continue
		}
		kept = append(kept, r)
	}
	if sizeRejected > 0 {
		monitoring.Logf("[Detect] rejected %d detections below minimum size", sizeRejected)
	}
	return kept
}
