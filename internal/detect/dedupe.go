package detect

import (
	"sort"

	"github.com/banshee-data/turret.aim/internal/geom"
)

// Deduplicate merges detections of the same physical target via greedy
// non-max suppression. Regions are taken in confidence-descending order
// (ties keep input order); a region is accepted only if its IoU against
// every previously accepted region stays at or below iouThreshold.
//
// A threshold of 0 admits only mutually non-overlapping boxes; a
// threshold of 1 admits everything. The returned slice is in acceptance
// (confidence-descending) order and never aliases the input.
func Deduplicate(regions []Region, iouThreshold float64) []Region {
	if len(regions) == 0 {
		return nil
	}

	ordered := make([]Region, len(regions))
	copy(ordered, regions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	accepted := make([]Region, 0, len(ordered))
	for _, candidate := range ordered {
		keep := true
		for _, a := range accepted {
			if geom.IoU(candidate.Rect, a.Rect) > iouThreshold {
				keep = false
				break
			}
		}
		if keep {
			accepted = append(accepted, candidate)
		}
	}
	return accepted
}
