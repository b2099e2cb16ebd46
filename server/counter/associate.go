package counter

import (
	"slices"
	"time"

	"github.com/bmharper/flatbush-go"
	"github.com/cyclopcam/peoplecount/pkg/nn"
)

// A detection is only allowed to match a track whose center lies within this
// multiple of the detection's longest side.
const matchRadiusFactor = 1.5

// Weights of the size and age penalties in the match score
const sizeWeight = 0.3
const ageWeight = 0.3

// A possible pairing between a detection and an existing track
type matchCandidate struct {
	det   int
	track *track
	score float32
}

// Score the pairing of a detection with an existing track. Lower is better.
// Returns false if the track is too far away to be considered at all.
func matchScore(det nn.Rect, t *track, now time.Time) (float32, bool) {
	distance := det.Center().Distance(t.center())
	if distance >= det.MaxSide()*matchRadiusFactor {
		return 0, false
	}
	detArea := det.Area()
	sizeSimilarity := abs(detArea-t.box.Area()) / detArea
	timeFactor := float32(now.Sub(t.lastSeen).Milliseconds()) / 1000
	timeFactor = min(1, max(0, timeFactor))
	return distance * (1 + sizeWeight*sizeSimilarity) * (1 + ageWeight*timeFactor), true
}

// Match each detection to at most one track, and each track to at most one detection.
// Returns the matched track for every detection, or nil where a new track is needed.
//
// All eligible pairs are scored, and then accepted greedily from the lowest score upwards.
// A detection that loses its favourite track to a better pairing falls through to its
// next best eligible track.
func associate(dets []nn.Detection, tracks []*track, now time.Time) []*track {
	matches := make([]*track, len(dets))
	if len(dets) == 0 || len(tracks) == 0 {
		return matches
	}

	// Spatial index on the centers of the tracks
	fb := flatbush.NewFlatbush[float32]()
	fb.Reserve(len(tracks))
	for _, t := range tracks {
		c := t.center()
		fb.Add(c.X, c.Y, c.X, c.Y)
	}
	fb.Finish()

	candidates := []matchCandidate{}
	nearby := []int{}
	for i := range dets {
		box := dets[i].Box
		c := box.Center()
		r := box.MaxSide() * matchRadiusFactor
		nearby = fb.SearchFast(c.X-r, c.Y-r, c.X+r, c.Y+r, nearby[:0])
		for _, j := range nearby {
			if score, ok := matchScore(box, tracks[j], now); ok {
				candidates = append(candidates, matchCandidate{det: i, track: tracks[j], score: score})
			}
		}
	}

	slices.SortFunc(candidates, func(a, b matchCandidate) int {
		if a.score != b.score {
			if a.score < b.score {
				return -1
			}
			return 1
		}
		if a.det != b.det {
			return a.det - b.det
		}
		if a.track.id < b.track.id {
			return -1
		} else if a.track.id > b.track.id {
			return 1
		}
		return 0
	})

	taken := map[TrackID]bool{}
	for _, c := range candidates {
		if matches[c.det] != nil || taken[c.track.id] {
			continue
		}
		matches[c.det] = c.track
		taken[c.track.id] = true
	}
	return matches
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
