package counter

import (
	"github.com/cyclopcam/peoplecount/pkg/nn"
)

// Discard everything that is not a person with a confidence above the tracking threshold.
// Malformed records are dropped one at a time, and counted in 'rejected', so that a single
// bad detection never spoils the rest of the frame.
func filterDetections(dets []nn.Detection, settings *Settings) (people []nn.Detection, rejected int) {
	people = make([]nn.Detection, 0, len(dets))
	for i := range dets {
		det := &dets[i]
		if err := det.Validate(); err != nil {
			rejected++
			continue
		}
		if det.Class == settings.PersonClass && det.Confidence > settings.MinTrackingConfidence {
			people = append(people, *det)
		}
	}
	return
}
