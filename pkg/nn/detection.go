package nn

import (
	"errors"

	"github.com/chewxy/math32"
)

var ErrNonFiniteBox = errors.New("Detection box has a non-finite value")
var ErrEmptyBox = errors.New("Detection box has zero or negative size")
var ErrBadConfidence = errors.New("Detection confidence is not a finite number")
var ErrMissingClass = errors.New("Detection has no class label")

// Detection is a single labelled box produced by a detector for one frame.
// Unlike ObjectDetection, the class is carried as a label, so that callers outside
// of this process can feed us results from any model.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// Validate returns an error if the detection cannot be used for tracking
func (d *Detection) Validate() error {
	if d.Class == "" {
		return ErrMissingClass
	}
	if math32.IsNaN(d.Confidence) || math32.IsInf(d.Confidence, 0) {
		return ErrBadConfidence
	}
	if !d.Box.IsFinite() {
		return ErrNonFiniteBox
	}
	if d.Box.Width <= 0 || d.Box.Height <= 0 {
		return ErrEmptyBox
	}
	return nil
}

// LabelDetections converts raw class indices into labelled detections
func LabelDetections(model *ModelConfig, objects []ObjectDetection) []Detection {
	dets := make([]Detection, 0, len(objects))
	for _, obj := range objects {
		dets = append(dets, Detection{
			Class:      model.ClassName(obj.Class),
			Confidence: obj.Confidence,
			Box:        obj.Box,
		})
	}
	return dets
}
