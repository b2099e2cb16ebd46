package nn

// Package nn is the object detection interface layer.
// The people counter never loads a model itself. An ObjectDetector is handed to it.

const DefaultProbabilityThreshold = 0.5
const DefaultNmsIouThreshold = 0.45

// NN object detection parameters
type DetectionParams struct {
	ProbabilityThreshold float32 // Value between 0 and 1. Lower values will find more objects. Zero value will use the default.
	NmsIouThreshold      float32 // Value between 0 and 1. Lower values will merge more objects together into one. Zero value will use the default.
}

// Create a default DetectionParams object
func NewDetectionParams() *DetectionParams {
	return &DetectionParams{
		ProbabilityThreshold: DefaultProbabilityThreshold,
		NmsIouThreshold:      DefaultNmsIouThreshold,
	}
}

// ImageCrop is the region of an image that is handed to an ObjectDetector.
// Detection boxes are relative to the crop, and CropWidth x CropHeight is the canvas.
type ImageCrop struct {
	NChan       int    // Number of channels (eg 3 for RGB)
	Pixels      []byte // The whole image
	ImageWidth  int    // The width of the original image, held in Pixels
	ImageHeight int    // The height of the original image, held in Pixels
	CropX       int    // Origin of crop X
	CropY       int    // Origin of crop Y
	CropWidth   int    // The width of this crop
	CropHeight  int    // The height of this crop
}

// Return a 'crop' of the entire image
func WholeImage(nchan int, pixels []byte, width, height int) ImageCrop {
	return ImageCrop{
		NChan:       nchan,
		Pixels:      pixels,
		ImageWidth:  width,
		ImageHeight: height,
		CropX:       0,
		CropY:       0,
		CropWidth:   width,
		CropHeight:  height,
	}
}

// ObjectDetection is an object that a neural network has found in an image.
// Class is an index into ModelConfig.Classes.
type ObjectDetection struct {
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// ObjectDetector is given an image, and returns zero or more detected objects
type ObjectDetector interface {
	// Close releases any resources held by the detector
	Close()

	// DetectObjects returns a list of objects detected in the image
	// You can create a default DetectionParams with NewDetectionParams()
	DetectObjects(img ImageCrop, params *DetectionParams) ([]ObjectDetection, error)

	// Model Config.
	// Callers assume that ModelConfig will remain constant, so don't change it
	// once the detector has been created.
	Config() *ModelConfig
}

// ModelConfig describes the model behind an ObjectDetector
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "yolov8"
	Width        int      `json:"width"`        // eg 320
	Height       int      `json:"height"`       // eg 256
	Classes      []string `json:"classes"`      // eg ["person", "bicycle", "car", ...]
}

// ClassName returns the label of a class index, falling back to the COCO list when the
// model doesn't publish its own classes.
func (m *ModelConfig) ClassName(class int) string {
	if m == nil || len(m.Classes) == 0 {
		return COCOClassName(class)
	}
	if class < 0 || class >= len(m.Classes) {
		return ""
	}
	return m.Classes[class]
}
