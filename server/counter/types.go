package counter

import (
	"fmt"
	"time"

	"github.com/cyclopcam/peoplecount/pkg/nn"
)

// TrackID identifies a track. IDs are never reused, not even after Reset().
type TrackID uint64

// Side is a horizontal zone of the frame
type Side int

const (
	SideUnknown Side = iota
	SideLeft
	SideCenter
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideCenter:
		return "center"
	case SideRight:
		return "right"
	}
	return "unknown"
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "left":
		*s = SideLeft
	case "center":
		*s = SideCenter
	case "right":
		*s = SideRight
	case "unknown", "":
		*s = SideUnknown
	default:
		return fmt.Errorf("Unknown side '%v'", string(b))
	}
	return nil
}

// Direction of a completed crossing
type Direction int

const (
	DirectionNone Direction = iota
	DirectionLeftToRight
	DirectionRightToLeft
)

func (d Direction) String() string {
	switch d {
	case DirectionLeftToRight:
		return "leftToRight"
	case DirectionRightToLeft:
		return "rightToLeft"
	}
	return "none"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "leftToRight":
		*d = DirectionLeftToRight
	case "rightToLeft":
		*d = DirectionRightToLeft
	case "none", "":
		*d = DirectionNone
	default:
		return fmt.Errorf("Unknown direction '%v'", string(b))
	}
	return nil
}

// CountState is an immutable snapshot of the running totals.
// Total is always LeftToRight + RightToLeft.
// SYNC-COUNT-STATE
type CountState struct {
	LeftToRight uint64 `json:"leftToRight"`
	RightToLeft uint64 `json:"rightToLeft"`
	Total       uint64 `json:"total"`
}

// Reason explains why a CountChanged notification was sent
type Reason string

const (
	ReasonFrame    Reason = "frame"    // Routine snapshot at the end of every processed frame
	ReasonCrossing Reason = "crossing" // A track has just crossed
	ReasonReset    Reason = "reset"    // Reset() was called
	ReasonSnapshot Reason = "snapshot" // Current counts, sent to a new subscriber. Never emitted by the Counter itself.
)

// CountChanged is delivered to listeners and watchers.
// For ReasonCrossing, TrackID and Direction describe the crossing.
type CountChanged struct {
	Reason    Reason     `json:"reason"`
	Counts    CountState `json:"counts"`
	Time      time.Time  `json:"time"`
	TrackID   TrackID    `json:"trackID,omitempty"`
	Direction Direction  `json:"direction"`
}

// A past position of a track
type Position struct {
	X    float32   `json:"x"`
	Y    float32   `json:"y"`
	Time time.Time `json:"time"`
}

// TrackInfo is a copy of the state of a track, safe to hold onto after the call returns
// SYNC-TRACK-INFO
type TrackInfo struct {
	ID              TrackID    `json:"id"`
	Box             nn.Rect    `json:"box"`
	FirstSeen       time.Time  `json:"firstSeen"`
	LastSeen        time.Time  `json:"lastSeen"`
	Confidence      float32    `json:"confidence"`
	Sightings       int        `json:"sightings"`
	Crossed         bool       `json:"crossed"`
	Direction       Direction  `json:"direction"`
	HasEnteredLeft  bool       `json:"hasEnteredLeft"`
	HasEnteredRight bool       `json:"hasEnteredRight"`
	LastSide        Side       `json:"lastSide"`
	Positions       []Position `json:"positions"`
}

// Crossing line, in canvas pixels. This is for display only. Counting is based on
// the left/center/right split of the canvas width, not on this line.
type Line struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// The line that the viewer draws when nobody has configured one
func defaultLine(canvasWidth, canvasHeight int) Line {
	w := float32(canvasWidth)
	h := float32(canvasHeight)
	return Line{X1: w * 0.1, Y1: h * 0.5, X2: w * 0.9, Y2: h * 0.5}
}

// Result of a call to ProcessFrame
type FrameResult struct {
	Skipped   bool           `json:"skipped"`   // Frame arrived within DetectionInterval of the previous frame, and was dropped
	Accepted  int            `json:"accepted"`  // Number of detections that survived filtering
	Rejected  int            `json:"rejected"`  // Number of malformed detections
	Matched   int            `json:"matched"`   // Number of detections matched to an existing track
	Created   int            `json:"created"`   // Number of new tracks
	Crossings []CountChanged `json:"crossings"` // Crossings that happened during this frame
	Counts    CountState     `json:"counts"`    // Totals after this frame
}

// Runtime statistics
type Stats struct {
	FramesProcessed    int64         `json:"framesProcessed"`
	FramesSkipped      int64         `json:"framesSkipped"`
	DetectionsRejected int64         `json:"detectionsRejected"`
	TracksEvicted      int64         `json:"tracksEvicted"`
	ActiveTracks       int           `json:"activeTracks"`
	AvgFrameTime       time.Duration `json:"avgFrameTime"`
	MaxFrameTime       time.Duration `json:"maxFrameTime"`
	Verbose            bool          `json:"verbose"`
}
