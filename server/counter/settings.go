package counter

import (
	"fmt"
	"time"
)

// Settings are fixed when a Counter is created
type Settings struct {
	PersonClass           string        // Class label that we track (all other detections are discarded)
	MinTrackingConfidence float32       // Detections must have a confidence strictly greater than this to be tracked
	PositionHistoryLimit  int           // Keep the last N center positions of each track (for trajectories only)
	DetectionInterval     time.Duration // Frames arriving sooner than this after the previous processed frame are dropped
	CleanupInterval       time.Duration // Period of the janitor
	Staleness             time.Duration // Tracks unseen for longer than this are evicted by the janitor
	SideMarginFraction    float32       // Half-width of the neutral center zone, as a fraction of canvas width
	Verbose               bool          // Log the life of every track
}

func DefaultSettings() *Settings {
	return &Settings{
		PersonClass:           "person",
		MinTrackingConfidence: 0.15,
		PositionHistoryLimit:  30,
		DetectionInterval:     30 * time.Millisecond,
		CleanupInterval:       2000 * time.Millisecond,
		Staleness:             3000 * time.Millisecond,
		SideMarginFraction:    0.1,
	}
}

// Validate returns an error if the settings cannot produce a working counter
func (s *Settings) Validate() error {
	if s.PersonClass == "" {
		return fmt.Errorf("PersonClass may not be empty")
	}
	if s.MinTrackingConfidence < 0 || s.MinTrackingConfidence >= 1 {
		return fmt.Errorf("MinTrackingConfidence must be in [0, 1), not %v", s.MinTrackingConfidence)
	}
	if s.PositionHistoryLimit < 1 {
		return fmt.Errorf("PositionHistoryLimit must be at least 1, not %v", s.PositionHistoryLimit)
	}
	if s.DetectionInterval < 0 {
		return fmt.Errorf("DetectionInterval may not be negative (%v)", s.DetectionInterval)
	}
	if s.CleanupInterval <= 0 {
		return fmt.Errorf("CleanupInterval must be positive, not %v", s.CleanupInterval)
	}
	if s.Staleness <= 0 {
		return fmt.Errorf("Staleness must be positive, not %v", s.Staleness)
	}
	if s.SideMarginFraction < 0 || s.SideMarginFraction >= 0.5 {
		return fmt.Errorf("SideMarginFraction must be in [0, 0.5), not %v", s.SideMarginFraction)
	}
	return nil
}
