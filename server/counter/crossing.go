package counter

import (
	"github.com/cyclopcam/peoplecount/pkg/nn"
)

// Decide which horizontal zone x lies in.
// The center zone is 2*marginFraction of the canvas width, and never changes a track's side.
func classifySide(x float32, canvasWidth int, marginFraction float32) Side {
	screenCenter := float32(canvasWidth) / 2
	margin := float32(canvasWidth) * marginFraction
	if x < screenCenter-margin {
		return SideLeft
	} else if x > screenCenter+margin {
		return SideRight
	}
	return SideCenter
}

// Advance the side state machine of a track that has just been updated.
// 'lastPosition' is the track's center before this frame's update, and 'current' is the new center.
// Returns the direction of a crossing, if one happened right now, or DirectionNone.
//
// A track is counted once it has been seen clearly on both the left and the right.
// It does not need to be seen in the middle, so detector gaps at the boundary are harmless.
func evaluateCrossing(t *track, currentSide Side, current, lastPosition nn.Point) Direction {
	if t.crossed {
		return DirectionNone
	}
	if currentSide != SideLeft && currentSide != SideRight {
		return DirectionNone
	}
	if currentSide == t.lastSide {
		return DirectionNone
	}

	previousSide := t.lastSide
	t.lastSide = currentSide
	if currentSide == SideLeft {
		t.hasEnteredLeft = true
	} else {
		t.hasEnteredRight = true
	}

	if !t.hasEnteredLeft || !t.hasEnteredRight {
		return DirectionNone
	}

	var dir Direction
	switch {
	case previousSide == SideLeft && currentSide == SideRight:
		dir = DirectionLeftToRight
	case previousSide == SideRight && currentSide == SideLeft:
		dir = DirectionRightToLeft
	case current.X > lastPosition.X:
		// We never saw the other side as the previous side (eg the track was born there
		// and then wandered through the center), so fall back to the last movement.
		dir = DirectionLeftToRight
	default:
		dir = DirectionRightToLeft
	}
	t.crossed = true
	t.direction = dir
	return dir
}
