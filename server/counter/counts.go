package counter

import (
	"fmt"
	"sync"
)

// countAggregator holds the running totals.
// It has its own lock so that readers never need to wait for a whole frame to finish.
type countAggregator struct {
	lock  sync.RWMutex
	state CountState
}

// Record a crossing, and return the new totals
func (a *countAggregator) applyCrossing(dir Direction) CountState {
	a.lock.Lock()
	defer a.lock.Unlock()
	switch dir {
	case DirectionLeftToRight:
		a.state.LeftToRight++
	case DirectionRightToLeft:
		a.state.RightToLeft++
	default:
		panic(fmt.Sprintf("applyCrossing called with direction %v", dir))
	}
	a.state.Total = a.state.LeftToRight + a.state.RightToLeft
	a.state.checkInvariant()
	return a.state
}

func (a *countAggregator) snapshot() CountState {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.state
}

func (a *countAggregator) reset() CountState {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.state = CountState{}
	return a.state
}

// A broken total is a bug in this package, so we refuse to continue
func (c CountState) checkInvariant() {
	if c.Total != c.LeftToRight+c.RightToLeft {
		panic(fmt.Sprintf("CountState invariant violated: total %v != %v + %v", c.Total, c.LeftToRight, c.RightToLeft))
	}
}
