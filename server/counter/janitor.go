package counter

import "time"

// Sweep evicts every track that has not been seen for longer than Staleness.
// Tracks that are halfway through a crossing are evicted too, and lose their progress.
// Returns the number of tracks evicted.
func (c *Counter) Sweep(now time.Time) int {
	c.lock.Lock()
	defer c.lock.Unlock()
	stale := []TrackID{}
	c.store.iterate(func(t *track) {
		if now.Sub(t.lastSeen) > c.settings.Staleness {
			stale = append(stale, t.id)
		}
	})
	for _, id := range stale {
		c.store.remove(id)
	}
	if len(stale) != 0 {
		c.stats.TracksEvicted += int64(len(stale))
		c.Log.Infof("Counter: Evicted %v stale tracks (%v remain)", len(stale), c.store.len())
	}
	return len(stale)
}

func (c *Counter) startJanitor() {
	c.janitorStop = make(chan bool)
	c.janitorStopped = make(chan bool)
	go c.janitor()
}

func (c *Counter) stopJanitor() {
	close(c.janitorStop)
	<-c.janitorStopped
}

// The janitor runs on its own fixed period, regardless of whether frames are arriving
func (c *Counter) janitor() {
	ticker := time.NewTicker(c.settings.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep(c.clock())
		case <-c.janitorStop:
			close(c.janitorStopped)
			return
		}
	}
}
