package counter

import "github.com/cyclopcam/peoplecount/pkg/gen"

// SYNC-WATCHER-CHANNEL-SIZE
const WatcherChannelSize = 100

// Register to receive every count change on a channel.
// The channel is never closed by us. Call RemoveWatcher when you're done.
func (c *Counter) AddWatcher() chan CountChanged {
	c.watchersLock.Lock()
	defer c.watchersLock.Unlock()
	ch := make(chan CountChanged, WatcherChannelSize)
	c.watchers = append(c.watchers, ch)
	return ch
}

// Unregister a watcher channel
func (c *Counter) RemoveWatcher(ch chan CountChanged) {
	c.watchersLock.Lock()
	defer c.watchersLock.Unlock()
	if i := gen.IndexOf(c.watchers, ch); i != -1 {
		c.watchers = gen.DeleteFromSliceUnordered(c.watchers, i)
		return
	}
	c.Log.Warnf("Counter.RemoveWatcher failed to find channel")
}

func (c *Counter) sendToWatchers(ev CountChanged) {
	c.watchersLock.RLock()
	defer c.watchersLock.RUnlock()
	// We would rather drop a message than stall frame processing because
	// one watcher is stuck on IO.
	for _, ch := range c.watchers {
		// SYNC-WATCHER-CHANNEL-SIZE
		if len(ch) >= cap(ch)*9/10 {
			c.Log.Warnf("Counter watcher is falling behind. Dropping %v notification.", ev.Reason)
		} else {
			ch <- ev
		}
	}
}
