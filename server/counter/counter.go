package counter

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/peoplecount/pkg/event"
	"github.com/cyclopcam/peoplecount/pkg/nn"
	"github.com/cyclopcam/peoplecount/pkg/perfstats"
)

// Package counter tracks people across frames of object detections, and counts
// how many of them cross from the left half of the frame to the right, and vice versa.

var ErrNoDetector = errors.New("No object detector has been configured")
var ErrInvalidCanvas = errors.New("Canvas width and height must be positive")

// Counter is the tracking and crossing engine for a single video feed.
//
// Every mutation of the tracks happens inside 'lock': a whole frame (association,
// track updates, and crossing evaluation), a janitor sweep, or a reset. None of these
// can observe a half-applied version of another.
type Counter struct {
	Log logs.Log

	settings Settings
	detector nn.ObjectDetector
	clock    func() time.Time
	verbose  atomic.Bool

	lock         sync.Mutex // Guards everything below, up until 'counts'
	store        *trackStore
	lastFrameAt  time.Time
	canvasWidth  int
	canvasHeight int
	line         *Line // nil until SetCrossingLine is called
	stats        Stats
	frameTime    perfstats.TimeAccumulator

	counts countAggregator

	listeners    event.Sender[CountChanged]
	watchersLock sync.RWMutex
	watchers     []chan CountChanged

	janitorStop    chan bool
	janitorStopped chan bool
	closeOnce      sync.Once
}

// Create a new counter, and start its janitor.
// The detector is optional. Without it, DetectPeople is unavailable, but ProcessFrame works normally.
// You must call Close() when finished.
func NewCounter(logger logs.Log, settings *Settings, detector nn.ObjectDetector) (*Counter, error) {
	return newCounter(logger, settings, detector, time.Now)
}

func newCounter(logger logs.Log, settings *Settings, detector nn.ObjectDetector, clock func() time.Time) (*Counter, error) {
	if settings == nil {
		settings = DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid counter settings: %w", err)
	}
	c := &Counter{
		Log:      logger,
		settings: *settings,
		detector: detector,
		clock:    clock,
		store:    newTrackStore(settings.PositionHistoryLimit),
	}
	c.verbose.Store(settings.Verbose)
	c.startJanitor()
	return c, nil
}

// Close stops the janitor. It is safe to call Close more than once.
func (c *Counter) Close() {
	c.closeOnce.Do(func() {
		c.stopJanitor()
		c.Log.Infof("Counter closed")
	})
}

func (c *Counter) Settings() Settings {
	return c.settings
}

// SetVerbose turns logging of individual track events on or off
func (c *Counter) SetVerbose(verbose bool) {
	c.verbose.Store(verbose)
}

// ProcessFrame runs one frame of detections through the tracker.
// 'now' is the time at which the frame was captured.
// If the frame arrives sooner than DetectionInterval after the previous processed frame,
// it is dropped, and the result has Skipped = true.
func (c *Counter) ProcessFrame(dets []nn.Detection, canvasWidth, canvasHeight int, now time.Time) (FrameResult, error) {
	if canvasWidth <= 0 || canvasHeight <= 0 {
		return FrameResult{}, fmt.Errorf("%w (got %v x %v)", ErrInvalidCanvas, canvasWidth, canvasHeight)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.mustSkipLocked(now) {
		c.stats.FramesSkipped++
		return FrameResult{Skipped: true, Counts: c.counts.snapshot()}, nil
	}
	start := time.Now()
	c.lastFrameAt = now
	c.canvasWidth = canvasWidth
	c.canvasHeight = canvasHeight

	people, rejected := filterDetections(dets, &c.settings)
	result := FrameResult{
		Accepted: len(people),
		Rejected: rejected,
	}
	if rejected != 0 {
		c.stats.DetectionsRejected += int64(rejected)
		if c.verbose.Load() {
			c.Log.Warnf("Counter: Dropped %v malformed detections", rejected)
		}
	}

	matches := associate(people, c.store.all(), now)

	for i := range people {
		det := &people[i]
		center := det.Box.Center()
		side := classifySide(center.X, canvasWidth, c.settings.SideMarginFraction)
		t := matches[i]
		var lastPosition nn.Point
		if t == nil {
			t = c.store.create(det, now, side)
			lastPosition = center
			result.Created++
			if c.verbose.Load() {
				c.Log.Infof("Counter: New track %v at %.0f,%.0f (%v)", t.id, center.X, center.Y, side)
			}
		} else {
			lastPosition = c.store.update(t, det, now)
			result.Matched++
		}

		previousSide := t.lastSide
		dir := evaluateCrossing(t, side, center, lastPosition)
		if c.verbose.Load() && t.lastSide != previousSide {
			c.Log.Infof("Counter: Track %v moved from %v to %v", t.id, previousSide, t.lastSide)
		}
		if dir != DirectionNone {
			counts := c.counts.applyCrossing(dir)
			ev := CountChanged{
				Reason:    ReasonCrossing,
				Counts:    counts,
				Time:      now,
				TrackID:   t.id,
				Direction: dir,
			}
			c.Log.Infof("Counter: Track %v crossed %v. Counts: %v left to right, %v right to left, %v total", t.id, dir, counts.LeftToRight, counts.RightToLeft, counts.Total)
			result.Crossings = append(result.Crossings, ev)
			c.notify(ev)
		}
	}

	result.Counts = c.counts.snapshot()
	c.notify(CountChanged{
		Reason: ReasonFrame,
		Counts: result.Counts,
		Time:   now,
	})

	c.stats.FramesProcessed++
	c.frameTime.AddSince(start)
	return result, nil
}

// DetectPeople runs the object detector on an image, and then feeds the results into ProcessFrame.
// If the rate gate would drop the frame, then we don't bother running the detector.
func (c *Counter) DetectPeople(img nn.ImageCrop, now time.Time) (FrameResult, error) {
	if c.detector == nil {
		return FrameResult{}, ErrNoDetector
	}

	c.lock.Lock()
	skip := c.mustSkipLocked(now)
	if skip {
		c.stats.FramesSkipped++
	}
	c.lock.Unlock()
	if skip {
		return FrameResult{Skipped: true, Counts: c.counts.snapshot()}, nil
	}

	params := nn.NewDetectionParams()
	params.ProbabilityThreshold = c.settings.MinTrackingConfidence
	objects, err := c.detector.DetectObjects(img, params)
	if err != nil {
		return FrameResult{}, fmt.Errorf("Object detection failed: %w", err)
	}
	dets := nn.LabelDetections(c.detector.Config(), objects)
	return c.ProcessFrame(dets, img.CropWidth, img.CropHeight, now)
}

func (c *Counter) mustSkipLocked(now time.Time) bool {
	return !c.lastFrameAt.IsZero() && now.Sub(c.lastFrameAt) < c.settings.DetectionInterval
}

// Reset zeroes the counts and forgets every track.
// Detections after a reset always start new tracks, with new IDs.
func (c *Counter) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	n := c.store.len()
	c.store.clear()
	counts := c.counts.reset()
	c.Log.Infof("Counter: Reset (forgot %v tracks)", n)
	c.notify(CountChanged{
		Reason: ReasonReset,
		Counts: counts,
		Time:   c.clock(),
	})
}

// Snapshot returns the current totals
func (c *Counter) Snapshot() CountState {
	return c.counts.snapshot()
}

// Tracks returns a copy of every live track, in creation order
func (c *Counter) Tracks() []TrackInfo {
	c.lock.Lock()
	defer c.lock.Unlock()
	list := make([]TrackInfo, 0, c.store.len())
	c.store.iterate(func(t *track) {
		list = append(list, c.store.info(t))
	})
	return list
}

// Track returns a single track, or false if it does not exist (anymore)
func (c *Counter) Track(id TrackID) (TrackInfo, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	t := c.store.get(id)
	if t == nil {
		return TrackInfo{}, false
	}
	return c.store.info(t), true
}

func (c *Counter) Stats() Stats {
	c.lock.Lock()
	defer c.lock.Unlock()
	s := c.stats
	s.ActiveTracks = c.store.len()
	s.AvgFrameTime = c.frameTime.Average()
	s.MaxFrameTime = c.frameTime.Max
	s.Verbose = c.verbose.Load()
	return s
}

// SetCrossingLine sets the line that viewers draw. It has no effect on counting.
func (c *Counter) SetCrossingLine(line Line) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.line = &line
	c.Log.Infof("Counter: Crossing line set to (%.0f, %.0f) - (%.0f, %.0f)", line.X1, line.Y1, line.X2, line.Y2)
}

// CrossingLine returns the configured line, or a horizontal line across the middle
// 80% of the most recent canvas if none has been set.
func (c *Counter) CrossingLine() Line {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.line != nil {
		return *c.line
	}
	return defaultLine(c.canvasWidth, c.canvasHeight)
}

// Register a synchronous listener for count changes.
// Listeners run inside the counter's lock, so they must be quick, and they must not
// call ProcessFrame, DetectPeople, Reset, or any of the track accessors.
func (c *Counter) AddListener(l event.Listener[CountChanged]) {
	c.listeners.AddListener(l)
}

func (c *Counter) RemoveListener(l event.Listener[CountChanged]) {
	c.listeners.RemoveListener(l)
}

func (c *Counter) notify(ev CountChanged) {
	c.listeners.SendEvent(ev)
	c.sendToWatchers(ev)
}
