package counter

import (
	"math"
	"slices"
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/peoplecount/pkg/idgen"
	"github.com/cyclopcam/peoplecount/pkg/nn"
)

// Internal state of a person that we're tracking
type track struct {
	id         TrackID
	box        nn.Rect // Most recent box
	firstSeen  time.Time
	lastSeen   time.Time
	confidence float32 // Highest confidence seen over the track's lifetime
	sightings  int
	history    ringbuffer.RingP[Position]

	// Side state. hasEnteredLeft and hasEnteredRight are sticky.
	// Once crossed is true, neither it nor direction ever change again.
	crossed         bool
	direction       Direction
	hasEnteredLeft  bool
	hasEnteredRight bool
	lastSide        Side
}

func (t *track) center() nn.Point {
	return t.box.Center()
}

// Returns at most 'limit' of the most recent positions, oldest first
func (t *track) positions(limit int) []Position {
	n := t.history.Len()
	first := max(0, n-limit)
	out := make([]Position, 0, n-first)
	for i := first; i < n; i++ {
		out = append(out, t.history.Peek(i))
	}
	return out
}

// trackStore owns every track.
// It does no locking of its own. Counter.lock must be held for every call.
type trackStore struct {
	historyLimit int
	ringSize     int // historyLimit rounded up to a power of 2
	ids          idgen.Uint64
	tracks       map[TrackID]*track
}

func newTrackStore(historyLimit int) *trackStore {
	return &trackStore{
		historyLimit: historyLimit,
		ringSize:     nextPowerOf2(historyLimit),
		tracks:       map[TrackID]*track{},
	}
}

// Create a new track from an unmatched detection.
// The side that the track is first seen on counts as having been entered.
func (s *trackStore) create(det *nn.Detection, now time.Time, side Side) *track {
	t := &track{
		id:              TrackID(s.ids.Next()),
		box:             det.Box,
		firstSeen:       now,
		lastSeen:        now,
		confidence:      det.Confidence,
		sightings:       1,
		history:         ringbuffer.NewRingP[Position](s.ringSize),
		hasEnteredLeft:  side == SideLeft,
		hasEnteredRight: side == SideRight,
		lastSide:        side,
	}
	c := det.Box.Center()
	t.history.Add(Position{X: c.X, Y: c.Y, Time: now})
	s.tracks[t.id] = t
	return t
}

// Apply a matched detection to a track.
// Returns the center of the track before the update.
func (s *trackStore) update(t *track, det *nn.Detection, now time.Time) nn.Point {
	last := t.center()
	c := det.Box.Center()
	t.history.Add(Position{X: c.X, Y: c.Y, Time: now})
	t.box = det.Box
	t.lastSeen = now
	t.confidence = max(t.confidence, det.Confidence)
	t.sightings++
	return last
}

func (s *trackStore) get(id TrackID) *track {
	return s.tracks[id]
}

// Visit every track, in ascending ID order (which is also creation order)
func (s *trackStore) iterate(fn func(t *track)) {
	for _, id := range s.sortedIDs() {
		fn(s.tracks[id])
	}
}

// Return all tracks, in ascending ID order
func (s *trackStore) all() []*track {
	list := make([]*track, 0, len(s.tracks))
	s.iterate(func(t *track) {
		list = append(list, t)
	})
	return list
}

func (s *trackStore) sortedIDs() []TrackID {
	ids := make([]TrackID, 0, len(s.tracks))
	for id := range s.tracks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *trackStore) remove(id TrackID) {
	delete(s.tracks, id)
}

// Remove every track. IDs keep counting up from where they were.
func (s *trackStore) clear() {
	s.tracks = map[TrackID]*track{}
}

func (s *trackStore) len() int {
	return len(s.tracks)
}

func (s *trackStore) info(t *track) TrackInfo {
	return TrackInfo{
		ID:              t.id,
		Box:             t.box,
		FirstSeen:       t.firstSeen,
		LastSeen:        t.lastSeen,
		Confidence:      t.confidence,
		Sightings:       t.sightings,
		Crossed:         t.crossed,
		Direction:       t.direction,
		HasEnteredLeft:  t.hasEnteredLeft,
		HasEnteredRight: t.hasEnteredRight,
		LastSide:        t.lastSide,
		Positions:       t.positions(s.historyLimit),
	}
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}
