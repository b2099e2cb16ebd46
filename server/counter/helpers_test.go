package counter

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/peoplecount/pkg/nn"
	"github.com/stretchr/testify/require"
)

const canvasW = 640
const canvasH = 480

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// A person whose box is centered at (cx, cy).
// The box is big enough that a person can move from x=50 to x=400 in a single frame and still match.
func person(cx, cy float32) nn.Detection {
	return personConf(cx, cy, 0.8)
}

func personConf(cx, cy, conf float32) nn.Detection {
	return nn.Detection{
		Class:      "person",
		Confidence: conf,
		Box:        nn.Rect{X: cx - 50, Y: cy - 120, Width: 100, Height: 240},
	}
}

// Time of frame number i
func frameTime(i int) time.Time {
	return t0.Add(time.Duration(i) * 100 * time.Millisecond)
}

// testClock is a clock that tests can move forward
type testClock struct {
	now atomic.Int64
}

func newTestClock(t time.Time) *testClock {
	c := &testClock{}
	c.set(t)
	return c
}

func (c *testClock) set(t time.Time) {
	c.now.Store(t.UnixNano())
}

func (c *testClock) get() time.Time {
	return time.Unix(0, c.now.Load()).UTC()
}

// Create a counter whose janitor sees a frozen clock at t0, so it never evicts anything
// unless the test moves the clock.
func newTestCounter(t *testing.T, settings *Settings) (*Counter, *testClock) {
	t.Helper()
	clock := newTestClock(t0)
	c, err := newCounter(logs.NewTestingLog(t), settings, nil, clock.get)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, clock
}

func processFrame(t *testing.T, c *Counter, i int, dets ...nn.Detection) FrameResult {
	t.Helper()
	r, err := c.ProcessFrame(dets, canvasW, canvasH, frameTime(i))
	require.NoError(t, err)
	require.False(t, r.Skipped)
	return r
}
