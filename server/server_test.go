package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/peoplecount/pkg/nn"
	"github.com/cyclopcam/peoplecount/server/countdb"
	"github.com/cyclopcam/peoplecount/server/counter"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Frame times are real, because the janitor runs on the real clock
var base = time.Now()

type testServer struct {
	*Server
	http *httptest.Server
}

func newTestServer(t *testing.T, withDB bool) *testServer {
	t.Helper()
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	cfg.Counter.StalenessMS = 3600 * 1000
	if withDB {
		cfg.Database = filepath.Join(t.TempDir(), "counts.sqlite")
	}
	s, err := NewServer(logs.NewTestingLog(t), cfg, nil)
	require.NoError(t, err)
	ts := &testServer{
		Server: s,
		http:   httptest.NewServer(s.Handler()),
	}
	t.Cleanup(func() {
		ts.http.Close()
		s.Shutdown()
	})
	return ts
}

func (ts *testServer) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.http.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func (ts *testServer) get(t *testing.T, path string, out any) {
	t.Helper()
	resp, err := http.Get(ts.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (ts *testServer) frame(t *testing.T, i int, xs ...float32) counter.FrameResult {
	t.Helper()
	f := frameJSON{
		Width:  640,
		Height: 480,
		Time:   base.Add(time.Duration(i) * 100 * time.Millisecond).UnixMilli(),
	}
	for _, x := range xs {
		f.Detections = append(f.Detections, nn.Detection{
			Class:      "person",
			Confidence: 0.9,
			Box:        nn.Rect{X: x - 50, Y: 80, Width: 100, Height: 240},
		})
	}
	resp := ts.post(t, "/api/frame", f)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := counter.FrameResult{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func TestPing(t *testing.T) {
	ts := newTestServer(t, false)
	ping := map[string]int64{}
	ts.get(t, "/api/ping", &ping)
	require.NotZero(t, ping["time"])
}

func TestFrameAndCounts(t *testing.T) {
	ts := newTestServer(t, true)

	r := ts.frame(t, 0, 50)
	require.Equal(t, 1, r.Created)
	r = ts.frame(t, 1, 400)
	require.Len(t, r.Crossings, 1)
	require.Equal(t, counter.DirectionLeftToRight, r.Crossings[0].Direction)

	counts := counter.CountState{}
	ts.get(t, "/api/counts", &counts)
	require.Equal(t, counter.CountState{LeftToRight: 1, Total: 1}, counts)

	tracks := []counter.TrackInfo{}
	ts.get(t, "/api/tracks", &tracks)
	require.Len(t, tracks, 1)
	require.True(t, tracks[0].Crossed)
	require.Len(t, tracks[0].Positions, 2)

	stats := counter.Stats{}
	ts.get(t, "/api/stats", &stats)
	require.EqualValues(t, 2, stats.FramesProcessed)

	// The journal is written from another thread
	require.Eventually(t, func() bool {
		events := []countdb.CrossingEvent{}
		ts.get(t, "/api/events?limit=10", &events)
		return len(events) == 1 && events[0].Direction == "leftToRight" && events[0].Total == 1
	}, 5*time.Second, 10*time.Millisecond)

	resp := ts.post(t, "/api/reset", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ts.get(t, "/api/counts", &counts)
	require.Equal(t, counter.CountState{}, counts)
	ts.get(t, "/api/tracks", &tracks)
	require.Empty(t, tracks)

	require.Eventually(t, func() bool {
		last, err := ts.CountDB.LastReset()
		return err == nil && !last.IsZero()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestBadFrames(t *testing.T) {
	ts := newTestServer(t, false)

	resp := ts.post(t, "/api/frame", frameJSON{Width: 0, Height: 480})
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Post(ts.http.URL+"/api/frame", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A single bad detection doesn't spoil the frame
	f := frameJSON{
		Width:  640,
		Height: 480,
		Detections: []nn.Detection{
			{Class: "person", Confidence: 0.9, Box: nn.Rect{X: 0, Y: 0, Width: 0, Height: 10}},
			{Class: "person", Confidence: 0.9, Box: nn.Rect{X: 0, Y: 0, Width: 100, Height: 240}},
		},
	}
	resp = ts.post(t, "/api/frame", f)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := counter.FrameResult{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, 1, result.Rejected)
	require.Equal(t, 1, result.Created)

	// No journal
	resp, err = http.Get(ts.http.URL + "/api/events")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCrossingLine(t *testing.T) {
	ts := newTestServer(t, false)
	ts.frame(t, 0)
	line := counter.Line{}
	ts.get(t, "/api/line", &line)
	require.Equal(t, counter.Line{X1: 64, Y1: 240, X2: 576, Y2: 240}, line)

	want := counter.Line{X1: 10, Y1: 20, X2: 30, Y2: 40}
	resp := ts.post(t, "/api/line", want)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ts.get(t, "/api/line", &line)
	require.Equal(t, want, line)
}

func TestCountStream(t *testing.T) {
	ts := newTestServer(t, false)
	ts.frame(t, 0, 50)

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/api/ws/counts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	msg := counter.CountChanged{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, counter.ReasonSnapshot, msg.Reason)
	require.Equal(t, counter.CountState{}, msg.Counts)
	require.WithinDuration(t, time.Now(), msg.Time, time.Minute)

	ts.frame(t, 1, 400)
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, counter.ReasonCrossing, msg.Reason)
	require.Equal(t, counter.DirectionLeftToRight, msg.Direction)
	require.EqualValues(t, 1, msg.Counts.LeftToRight)

	resp := ts.post(t, "/api/reset", nil)
	resp.Body.Close()
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, counter.ReasonReset, msg.Reason)
	require.Equal(t, counter.CountState{}, msg.Counts)
}

func TestLoadConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(filename, []byte(`{
		"listen": ":9999",
		"counter": {"stalenessMS": 5000, "sideMarginFraction": 0.2, "personClass": "pedestrian"}
	}`), 0644))
	cfg, err := LoadConfig(filename)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Listen)
	require.Equal(t, DefaultFrameRateLimit, cfg.FrameRateLimit)

	s := cfg.Counter.Settings()
	require.Equal(t, 5*time.Second, s.Staleness)
	require.EqualValues(t, 0.2, s.SideMarginFraction)
	require.Equal(t, "pedestrian", s.PersonClass)
	require.Equal(t, counter.DefaultSettings().CleanupInterval, s.CleanupInterval)
	require.NoError(t, s.Validate())

	t.Setenv("PEOPLECOUNT_LISTEN", ":7777")
	cfg, err = LoadConfig(filename)
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Listen)

	require.NoError(t, os.WriteFile(filename, []byte(`{"listen": `), 0644))
	_, err = LoadConfig(filename)
	require.Error(t, err)
}

func TestFrameClockSkew(t *testing.T) {
	ts := newTestServer(t, false)
	staleness := ts.Counter.Settings().Staleness

	// Stamped on another clock, either far ahead of ours or milliseconds since the stream started
	for _, stamp := range []int64{time.Now().Add(staleness + time.Hour).UnixMilli(), 12345} {
		f := frameJSON{Width: 640, Height: 480, Time: stamp}
		f.Detections = []nn.Detection{{Class: "person", Confidence: 0.9, Box: nn.Rect{X: 0, Y: 80, Width: 100, Height: 240}}}
		resp := ts.post(t, "/api/frame", f)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	require.Empty(t, ts.Counter.Tracks())

	// The rate gate has not been poisoned
	r := ts.frame(t, 0, 50)
	require.False(t, r.Skipped)
	require.Equal(t, 1, r.Created)

	// And the track decays on the server clock
	require.Equal(t, 1, ts.Counter.Sweep(time.Now().Add(staleness+time.Second)))
	require.Empty(t, ts.Counter.Tracks())
}

func TestTotals(t *testing.T) {
	ts := newTestServer(t, true)

	// Before base, so that the crossing is older than the reset below
	ts.frame(t, -20, 50)
	r := ts.frame(t, -19, 400)
	require.Len(t, r.Crossings, 1)

	totals := counter.CountState{}
	require.Eventually(t, func() bool {
		ts.get(t, "/api/totals", &totals)
		return totals.Total == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, counter.CountState{LeftToRight: 1, Total: 1}, totals)

	resp := ts.post(t, "/api/reset", nil)
	resp.Body.Close()
	require.Eventually(t, func() bool {
		ts.get(t, "/api/totals", &totals)
		return totals.Total == 0
	}, 5*time.Second, 10*time.Millisecond)

	// An explicit 'since' reaches back past the reset
	since := base.Add(-time.Minute).UnixMilli()
	ts.get(t, fmt.Sprintf("/api/totals?since=%v", since), &totals)
	require.Equal(t, counter.CountState{LeftToRight: 1, Total: 1}, totals)
}

func TestSetVerbose(t *testing.T) {
	ts := newTestServer(t, false)
	stats := counter.Stats{}
	ts.get(t, "/api/stats", &stats)
	require.False(t, stats.Verbose)

	resp := ts.post(t, "/api/verbose?verbose=1", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ts.get(t, "/api/stats", &stats)
	require.True(t, stats.Verbose)

	resp = ts.post(t, "/api/verbose?verbose=0", nil)
	resp.Body.Close()
	ts.get(t, "/api/stats", &stats)
	require.False(t, stats.Verbose)
}
