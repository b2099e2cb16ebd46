package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/cyclopcam/peoplecount/pkg/nn"
	"github.com/cyclopcam/peoplecount/server/counter"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

const maxFrameBytes = 1024 * 1024

// SYNC-FRAME-JSON
type frameJSON struct {
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Time       int64          `json:"time"` // Unix milliseconds, on the server's clock. If omitted, the time of arrival is used.
	Detections []nn.Detection `json:"detections"`
}

// Feed one frame of detections into the counter
func (s *Server) httpFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	frame := frameJSON{}
	www.ReadJSON(w, r, &frame, maxFrameBytes)
	now := time.Now()
	if frame.Time != 0 {
		// The janitor sweeps on our clock, so a frame stamped on some other clock would
		// either block the rate gate (future) or have its tracks evicted immediately (past).
		stamp := time.UnixMilli(frame.Time)
		if skew := stamp.Sub(now).Abs(); skew > s.Counter.Settings().Staleness {
			www.PanicBadRequestf("Frame time is %v away from the server clock", skew.Round(time.Millisecond))
		}
		now = stamp
	}
	result, err := s.Counter.ProcessFrame(frame.Detections, frame.Width, frame.Height, now)
	if errors.Is(err, counter.ErrInvalidCanvas) {
		www.PanicBadRequestf("%v", err)
	}
	www.Check(err)
	www.SendJSON(w, result)
}

func (s *Server) httpCounts(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Counter.Snapshot())
}

func (s *Server) httpReset(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.Counter.Reset()
	www.SendOK(w)
}

func (s *Server) httpTracks(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Counter.Tracks())
}

func (s *Server) httpStats(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Counter.Stats())
}

func (s *Server) httpGetLine(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.Counter.CrossingLine())
}

func (s *Server) httpSetLine(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	line := counter.Line{}
	www.ReadJSON(w, r, &line, 1024)
	s.Counter.SetCrossingLine(line)
	www.SendOK(w)
}

// Recent crossings from the journal, newest first
func (s *Server) httpEvents(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.CountDB == nil {
		www.PanicServerError("No database has been configured")
	}
	limit := www.QueryInt(r, "limit")
	if limit == 0 {
		limit = 100
	}
	events, err := s.CountDB.Recent(limit)
	www.Check(err)
	www.SendJSON(w, events)
}

// Totals from the journal. If 'since' (unix milliseconds) is omitted, then we count from the most recent reset.
func (s *Server) httpTotals(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.CountDB == nil {
		www.PanicServerError("No database has been configured")
	}
	var since time.Time
	if ms := www.QueryInt64(r, "since"); ms != 0 {
		since = time.UnixMilli(ms)
	} else {
		var err error
		since, err = s.CountDB.LastReset()
		www.Check(err)
	}
	totals, err := s.CountDB.Totals(since)
	www.Check(err)
	www.SendJSON(w, totals)
}

func (s *Server) httpSetVerbose(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	verbose := www.RequiredQueryValue(r, "verbose") == "1"
	s.Counter.SetVerbose(verbose)
	s.Log.Infof("Counter verbose logging: %v", verbose)
	www.SendOK(w)
}
