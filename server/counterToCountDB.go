package server

import (
	"github.com/cyclopcam/peoplecount/pkg/gen"
	"github.com/cyclopcam/peoplecount/server/counter"
)

// The counter must not wait on sqlite, so crossings are journaled from this thread.
// If the database falls far behind, the counter drops notifications, and those crossings
// will be missing from the journal (but not from the live counts).
func (s *Server) attachCounterToCountDB() {
	s.recorderClosed = make(chan bool)
	incoming := s.Counter.AddWatcher()
	go func() {
		s.Log.Infof("Counter -> CountDB thread starting")
		keepRunning := true
		for keepRunning {
			select {
			case <-s.ShutdownStarted:
				keepRunning = false
			case msg := <-incoming:
				s.record(msg)
			}
		}
		s.Counter.RemoveWatcher(incoming)
		// Don't lose anything that was already queued
		for _, msg := range gen.DrainChannelIntoSlice(incoming) {
			s.record(msg)
		}
		s.Log.Infof("Counter -> CountDB thread exiting")
		close(s.recorderClosed)
	}()
}

func (s *Server) record(msg counter.CountChanged) {
	switch msg.Reason {
	case counter.ReasonCrossing:
		if _, err := s.CountDB.RecordCrossing(msg); err != nil {
			s.Log.Errorf("Failed to record crossing of track %v: %v", msg.TrackID, err)
		}
	case counter.ReasonReset:
		if err := s.CountDB.RecordReset(msg.Time); err != nil {
			s.Log.Errorf("Failed to record reset: %v", err)
		}
	}
}
