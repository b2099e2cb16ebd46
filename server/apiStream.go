package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/peoplecount/server/counter"
	"github.com/julienschmidt/httprouter"
)

// Push every crossing and reset to a websocket.
// The current counts are sent immediately after connecting.
func (s *Server) httpStreamCounts(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpStreamCounts websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	incoming := s.Counter.AddWatcher()
	defer s.Counter.RemoveWatcher(incoming)

	// We don't expect anything from the client, but we need to read in order to notice when it goes away
	clientGone := make(chan bool)
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				close(clientGone)
				return
			}
		}
	}()

	initial := counter.CountChanged{
		Reason: counter.ReasonSnapshot,
		Counts: s.Counter.Snapshot(),
		Time:   time.Now(),
	}
	if err := c.WriteJSON(initial); err != nil {
		return
	}

	for {
		select {
		case <-s.ShutdownStarted:
			return
		case <-clientGone:
			return
		case msg := <-incoming:
			// Routine frame snapshots would flood the client at camera rate
			if msg.Reason == counter.ReasonFrame {
				continue
			}
			if err := c.WriteJSON(msg); err != nil {
				s.Log.Infof("Error writing to count stream: %v", err)
				return
			}
		}
	}
}
