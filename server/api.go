package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) setupHttpRoutes() {
	logEveryRequest := false
	router := httprouter.New()

	handle := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			if logEveryRequest {
				s.Log.Infof("HTTP %v %v", method, r.URL.Path)
			}
			handle(w, r, params)
		})
	}

	// Frames can arrive at camera rate, so this limit is per IP, and generous.
	// We create a unique rate limiter for this endpoint, so we don't need httprate.KeyByEndpoint.
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	handle("GET", "/api/ping", s.httpPing)
	ratelimited("POST", "/api/frame", s.httpFrame, s.config.FrameRateLimit, time.Second)
	handle("GET", "/api/counts", s.httpCounts)
	handle("POST", "/api/reset", s.httpReset)
	handle("GET", "/api/tracks", s.httpTracks)
	handle("GET", "/api/stats", s.httpStats)
	handle("GET", "/api/line", s.httpGetLine)
	handle("POST", "/api/line", s.httpSetLine)
	handle("GET", "/api/events", s.httpEvents)
	handle("GET", "/api/totals", s.httpTotals)
	handle("POST", "/api/verbose", s.httpSetVerbose)
	handle("GET", "/api/ws/counts", s.httpStreamCounts)

	s.httpRouter = router
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time int64 `json:"time"`
	}
	ping := &pingJSON{
		Time: time.Now().Unix(),
	}
	www.SendJSON(w, ping)
}
