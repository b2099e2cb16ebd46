package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/peoplecount/pkg/nn"
	"github.com/cyclopcam/peoplecount/server/countdb"
	"github.com/cyclopcam/peoplecount/server/counter"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log              logs.Log
	Counter          *counter.Counter
	CountDB          *countdb.CountDB // nil if the journal is disabled
	ShutdownStarted  chan bool        // Closed when Shutdown() starts
	ShutdownComplete chan error       // Receives the result of Shutdown()

	config         Config
	signalIn       chan os.Signal
	httpServer     *http.Server
	httpRouter     *httprouter.Router
	wsUpgrader     websocket.Upgrader
	shutdownLock   sync.Mutex
	isShutdown     bool
	recorderClosed chan bool
}

// Create a new server. The detector is optional.
func NewServer(logger logs.Log, cfg *Config, detector nn.ObjectDetector) (*Server, error) {
	c, err := counter.NewCounter(logger, cfg.Counter.Settings(), detector)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Log:              logger,
		Counter:          c,
		ShutdownStarted:  make(chan bool),
		ShutdownComplete: make(chan error, 1),
		config:           *cfg,
	}

	if cfg.Database != "" {
		s.CountDB, err = countdb.Open(logger, cfg.Database)
		if err != nil {
			c.Close()
			return nil, err
		}
		s.attachCounterToCountDB()
	} else {
		logger.Infof("No database configured. Crossings will not be journaled.")
	}

	s.setupHttpRoutes()
	return s, nil
}

// Handler is the HTTP handler of our API
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// addr example: ":8080"
func (s *Server) ListenHTTP(addr string) error {
	s.Log.Infof("Listening on %v", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig, ok := <-s.signalIn:
			if ok {
				s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
				s.Shutdown()
			} else {
				// This path gets hit when Shutdown() is called by something other than ourselves, and Shutdown() closes the signalIn channel.
				s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
			}
		}
	}()
}

// Shutdown stops the HTTP server, the counter, and the journal.
// It is safe to call Shutdown more than once.
func (s *Server) Shutdown() {
	s.shutdownLock.Lock()
	if s.isShutdown {
		s.shutdownLock.Unlock()
		return
	}
	s.isShutdown = true
	s.shutdownLock.Unlock()

	s.Log.Infof("Shutdown")
	close(s.ShutdownStarted)
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}

	var err error
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = s.httpServer.Shutdown(ctx)
		cancel()
	}

	if s.recorderClosed != nil {
		<-s.recorderClosed
	}
	s.Counter.Close()
	if s.CountDB != nil {
		s.CountDB.Close()
	}

	if err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.ShutdownComplete <- err
}
