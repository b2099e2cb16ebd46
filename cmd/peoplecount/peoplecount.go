package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/peoplecount/server"
	"github.com/joho/godotenv"
)

func main() {
	parser := argparse.NewParser("peoplecount", "Count people crossing a camera's field of view")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file", Default: ""})
	listen := parser.String("l", "listen", &argparse.Options{Help: "HTTP listen address (overrides config), eg :8080", Default: ""})
	dbFile := parser.String("d", "db", &argparse.Options{Help: "Crossing journal database file (overrides config)", Default: ""})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Log the life of every track", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	// A .env file is optional. Its values become environment variables, which override the config file.
	if err := godotenv.Load(); err == nil {
		logger.Infof("Loaded environment from .env")
	}

	cfg, err := server.LoadConfig(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbFile != "" {
		cfg.Database = *dbFile
	}
	if *verbose {
		cfg.Counter.Verbose = true
	}

	// Detections arrive over HTTP, so we don't run a detector of our own
	srv, err := server.NewServer(logger, cfg, nil)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive.
	daemon.SdNotify(false, daemon.SdNotifyReady)

	err = srv.ListenHTTP(cfg.Listen)
	logger.Infof("ListenHTTP returned: %v", err)
	// If the listener failed by itself (eg port in use), then nobody has shut us down yet.
	// Otherwise this is a no-op, and we wait for the signal handler's shutdown to finish.
	srv.Shutdown()
	err = <-srv.ShutdownComplete
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
