package server

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cyclopcam/peoplecount/server/counter"
)

// SYNC-SERVER-PORT
const DefaultListen = ":8080"
const DefaultFrameRateLimit = 100 // frames per second, per IP

// Config is read from a JSON file.
// Any value that is left out (or zero) takes on its default.
type Config struct {
	Listen         string        `json:"listen"`         // eg ":8080"
	Database       string        `json:"database"`       // Path to the sqlite crossing journal. Empty disables the journal.
	FrameRateLimit int           `json:"frameRateLimit"` // Maximum POST /api/frame requests per second, per IP
	Counter        CounterConfig `json:"counter"`
}

// CounterConfig is the JSON form of counter.Settings. Durations are in milliseconds.
type CounterConfig struct {
	PersonClass           string  `json:"personClass"`
	MinTrackingConfidence float32 `json:"minTrackingConfidence"`
	PositionHistoryLimit  int     `json:"positionHistoryLimit"`
	DetectionIntervalMS   int     `json:"detectionIntervalMS"`
	CleanupIntervalMS     int     `json:"cleanupIntervalMS"`
	StalenessMS           int     `json:"stalenessMS"`
	SideMarginFraction    float32 `json:"sideMarginFraction"`
	Verbose               bool    `json:"verbose"`
}

// Load a config file. If filename is empty, the defaults are returned.
func LoadConfig(filename string) (*Config, error) {
	cfg := &Config{}
	if filename != "" {
		if cfgB, err := os.ReadFile(filename); err != nil {
			return nil, err
		} else {
			if err := json.Unmarshal(cfgB, cfg); err != nil {
				return nil, fmt.Errorf("Error parsing config file %v: %w", filename, err)
			}
		}
	}
	cfg.ApplyEnv()
	cfg.setDefaults()
	return cfg, nil
}

// Environment variables override the config file.
// These are typically supplied by systemd, or a .env file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PEOPLECOUNT_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("PEOPLECOUNT_DB"); v != "" {
		c.Database = v
	}
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.FrameRateLimit <= 0 {
		c.FrameRateLimit = DefaultFrameRateLimit
	}
}

// Settings returns the counter settings, with defaults filled in
func (c *CounterConfig) Settings() *counter.Settings {
	s := counter.DefaultSettings()
	if c.PersonClass != "" {
		s.PersonClass = c.PersonClass
	}
	if c.MinTrackingConfidence != 0 {
		s.MinTrackingConfidence = c.MinTrackingConfidence
	}
	if c.PositionHistoryLimit != 0 {
		s.PositionHistoryLimit = c.PositionHistoryLimit
	}
	if c.DetectionIntervalMS != 0 {
		s.DetectionInterval = time.Duration(c.DetectionIntervalMS) * time.Millisecond
	}
	if c.CleanupIntervalMS != 0 {
		s.CleanupInterval = time.Duration(c.CleanupIntervalMS) * time.Millisecond
	}
	if c.StalenessMS != 0 {
		s.Staleness = time.Duration(c.StalenessMS) * time.Millisecond
	}
	if c.SideMarginFraction != 0 {
		s.SideMarginFraction = c.SideMarginFraction
	}
	s.Verbose = c.Verbose
	return s
}
