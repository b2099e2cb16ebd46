package countdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/peoplecount/pkg/dbh"
	"github.com/cyclopcam/peoplecount/server/counter"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Package countdb is a journal of every crossing and reset

const MaxRecent = 1000

// CountDB stores crossing events in sqlite
type CountDB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create a count DB
func Open(log logs.Log, dbFilename string) (*CountDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbFilename), 0777); err != nil {
		return nil, fmt.Errorf("Failed to create directory for %v: %w", dbFilename, err)
	}
	db, err := dbh.OpenDB(log, dbFilename, Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database %v: %w", dbFilename, err)
	}
	return &CountDB{
		Log: log,
		DB:  db,
	}, nil
}

func (c *CountDB) Close() {
	if raw, err := c.DB.DB(); err == nil {
		raw.Close()
	}
}

// RecordCrossing stores a crossing notification
func (c *CountDB) RecordCrossing(ev counter.CountChanged) (*CrossingEvent, error) {
	if ev.Reason != counter.ReasonCrossing || ev.Direction == counter.DirectionNone {
		return nil, fmt.Errorf("Event is not a crossing (reason %v, direction %v)", ev.Reason, ev.Direction)
	}
	rec := &CrossingEvent{
		PublicID:    uuid.NewString(),
		TrackID:     int64(ev.TrackID),
		Direction:   ev.Direction.String(),
		Time:        dbh.MakeIntTime(ev.Time),
		LeftToRight: int64(ev.Counts.LeftToRight),
		RightToLeft: int64(ev.Counts.RightToLeft),
		Total:       int64(ev.Counts.Total),
	}
	if err := c.DB.Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordReset stores the time at which the counts were zeroed
func (c *CountDB) RecordReset(t time.Time) error {
	return c.DB.Create(&CountReset{Time: dbh.MakeIntTime(t)}).Error
}

// Recent returns the most recent crossings, newest first.
func (c *CountDB) Recent(limit int) ([]CrossingEvent, error) {
	limit = min(max(limit, 1), MaxRecent)
	events := []CrossingEvent{}
	err := c.DB.Order("time DESC, id DESC").Limit(limit).Find(&events).Error
	return events, err
}

// LastReset returns the time of the most recent reset, or the zero time if the counts have never been reset
func (c *CountDB) LastReset() (time.Time, error) {
	r := CountReset{}
	err := c.DB.Order("time DESC, id DESC").First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	} else if err != nil {
		return time.Time{}, err
	}
	return r.Time.Get(), nil
}

// Totals adds up all crossings at or after 'since'.
// If 'since' is zero, then all crossings are included.
func (c *CountDB) Totals(since time.Time) (counter.CountState, error) {
	type row struct {
		Direction string
		N         int64
	}
	rows := []row{}
	q := c.DB.Model(&CrossingEvent{}).Select("direction, COUNT(*) AS n").Group("direction")
	if !since.IsZero() {
		q = q.Where("time >= ?", dbh.MakeIntTime(since))
	}
	if err := q.Scan(&rows).Error; err != nil {
		return counter.CountState{}, err
	}

	totals := counter.CountState{}
	for _, r := range rows {
		var dir counter.Direction
		if err := dir.UnmarshalText([]byte(r.Direction)); err != nil {
			return counter.CountState{}, err
		}
		switch dir {
		case counter.DirectionLeftToRight:
			totals.LeftToRight += uint64(r.N)
		case counter.DirectionRightToLeft:
			totals.RightToLeft += uint64(r.N)
		}
	}
	totals.Total = totals.LeftToRight + totals.RightToLeft
	return totals, nil
}
