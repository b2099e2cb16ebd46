package countdb

import "github.com/cyclopcam/peoplecount/pkg/dbh"

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// CrossingEvent is one person crossing the frame.
// The counts are the totals immediately after the crossing.
type CrossingEvent struct {
	BaseModel
	PublicID    string      `json:"publicID"` // Random UUID, so that events can be merged between counters
	TrackID     int64       `json:"trackID"`
	Direction   string      `json:"direction"` // "leftToRight" or "rightToLeft"
	Time        dbh.IntTime `json:"time"`
	LeftToRight int64       `json:"leftToRight"`
	RightToLeft int64       `json:"rightToLeft"`
	Total       int64       `json:"total"`
}

// CountReset records that the counts were zeroed
type CountReset struct {
	BaseModel
	Time dbh.IntTime `json:"time"`
}
