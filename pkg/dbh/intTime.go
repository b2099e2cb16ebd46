package dbh

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// IntTime is time in milliseconds UTC (aka unix milliseconds).
// IntTime makes it easy to save Int64 milliseconds into SQLite database with gorm.
// In addition, it marshals nicely into JSON, and supports omitempty.
// One important downside is that the zero value means nil, so we are unable to represent
// the date 1970-01-01 00:00:00.000.
type IntTime int64

// Return a new IntTime from a time.Time
func MakeIntTime(v time.Time) IntTime {
	if v.IsZero() {
		return 0
	}
	return IntTime(v.UnixMilli())
}

func (t IntTime) IsZero() bool {
	return t == 0
}

// Get time.Time
func (t IntTime) Get() time.Time {
	if t == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(t)).UTC()
}

func (t *IntTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = 0
	case int64:
		*t = IntTime(v)
	case int32:
		*t = IntTime(v)
	case float64:
		// sqlite aggregates such as MAX() can come back as REAL
		*t = IntTime(v)
	default:
		return fmt.Errorf("Cannot scan %T into IntTime", src)
	}
	return nil
}

func (t IntTime) Value() (driver.Value, error) {
	if t == 0 {
		return nil, nil
	}
	return int64(t), nil
}
