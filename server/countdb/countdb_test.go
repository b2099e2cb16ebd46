package countdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/peoplecount/server/counter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func createTestDB(t *testing.T) *CountDB {
	t.Helper()
	db, err := Open(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "sub", "counts.sqlite"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func crossing(id counter.TrackID, dir counter.Direction, tm time.Time, counts counter.CountState) counter.CountChanged {
	return counter.CountChanged{
		Reason:    counter.ReasonCrossing,
		Counts:    counts,
		Time:      tm,
		TrackID:   id,
		Direction: dir,
	}
}

func TestRecordAndQuery(t *testing.T) {
	db := createTestDB(t)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	ev, err := db.RecordCrossing(crossing(1, counter.DirectionLeftToRight, base, counter.CountState{LeftToRight: 1, Total: 1}))
	require.NoError(t, err)
	require.NotZero(t, ev.ID)
	_, err = uuid.Parse(ev.PublicID)
	require.NoError(t, err)

	_, err = db.RecordCrossing(crossing(2, counter.DirectionRightToLeft, base.Add(time.Second), counter.CountState{LeftToRight: 1, RightToLeft: 1, Total: 2}))
	require.NoError(t, err)
	_, err = db.RecordCrossing(crossing(3, counter.DirectionLeftToRight, base.Add(2*time.Second), counter.CountState{LeftToRight: 2, RightToLeft: 1, Total: 3}))
	require.NoError(t, err)

	recent, err := db.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.EqualValues(t, 3, recent[0].TrackID)
	require.EqualValues(t, 2, recent[1].TrackID)
	require.Equal(t, "rightToLeft", recent[1].Direction)
	require.Equal(t, base.Add(time.Second), recent[1].Time.Get())
	require.EqualValues(t, 2, recent[1].Total)
	require.NotEqual(t, recent[0].PublicID, recent[1].PublicID)

	totals, err := db.Totals(time.Time{})
	require.NoError(t, err)
	require.Equal(t, counter.CountState{LeftToRight: 2, RightToLeft: 1, Total: 3}, totals)

	totals, err = db.Totals(base.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, counter.CountState{LeftToRight: 1, RightToLeft: 1, Total: 2}, totals)

	// Limits are clamped
	recent, err = db.Recent(0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestRejectNonCrossing(t *testing.T) {
	db := createTestDB(t)
	_, err := db.RecordCrossing(counter.CountChanged{Reason: counter.ReasonFrame, Time: time.Now()})
	require.Error(t, err)
}

func TestResets(t *testing.T) {
	db := createTestDB(t)
	last, err := db.LastReset()
	require.NoError(t, err)
	require.True(t, last.IsZero())

	a := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordReset(a))
	require.NoError(t, db.RecordReset(a.Add(time.Hour)))
	last, err = db.LastReset()
	require.NoError(t, err)
	require.Equal(t, a.Add(time.Hour), last)
}
