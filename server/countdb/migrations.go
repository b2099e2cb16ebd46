package countdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/peoplecount/pkg/dbh"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE crossing_event(
			id INTEGER PRIMARY KEY,
			public_id TEXT NOT NULL,
			track_id INT NOT NULL,
			direction TEXT NOT NULL,
			time INT NOT NULL,
			left_to_right INT NOT NULL,
			right_to_left INT NOT NULL,
			total INT NOT NULL
		);

		CREATE UNIQUE INDEX idx_crossing_event_public_id ON crossing_event(public_id);
		CREATE INDEX idx_crossing_event_time ON crossing_event(time);

		CREATE TABLE count_reset(
			id INTEGER PRIMARY KEY,
			time INT NOT NULL
		);
	`))

	return migs
}
