package datalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/aquarig/fintrack/internal/monitoring"
	"github.com/aquarig/fintrack/internal/motion"
	"github.com/aquarig/fintrack/internal/pipe"
)

// EpisodeStore indexes recording episodes in SQLite so runs can be
// located without scanning the frame archive.
type EpisodeStore struct {
	*sql.DB
}

// EpisodeRecord is one indexed episode. EndedAt is zero while the
// episode is still open.
type EpisodeRecord struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Flushed   int
	Emitted   int
}

// OpenEpisodeStore opens (creating if needed) the episode index at
// path.
func OpenEpisodeStore(path string) (*EpisodeStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open episode index")
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			flushed INTEGER NOT NULL DEFAULT 0,
			emitted INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create episodes table")
	}

	return &EpisodeStore{db}, nil
}

// RecordStart inserts a new open episode.
func (s *EpisodeStore) RecordStart(id string, startedAt time.Time, flushed int) error {
	_, err := s.Exec(
		"INSERT INTO episodes (id, started_at, flushed) VALUES (?, ?, ?)",
		id, startedAt, flushed,
	)
	return errors.Wrap(err, "record episode start")
}

// RecordEnd closes an episode with its final frame count.
func (s *EpisodeStore) RecordEnd(id string, endedAt time.Time, emitted int) error {
	res, err := s.Exec(
		"UPDATE episodes SET ended_at = ?, emitted = ? WHERE id = ?",
		endedAt, emitted, id,
	)
	if err != nil {
		return errors.Wrap(err, "record episode end")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("episode %s not found", id)
	}
	return nil
}

// Episodes returns all indexed episodes, newest first.
func (s *EpisodeStore) Episodes() ([]EpisodeRecord, error) {
	rows, err := s.Query(`
		SELECT id, started_at, ended_at, flushed, emitted
		FROM episodes ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query episodes")
	}
	defer rows.Close()

	var out []EpisodeRecord
	for rows.Next() {
		var rec EpisodeRecord
		var ended sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &ended, &rec.Flushed, &rec.Emitted); err != nil {
			return nil, errors.Wrap(err, "scan episode")
		}
		if ended.Valid {
			rec.EndedAt = ended.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Sink consumes episode events from the recorder until ctx is
// cancelled. Index failures are logged, never fatal to the pipeline.
func (s *EpisodeStore) Sink(ctx context.Context, events *pipe.Queue[motion.EpisodeEvent]) error {
	for {
		ev, err := events.Recv(ctx)
		if err != nil {
			return nil
		}
		switch ev.Kind {
		case motion.EpisodeStarted:
			if err := s.RecordStart(ev.ID.String(), ev.TS, ev.Flushed); err != nil {
				monitoring.Opsf("datalog: %v", err)
			}
		case motion.EpisodeEnded:
			if err := s.RecordEnd(ev.ID.String(), ev.TS, ev.Emitted); err != nil {
				monitoring.Opsf("datalog: %v", err)
			}
		}
	}
}
