// Package auditlog is an optional per-task audit trail backed by
// SQLite, enabled only when config.GlobalCfg.Audit.Path is set. It is
// not part of the core pipeline: the dispatcher calls Recorder.Record
// as a side observation for each cache hit and each successful task
// result, just before the result frame is sent. Cancelled and failed
// tasks are not recorded.
package auditlog

import (
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cppla/computesrv/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS task_audit (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	owner       TEXT NOT NULL,
	request_type TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	cache_hit   INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	recorded_at TEXT NOT NULL
);
`

// Recorder writes one row per finished task submission.
type Recorder struct {
	db *sqlx.DB
}

// Open creates/opens the sqlite file at path and ensures the schema exists.
func Open(path string) (*Recorder, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Recorder{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Recorder) Close() error { return r.db.Close() }

// Record inserts one audit row for a finished task.
func (r *Recorder) Record(owner string, reqType protocol.RequestType, fp protocol.Fingerprint, cacheHit bool, duration time.Duration) error {
	_, err := r.db.Exec(
		`INSERT INTO task_audit (owner, request_type, fingerprint, cache_hit, duration_ms, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		owner, reqType.String(), fingerprintText(fp), boolToInt(cacheHit), duration.Milliseconds(), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func fingerprintText(fp protocol.Fingerprint) string {
	return strconv.FormatUint(uint64(fp), 36)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
