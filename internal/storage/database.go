package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	apperrors "github.com/conorfennell/hashcards/internal/errors"
	"github.com/conorfennell/hashcards/internal/scheduler"
)

// Filename is the name of the database inside a collection directory.
const Filename = "hashcards.db"

// DB stores one review record per card fingerprint.
//
// Every write is a single upsert statement; SQLite makes it atomic and the
// FULL synchronous pragma makes it durable before Put returns. Concurrent
// writers are serialized by SQLite itself, readers see WAL snapshots.
type DB struct {
	conn *sqlx.DB
}

// Entry pairs a fingerprint with its review record.
type Entry struct {
	Hash   string
	Record scheduler.Record
}

type recordRow struct {
	Hash              string         `db:"hash"`
	State             string         `db:"state"`
	Due               string         `db:"due"`
	IntervalSecs      int64          `db:"interval_secs"`
	Ease              float64        `db:"ease"`
	Reps              int            `db:"reps"`
	Lapses            int            `db:"lapses"`
	LastReviewed      sql.NullString `db:"last_reviewed"`
	Step              int            `db:"step"`
	LapseIntervalSecs int64          `db:"lapse_interval_secs"`
}

const selectColumns = `hash, state, due, interval_secs, ease, reps, lapses, last_reviewed, step, lapse_interval_secs`

// Open creates a new database connection and ensures the schema is up to date.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreOpenFailed, "failed to open database "+path, err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperrors.Wrap(apperrors.CodeStoreOpenFailed, "failed to connect to database "+path, err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Debug("database ready", "path", path, "schema_version", currentSchemaVersion)
	return db, nil
}

func (db *DB) initSchema() error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreOpenFailed, "failed to begin schema transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(metadataSchema); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreOpenFailed, "failed to create metadata table", err)
	}

	var raw string
	err = tx.Get(&raw, `SELECT value FROM metadata WHERE key = 'schema_version'`)
	version := 0
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return apperrors.Wrap(apperrors.CodeStoreOpenFailed, "failed to read schema version", err)
	default:
		version, err = strconv.Atoi(raw)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeStoreCorrupt, "schema version is not a number", err)
		}
	}

	if version > currentSchemaVersion {
		return apperrors.New(apperrors.CodeStoreSchemaTooNew, fmt.Sprintf(
			"database schema version %d is newer than supported version %d; upgrade hashcards to open this collection",
			version, currentSchemaVersion))
	}

	if version < 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return apperrors.Wrap(apperrors.CodeStoreOpenFailed, "failed to apply schema", err)
		}
	}

	if version < currentSchemaVersion {
		_, err := tx.Exec(`
			INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, strconv.Itoa(currentSchemaVersion))
		if err != nil {
			return apperrors.Wrap(apperrors.CodeStoreOpenFailed, "failed to record schema version", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreOpenFailed, "failed to commit schema", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get retrieves the review record for a fingerprint. The boolean is false
// when the card has never been answered.
func (db *DB) Get(ctx context.Context, hash string) (scheduler.Record, bool, error) {
	var row recordRow
	err := db.conn.GetContext(ctx, &row, `SELECT `+selectColumns+` FROM review_records WHERE hash = ?`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return scheduler.Record{}, false, nil
	}
	if err != nil {
		return scheduler.Record{}, false, apperrors.Wrap(apperrors.CodeStoreQueryFailed, "failed to read review record "+hash, err)
	}
	r, err := row.record()
	if err != nil {
		return scheduler.Record{}, false, err
	}
	return r, true, nil
}

// Put inserts or replaces the review record for a fingerprint.
func (db *DB) Put(ctx context.Context, hash string, r scheduler.Record) error {
	if err := r.Validate(); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreSaveFailed, "refusing to save invalid review record "+hash, err)
	}
	row, err := newRecordRow(hash, r)
	if err != nil {
		return err
	}
	_, err = db.conn.NamedExecContext(ctx, `
		INSERT INTO review_records (`+selectColumns+`)
		VALUES (:hash, :state, :due, :interval_secs, :ease, :reps, :lapses, :last_reviewed, :step, :lapse_interval_secs)
		ON CONFLICT(hash) DO UPDATE SET
			state = excluded.state,
			due = excluded.due,
			interval_secs = excluded.interval_secs,
			ease = excluded.ease,
			reps = excluded.reps,
			lapses = excluded.lapses,
			last_reviewed = excluded.last_reviewed,
			step = excluded.step,
			lapse_interval_secs = excluded.lapse_interval_secs
	`, row)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreSaveFailed, "failed to save review record "+hash, err)
	}
	return nil
}

// Delete removes the review record for a fingerprint. Deleting a missing
// record is not an error.
func (db *DB) Delete(ctx context.Context, hash string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM review_records WHERE hash = ?`, hash); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreSaveFailed, "failed to delete review record "+hash, err)
	}
	return nil
}

// All returns every stored record, ordered by fingerprint. Each iteration
// runs inside its own read transaction, so it sees a single snapshot and the
// sequence can be ranged over again.
func (db *DB) All(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			yield(Entry{}, apperrors.Wrap(apperrors.CodeStoreQueryFailed, "failed to begin read transaction", err))
			return
		}
		defer tx.Rollback()

		rows, err := tx.QueryxContext(ctx, `SELECT `+selectColumns+` FROM review_records ORDER BY hash`)
		if err != nil {
			yield(Entry{}, apperrors.Wrap(apperrors.CodeStoreQueryFailed, "failed to list review records", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row recordRow
			if err := rows.StructScan(&row); err != nil {
				yield(Entry{}, apperrors.Wrap(apperrors.CodeStoreQueryFailed, "failed to scan review record", err))
				return
			}
			r, err := row.record()
			if !yield(Entry{Hash: row.Hash, Record: r}, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, apperrors.Wrap(apperrors.CodeStoreQueryFailed, "failed to list review records", err))
		}
	}
}

// Load collects every record into a map keyed by fingerprint.
func (db *DB) Load(ctx context.Context) (map[string]scheduler.Record, error) {
	records := make(map[string]scheduler.Record)
	for e, err := range db.All(ctx) {
		if err != nil {
			return nil, err
		}
		records[e.Hash] = e.Record
	}
	return records, nil
}

func newRecordRow(hash string, r scheduler.Record) (recordRow, error) {
	state, err := r.State.MarshalText()
	if err != nil {
		return recordRow{}, apperrors.Wrap(apperrors.CodeStoreSaveFailed, "failed to encode review record "+hash, err)
	}
	row := recordRow{
		Hash:              hash,
		State:             string(state),
		Due:               formatTime(r.Due),
		IntervalSecs:      int64(r.Interval / time.Second),
		Ease:              r.Ease,
		Reps:              r.Reps,
		Lapses:            r.Lapses,
		Step:              r.Step,
		LapseIntervalSecs: int64(r.LapseInterval / time.Second),
	}
	if !r.LastReviewed.IsZero() {
		row.LastReviewed = sql.NullString{String: formatTime(r.LastReviewed), Valid: true}
	}
	return row, nil
}

func (row recordRow) record() (scheduler.Record, error) {
	corrupt := func(err error) (scheduler.Record, error) {
		return scheduler.Record{}, apperrors.Wrap(apperrors.CodeStoreCorrupt, "corrupt review record "+row.Hash, err)
	}

	var r scheduler.Record
	if err := r.State.UnmarshalText([]byte(row.State)); err != nil {
		return corrupt(err)
	}
	due, err := time.Parse(time.RFC3339Nano, row.Due)
	if err != nil {
		return corrupt(err)
	}
	r.Due = due
	r.Interval = time.Duration(row.IntervalSecs) * time.Second
	r.Ease = row.Ease
	r.Reps = row.Reps
	r.Lapses = row.Lapses
	r.Step = row.Step
	r.LapseInterval = time.Duration(row.LapseIntervalSecs) * time.Second
	if row.LastReviewed.Valid {
		last, err := time.Parse(time.RFC3339Nano, row.LastReviewed.String)
		if err != nil {
			return corrupt(err)
		}
		r.LastReviewed = last
	}
	if err := r.Validate(); err != nil {
		return corrupt(err)
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
