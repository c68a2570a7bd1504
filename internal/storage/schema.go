package storage

// currentSchemaVersion is stored in the metadata table. Databases carrying
// a higher version were written by a newer release and are refused.
const currentSchemaVersion = 1

const metadataSchema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const schemaV1 = `
-- One row per card fingerprint. Cards that have never been answered have no row.
CREATE TABLE IF NOT EXISTS review_records (
    hash TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    due TEXT NOT NULL,                 -- RFC 3339, UTC
    interval_secs INTEGER NOT NULL,
    ease REAL NOT NULL,
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    last_reviewed TEXT,                -- RFC 3339, UTC
    step INTEGER NOT NULL DEFAULT 0,
    lapse_interval_secs INTEGER NOT NULL DEFAULT 0
);
`
