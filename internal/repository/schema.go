package repository

import "entgo.io/ent/dialect"

const readingsTable = "readings"

// Timestamps are stored as text: captured_at keeps the photo's own offset,
// created_at is fixed-width UTC so it sorts lexically.
var schema = map[string][]string{
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS readings (
			id            TEXT PRIMARY KEY,
			source        TEXT NOT NULL,
			content_hash  TEXT NOT NULL DEFAULT '',
			captured_at   TEXT NULL,
			temperature_c REAL NULL,
			humidity_pct  REAL NULL,
			lat           REAL NULL,
			lng           REAL NULL,
			status        TEXT NOT NULL,
			needs_review  INTEGER NOT NULL DEFAULT 0,
			notes         TEXT NOT NULL DEFAULT '',
			llm_reason    TEXT NOT NULL DEFAULT '',
			error         TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS readings_content_hash ON readings (content_hash)`,
		`CREATE INDEX IF NOT EXISTS readings_created_at ON readings (created_at)`,
	},
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS readings (
			id            UUID PRIMARY KEY,
			source        TEXT NOT NULL,
			content_hash  TEXT NOT NULL DEFAULT '',
			captured_at   TEXT NULL,
			temperature_c DOUBLE PRECISION NULL,
			humidity_pct  DOUBLE PRECISION NULL,
			lat           DOUBLE PRECISION NULL,
			lng           DOUBLE PRECISION NULL,
			status        TEXT NOT NULL,
			needs_review  BOOLEAN NOT NULL DEFAULT FALSE,
			notes         TEXT NOT NULL DEFAULT '',
			llm_reason    TEXT NOT NULL DEFAULT '',
			error         TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS readings_content_hash ON readings (content_hash)`,
		`CREATE INDEX IF NOT EXISTS readings_created_at ON readings (created_at)`,
	},
}

var readingColumns = []string{
	"id", "source", "content_hash", "captured_at",
	"temperature_c", "humidity_pct", "lat", "lng",
	"status", "needs_review", "notes", "llm_reason", "error", "created_at",
}
