package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "trigger events",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS trigger_events (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    lead_id TEXT,
    company_name TEXT,
    company_domain TEXT,
    company_url TEXT,
    scope_key TEXT NOT NULL,
    event_type TEXT NOT NULL DEFAULT 'news',
    headline TEXT NOT NULL,
    event_description TEXT NOT NULL,
    source_url TEXT NOT NULL,
    source_key TEXT NOT NULL,
    detected_at TEXT NOT NULL,
    created_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_trigger_events_scope
    ON trigger_events(user_id, scope_key, detected_at DESC);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "unique source per scope",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
DELETE FROM trigger_events WHERE rowid NOT IN (
    SELECT MIN(rowid) FROM trigger_events GROUP BY user_id, scope_key, source_key
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_trigger_events_source
    ON trigger_events(user_id, scope_key, source_key);
`)
			return err
		},
	},
	{
		Version:     3,
		Description: "watched leads",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS leads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    lead_id TEXT,
    company_name TEXT,
    company_domain TEXT,
    is_active INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_user ON leads(user_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
