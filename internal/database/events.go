package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// timeLayout is fixed-width so lexical order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

const eventColumns = `id, user_id, lead_id, company_name, company_domain, company_url,
	event_type, headline, event_description, source_url, detected_at, created_at`

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

// SourceKey is the per-scope uniqueness key for a source URL.
func SourceKey(url string) string {
	return strings.ToLower(strings.TrimSpace(url))
}

// InsertEvents writes rows in one transaction. Rows whose source URL already
// exists in the same scope are ignored. Returns the number actually inserted.
func (db *DB) InsertEvents(ctx context.Context, events []NewEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO trigger_events
		(id, user_id, lead_id, company_name, company_domain, company_url, scope_key,
		 event_type, headline, event_description, source_url, source_key, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range events {
		key := e.Scope.Key()
		if e.Scope.UserID == "" || key == "" {
			return 0, fmt.Errorf("insert event %q: scope is incomplete", e.SourceURL)
		}
		result, err := stmt.ExecContext(ctx,
			ulid.Make().String(),
			e.Scope.UserID,
			nullable(e.Scope.LeadID),
			nullable(e.Scope.CompanyName),
			nullable(e.Scope.CompanyDomain),
			nullable(e.CompanyURL),
			key,
			e.EventType,
			e.Headline,
			e.Description,
			e.SourceURL,
			SourceKey(e.SourceURL),
			formatTime(e.DetectedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("insert event %q: %w", e.SourceURL, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// RecentEvents returns up to limit events for the scope, newest first.
func (db *DB) RecentEvents(ctx context.Context, scope Scope, limit int) ([]EventRef, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT source_url, headline, detected_at FROM trigger_events
		WHERE user_id = ? AND scope_key = ?
		ORDER BY detected_at DESC, id DESC LIMIT ?`,
		scope.UserID, scope.Key(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []EventRef
	for rows.Next() {
		var r EventRef
		var detected string
		if err := rows.Scan(&r.SourceURL, &r.Headline, &detected); err != nil {
			return nil, err
		}
		r.DetectedAt = parseTime(detected)
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// HasEvents reports whether any event exists for the scope.
func (db *DB) HasEvents(ctx context.Context, scope Scope) (bool, error) {
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM trigger_events WHERE user_id = ? AND scope_key = ?)`,
		scope.UserID, scope.Key(),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists != 0, nil
}

// LatestEvent returns the most recent event for the scope, or nil if none.
func (db *DB) LatestEvent(ctx context.Context, scope Scope) (*TriggerEvent, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM trigger_events
		WHERE user_id = ? AND scope_key = ?
		ORDER BY detected_at DESC, id DESC LIMIT 1`,
		scope.UserID, scope.Key(),
	)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEvents returns events for a tenant, newest first. An empty scope key
// lists every company the tenant has events for.
func (db *DB) ListEvents(ctx context.Context, scope Scope, limit int) ([]TriggerEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM trigger_events WHERE user_id = ?`
	args := []any{scope.UserID}
	if key := scope.Key(); key != "" {
		query += " AND scope_key = ?"
		args = append(args, key)
	}
	query += " ORDER BY detected_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TriggerEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// EventsSince returns a tenant's events detected at or after since, newest
// first. An empty scope key covers every company the tenant has events for.
func (db *DB) EventsSince(ctx context.Context, scope Scope, since time.Time) ([]TriggerEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM trigger_events WHERE user_id = ? AND detected_at >= ?`
	args := []any{scope.UserID, formatTime(since)}
	if key := scope.Key(); key != "" {
		query += " AND scope_key = ?"
		args = append(args, key)
	}
	query += " ORDER BY detected_at DESC, id DESC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []TriggerEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*TriggerEvent, error) {
	var e TriggerEvent
	var detected string
	if err := row.Scan(
		&e.ID, &e.UserID, &e.LeadID, &e.CompanyName, &e.CompanyDomain, &e.CompanyURL,
		&e.EventType, &e.Headline, &e.Description, &e.SourceURL, &detected, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.DetectedAt = parseTime(detected)
	return &e, nil
}
