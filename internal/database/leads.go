package database

import (
	"database/sql"
	"fmt"
)

const leadColumns = "id, user_id, lead_id, company_name, company_domain, is_active, created_at, updated_at"

// InsertLead adds a company to a tenant's watchlist.
func (db *DB) InsertLead(userID, leadID, companyName, companyDomain string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("lead requires a user id")
	}
	if nullable(companyName) == nil && nullable(companyDomain) == nil {
		return 0, fmt.Errorf("lead requires a company name or domain")
	}

	result, err := db.conn.Exec(
		`INSERT INTO leads (user_id, lead_id, company_name, company_domain) VALUES (?, ?, ?, ?)`,
		userID, nullable(leadID), nullable(companyName), nullable(companyDomain),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAllLeads returns watched leads, optionally filtered by tenant.
func (db *DB) GetAllLeads(userID string) ([]Lead, error) {
	if userID == "" {
		return db.queryLeads("SELECT " + leadColumns + " FROM leads ORDER BY created_at DESC, id DESC")
	}
	return db.queryLeads("SELECT "+leadColumns+" FROM leads WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
}

// GetActiveLeads returns only active leads across all tenants, oldest first.
func (db *DB) GetActiveLeads() ([]Lead, error) {
	return db.queryLeads("SELECT " + leadColumns + " FROM leads WHERE is_active = 1 ORDER BY id")
}

// GetLead returns a single lead by ID.
func (db *DB) GetLead(id int64) (*Lead, error) {
	row := db.conn.QueryRow("SELECT "+leadColumns+" FROM leads WHERE id = ?", id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ToggleLead toggles the active state of a lead.
func (db *DB) ToggleLead(id int64) error {
	_, err := db.conn.Exec(
		`UPDATE leads SET is_active = NOT is_active, updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	return err
}

// DeleteLead removes a lead. Its stored events are kept.
func (db *DB) DeleteLead(id int64) error {
	_, err := db.conn.Exec("DELETE FROM leads WHERE id = ?", id)
	return err
}

func (db *DB) queryLeads(query string, args ...any) ([]Lead, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

func scanLead(row scanner) (*Lead, error) {
	var l Lead
	var active int
	if err := row.Scan(&l.ID, &l.UserID, &l.LeadID, &l.CompanyName, &l.CompanyDomain, &active, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.IsActive = active != 0
	return &l, nil
}
