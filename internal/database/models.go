package database

import (
	"strings"
	"time"
)

// Scope identifies one tenant's view of one company. Events are stored and
// deduplicated per scope, never across tenants.
type Scope struct {
	UserID        string
	LeadID        string
	CompanyName   string
	CompanyDomain string
}

// Key returns the company half of the scope: the domain when known,
// otherwise the lower-cased name.
func (s Scope) Key() string {
	if d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s.CompanyDomain)), "www."); d != "" {
		return d
	}
	name := strings.ToLower(strings.Join(strings.Fields(s.CompanyName), " "))
	if name == "" {
		return ""
	}
	return "name:" + name
}

// TriggerEvent is a stored trigger event row.
type TriggerEvent struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	LeadID        *string   `json:"lead_id,omitempty"`
	CompanyName   *string   `json:"company_name,omitempty"`
	CompanyDomain *string   `json:"company_domain,omitempty"`
	CompanyURL    *string   `json:"company_url,omitempty"`
	EventType     string    `json:"event_type"`
	Headline      string    `json:"headline"`
	Description   string    `json:"event_description"`
	SourceURL     string    `json:"source_url"`
	DetectedAt    time.Time `json:"detected_at"`
	CreatedAt     *string   `json:"created_at,omitempty"`
}

// NewEvent is a row to insert.
type NewEvent struct {
	Scope       Scope
	EventType   string
	Headline    string
	Description string
	SourceURL   string
	CompanyURL  string
	DetectedAt  time.Time
}

// EventRef is the slice of a stored event needed for duplicate detection.
type EventRef struct {
	SourceURL  string
	Headline   string
	DetectedAt time.Time
}

// Lead is a watched company for a tenant.
type Lead struct {
	ID            int64   `json:"id"`
	UserID        string  `json:"user_id"`
	LeadID        *string `json:"lead_id,omitempty"`
	CompanyName   *string `json:"company_name,omitempty"`
	CompanyDomain *string `json:"company_domain,omitempty"`
	IsActive      bool    `json:"is_active"`
	CreatedAt     *string `json:"created_at,omitempty"`
	UpdatedAt     *string `json:"updated_at,omitempty"`
}

// Scope returns the event scope this lead watches.
func (l Lead) Scope() Scope {
	return Scope{
		UserID:        l.UserID,
		LeadID:        deref(l.LeadID),
		CompanyName:   deref(l.CompanyName),
		CompanyDomain: deref(l.CompanyDomain),
	}
}

// Stats holds aggregate database counts.
type Stats struct {
	TotalEvents int `json:"total_events"`
	Tenants     int `json:"tenants"`
	Scopes      int `json:"scopes"`
	TotalLeads  int `json:"total_leads"`
	ActiveLeads int `json:"active_leads"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
