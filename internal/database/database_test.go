package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var acme = Scope{UserID: "user-1", LeadID: "lead-1", CompanyName: "Acme Corp", CompanyDomain: "acme.com"}

func newEvent(scope Scope, url, headline string, detected time.Time) NewEvent {
	return NewEvent{
		Scope:       scope,
		EventType:   "news",
		Headline:    headline,
		Description: headline,
		SourceURL:   url,
		CompanyURL:  "https://" + scope.CompanyDomain,
		DetectedAt:  detected,
	}
}

func TestScopeKey(t *testing.T) {
	tests := []struct {
		scope Scope
		want  string
	}{
		{Scope{CompanyDomain: " WWW.Acme.com "}, "acme.com"},
		{Scope{CompanyName: "Acme", CompanyDomain: "acme.com"}, "acme.com"},
		{Scope{CompanyName: "  Acme   Corp "}, "name:acme corp"},
		{Scope{}, ""},
	}
	for _, tt := range tests {
		if got := tt.scope.Key(); got != tt.want {
			t.Errorf("Key(%+v) = %q, want %q", tt.scope, got, tt.want)
		}
	}
}

func TestInsertEvents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	n, err := db.InsertEvents(ctx, []NewEvent{
		newEvent(acme, "https://example.com/a", "A", now),
		newEvent(acme, "https://example.com/b", "B", now.Add(-time.Hour)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}

	events, err := db.ListEvents(ctx, acme, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	e := events[0]
	if e.Headline != "A" || len(e.ID) != 26 {
		t.Errorf("unexpected newest event: %+v", e)
	}
	if e.CompanyURL == nil || *e.CompanyURL != "https://acme.com" {
		t.Errorf("expected company url, got %v", e.CompanyURL)
	}
	if e.LeadID == nil || *e.LeadID != "lead-1" {
		t.Errorf("expected lead id, got %v", e.LeadID)
	}
	if !e.DetectedAt.Equal(now) {
		t.Errorf("expected detected_at round trip, got %v", e.DetectedAt)
	}
}

func TestInsertDuplicateSourceInScope(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := db.InsertEvents(ctx, []NewEvent{newEvent(acme, "https://example.com/a", "First", now)}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	n, err := db.InsertEvents(ctx, []NewEvent{
		newEvent(acme, "HTTPS://Example.com/A ", "Duplicate", now),
		newEvent(acme, "https://example.com/c", "New", now),
	})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if n != 1 {
		t.Errorf("expected only the new row to count, got %d", n)
	}
}

func TestSameSourceAcrossTenants(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	other := acme
	other.UserID = "user-2"

	n, err := db.InsertEvents(ctx, []NewEvent{
		newEvent(acme, "https://example.com/a", "A", time.Now()),
		newEvent(other, "https://example.com/a", "A", time.Now()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected both tenants to get the event, got %d", n)
	}
}

func TestInsertEventsRejectsIncompleteScope(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertEvents(context.Background(), []NewEvent{
		newEvent(Scope{UserID: "user-1"}, "https://example.com/a", "A", time.Now()),
	})
	if err == nil {
		t.Error("expected error for scope without company identity")
	}
}

func TestRecentEventsLimitAndScope(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	var rows []NewEvent
	for i := range 5 {
		rows = append(rows, newEvent(acme, "https://example.com/"+string(rune('a'+i)), "H", base.Add(time.Duration(i)*time.Hour)))
	}
	globex := Scope{UserID: "user-1", CompanyName: "Globex"}
	rows = append(rows, newEvent(globex, "https://example.com/g", "G", base.Add(10*time.Hour)))
	if _, err := db.InsertEvents(ctx, rows); err != nil {
		t.Fatalf("insert: %v", err)
	}

	refs, err := db.RecentEvents(ctx, acme, 3)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %d", len(refs))
	}
	if refs[0].SourceURL != "https://example.com/e" {
		t.Errorf("expected newest first, got %q", refs[0].SourceURL)
	}

	all, err := db.ListEvents(ctx, Scope{UserID: "user-1"}, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(all) != 6 {
		t.Errorf("expected all tenant events without company filter, got %d", len(all))
	}
}

func TestLatestAndHasEvents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	latest, err := db.LatestEvent(ctx, acme)
	if err != nil {
		t.Fatalf("LatestEvent: %v", err)
	}
	if latest != nil {
		t.Error("expected nil latest event on empty scope")
	}
	if has, _ := db.HasEvents(ctx, acme); has {
		t.Error("expected no events")
	}

	now := time.Now()
	db.InsertEvents(ctx, []NewEvent{
		newEvent(acme, "https://example.com/old", "Old", now.Add(-48*time.Hour)),
		newEvent(acme, "https://example.com/new", "New", now),
	})

	latest, err = db.LatestEvent(ctx, acme)
	if err != nil {
		t.Fatalf("LatestEvent: %v", err)
	}
	if latest == nil || latest.Headline != "New" {
		t.Errorf("expected newest event, got %+v", latest)
	}
	if has, _ := db.HasEvents(ctx, acme); !has {
		t.Error("expected events")
	}
}

func TestEventsSince(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	db.InsertEvents(ctx, []NewEvent{
		newEvent(acme, "https://example.com/old", "Old", now.AddDate(0, 0, -10)),
		newEvent(acme, "https://example.com/new", "New", now.AddDate(0, 0, -1)),
	})

	globex := Scope{UserID: "user-1", CompanyDomain: "globex.com"}
	db.InsertEvents(ctx, []NewEvent{newEvent(globex, "https://example.com/globex", "Globex", now)})

	events, err := db.EventsSince(ctx, acme, now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("EventsSince: %v", err)
	}
	if len(events) != 1 || events[0].Headline != "New" {
		t.Errorf("expected only the recent acme event, got %+v", events)
	}

	all, _ := db.EventsSince(ctx, Scope{UserID: "user-1"}, now.AddDate(0, 0, -7))
	if len(all) != 2 || all[0].Headline != "Globex" {
		t.Errorf("expected both recent tenant events newest first, got %+v", all)
	}
}

func TestLeads(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertLead("user-1", "lead-1", "Acme Corp", "acme.com")
	if err != nil {
		t.Fatalf("InsertLead: %v", err)
	}
	if _, err := db.InsertLead("user-2", "", "", "globex.com"); err != nil {
		t.Fatalf("InsertLead: %v", err)
	}
	if _, err := db.InsertLead("user-1", "", " ", ""); err == nil {
		t.Error("expected error for lead without company identity")
	}

	all, _ := db.GetAllLeads("")
	if len(all) != 2 {
		t.Errorf("expected 2 leads, got %d", len(all))
	}
	mine, _ := db.GetAllLeads("user-1")
	if len(mine) != 1 {
		t.Errorf("expected 1 lead for user-1, got %d", len(mine))
	}

	if err := db.ToggleLead(id); err != nil {
		t.Fatalf("ToggleLead: %v", err)
	}
	lead, _ := db.GetLead(id)
	if lead == nil || lead.IsActive {
		t.Errorf("expected lead to be inactive, got %+v", lead)
	}
	active, _ := db.GetActiveLeads()
	if len(active) != 1 {
		t.Errorf("expected 1 active lead, got %d", len(active))
	}

	scope := mine[0].Scope()
	if scope.Key() != "acme.com" || scope.LeadID != "lead-1" {
		t.Errorf("unexpected lead scope: %+v", scope)
	}

	if err := db.DeleteLead(id); err != nil {
		t.Fatalf("DeleteLead: %v", err)
	}
	if lead, _ := db.GetLead(id); lead != nil {
		t.Error("expected lead to be deleted")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	other := acme
	other.UserID = "user-2"

	db.InsertEvents(ctx, []NewEvent{
		newEvent(acme, "https://example.com/a", "A", time.Now()),
		newEvent(acme, "https://example.com/b", "B", time.Now()),
		newEvent(other, "https://example.com/a", "A", time.Now()),
	})
	db.InsertLead("user-1", "", "Acme", "acme.com")

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	want := Stats{TotalEvents: 3, Tenants: 2, Scopes: 2, TotalLeads: 1, ActiveLeads: 1}
	if *stats != want {
		t.Errorf("expected %+v, got %+v", want, *stats)
	}
}
