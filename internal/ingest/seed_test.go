package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/TobiSchelling/triggerwatch/internal/collect"
)

func seedingIngester(store *fakeStore) *Ingester {
	return New(&fakeFetcher{noop: true}, store, nil, Options{DemoSeed: true, DemoURL: "https://triggerwatch.app/demo/"}, nil)
}

func TestSeedIfEmptyInsertsPlaceholders(t *testing.T) {
	store := &fakeStore{}
	in := seedingIngester(store)

	res := in.SeedIfEmpty(context.Background(), acmeInput)
	if res.Created != 2 {
		t.Fatalf("expected 2 demo events, got %+v", res)
	}

	types := map[string]bool{}
	for _, row := range store.rows {
		types[row.EventType] = true
		if !strings.HasPrefix(row.Headline, "[Demo]") {
			t.Errorf("expected demo label, got %q", row.Headline)
		}
		if !strings.HasPrefix(row.SourceURL, "https://triggerwatch.app/demo/acme.com/") {
			t.Errorf("unexpected demo url %q", row.SourceURL)
		}
		if !collect.IsValidURL(row.SourceURL) {
			t.Errorf("demo url must be valid: %q", row.SourceURL)
		}
		if row.Description == "" {
			t.Error("demo description must not be empty")
		}
	}
	if !types["funding"] || !types["product_launch"] {
		t.Errorf("expected funding and product_launch, got %v", types)
	}
}

func TestSeedIfEmptyNoopWhenPopulated(t *testing.T) {
	store := &fakeStore{}
	in := seedingIngester(store)

	in.SeedIfEmpty(context.Background(), acmeInput)
	res := in.SeedIfEmpty(context.Background(), acmeInput)
	if res.Created != 0 || res.Skipped != SkippedHasEvents {
		t.Errorf("expected has_events skip, got %+v", res)
	}
	if store.inserts != 1 {
		t.Errorf("expected a single insert, got %d", store.inserts)
	}
}

func TestSeedIfEmptyAfterRealIngest(t *testing.T) {
	store := &fakeStore{}
	in := New(&fakeFetcher{candidates: candidates(1)}, store, nil, Options{DemoSeed: true}, nil)

	in.Ingest(context.Background(), acmeInput)
	if res := in.SeedIfEmpty(context.Background(), acmeInput); res.Created != 0 {
		t.Errorf("expected no demo events once real events exist, got %+v", res)
	}
}

func TestSeedIfEmptyDisabled(t *testing.T) {
	store := &fakeStore{}
	in := New(&fakeFetcher{noop: true}, store, nil, Options{}, nil)

	res := in.SeedIfEmpty(context.Background(), acmeInput)
	if res.Skipped != SkippedDemoDisabled {
		t.Errorf("expected demo_disabled, got %+v", res)
	}
	if store.hasCalls != 0 || store.inserts != 0 {
		t.Error("disabled seeder must not touch the store")
	}
}

func TestSeedIfEmptyNameOnlyScope(t *testing.T) {
	store := &fakeStore{}
	in := seedingIngester(store)

	res := in.SeedIfEmpty(context.Background(), Input{UserID: "user-1", CompanyName: "Acme Corp"})
	if res.Created != 2 {
		t.Fatalf("expected 2 demo events, got %+v", res)
	}
	if !strings.Contains(store.rows[0].SourceURL, "/acme%20corp/") {
		t.Errorf("expected escaped name in demo url, got %q", store.rows[0].SourceURL)
	}
	if !strings.Contains(store.rows[0].Headline, "Acme Corp") {
		t.Errorf("expected company name in headline, got %q", store.rows[0].Headline)
	}
}

func TestSeedIfEmptyStoreFailure(t *testing.T) {
	store := &fakeStore{readErr: errors.New("unavailable")}
	in := seedingIngester(store)
	if res := in.SeedIfEmpty(context.Background(), acmeInput); res.Created != 0 {
		t.Errorf("expected 0 on store failure, got %+v", res)
	}
	if store.inserts != 0 {
		t.Error("expected no insert after read failure")
	}
}
