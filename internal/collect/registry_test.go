package collect

import (
	"testing"

	"github.com/TobiSchelling/triggerwatch/internal/config"
)

func TestBuildOrderAndStatuses(t *testing.T) {
	cfg := config.Providers{
		Selected:       []string{"rss", "bogus", "NewsAPI", "gdelt", "newsapi", "finnhub"},
		MaxPerProvider: 5,
		NewsAPI:        config.NewsAPI{APIKey: "key"},
	}

	entries := Build(cfg, nil)
	want := []Status{
		{Name: "rss", Enabled: false, SkipReason: SkipMissingFeeds},
		{Name: "newsapi", Enabled: true},
		{Name: "gdelt", Enabled: true},
		{Name: "finnhub", Enabled: false, SkipReason: SkipMissingAPIKey},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].Status != w {
			t.Errorf("entry %d: expected %+v, got %+v", i, w, entries[i].Status)
		}
	}
}

func TestBuildTransportRetries(t *testing.T) {
	entries := Build(config.Providers{
		Selected: []string{"newsapi"},
		Retries:  2,
		NewsAPI:  config.NewsAPI{APIKey: "key"},
	}, nil)
	a, ok := entries[0].Adapter.(*NewsAPIAdapter)
	if !ok {
		t.Fatalf("expected newsapi adapter, got %T", entries[0].Adapter)
	}
	if a.http.attempts != 3 {
		t.Errorf("expected first call plus 2 retries, got %d attempts", a.http.attempts)
	}
}

func TestBuildEmptySelectionIsNoop(t *testing.T) {
	for _, selected := range [][]string{nil, {}, {"unknown", ""}} {
		entries := Build(config.Providers{Selected: selected}, nil)
		if len(entries) != 1 || entries[0].Status.Name != "none" {
			t.Errorf("selection %v: expected only the none provider, got %+v", selected, entries)
		}
		if c := New(entries, 10, nil); !c.IsNoop() {
			t.Errorf("selection %v: expected no-op collector", selected)
		}
	}
}

func TestBuildCustomProviderIsNotNoop(t *testing.T) {
	c := NewCollector(config.Providers{Selected: []string{"custom"}, Production: true}, nil)
	if c.IsNoop() {
		t.Error("custom provider counts as configured")
	}
	if got := c.FetchAll(t.Context(), acme); len(got) != 0 {
		t.Errorf("custom provider should return nothing, got %d", len(got))
	}
}

func TestParseProviderName(t *testing.T) {
	if p, ok := ParseProviderName(" GDELT "); !ok || p != ProviderGDELT {
		t.Errorf("expected gdelt, got %q %v", p, ok)
	}
	if _, ok := ParseProviderName("clearbit"); ok {
		t.Error("expected unknown provider to be rejected")
	}
}
